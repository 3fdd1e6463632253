package certificate

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Clearance is one verified stage line printed on the certificate.
type Clearance struct {
	Stage      string
	Verified   bool
	Comment    string
	VerifiedAt *time.Time
}

// Document holds everything needed to print a no-due certificate.
type Document struct {
	StudentName   string
	USN           string
	Department    string
	Semester      int
	Batch         string
	StudentType   string
	TransactionID string
	IssuedAt      time.Time
	Clearances    []Clearance
}

// Renderer produces printable no-due certificates.
type Renderer struct {
	institution string
}

// NewRenderer constructs a renderer with the institution heading.
func NewRenderer(institution string) *Renderer {
	if institution == "" {
		institution = "NO-DUE CERTIFICATE"
	}
	return &Renderer{institution: institution}
}

// Render creates the certificate PDF. It is a pure function of the document:
// repeated calls with the same input produce equivalent output and nothing is
// mutated.
func (r *Renderer) Render(doc Document) ([]byte, error) {
	if doc.StudentName == "" || doc.USN == "" {
		return nil, fmt.Errorf("certificate requires student name and USN")
	}
	if len(doc.Clearances) == 0 {
		return nil, fmt.Errorf("certificate requires at least one clearance entry")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 20, 15)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, strings.ToUpper(r.institution), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "B", 13)
	pdf.CellFormat(0, 8, "NO-DUE CERTIFICATE", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 7, fmt.Sprintf("Name: %s", doc.StudentName), "", 1, "", false, 0, "")
	pdf.CellFormat(0, 7, fmt.Sprintf("USN: %s    Department: %s    Semester: %d", doc.USN, doc.Department, doc.Semester), "", 1, "", false, 0, "")
	pdf.CellFormat(0, 7, fmt.Sprintf("Batch: %s    Student Type: %s", doc.Batch, doc.StudentType), "", 1, "", false, 0, "")
	if doc.TransactionID != "" {
		pdf.CellFormat(0, 7, fmt.Sprintf("Payment Transaction: %s", doc.TransactionID), "", 1, "", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(60, 8, "Clearance", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 8, "Status", "1", 0, "C", false, 0, "")
	pdf.CellFormat(90, 8, "Remarks", "1", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "", 9)
	for _, c := range doc.Clearances {
		status := "CLEARED"
		if !c.Verified {
			status = "N/A"
		}
		remarks := c.Comment
		if c.VerifiedAt != nil {
			if remarks != "" {
				remarks += " "
			}
			remarks += fmt.Sprintf("(%s)", c.VerifiedAt.Format("02 Jan 2006"))
		}
		pdf.CellFormat(60, 7, stageLabel(c.Stage), "1", 0, "", false, 0, "")
		pdf.CellFormat(30, 7, status, "1", 0, "C", false, 0, "")
		pdf.CellFormat(90, 7, remarks, "1", 1, "", false, 0, "")
	}

	pdf.Ln(8)
	pdf.SetFont("Arial", "I", 9)
	pdf.CellFormat(0, 6, fmt.Sprintf("Issued on %s. This student has no dues pending against any department.", doc.IssuedAt.Format("02 Jan 2006")), "", 1, "", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render certificate: %w", err)
	}
	return buf.Bytes(), nil
}

func stageLabel(stage string) string {
	parts := strings.Split(stage, "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}
