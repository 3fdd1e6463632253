package certificate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDocument() Document {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	return Document{
		StudentName:   "Student A",
		USN:           "1AB22CS001",
		Department:    "CSE",
		Semester:      6,
		Batch:         "2022-26",
		StudentType:   "local",
		TransactionID: "TXN-42",
		IssuedAt:      now,
		Clearances: []Clearance{
			{Stage: "library", Verified: true, VerifiedAt: &now},
			{Stage: "college_office", Verified: true, Comment: "no dues"},
		},
	}
}

func TestRenderProducesPDF(t *testing.T) {
	r := NewRenderer("Test Institute")

	data, err := r.Render(sampleDocument())
	require.NoError(t, err)
	require.NotEmpty(t, data)
	assert.Equal(t, "%PDF", string(data[:4]))
}

func TestRenderIsDeterministicPerDocument(t *testing.T) {
	r := NewRenderer("Test Institute")
	doc := sampleDocument()

	first, err := r.Render(doc)
	require.NoError(t, err)
	second, err := r.Render(doc)
	require.NoError(t, err)
	assert.Equal(t, len(first), len(second))
}

func TestRenderRequiredFields(t *testing.T) {
	r := NewRenderer("")

	doc := sampleDocument()
	doc.USN = ""
	_, err := r.Render(doc)
	require.Error(t, err)

	doc = sampleDocument()
	doc.Clearances = nil
	_, err = r.Render(doc)
	require.Error(t, err)
}

func TestStageLabel(t *testing.T) {
	assert.Equal(t, "College Office", stageLabel("college_office"))
	assert.Equal(t, "Library", stageLabel("library"))
	assert.Equal(t, "Class Advisor", stageLabel("class_advisor"))
}
