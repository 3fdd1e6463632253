package models

import "time"

// Designations eligible to act as counsellor or class advisor.
const (
	DesignationHOD                = "HOD"
	DesignationAssistantProfessor = "Assistant Professor"
	DesignationAssociateProfessor = "Associate Professor"
)

// EligibleMentorDesignation reports whether a staff designation may be chosen
// as counsellor or class advisor on a submission.
func EligibleMentorDesignation(designation string) bool {
	switch designation {
	case DesignationHOD, DesignationAssistantProfessor, DesignationAssociateProfessor:
		return true
	}
	return false
}

// StaffProfile carries staff identity and role attributes. The functional
// capabilities a staff member holds (faculty, hod, library, ...) live in
// user_roles, decoupled from this row.
type StaffProfile struct {
	UserID         string     `db:"user_id" json:"user_id"`
	Designation    string     `db:"designation" json:"designation"`
	Department     Department `db:"department" json:"department"`
	EmployeeID     string     `db:"employee_id" json:"employee_id"`
	OfficeLocation string     `db:"office_location" json:"office_location"`
	IsActive       bool       `db:"is_active" json:"is_active"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// StaffFilter captures filtering criteria for listing staff.
type StaffFilter struct {
	Department Department
	Active     *bool
	Search     string
	Page       int
	PageSize   int
}
