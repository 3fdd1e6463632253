package models

import "time"

// Department constrains the academic department enum.
type Department string

const (
	DepartmentMECH  Department = "MECH"
	DepartmentCSE   Department = "CSE"
	DepartmentCIVIL Department = "CIVIL"
	DepartmentEC    Department = "EC"
	DepartmentAIML  Department = "AIML"
	DepartmentCD    Department = "CD"
)

// Departments lists every valid department.
var Departments = []Department{
	DepartmentMECH,
	DepartmentCSE,
	DepartmentCIVIL,
	DepartmentEC,
	DepartmentAIML,
	DepartmentCD,
}

// ValidDepartment reports whether the raw value names a known department.
func ValidDepartment(raw string) bool {
	for _, d := range Departments {
		if string(d) == raw {
			return true
		}
	}
	return false
}

// StudentType distinguishes hostel residents, whose applications pass through
// the hostel stage, from local students, who skip it.
type StudentType string

const (
	StudentTypeLocal  StudentType = "local"
	StudentTypeHostel StudentType = "hostel"
)

// StudentProfile carries a student's identity and academic attributes.
// ProfileCompleted gates application submission.
type StudentProfile struct {
	UserID           string      `db:"user_id" json:"user_id"`
	USN              string      `db:"usn" json:"usn"`
	Department       Department  `db:"department" json:"department"`
	Semester         int         `db:"semester" json:"semester"`
	Section          string      `db:"section" json:"section"`
	Batch            string      `db:"batch" json:"batch"`
	StudentType      StudentType `db:"student_type" json:"student_type"`
	ProfileCompleted bool        `db:"profile_completed" json:"profile_completed"`
	CreatedAt        time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time   `db:"updated_at" json:"updated_at"`
}
