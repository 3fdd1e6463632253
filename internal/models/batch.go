package models

import (
	"regexp"
	"time"
)

var batchNamePattern = regexp.MustCompile(`^\d{4}-\d{2}$`)

// ValidBatchName reports whether the name matches the YYYY-YY cohort format.
func ValidBatchName(name string) bool {
	return batchNamePattern.MatchString(name)
}

// Batch groups a student cohort. Deleting a batch cascades to its students'
// applications.
type Batch struct {
	ID              string    `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	CurrentSemester int       `db:"current_semester" json:"current_semester"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Subject is a course a faculty member can be asked to clear.
type Subject struct {
	ID         string     `db:"id" json:"id"`
	Code       string     `db:"code" json:"code"`
	Name       string     `db:"name" json:"name"`
	Department Department `db:"department" json:"department"`
	Semester   int        `db:"semester" json:"semester"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}
