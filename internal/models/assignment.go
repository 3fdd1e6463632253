package models

import "time"

// VerificationStatus is the per-assignment review state.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationApproved VerificationStatus = "approved"
	VerificationRejected VerificationStatus = "rejected"
)

// SubjectAssignment pairs one subject with the faculty member responsible for
// verifying it on a given application. The parent application's faculty stage
// advances only when every sibling row is approved; a single rejected row
// rejects the parent immediately.
type SubjectAssignment struct {
	ID                 string             `db:"id" json:"id"`
	ApplicationID      string             `db:"application_id" json:"application_id"`
	SubjectID          string             `db:"subject_id" json:"subject_id"`
	FacultyID          string             `db:"faculty_id" json:"faculty_id"`
	FacultyVerified    bool               `db:"faculty_verified" json:"faculty_verified"`
	VerificationStatus VerificationStatus `db:"verification_status" json:"verification_status"`
	FacultyComment     *string            `db:"faculty_comment" json:"faculty_comment,omitempty"`
	VerifiedAt         *time.Time         `db:"verified_at" json:"verified_at,omitempty"`
	CreatedAt          time.Time          `db:"created_at" json:"created_at"`
}

// ReviewOutcome summarises the aggregate state after a faculty review.
type ReviewOutcome string

const (
	// ReviewOutcomeApproved means every sibling row is approved and the
	// parent's faculty stage was advanced.
	ReviewOutcomeApproved ReviewOutcome = "approved"
	// ReviewOutcomeRejected means at least one row is rejected and the parent
	// was rejected (short-circuit, regardless of other rows).
	ReviewOutcomeRejected ReviewOutcome = "rejected"
	// ReviewOutcomePartial means some rows are still pending; the parent is
	// untouched.
	ReviewOutcomePartial ReviewOutcome = "partial"
)

// ReviewResult reports what the aggregate transition did.
type ReviewResult struct {
	Outcome      ReviewOutcome
	UpdatedRows  int
	TotalRows    int
	ApprovedRows int
}
