package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sudeep-patali/nodue-api/internal/models"
)

const assignmentColumns = `id, application_id, subject_id, faculty_id, faculty_verified, verification_status, faculty_comment, verified_at, created_at`

// AssignmentRepository persists the per-subject faculty verification rows.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// ListByApplication returns every assignment row of an application.
func (r *AssignmentRepository) ListByApplication(ctx context.Context, applicationID string) ([]models.SubjectAssignment, error) {
	query := fmt.Sprintf(`SELECT %s FROM application_subject_faculty WHERE application_id = $1 ORDER BY created_at ASC`, assignmentColumns)
	var rows []models.SubjectAssignment
	if err := r.db.SelectContext(ctx, &rows, query, applicationID); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return rows, nil
}

// ListPendingForFaculty returns the rows awaiting a given faculty member,
// scoped to applications that have reached the faculty stage. Applications
// rejected at the faculty stage stay visible so their rows can be re-reviewed.
func (r *AssignmentRepository) ListPendingForFaculty(ctx context.Context, facultyID string) ([]models.SubjectAssignment, error) {
	const query = `SELECT s.id, s.application_id, s.subject_id, s.faculty_id, s.faculty_verified,
	s.verification_status, s.faculty_comment, s.verified_at, s.created_at
FROM application_subject_faculty s
JOIN applications a ON a.id = s.application_id
WHERE s.faculty_id = $1
	AND a.college_office_verified AND NOT a.faculty_verified
	AND ((a.rejected_stage IS NULL AND s.verification_status = 'pending')
		OR (a.rejected_stage = 'faculty' AND s.verification_status IN ('pending', 'rejected')))
ORDER BY s.created_at ASC`
	var rows []models.SubjectAssignment
	if err := r.db.SelectContext(ctx, &rows, query, facultyID); err != nil {
		return nil, fmt.Errorf("list pending assignments: %w", err)
	}
	return rows, nil
}

// ReviewParams carries one faculty member's decision on their rows of an
// application.
type ReviewParams struct {
	ApplicationID string
	FacultyID     string
	Approved      bool
	Comment       *string
}

// Review applies a faculty decision and the aggregate transition in a single
// transaction. The sibling rows are locked before the caller's rows are
// updated, so two faculty members deciding concurrently serialize here and
// the all-approved transition fires exactly once.
func (r *AssignmentRepository) Review(ctx context.Context, params ReviewParams) (result *models.ReviewResult, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin review transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// Lock every sibling row for the application.
	lockQuery := fmt.Sprintf(`SELECT %s FROM application_subject_faculty WHERE application_id = $1 ORDER BY id FOR UPDATE`, assignmentColumns)
	var siblings []models.SubjectAssignment
	if err = tx.SelectContext(ctx, &siblings, lockQuery, params.ApplicationID); err != nil {
		return nil, fmt.Errorf("lock assignments: %w", err)
	}
	if len(siblings) == 0 {
		err = sql.ErrNoRows
		return nil, err
	}

	status := models.VerificationApproved
	if !params.Approved {
		status = models.VerificationRejected
	}
	now := time.Now().UTC()

	// Rejected rows remain eligible so the rejecting member can reverse
	// their own decision; approved rows are settled.
	const updateQuery = `UPDATE application_subject_faculty
SET verification_status = $3, faculty_verified = $4, faculty_comment = $5, verified_at = $6
WHERE application_id = $1 AND faculty_id = $2 AND verification_status IN ('pending', 'rejected')`
	res, err := tx.ExecContext(ctx, updateQuery, params.ApplicationID, params.FacultyID, status, params.Approved, params.Comment, now)
	if err != nil {
		return nil, fmt.Errorf("update own assignments: %w", err)
	}
	updated, _ := res.RowsAffected()
	if updated == 0 {
		err = sql.ErrNoRows
		return nil, err
	}

	// Recompute the aggregate over the locked snapshot plus this update.
	total := len(siblings)
	approved := 0
	rejected := false
	for _, row := range siblings {
		rowStatus := row.VerificationStatus
		if row.FacultyID == params.FacultyID && rowStatus != models.VerificationApproved {
			rowStatus = status
		}
		switch rowStatus {
		case models.VerificationApproved:
			approved++
		case models.VerificationRejected:
			rejected = true
		}
	}

	outcome := models.ReviewOutcomePartial
	switch {
	case rejected:
		// Reject short-circuits: the parent flips immediately regardless of
		// the remaining rows.
		outcome = models.ReviewOutcomeRejected
		const rejectQuery = `UPDATE applications SET faculty_verified = FALSE, rejected_stage = 'faculty', faculty_comment = $2, updated_at = $3 WHERE id = $1`
		if _, err = tx.ExecContext(ctx, rejectQuery, params.ApplicationID, params.Comment, now); err != nil {
			return nil, fmt.Errorf("reject application: %w", err)
		}
	case approved == total:
		outcome = models.ReviewOutcomeApproved
		const approveQuery = `UPDATE applications
SET faculty_verified = TRUE,
	rejected_stage = CASE WHEN rejected_stage = 'faculty' THEN NULL ELSE rejected_stage END,
	updated_at = $2
WHERE id = $1 AND NOT faculty_verified`
		var flipRes sql.Result
		if flipRes, err = tx.ExecContext(ctx, approveQuery, params.ApplicationID, now); err != nil {
			return nil, fmt.Errorf("advance application: %w", err)
		}
		if n, raErr := flipRes.RowsAffected(); raErr == nil && n == 0 {
			// Parent already advanced; report partial so no duplicate fan-out.
			outcome = models.ReviewOutcomePartial
		}
	default:
		// A reversed rejection with siblings still pending resumes the
		// stage; a stale faculty marker must not keep the application dead.
		const clearQuery = `UPDATE applications SET rejected_stage = NULL, updated_at = $2 WHERE id = $1 AND rejected_stage = 'faculty'`
		if _, err = tx.ExecContext(ctx, clearQuery, params.ApplicationID, now); err != nil {
			return nil, fmt.Errorf("clear faculty rejection: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit review: %w", err)
	}

	return &models.ReviewResult{
		Outcome:      outcome,
		UpdatedRows:  int(updated),
		TotalRows:    total,
		ApprovedRows: approved,
	}, nil
}

// DeleteForApplication removes all assignment rows of an application.
func (r *AssignmentRepository) DeleteForApplication(ctx context.Context, applicationID string) error {
	const query = `DELETE FROM application_subject_faculty WHERE application_id = $1`
	if _, err := r.db.ExecContext(ctx, query, applicationID); err != nil {
		return fmt.Errorf("delete assignments: %w", err)
	}
	return nil
}
