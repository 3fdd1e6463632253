package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sudeep-patali/nodue-api/internal/dto"
	"github.com/sudeep-patali/nodue-api/internal/models"
)

const applicationColumns = `id, student_id, counsellor_id, class_advisor_id, semester, batch, transaction_id,
	library_verified, hostel_verified, college_office_verified, faculty_verified, counsellor_verified,
	class_advisor_verified, hod_verified, payment_verified, lab_verified,
	library_comment, hostel_comment, college_office_comment, faculty_comment, counsellor_comment,
	class_advisor_comment, hod_comment, payment_comment, lab_comment,
	rejected_stage, created_at, updated_at`

// ApplicationRepository persists no-due applications and their stage flags.
type ApplicationRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository constructs the repository.
func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// Submit inserts the application and its subject-faculty rows in one
// transaction, so a child insert failure leaves no parent row behind.
func (r *ApplicationRepository) Submit(ctx context.Context, app *models.Application, assignments []models.SubjectAssignment) (err error) {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if app.CreatedAt.IsZero() {
		app.CreatedAt = now
	}
	app.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin submission transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const appQuery = `INSERT INTO applications
	(id, student_id, counsellor_id, class_advisor_id, semester, batch, created_at, updated_at)
	VALUES (:id, :student_id, :counsellor_id, :class_advisor_id, :semester, :batch, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, appQuery, app); err != nil {
		return fmt.Errorf("create application: %w", err)
	}

	const childQuery = `INSERT INTO application_subject_faculty
	(id, application_id, subject_id, faculty_id, verification_status, faculty_verified, created_at)
	VALUES ($1, $2, $3, $4, $5, FALSE, $6)`
	for i := range assignments {
		a := &assignments[i]
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		a.ApplicationID = app.ID
		a.VerificationStatus = models.VerificationPending
		a.CreatedAt = now
		if _, err = tx.ExecContext(ctx, childQuery, a.ID, a.ApplicationID, a.SubjectID, a.FacultyID, a.VerificationStatus, a.CreatedAt); err != nil {
			return fmt.Errorf("create subject assignment: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit submission: %w", err)
	}
	return nil
}

// GetByID fetches an application by identifier.
func (r *ApplicationRepository) GetByID(ctx context.Context, id string) (*models.Application, error) {
	query := fmt.Sprintf(`SELECT %s FROM applications WHERE id = $1`, applicationColumns)
	var app models.Application
	if err := r.db.GetContext(ctx, &app, query, id); err != nil {
		return nil, err
	}
	return &app, nil
}

// ApplicationWithStudent joins the application with its student's attributes.
type ApplicationWithStudent struct {
	models.Application
	StudentType models.StudentType `db:"student_type"`
	StudentName string             `db:"student_name"`
	USN         string             `db:"usn"`
	Department  models.Department  `db:"department"`
}

// GetWithStudent fetches an application joined with the owning student's
// profile, which carries the student type the stage machine branches on.
func (r *ApplicationRepository) GetWithStudent(ctx context.Context, id string) (*ApplicationWithStudent, error) {
	const query = `SELECT a.*, p.student_type, p.usn, p.department, u.full_name AS student_name
FROM applications a
JOIN profiles p ON p.user_id = a.student_id
JOIN users u ON u.id = a.student_id
WHERE a.id = $1`
	var row ApplicationWithStudent
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}
	return &row, nil
}

// FindForStudent returns the student's applications, newest first.
func (r *ApplicationRepository) FindForStudent(ctx context.Context, studentID string) ([]models.Application, error) {
	query := fmt.Sprintf(`SELECT %s FROM applications WHERE student_id = $1 ORDER BY created_at DESC`, applicationColumns)
	var apps []models.Application
	if err := r.db.SelectContext(ctx, &apps, query, studentID); err != nil {
		return nil, fmt.Errorf("list student applications: %w", err)
	}
	return apps, nil
}

// Exists reports whether the student already has an application for the
// semester and batch.
func (r *ApplicationRepository) Exists(ctx context.Context, studentID string, semester int, batch string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM applications WHERE student_id = $1 AND semester = $2 AND batch = $3)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, studentID, semester, batch); err != nil {
		return false, fmt.Errorf("check duplicate application: %w", err)
	}
	return exists, nil
}

// stageColumns whitelists the per-stage column pair; stage names never reach
// the SQL text unvalidated.
var stageColumns = map[models.Stage][2]string{
	models.StageLibrary:       {"library_verified", "library_comment"},
	models.StageHostel:        {"hostel_verified", "hostel_comment"},
	models.StageCollegeOffice: {"college_office_verified", "college_office_comment"},
	models.StageFaculty:       {"faculty_verified", "faculty_comment"},
	models.StageCounsellor:    {"counsellor_verified", "counsellor_comment"},
	models.StageClassAdvisor:  {"class_advisor_verified", "class_advisor_comment"},
	models.StageHOD:           {"hod_verified", "hod_comment"},
	models.StagePayment:       {"payment_verified", "payment_comment"},
	models.StageLab:           {"lab_verified", "lab_comment"},
}

// StageDecisionParams groups one stage update.
type StageDecisionParams struct {
	ApplicationID string
	Stage         models.Stage
	Approved      bool
	Comment       *string
}

// ApplyStageDecision updates one stage's flag and comment. Approval clears a
// rejection marker left by the same stage; rejection sets it.
func (r *ApplicationRepository) ApplyStageDecision(ctx context.Context, params StageDecisionParams) error {
	cols, ok := stageColumns[params.Stage]
	if !ok {
		return fmt.Errorf("unknown stage %q", params.Stage)
	}

	var query string
	if params.Approved {
		query = fmt.Sprintf(`UPDATE applications
SET %s = TRUE, %s = $2,
	rejected_stage = CASE WHEN rejected_stage = $3 THEN NULL ELSE rejected_stage END,
	updated_at = $4
WHERE id = $1`, cols[0], cols[1])
	} else {
		query = fmt.Sprintf(`UPDATE applications
SET %s = FALSE, %s = $2, rejected_stage = $3, updated_at = $4
WHERE id = $1`, cols[0], cols[1])
	}

	res, err := r.db.ExecContext(ctx, query, params.ApplicationID, params.Comment, params.Stage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("apply %s decision: %w", params.Stage, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// RecordPayment stores the transaction id once the HOD stage has cleared.
// A lab-stage rejection does not block it, so a wrong transaction id can be
// corrected. Returns sql.ErrNoRows when the precondition does not hold.
func (r *ApplicationRepository) RecordPayment(ctx context.Context, id, transactionID string) error {
	const query = `UPDATE applications SET transaction_id = $2, updated_at = $3
WHERE id = $1 AND hod_verified = TRUE AND (rejected_stage IS NULL OR rejected_stage = 'lab') AND lab_verified = FALSE`
	res, err := r.db.ExecContext(ctx, query, id, transactionID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("record payment: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Finalize is the lab instructor's sign-off: the single conditional update
// that sets both final flags, and the only path into the completed state.
// Approval after a lab-stage rejection clears the marker and completes the
// application. Returns sql.ErrNoRows when the gate is not reachable.
func (r *ApplicationRepository) Finalize(ctx context.Context, id string, comment *string) error {
	const query = `UPDATE applications
SET lab_verified = TRUE, payment_verified = TRUE, lab_comment = $2, rejected_stage = NULL, updated_at = $3
WHERE id = $1 AND hod_verified = TRUE AND transaction_id IS NOT NULL
	AND (rejected_stage IS NULL OR rejected_stage = 'lab') AND lab_verified = FALSE`
	res, err := r.db.ExecContext(ctx, query, id, comment, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("finalize application: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// stageReadyPredicate yields the SQL condition for "this application is
// waiting on the given stage". Aliases a (applications) and p (profiles)
// must be in scope.
func stageReadyPredicate(stage models.Stage) (string, error) {
	hostelDone := `(p.student_type = 'local' OR a.hostel_verified)`
	switch stage {
	case models.StageLibrary:
		return `NOT a.library_verified`, nil
	case models.StageHostel:
		return `p.student_type = 'hostel' AND a.library_verified AND NOT a.hostel_verified`, nil
	case models.StageCollegeOffice:
		return `a.library_verified AND ` + hostelDone + ` AND NOT a.college_office_verified`, nil
	case models.StageFaculty:
		return `a.college_office_verified AND NOT a.faculty_verified`, nil
	case models.StageCounsellor:
		return `a.faculty_verified AND NOT a.counsellor_verified`, nil
	case models.StageClassAdvisor:
		return `a.counsellor_verified AND NOT a.class_advisor_verified`, nil
	case models.StageHOD:
		return `a.class_advisor_verified AND NOT a.hod_verified`, nil
	case models.StagePayment, models.StageLab:
		return `a.hod_verified AND a.transaction_id IS NOT NULL AND NOT a.lab_verified`, nil
	}
	return "", fmt.Errorf("unknown stage %q", stage)
}

// ListStageQueue returns applications ready for the given stage, plus those
// the stage itself rejected (so the verifier can re-approve).
func (r *ApplicationRepository) ListStageQueue(ctx context.Context, filter models.ApplicationFilter) ([]dto.StageQueueItem, error) {
	ready, err := stageReadyPredicate(filter.Stage)
	if err != nil {
		return nil, err
	}

	query := strings.Builder{}
	query.WriteString(`
SELECT a.id AS application_id, u.full_name AS student_name, p.usn, p.department,
	a.semester, a.batch, p.student_type, a.rejected_stage
FROM applications a
JOIN profiles p ON p.user_id = a.student_id
JOIN users u ON u.id = a.student_id
WHERE ((a.rejected_stage IS NULL AND `)
	query.WriteString(ready)
	args := []interface{}{string(filter.Stage)}
	query.WriteString(`) OR a.rejected_stage = $1)`)

	if filter.Department != "" {
		args = append(args, filter.Department)
		fmt.Fprintf(&query, " AND p.department = $%d", len(args))
	}
	if filter.Batch != "" {
		args = append(args, filter.Batch)
		fmt.Fprintf(&query, " AND a.batch = $%d", len(args))
	}
	if filter.Semester > 0 {
		args = append(args, filter.Semester)
		fmt.Fprintf(&query, " AND a.semester = $%d", len(args))
	}
	query.WriteString("\nORDER BY a.created_at ASC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	fmt.Fprintf(&query, " LIMIT %d OFFSET %d", limit, offset)

	var items []dto.StageQueueItem
	if err := r.db.SelectContext(ctx, &items, query.String(), args...); err != nil {
		return nil, fmt.Errorf("list %s queue: %w", filter.Stage, err)
	}
	return items, nil
}

// CountStageQueue returns the number of applications waiting on a stage.
func (r *ApplicationRepository) CountStageQueue(ctx context.Context, stage models.Stage) (int, error) {
	ready, err := stageReadyPredicate(stage)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf(`SELECT COUNT(*)
FROM applications a
JOIN profiles p ON p.user_id = a.student_id
WHERE a.rejected_stage IS NULL AND %s`, ready)
	var count int
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("count %s queue: %w", stage, err)
	}
	return count, nil
}

// Delete removes an application; assignment rows cascade.
func (r *ApplicationRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM applications WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete application: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteForBatch removes every application belonging to the batch (batch
// deletion cascade).
func (r *ApplicationRepository) DeleteForBatch(ctx context.Context, batch string) (int64, error) {
	const query = `DELETE FROM applications WHERE batch = $1`
	res, err := r.db.ExecContext(ctx, query, batch)
	if err != nil {
		return 0, fmt.Errorf("delete batch applications: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
