package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sudeep-patali/nodue-api/internal/models"
)

// BatchRepository persists cohort batches and subjects.
type BatchRepository struct {
	db *sqlx.DB
}

// NewBatchRepository constructs the repository.
func NewBatchRepository(db *sqlx.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// GetByName returns a batch by cohort name.
func (r *BatchRepository) GetByName(ctx context.Context, name string) (*models.Batch, error) {
	const query = `SELECT id, name, current_semester, created_at, updated_at FROM batches WHERE name = $1 LIMIT 1`
	var batch models.Batch
	if err := r.db.GetContext(ctx, &batch, query, name); err != nil {
		return nil, err
	}
	return &batch, nil
}

// Create inserts a batch.
func (r *BatchRepository) Create(ctx context.Context, batch *models.Batch) error {
	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = now
	}
	batch.UpdatedAt = now
	const query = `INSERT INTO batches (id, name, current_semester, created_at, updated_at)
VALUES (:id, :name, :current_semester, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, batch); err != nil {
		return fmt.Errorf("create batch: %w", err)
	}
	return nil
}

// Delete removes a batch row.
func (r *BatchRepository) Delete(ctx context.Context, name string) error {
	const query = `DELETE FROM batches WHERE name = $1`
	if _, err := r.db.ExecContext(ctx, query, name); err != nil {
		return fmt.Errorf("delete batch: %w", err)
	}
	return nil
}

// AdvanceSemester bumps the batch's current semester counter.
func (r *BatchRepository) AdvanceSemester(ctx context.Context, name string) error {
	const query = `UPDATE batches SET current_semester = current_semester + 1, updated_at = $2 WHERE name = $1 AND current_semester < 8`
	if _, err := r.db.ExecContext(ctx, query, name, time.Now().UTC()); err != nil {
		return fmt.Errorf("advance batch semester: %w", err)
	}
	return nil
}

// FindSubjectsByIDs returns the subjects among the given ids.
func (r *BatchRepository) FindSubjectsByIDs(ctx context.Context, ids []string) ([]models.Subject, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	const query = `SELECT id, code, name, department, semester, created_at FROM subjects WHERE id = ANY($1)`
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find subjects: %w", err)
	}
	return subjects, nil
}

// ListSubjects returns subjects for a department and semester.
func (r *BatchRepository) ListSubjects(ctx context.Context, department models.Department, semester int) ([]models.Subject, error) {
	const query = `SELECT id, code, name, department, semester, created_at FROM subjects WHERE department = $1 AND semester = $2 ORDER BY code`
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, department, semester); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return subjects, nil
}
