package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sudeep-patali/nodue-api/internal/models"
)

// SettingsRepository persists submission-window configuration rows.
type SettingsRepository struct {
	db *sqlx.DB
}

// NewSettingsRepository constructs the repository.
func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// GetWindow returns the window row for a scope ("global" or a batch name).
// A missing row returns nil without error; the resolver treats it as absent.
func (r *SettingsRepository) GetWindow(ctx context.Context, scope string) (*models.SubmissionWindow, error) {
	const query = `SELECT id, scope, enabled, starts_at, ends_at, updated_at FROM submission_windows WHERE scope = $1 LIMIT 1`
	var window models.SubmissionWindow
	if err := r.db.GetContext(ctx, &window, query, scope); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get submission window: %w", err)
	}
	return &window, nil
}

// UpsertWindow stores the window row for a scope.
func (r *SettingsRepository) UpsertWindow(ctx context.Context, window *models.SubmissionWindow) error {
	if window.ID == "" {
		window.ID = uuid.NewString()
	}
	window.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO submission_windows (id, scope, enabled, starts_at, ends_at, updated_at)
VALUES (:id, :scope, :enabled, :starts_at, :ends_at, :updated_at)
ON CONFLICT (scope) DO UPDATE SET enabled = :enabled, starts_at = :starts_at, ends_at = :ends_at, updated_at = :updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, window); err != nil {
		return fmt.Errorf("upsert submission window: %w", err)
	}
	return nil
}

// DeleteWindow removes a scope's window row (falling back to the global one).
func (r *SettingsRepository) DeleteWindow(ctx context.Context, scope string) error {
	const query = `DELETE FROM submission_windows WHERE scope = $1`
	if _, err := r.db.ExecContext(ctx, query, scope); err != nil {
		return fmt.Errorf("delete submission window: %w", err)
	}
	return nil
}
