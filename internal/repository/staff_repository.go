package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sudeep-patali/nodue-api/internal/models"
)

const staffColumns = `user_id, designation, department, employee_id, office_location, is_active, created_at, updated_at`

// StaffRepository persists staff profiles.
type StaffRepository struct {
	db *sqlx.DB
}

// NewStaffRepository constructs the repository.
func NewStaffRepository(db *sqlx.DB) *StaffRepository {
	return &StaffRepository{db: db}
}

// GetByUserID returns one staff profile.
func (r *StaffRepository) GetByUserID(ctx context.Context, userID string) (*models.StaffProfile, error) {
	query := fmt.Sprintf(`SELECT %s FROM staff_profiles WHERE user_id = $1 LIMIT 1`, staffColumns)
	var staff models.StaffProfile
	if err := r.db.GetContext(ctx, &staff, query, userID); err != nil {
		return nil, err
	}
	return &staff, nil
}

// FindActiveByIDs returns the active staff profiles among the given user ids.
func (r *StaffRepository) FindActiveByIDs(ctx context.Context, userIDs []string) ([]models.StaffProfile, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM staff_profiles WHERE user_id = ANY($1) AND is_active = TRUE`, staffColumns)
	var staff []models.StaffProfile
	if err := r.db.SelectContext(ctx, &staff, query, pq.Array(userIDs)); err != nil {
		return nil, fmt.Errorf("find staff by ids: %w", err)
	}
	return staff, nil
}

// Create inserts a staff profile.
func (r *StaffRepository) Create(ctx context.Context, staff *models.StaffProfile) error {
	now := time.Now().UTC()
	if staff.CreatedAt.IsZero() {
		staff.CreatedAt = now
	}
	staff.UpdatedAt = now
	const query = `INSERT INTO staff_profiles (user_id, designation, department, employee_id, office_location, is_active, created_at, updated_at)
VALUES (:user_id, :designation, :department, :employee_id, :office_location, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, staff); err != nil {
		return fmt.Errorf("create staff profile: %w", err)
	}
	return nil
}

// Deactivate marks a staff member inactive.
func (r *StaffRepository) Deactivate(ctx context.Context, userID string) error {
	const query = `UPDATE staff_profiles SET is_active = FALSE, updated_at = $2 WHERE user_id = $1`
	if _, err := r.db.ExecContext(ctx, query, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate staff: %w", err)
	}
	return nil
}

// List returns staff matching the filter.
func (r *StaffRepository) List(ctx context.Context, filter models.StaffFilter) ([]models.StaffProfile, error) {
	query := fmt.Sprintf(`SELECT %s FROM staff_profiles WHERE 1=1`, staffColumns)
	var args []interface{}
	if filter.Department != "" {
		args = append(args, filter.Department)
		query += fmt.Sprintf(" AND department = $%d", len(args))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		query += fmt.Sprintf(" AND is_active = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	var staff []models.StaffProfile
	if err := r.db.SelectContext(ctx, &staff, query, args...); err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}
	return staff, nil
}
