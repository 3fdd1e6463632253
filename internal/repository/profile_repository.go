package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sudeep-patali/nodue-api/internal/models"
)

const profileColumns = `user_id, usn, department, semester, section, batch, student_type, profile_completed, created_at, updated_at`

// ProfileRepository persists student profiles.
type ProfileRepository struct {
	db *sqlx.DB
}

// NewProfileRepository constructs the repository.
func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// GetByUserID returns a student's profile.
func (r *ProfileRepository) GetByUserID(ctx context.Context, userID string) (*models.StudentProfile, error) {
	query := fmt.Sprintf(`SELECT %s FROM profiles WHERE user_id = $1 LIMIT 1`, profileColumns)
	var profile models.StudentProfile
	if err := r.db.GetContext(ctx, &profile, query, userID); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Create inserts a student profile.
func (r *ProfileRepository) Create(ctx context.Context, profile *models.StudentProfile) error {
	now := time.Now().UTC()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now
	const query = `INSERT INTO profiles (user_id, usn, department, semester, section, batch, student_type, profile_completed, created_at, updated_at)
VALUES (:user_id, :usn, :department, :semester, :section, :batch, :student_type, :profile_completed, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, profile); err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

// Update stores mutable academic attributes and marks the profile completed.
func (r *ProfileRepository) Update(ctx context.Context, profile *models.StudentProfile) error {
	profile.UpdatedAt = time.Now().UTC()
	const query = `UPDATE profiles SET usn = :usn, department = :department, semester = :semester, section = :section,
	batch = :batch, student_type = :student_type, profile_completed = :profile_completed, updated_at = :updated_at
WHERE user_id = :user_id`
	if _, err := r.db.NamedExecContext(ctx, query, profile); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

// ListUserIDsForBatch returns the user ids of the batch's students.
func (r *ProfileRepository) ListUserIDsForBatch(ctx context.Context, batch string) ([]string, error) {
	const query = `SELECT user_id FROM profiles WHERE batch = $1`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, batch); err != nil {
		return nil, fmt.Errorf("list batch students: %w", err)
	}
	return ids, nil
}
