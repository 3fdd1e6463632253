package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sudeep-patali/nodue-api/internal/models"
)

// RoleRepository persists the user_roles capability set.
type RoleRepository struct {
	db *sqlx.DB
}

// NewRoleRepository constructs the repository.
func NewRoleRepository(db *sqlx.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

// RolesForUser returns the capability set of a user.
func (r *RoleRepository) RolesForUser(ctx context.Context, userID string) (models.RoleSet, error) {
	const query = `SELECT role FROM user_roles WHERE user_id = $1 ORDER BY role`
	var roles models.RoleSet
	if err := r.db.SelectContext(ctx, &roles, query, userID); err != nil {
		return nil, fmt.Errorf("list user roles: %w", err)
	}
	return roles, nil
}

// HasRole is the server-side capability predicate. Privileged operations call
// it again even when the token already carries the role.
func (r *RoleRepository) HasRole(ctx context.Context, userID string, role models.Role) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM user_roles WHERE user_id = $1 AND role = $2)`
	var has bool
	if err := r.db.GetContext(ctx, &has, query, userID, role); err != nil {
		return false, fmt.Errorf("check role: %w", err)
	}
	return has, nil
}

// Grant adds a capability to a user.
func (r *RoleRepository) Grant(ctx context.Context, userID string, role models.Role) error {
	const query = `INSERT INTO user_roles (user_id, role) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, userID, role); err != nil {
		return fmt.Errorf("grant role: %w", err)
	}
	return nil
}

// Revoke removes a capability from a user.
func (r *RoleRepository) Revoke(ctx context.Context, userID string, role models.Role) error {
	const query = `DELETE FROM user_roles WHERE user_id = $1 AND role = $2`
	if _, err := r.db.ExecContext(ctx, query, userID, role); err != nil {
		return fmt.Errorf("revoke role: %w", err)
	}
	return nil
}

// UserIDsWithRole returns every active user holding the capability; this is
// the fan-out audience for a stage's notifications.
func (r *RoleRepository) UserIDsWithRole(ctx context.Context, role models.Role) ([]string, error) {
	const query = `SELECT ur.user_id FROM user_roles ur JOIN users u ON u.id = ur.user_id WHERE ur.role = $1 AND u.active = TRUE`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, role); err != nil {
		return nil, fmt.Errorf("list role holders: %w", err)
	}
	return ids, nil
}
