package models

import "time"

// SubmissionWindowScopeGlobal is the scope value of the global default row.
// Batch-specific rows use the batch name as scope.
const SubmissionWindowScopeGlobal = "global"

// SubmissionWindow is one row of the layered submission-window configuration.
type SubmissionWindow struct {
	ID        string     `db:"id" json:"id"`
	Scope     string     `db:"scope" json:"scope"`
	Enabled   bool       `db:"enabled" json:"enabled"`
	StartsAt  *time.Time `db:"starts_at" json:"starts_at,omitempty"`
	EndsAt    *time.Time `db:"ends_at" json:"ends_at,omitempty"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// Open reports whether the window admits submissions at the given instant.
// Nil bounds are unbounded on that side.
func (w *SubmissionWindow) Open(now time.Time) bool {
	if w == nil || !w.Enabled {
		return false
	}
	if w.StartsAt != nil && now.Before(*w.StartsAt) {
		return false
	}
	if w.EndsAt != nil && now.After(*w.EndsAt) {
		return false
	}
	return true
}

// ResolveWindow applies the layered lookup: a batch-specific override wins
// outright; otherwise the global default decides. With neither row present,
// submissions are closed.
func ResolveWindow(global, override *SubmissionWindow, now time.Time) bool {
	if override != nil {
		return override.Open(now)
	}
	return global.Open(now)
}
