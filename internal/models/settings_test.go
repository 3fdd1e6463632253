package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSubmissionWindowOpen(t *testing.T) {
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	before := now.Add(-24 * time.Hour)
	after := now.Add(24 * time.Hour)

	tests := []struct {
		name   string
		window *SubmissionWindow
		want   bool
	}{
		{"nil window", nil, false},
		{"disabled", &SubmissionWindow{Enabled: false}, false},
		{"enabled unbounded", &SubmissionWindow{Enabled: true}, true},
		{"inside bounds", &SubmissionWindow{Enabled: true, StartsAt: &before, EndsAt: &after}, true},
		{"before start", &SubmissionWindow{Enabled: true, StartsAt: &after}, false},
		{"after end", &SubmissionWindow{Enabled: true, EndsAt: &before}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.window.Open(now))
		})
	}
}

func TestResolveWindowOverrideWinsOutright(t *testing.T) {
	now := time.Now()
	openGlobal := &SubmissionWindow{Scope: SubmissionWindowScopeGlobal, Enabled: true}
	closedOverride := &SubmissionWindow{Scope: "2024-28", Enabled: false}

	// A closed batch override blocks even when the global default is open.
	assert.False(t, ResolveWindow(openGlobal, closedOverride, now))

	openOverride := &SubmissionWindow{Scope: "2024-28", Enabled: true}
	assert.True(t, ResolveWindow(nil, openOverride, now))

	// Without an override the global default decides.
	assert.True(t, ResolveWindow(openGlobal, nil, now))
	assert.False(t, ResolveWindow(nil, nil, now))
}

func TestValidBatchName(t *testing.T) {
	assert.True(t, ValidBatchName("2024-28"))
	assert.True(t, ValidBatchName("2022-26"))
	assert.False(t, ValidBatchName("2024"))
	assert.False(t, ValidBatchName("24-28"))
	assert.False(t, ValidBatchName("2024-2028"))
	assert.False(t, ValidBatchName(""))
}
