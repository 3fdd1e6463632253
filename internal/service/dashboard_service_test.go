package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sudeep-patali/nodue-api/internal/models"
)

type mockDashboardStore struct {
	counts map[models.Stage]int
	calls  []models.Stage
}

func (m *mockDashboardStore) CountStageQueue(ctx context.Context, stage models.Stage) (int, error) {
	m.calls = append(m.calls, stage)
	return m.counts[stage], nil
}

func TestDashboardSummaryPerRole(t *testing.T) {
	store := &mockDashboardStore{counts: map[models.Stage]int{
		models.StageLibrary: 4,
		models.StageHOD:     2,
	}}
	svc := NewDashboardService(store, nil, nil, zap.NewNop(), time.Second)

	summaries, cached, err := svc.Summary(context.Background(), models.RoleSet{models.RoleLibrary})
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "library", summaries[0].Stage)
	assert.Equal(t, 4, summaries[0].PendingCount)
	// cache disabled, so the count came from the store
	assert.False(t, cached)
}

func TestDashboardSummaryLabInstructorSkipsPaymentStage(t *testing.T) {
	store := &mockDashboardStore{counts: map[models.Stage]int{models.StageLab: 3}}
	svc := NewDashboardService(store, nil, nil, zap.NewNop(), time.Second)

	summaries, _, err := svc.Summary(context.Background(), models.RoleSet{models.RoleLabInstructor})
	require.NoError(t, err)

	// the lab instructor verifies both closing stages but only the lab queue
	// is actionable
	require.Len(t, summaries, 1)
	assert.Equal(t, "lab", summaries[0].Stage)
	assert.Equal(t, []models.Stage{models.StageLab}, store.calls)
}

func TestDashboardSummaryMultiRole(t *testing.T) {
	store := &mockDashboardStore{counts: map[models.Stage]int{
		models.StageFaculty: 7,
		models.StageHOD:     1,
	}}
	svc := NewDashboardService(store, nil, nil, zap.NewNop(), time.Second)

	summaries, _, err := svc.Summary(context.Background(), models.RoleSet{models.RoleHOD, models.RoleFaculty})
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "faculty", summaries[0].Stage)
	assert.Equal(t, "hod", summaries[1].Stage)
}

func TestDashboardSummaryNoVerifierRoles(t *testing.T) {
	store := &mockDashboardStore{}
	svc := NewDashboardService(store, nil, nil, zap.NewNop(), time.Second)

	summaries, cached, err := svc.Summary(context.Background(), models.RoleSet{models.RoleStudent})
	require.NoError(t, err)
	assert.Empty(t, summaries)
	assert.Empty(t, store.calls)
	assert.False(t, cached)
}
