package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sudeep-patali/nodue-api/internal/models"
	appErrors "github.com/sudeep-patali/nodue-api/pkg/errors"
)

type mockNotificationStore struct {
	items       []models.Notification
	lastFilter  models.NotificationFilter
	unread      int
	markReadErr error
	pruned      int64
	pruneCutoff time.Time
}

func (m *mockNotificationStore) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, error) {
	m.lastFilter = filter
	return m.items, nil
}

func (m *mockNotificationStore) CountUnread(ctx context.Context, userID string) (int, error) {
	return m.unread, nil
}

func (m *mockNotificationStore) MarkRead(ctx context.Context, id, userID string) error {
	return m.markReadErr
}

func (m *mockNotificationStore) MarkAllRead(ctx context.Context, userID string) error {
	return nil
}

func (m *mockNotificationStore) PruneRead(ctx context.Context, cutoff time.Time) (int64, error) {
	m.pruneCutoff = cutoff
	return m.pruned, nil
}

func TestNotificationListClampsLimit(t *testing.T) {
	store := &mockNotificationStore{}
	svc := NewNotificationService(store, zap.NewNop(), 0)

	_, err := svc.List(context.Background(), "u-1", true, 1000, -3)
	require.NoError(t, err)
	assert.Equal(t, 20, store.lastFilter.Limit)
	assert.Equal(t, 0, store.lastFilter.Offset)
	assert.True(t, store.lastFilter.UnreadOnly)
}

func TestNotificationMarkReadNotFound(t *testing.T) {
	store := &mockNotificationStore{markReadErr: sql.ErrNoRows}
	svc := NewNotificationService(store, zap.NewNop(), 0)

	err := svc.MarkRead(context.Background(), "n-1", "u-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestNotificationPruneUsesRetention(t *testing.T) {
	store := &mockNotificationStore{pruned: 5}
	svc := NewNotificationService(store, zap.NewNop(), 7*24*time.Hour)

	require.NoError(t, svc.PruneExpired(context.Background()))

	expected := time.Now().UTC().Add(-7 * 24 * time.Hour)
	assert.WithinDuration(t, expected, store.pruneCutoff, time.Minute)
}

func TestNotificationCountUnread(t *testing.T) {
	store := &mockNotificationStore{unread: 3}
	svc := NewNotificationService(store, zap.NewNop(), 0)

	count, err := svc.CountUnread(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
