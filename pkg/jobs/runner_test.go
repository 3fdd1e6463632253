package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunnerProcessesTasks(t *testing.T) {
	var mu sync.Mutex
	var processed []Kind

	r := NewRunner("test", func(ctx context.Context, task Task) error {
		mu.Lock()
		processed = append(processed, task.Kind)
		mu.Unlock()
		return nil
	}, RunnerConfig{Workers: 2})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)
	defer r.Stop()

	require.NoError(t, r.Enqueue(Task{Kind: KindNotificationPrune}))
	require.NoError(t, r.Enqueue(Task{Kind: KindNotificationPrune}))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(processed) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestRunnerRetriesFailedTasks(t *testing.T) {
	var mu sync.Mutex
	attempts := 0

	r := NewRunner("test", func(ctx context.Context, task Task) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 2 {
			return errors.New("transient")
		}
		return nil
	}, RunnerConfig{Workers: 1, MaxRetries: 3, RetryDelay: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)
	defer r.Stop()

	require.NoError(t, r.Enqueue(Task{Kind: KindNotificationPrune}))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return attempts == 2
	}, time.Second, 10*time.Millisecond)
}

func TestRunnerRunEverySchedulesTasks(t *testing.T) {
	var mu sync.Mutex
	runs := 0

	r := NewRunner("test", func(ctx context.Context, task Task) error {
		mu.Lock()
		runs++
		mu.Unlock()
		return nil
	}, RunnerConfig{Workers: 1})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)
	defer r.Stop()

	r.RunEvery(5*time.Millisecond, KindNotificationPrune)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return runs >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestRunnerEnqueueBeforeStart(t *testing.T) {
	r := NewRunner("test", func(ctx context.Context, task Task) error { return nil }, RunnerConfig{})
	require.Error(t, r.Enqueue(Task{Kind: KindNotificationPrune}))
}
