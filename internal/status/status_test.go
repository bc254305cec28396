package status

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSetter struct {
	mu   sync.Mutex
	seen []string
	err  error
}

func (r *recordingSetter) UpdateListeningStatus(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, name)
	return r.err
}

func (r *recordingSetter) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.seen...)
}

func TestRotationOrder(t *testing.T) {
	setter := &recordingSetter{}
	rotator := New(setter, func() []string { return []string{"a", "b", "c"} }, 5*time.Millisecond, zap.NewNop())
	rotator.start = func(n int) int { return 1 }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rotator.Run(ctx) }()

	require.Eventually(t, func() bool { return len(setter.snapshot()) >= 4 }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []string{"b", "c", "a", "b"}, setter.snapshot()[:4])
}

func TestDefaultsWhenEmpty(t *testing.T) {
	setter := &recordingSetter{}
	rotator := New(setter, func() []string { return []string{" ", ""} }, 0, zap.NewNop())
	rotator.start = func(n int) int {
		assert.Equal(t, len(DefaultStatuses), n)
		return 0
	}

	require.NoError(t, rotator.Run(context.Background()))
	assert.Equal(t, []string{DefaultStatuses[0]}, setter.snapshot())
}

func TestSetterErrorsDoNotStopRotation(t *testing.T) {
	setter := &recordingSetter{err: errors.New("gateway closed")}
	rotator := New(setter, func() []string { return []string{"a"} }, 5*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rotator.Run(ctx) }()

	require.Eventually(t, func() bool { return len(setter.snapshot()) >= 3 }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}
