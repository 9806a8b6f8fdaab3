package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSweeper struct {
	flipped int64
	err     error
	calls   int
}

func (s *stubSweeper) SweepOverdue(ctx context.Context) (int64, error) {
	s.calls++
	return s.flipped, s.err
}

type stubExpirer struct {
	expired int64
	err     error
}

func (s *stubExpirer) ExpireSubscriptions(ctx context.Context) (int64, error) {
	return s.expired, s.err
}

func testJobLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOverdueSweepJob(t *testing.T) {
	sweeper := &stubSweeper{flipped: 3}
	job := NewOverdueSweepJob(sweeper, testJobLogger(), NewMetrics(prometheus.NewRegistry()))

	require.NoError(t, job.Handle(context.Background(), NewOverdueSweepTask()))
	assert.Equal(t, 1, sweeper.calls)
}

func TestOverdueSweepJobPropagatesError(t *testing.T) {
	boom := errors.New("database down")
	job := NewOverdueSweepJob(&stubSweeper{err: boom}, testJobLogger(), NewMetrics(prometheus.NewRegistry()))

	err := job.Handle(context.Background(), NewOverdueSweepTask())
	require.ErrorIs(t, err, boom)
}

func TestOverdueSweepJobUnconfigured(t *testing.T) {
	var job *OverdueSweepJob
	require.Error(t, job.Handle(context.Background(), NewOverdueSweepTask()))
}

func TestSubscriptionExpiryJob(t *testing.T) {
	job := NewSubscriptionExpiryJob(&stubExpirer{expired: 2}, testJobLogger(), NewMetrics(prometheus.NewRegistry()))
	require.NoError(t, job.Handle(context.Background(), NewSubscriptionExpiryTask()))

	boom := errors.New("redis down")
	failing := NewSubscriptionExpiryJob(&stubExpirer{err: boom}, testJobLogger(), NewMetrics(prometheus.NewRegistry()))
	require.ErrorIs(t, failing.Handle(context.Background(), NewSubscriptionExpiryTask()), boom)
}

type stubCleaner struct {
	olderThan time.Duration
	err       error
}

func (s *stubCleaner) Cleanup(ctx context.Context, olderThan time.Duration) error {
	s.olderThan = olderThan
	return s.err
}

func TestIdempotencyCleanupJob(t *testing.T) {
	cleaner := &stubCleaner{}
	job := NewIdempotencyCleanupJob(cleaner, testJobLogger(), NewMetrics(prometheus.NewRegistry()))
	require.NoError(t, job.Handle(context.Background(), NewIdempotencyCleanupTask()))
	assert.Equal(t, idempotencyRetention, cleaner.olderThan)

	boom := errors.New("postgres down")
	failing := NewIdempotencyCleanupJob(&stubCleaner{err: boom}, testJobLogger(), NewMetrics(prometheus.NewRegistry()))
	require.ErrorIs(t, failing.Handle(context.Background(), NewIdempotencyCleanupTask()), boom)
}

func TestTrackerNilSafe(t *testing.T) {
	var m *Metrics
	err := m.Track("anything").End(errors.New("kept"))
	assert.EqualError(t, err, "kept")
}
