// Package loader wraps remote table reads with the resilience layer every
// listing endpoint shares: bounded retries with increasing backoff, a hard
// timeout, and deduplication of concurrent identical reads.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
)

// RemoteOperationError wraps a failed remote read after retries were
// exhausted. Retryable tells the caller whether trying again later can help.
type RemoteOperationError struct {
	Table     string
	Attempts  int
	Retryable bool
	Err       error
}

func (e *RemoteOperationError) Error() string {
	return fmt.Sprintf("load %s: %d attempts: %v", e.Table, e.Attempts, e.Err)
}

func (e *RemoteOperationError) Unwrap() error { return e.Err }

// Metrics is the slice of the observability surface the loader reports to.
type Metrics interface {
	CountLoadRetry(table string)
}

// Options tune retry and timeout behaviour. Zero values fall back to the
// defaults below.
type Options struct {
	Retries int
	Backoff time.Duration
	Timeout time.Duration
}

const (
	defaultRetries = 3
	defaultBackoff = 200 * time.Millisecond
	defaultTimeout = 10 * time.Second
)

func (o Options) withDefaults() Options {
	if o.Retries <= 0 {
		o.Retries = defaultRetries
	}
	if o.Backoff <= 0 {
		o.Backoff = defaultBackoff
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	return o
}

// Loader runs remote reads for one row type. Concurrent Load calls with the
// same table and organization scope collapse into a single fetch; every
// caller receives the same result.
type Loader[T any] struct {
	opts    Options
	group   singleflight.Group
	logger  *slog.Logger
	metrics Metrics
}

// New builds a loader. metrics may be nil.
func New[T any](opts Options, logger *slog.Logger, metrics Metrics) *Loader[T] {
	return &Loader[T]{opts: opts.withDefaults(), logger: logger, metrics: metrics}
}

// Load runs fetch with retries, an overall timeout, and in-flight
// deduplication keyed by table and organization scope.
func (l *Loader[T]) Load(ctx context.Context, table string, orgScope int64, fetch func(context.Context) ([]T, error)) ([]T, error) {
	key := fmt.Sprintf("%s:%d", table, orgScope)
	v, err, _ := l.group.Do(key, func() (any, error) {
		return l.fetchWithRetry(ctx, table, fetch)
	})
	if err != nil {
		return nil, err
	}
	return v.([]T), nil
}

func (l *Loader[T]) fetchWithRetry(ctx context.Context, table string, fetch func(context.Context) ([]T, error)) ([]T, error) {
	ctx, cancel := context.WithTimeout(ctx, l.opts.Timeout)
	defer cancel()

	var lastErr error
	for attempt := 1; attempt <= l.opts.Retries; attempt++ {
		rows, err := fetch(ctx)
		if err == nil {
			return rows, nil
		}
		lastErr = err

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &RemoteOperationError{Table: table, Attempts: attempt, Retryable: true, Err: ctxErr}
		}
		if !retryable(err) {
			return nil, &RemoteOperationError{Table: table, Attempts: attempt, Retryable: false, Err: err}
		}
		if attempt == l.opts.Retries {
			break
		}

		if l.metrics != nil {
			l.metrics.CountLoadRetry(table)
		}
		l.logger.Warn("retrying load",
			slog.String("table", table),
			slog.Int("attempt", attempt),
			slog.Any("error", err))

		select {
		case <-time.After(l.opts.Backoff * time.Duration(attempt)):
		case <-ctx.Done():
			return nil, &RemoteOperationError{Table: table, Attempts: attempt, Retryable: true, Err: ctx.Err()}
		}
	}
	return nil, &RemoteOperationError{Table: table, Attempts: l.opts.Retries, Retryable: true, Err: lastErr}
}

// retryable treats everything except context cancellation as transient.
// Callers signal permanent failures by wrapping them in Permanent.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var p *permanentError
	return !errors.As(err, &p)
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks an error as non-transient so the loader fails fast
// instead of retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}
