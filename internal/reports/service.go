package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/gearbox-hq/gearbox/internal/shared"
)

// clock is swapped by tests.
var now = time.Now

// Service answers dashboard and export queries, caching aggregates per
// organization scope and range.
type Service struct {
	repo  RepositoryPort
	cache *Cache
}

// NewService constructs the service. cache may be nil.
func NewService(repo RepositoryPort, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// Summary returns the headline numbers for the caller's organization.
func (s *Service) Summary(ctx context.Context, caller *shared.Caller, rng Range) (*Summary, error) {
	rng = normalizeRange(rng, now())
	scope := caller.OrgScope()

	loader := func(ctx context.Context) (any, error) {
		return s.repo.Summary(ctx, scope, rng)
	}
	if s.cache == nil {
		value, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		return value.(*Summary), nil
	}

	key, err := s.cache.BuildKey(ctx, "reports", "summary", scopeKey(scope, rng))
	if err != nil {
		return nil, err
	}
	var summary Summary
	if err := s.cache.FetchJSON(ctx, key, &summary, loader); err != nil {
		return nil, err
	}
	return &summary, nil
}

// Monthly returns per-month revenue and expense movement.
func (s *Service) Monthly(ctx context.Context, caller *shared.Caller, rng Range) ([]MonthlyPoint, error) {
	rng = normalizeRange(rng, now())
	scope := caller.OrgScope()

	loader := func(ctx context.Context) (any, error) {
		return s.repo.Monthly(ctx, scope, rng)
	}
	if s.cache == nil {
		value, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		return value.([]MonthlyPoint), nil
	}

	key, err := s.cache.BuildKey(ctx, "reports", "monthly", scopeKey(scope, rng))
	if err != nil {
		return nil, err
	}
	var points []MonthlyPoint
	if err := s.cache.FetchJSON(ctx, key, &points, loader); err != nil {
		return nil, err
	}
	return points, nil
}

// Invalidate bumps the cache version. Wired as a feed subscriber so writes
// to invoices, payments and expenses refresh the dashboard.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

func scopeKey(scope int64, rng Range) string {
	return fmt.Sprintf("%d:%s:%s", scope, rng.From.Format("2006-01-02"), rng.To.Format("2006-01-02"))
}
