package reports

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gearbox-hq/gearbox/internal/shared"
)

type stubReportRepo struct {
	summary      *Summary
	monthly      []MonthlyPoint
	summaryCalls int
	monthlyCalls int
	lastScope    int64
	lastRange    Range
}

func (s *stubReportRepo) Summary(ctx context.Context, orgScope int64, rng Range) (*Summary, error) {
	s.summaryCalls++
	s.lastScope = orgScope
	s.lastRange = rng
	out := *s.summary
	return &out, nil
}

func (s *stubReportRepo) Monthly(ctx context.Context, orgScope int64, rng Range) ([]MonthlyPoint, error) {
	s.monthlyCalls++
	s.lastScope = orgScope
	s.lastRange = rng
	return s.monthly, nil
}

func reportCaller(role shared.Role, orgID int64) *shared.Caller {
	return &shared.Caller{UserID: 1, Role: role, OrganizationID: orgID}
}

func TestSummaryScopesToCaller(t *testing.T) {
	repo := &stubReportRepo{summary: &Summary{Revenue: 500, Expenses: 200, Net: 300}}
	svc := NewService(repo, nil)

	got, err := svc.Summary(context.Background(), reportCaller(shared.RoleAccountant, 7), Range{})
	require.NoError(t, err)
	assert.Equal(t, 500.0, got.Revenue)
	assert.Equal(t, int64(7), repo.lastScope)
}

func TestSummaryDefaultRangeIsTrailingYear(t *testing.T) {
	repo := &stubReportRepo{summary: &Summary{}}
	svc := NewService(repo, nil)

	restore := now
	now = func() time.Time { return time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC) }
	defer func() { now = restore }()

	_, err := svc.Summary(context.Background(), reportCaller(shared.RoleOwner, 1), Range{})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC), repo.lastRange.To)
	assert.Equal(t, time.Date(2023, 6, 15, 12, 0, 0, 0, time.UTC), repo.lastRange.From)
}

func TestSummaryCachedUntilBump(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := &stubReportRepo{summary: &Summary{Revenue: 100}}
	svc := NewService(repo, NewCache(client, time.Minute))
	caller := reportCaller(shared.RoleManager, 3)
	rng := Range{From: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), To: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)}

	first, err := svc.Summary(context.Background(), caller, rng)
	require.NoError(t, err)
	second, err := svc.Summary(context.Background(), caller, rng)
	require.NoError(t, err)
	assert.Equal(t, first.Revenue, second.Revenue)
	assert.Equal(t, 1, repo.summaryCalls)

	require.NoError(t, svc.Invalidate(context.Background()))
	repo.summary.Revenue = 250

	third, err := svc.Summary(context.Background(), caller, rng)
	require.NoError(t, err)
	assert.Equal(t, 250.0, third.Revenue)
	assert.Equal(t, 2, repo.summaryCalls)
}

func TestMonthlyCachedPerScope(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := &stubReportRepo{monthly: []MonthlyPoint{{Period: "2024-01", Revenue: 10, Expenses: 4, Net: 6}}}
	svc := NewService(repo, NewCache(client, time.Minute))
	rng := Range{From: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), To: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}

	_, err := svc.Monthly(context.Background(), reportCaller(shared.RoleManager, 1), rng)
	require.NoError(t, err)
	_, err = svc.Monthly(context.Background(), reportCaller(shared.RoleManager, 2), rng)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.monthlyCalls)

	points, err := svc.Monthly(context.Background(), reportCaller(shared.RoleManager, 1), rng)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.monthlyCalls)
	require.Len(t, points, 1)
	assert.Equal(t, 6.0, points[0].Net)
}
