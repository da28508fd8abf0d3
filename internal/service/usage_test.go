package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/DukeRupert/chartwise/internal/clock"
	"github.com/DukeRupert/chartwise/internal/domain"
	"github.com/DukeRupert/chartwise/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test doubles
// =============================================================================

type usageRow struct {
	tier    string
	status  string
	used    int32
	lastDay int32
}

// fakeUsageRepo applies the same conditional updates as the SQL under one lock,
// standing in for row-level atomicity.
type fakeUsageRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*usageRow
	err  error
}

func newFakeUsageRepo() *fakeUsageRepo {
	return &fakeUsageRepo{rows: make(map[uuid.UUID]*usageRow)}
}

func (f *fakeUsageRepo) add(tier, status string, used int32, day clock.Day) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	f.rows[id] = &usageRow{tier: tier, status: status, used: used, lastDay: int32(day)}
	return id
}

func (f *fakeUsageRepo) snapshot(id uuid.UUID) usageRow {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.rows[id]
}

func (f *fakeUsageRepo) GetUsageAccount(ctx context.Context, id uuid.UUID) (repository.GetUsageAccountRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return repository.GetUsageAccountRow{}, f.err
	}
	r, ok := f.rows[id]
	if !ok {
		return repository.GetUsageAccountRow{}, sql.ErrNoRows
	}
	return repository.GetUsageAccountRow{ID: id, SubscriptionTier: r.tier, SubscriptionStatus: r.status, AnalysesUsed: r.used, LastResetDay: r.lastDay}, nil
}

func (f *fakeUsageRepo) ResetUsageIfStale(ctx context.Context, arg repository.ResetUsageIfStaleParams) (repository.ResetUsageIfStaleRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return repository.ResetUsageIfStaleRow{}, f.err
	}
	r, ok := f.rows[arg.ID]
	if !ok || r.lastDay == arg.Today {
		return repository.ResetUsageIfStaleRow{}, sql.ErrNoRows
	}
	r.used = 0
	r.lastDay = arg.Today
	return repository.ResetUsageIfStaleRow{ID: arg.ID, SubscriptionTier: r.tier, SubscriptionStatus: r.status, AnalysesUsed: r.used, LastResetDay: r.lastDay}, nil
}

func (f *fakeUsageRepo) IncrementUsage(ctx context.Context, arg repository.IncrementUsageParams) (repository.IncrementUsageRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return repository.IncrementUsageRow{}, f.err
	}
	r, ok := f.rows[arg.ID]
	if !ok {
		return repository.IncrementUsageRow{}, sql.ErrNoRows
	}
	if r.lastDay == arg.Today {
		r.used++
	} else {
		r.used = 1
	}
	r.lastDay = arg.Today
	return repository.IncrementUsageRow{ID: arg.ID, SubscriptionTier: r.tier, SubscriptionStatus: r.status, AnalysesUsed: r.used, LastResetDay: r.lastDay}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// =============================================================================
// Tests
// =============================================================================

func TestCheckAndMaybeReset_StaleDayResets(t *testing.T) {
	clk := clock.NewFixed("2024-03-02")
	repo := newFakeUsageRepo()
	id := repo.add("free", "inactive", 3, clock.MustParseDay("2024-03-01"))
	svc := NewUsageService(repo, clk, discardLogger())

	acct, err := svc.CheckAndMaybeReset(context.Background(), id, clk.Today())
	require.NoError(t, err)

	assert.Equal(t, 0, acct.AnalysesUsed)
	assert.Equal(t, clk.Today(), acct.LastResetDay)
	assert.False(t, acct.IsPremium)
}

func TestCheckAndMaybeReset_Idempotent(t *testing.T) {
	clk := clock.NewFixed("2024-03-02")
	repo := newFakeUsageRepo()
	id := repo.add("free", "inactive", 2, clock.MustParseDay("2024-03-01"))
	svc := NewUsageService(repo, clk, discardLogger())
	ctx := context.Background()

	first, err := svc.CheckAndMaybeReset(ctx, id, clk.Today())
	require.NoError(t, err)

	// Usage recorded between the two checks must survive the second one.
	_, err = svc.RecordUsage(ctx, id)
	require.NoError(t, err)

	second, err := svc.CheckAndMaybeReset(ctx, id, clk.Today())
	require.NoError(t, err)

	assert.Equal(t, 0, first.AnalysesUsed)
	assert.Equal(t, 1, second.AnalysesUsed)
	assert.Equal(t, first.LastResetDay, second.LastResetDay)
}

func TestCheckAndMaybeReset_CurrentDayUntouched(t *testing.T) {
	clk := clock.NewFixed("2024-03-01")
	repo := newFakeUsageRepo()
	id := repo.add("free", "inactive", 2, clk.Today())
	svc := NewUsageService(repo, clk, discardLogger())

	acct, err := svc.CheckAndMaybeReset(context.Background(), id, clk.Today())
	require.NoError(t, err)
	assert.Equal(t, 2, acct.AnalysesUsed)
}

func TestRecordUsage_Monotonic(t *testing.T) {
	clk := clock.NewFixed("2024-03-01")
	repo := newFakeUsageRepo()
	id := repo.add("free", "inactive", 0, clk.Today())
	svc := NewUsageService(repo, clk, discardLogger())

	prev := 0
	for range 5 {
		acct, err := svc.RecordUsage(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, prev+1, acct.AnalysesUsed)
		prev = acct.AnalysesUsed
	}
}

func TestRecordUsage_StaleDayStartsAtOne(t *testing.T) {
	clk := clock.NewFixed("2024-03-05")
	repo := newFakeUsageRepo()
	id := repo.add("free", "inactive", 3, clock.MustParseDay("2024-03-01"))
	svc := NewUsageService(repo, clk, discardLogger())

	acct, err := svc.RecordUsage(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 1, acct.AnalysesUsed)
	assert.Equal(t, clk.Today(), acct.LastResetDay)
}

func TestUsageService_UnknownUser(t *testing.T) {
	clk := clock.NewFixed("2024-03-01")
	svc := NewUsageService(newFakeUsageRepo(), clk, discardLogger())
	ctx := context.Background()

	_, err := svc.CheckAndMaybeReset(ctx, uuid.New(), clk.Today())
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))

	_, err = svc.RecordUsage(ctx, uuid.New())
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}

func TestUsageService_StorageFailureIsUnavailable(t *testing.T) {
	clk := clock.NewFixed("2024-03-01")
	repo := newFakeUsageRepo()
	id := repo.add("free", "inactive", 0, clk.Today())
	repo.err = errors.New("connection reset by peer")
	svc := NewUsageService(repo, clk, discardLogger())
	ctx := context.Background()

	_, err := svc.CheckAndMaybeReset(ctx, id, clk.Today())
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))
	assert.True(t, domain.IsRetryable(err))

	_, err = svc.RecordUsage(ctx, id)
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))

	_, err = svc.Entitle(ctx, id)
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))
}

// The full metering loop across a day boundary.
func TestEntitle_DailyCycle(t *testing.T) {
	clk := clock.NewFixed("2024-03-01")
	repo := newFakeUsageRepo()
	id := repo.add("free", "inactive", 0, clk.Today())
	svc := NewUsageService(repo, clk, discardLogger())
	ctx := context.Background()

	for i := range domain.FreeDailyAnalyses {
		e, err := svc.Entitle(ctx, id)
		require.NoError(t, err)
		require.True(t, e.Allowed, "analysis %d should be allowed", i+1)
		assert.Equal(t, domain.FreeDailyAnalyses-i, e.Remaining)
		_, err = svc.RecordUsage(ctx, id)
		require.NoError(t, err)
	}

	e, err := svc.Entitle(ctx, id)
	require.NoError(t, err)
	assert.False(t, e.Allowed)
	assert.Equal(t, 0, e.Remaining)
	assert.Equal(t, clock.MustParseDay("2024-03-01"), e.Day)

	clk.AdvanceDays(1)

	e, err = svc.Entitle(ctx, id)
	require.NoError(t, err)
	assert.True(t, e.Allowed)
	assert.Equal(t, 0, e.EffectiveUsed)
	assert.Equal(t, domain.FreeDailyAnalyses, e.Remaining)
	assert.Equal(t, clock.MustParseDay("2024-03-02"), e.Day)
	assert.Equal(t, int32(clk.Today()), repo.snapshot(id).lastDay)
}

func TestEntitle_PremiumFromStoredPlan(t *testing.T) {
	clk := clock.NewFixed("2024-03-01")
	repo := newFakeUsageRepo()
	premium := repo.add("premium", "active", 50, clk.Today())
	lapsed := repo.add("premium", "canceled", 50, clk.Today())
	svc := NewUsageService(repo, clk, discardLogger())
	ctx := context.Background()

	e, err := svc.Entitle(ctx, premium)
	require.NoError(t, err)
	assert.True(t, e.Allowed)
	assert.True(t, e.Unlimited)
	assert.Equal(t, domain.PremiumDailySentinel, e.Remaining)

	e, err = svc.Entitle(ctx, lapsed)
	require.NoError(t, err)
	assert.False(t, e.Allowed)
}

func TestRecordUsage_ConcurrentIncrementsAreNotLost(t *testing.T) {
	clk := clock.NewFixed("2024-03-01")
	repo := newFakeUsageRepo()
	id := repo.add("premium", "active", 0, clk.Today().AddDays(-1))
	svc := NewUsageService(repo, clk, discardLogger())

	const n = 50
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.CheckAndMaybeReset(context.Background(), id, clk.Today())
			_, err := svc.RecordUsage(context.Background(), id)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(n), repo.snapshot(id).used)
}
