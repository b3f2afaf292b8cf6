package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pollwise/acdash/internal/cache"
	"github.com/pollwise/acdash/internal/model"
	"github.com/pollwise/acdash/internal/registry"
)

type serviceFixture struct {
	svc      *QueryService
	computer *fakeComputer
	store    *fakeStore
}

func newServiceFixture(t *testing.T, cacheTTL, snapshotMaxAge time.Duration) *serviceFixture {
	t.Helper()
	reg := testRegistry(t, 111, 112)
	computer := &fakeComputer{snaps: map[int]*model.Snapshot{
		111: {ACID: 111, ComputedAt: time.Now().UTC(), TotalMembers: 240000, BoothStats: []model.BoothStat{}},
		112: {ACID: 112, ComputedAt: time.Now().UTC(), TotalMembers: 180000, BoothStats: []model.BoothStat{}},
	}}
	store := newFakeStore()
	svc := NewQueryService(reg, cache.NewTTL[*model.Snapshot](), store, computer,
		zerolog.Nop(), cacheTTL, snapshotMaxAge)
	return &serviceFixture{svc: svc, computer: computer, store: store}
}

func TestQueryService_GetStats_UnknownConstituency(t *testing.T) {
	f := newServiceFixture(t, time.Minute, 10*time.Minute)

	res, err := f.svc.GetStats(context.Background(), 999)
	require.ErrorIs(t, err, registry.ErrUnknownConstituency)
	assert.Nil(t, res)
	assert.Equal(t, 0, f.computer.callCount(), "unknown ids fail before any shard work")
}

func TestQueryService_GetStats_RealtimeThenCache(t *testing.T) {
	f := newServiceFixture(t, time.Minute, 10*time.Minute)
	ctx := context.Background()

	first, err := f.svc.GetStats(ctx, 111)
	require.NoError(t, err)
	assert.Equal(t, SourceRealtime, first.Source)
	assert.Equal(t, 240000, first.TotalMembers)
	assert.Equal(t, "AC", first.ACName)

	second, err := f.svc.GetStats(ctx, 111)
	require.NoError(t, err)
	assert.Equal(t, SourceCache, second.Source)
	assert.Equal(t, 1, f.computer.callCount(), "cache hit does not recompute")
}

func TestQueryService_GetStats_RealtimeSavesSnapshotAsync(t *testing.T) {
	f := newServiceFixture(t, time.Minute, 10*time.Minute)

	_, err := f.svc.GetStats(context.Background(), 111)
	require.NoError(t, err)

	f.svc.saves.Wait()
	saved := f.store.saved(111)
	require.NotNil(t, saved, "computed snapshot is persisted in the background")
	assert.Equal(t, 240000, saved.TotalMembers)
}

func TestQueryService_GetStats_PrecomputedAfterCacheExpiry(t *testing.T) {
	// Short cache TTL, long snapshot max age. The second read misses the
	// cache but finds the snapshot the first read persisted.
	f := newServiceFixture(t, 30*time.Millisecond, 10*time.Minute)
	ctx := context.Background()

	first, err := f.svc.GetStats(ctx, 111)
	require.NoError(t, err)
	assert.Equal(t, SourceRealtime, first.Source)
	f.svc.saves.Wait()

	time.Sleep(50 * time.Millisecond)

	second, err := f.svc.GetStats(ctx, 111)
	require.NoError(t, err)
	assert.Equal(t, SourcePrecomputed, second.Source)
	assert.Equal(t, 1, f.computer.callCount(), "a fresh snapshot avoids recomputing")

	// The precomputed hit repopulates the cache.
	third, err := f.svc.GetStats(ctx, 111)
	require.NoError(t, err)
	assert.Equal(t, SourceCache, third.Source)
}

func TestQueryService_GetStats_StaleSnapshotRecomputes(t *testing.T) {
	f := newServiceFixture(t, time.Minute, 10*time.Minute)
	ctx := context.Background()

	stale := &model.Snapshot{ACID: 111, ComputedAt: time.Now().Add(-time.Hour), TotalMembers: 1}
	require.NoError(t, f.store.Save(ctx, stale))

	res, err := f.svc.GetStats(ctx, 111)
	require.NoError(t, err)
	assert.Equal(t, SourceRealtime, res.Source)
	assert.Equal(t, 240000, res.TotalMembers)
	assert.Equal(t, 1, f.computer.callCount())
}

func TestQueryService_GetStats_StoreErrorFallsThroughToRealtime(t *testing.T) {
	f := newServiceFixture(t, time.Minute, 10*time.Minute)
	f.store.getErr = errors.New("core db unavailable")

	res, err := f.svc.GetStats(context.Background(), 111)
	require.NoError(t, err, "a broken snapshot store does not fail the read")
	assert.Equal(t, SourceRealtime, res.Source)
}

func TestQueryService_GetStats_ComputeErrorSurfaced(t *testing.T) {
	f := newServiceFixture(t, time.Minute, 10*time.Minute)
	wantErr := errors.New("shard down")
	f.computer.errs = map[int]error{111: wantErr}

	res, err := f.svc.GetStats(context.Background(), 111)
	require.ErrorIs(t, err, wantErr)
	assert.Nil(t, res)

	// The failure was not cached; a recovered shard serves the next read.
	f.computer.errs = nil
	res, err = f.svc.GetStats(context.Background(), 111)
	require.NoError(t, err)
	assert.Equal(t, SourceRealtime, res.Source)
}

func TestQueryService_GetStats_SaveFailureDoesNotAffectResult(t *testing.T) {
	f := newServiceFixture(t, time.Minute, 10*time.Minute)
	f.store.saveErr = errors.New("disk full")

	res, err := f.svc.GetStats(context.Background(), 111)
	require.NoError(t, err)
	assert.Equal(t, SourceRealtime, res.Source)

	f.svc.saves.Wait()
	assert.Equal(t, 0, f.store.count())
}

func TestQueryService_InvalidateTenant(t *testing.T) {
	f := newServiceFixture(t, time.Minute, 10*time.Minute)
	ctx := context.Background()

	_, err := f.svc.GetStats(ctx, 111)
	require.NoError(t, err)
	_, err = f.svc.GetStats(ctx, 112)
	require.NoError(t, err)

	removed := f.svc.InvalidateTenant(111)
	assert.Equal(t, 1, removed)

	// 111 misses the cache now; 112 still hits it.
	f.computer.mu.Lock()
	f.computer.calls = 0
	f.computer.mu.Unlock()
	f.store.mu.Lock()
	f.store.snaps = map[int]*model.Snapshot{}
	f.store.mu.Unlock()

	res, err := f.svc.GetStats(ctx, 111)
	require.NoError(t, err)
	assert.Equal(t, SourceRealtime, res.Source)

	res, err = f.svc.GetStats(ctx, 112)
	require.NoError(t, err)
	assert.Equal(t, SourceCache, res.Source)
}

func TestQueryService_InvalidateAll(t *testing.T) {
	f := newServiceFixture(t, time.Minute, 10*time.Minute)
	ctx := context.Background()

	_, err := f.svc.GetStats(ctx, 111)
	require.NoError(t, err)
	_, err = f.svc.GetStats(ctx, 112)
	require.NoError(t, err)

	removed := f.svc.InvalidateAll()
	assert.Equal(t, 2, removed)
}

func TestQueryService_AllStats(t *testing.T) {
	f := newServiceFixture(t, time.Minute, 10*time.Minute)
	ctx := context.Background()

	require.NoError(t, f.store.Save(ctx, &model.Snapshot{ACID: 111, ComputedAt: time.Now(), TotalMembers: 240000}))
	require.NoError(t, f.store.Save(ctx, &model.Snapshot{ACID: 112, ComputedAt: time.Now(), TotalMembers: 180000}))
	// A snapshot left over for a deregistered constituency is skipped.
	require.NoError(t, f.store.Save(ctx, &model.Snapshot{ACID: 999, ComputedAt: time.Now()}))

	results, err := f.svc.AllStats(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, res := range results {
		assert.Equal(t, SourcePrecomputed, res.Source)
		assert.NotNil(t, res.BoothStats)
	}
	assert.Equal(t, 0, f.computer.callCount(), "the roll-up never fans out realtime computes")
}

func TestQueryService_AllStats_Empty(t *testing.T) {
	f := newServiceFixture(t, time.Minute, 10*time.Minute)

	results, err := f.svc.AllStats(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestQueryService_AllStats_StoreError(t *testing.T) {
	f := newServiceFixture(t, time.Minute, 10*time.Minute)
	f.store.allErr = errors.New("core db unavailable")

	_, err := f.svc.AllStats(context.Background())
	require.Error(t, err)
}
