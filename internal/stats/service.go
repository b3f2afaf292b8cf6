package stats

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pollwise/acdash/internal/cache"
	"github.com/pollwise/acdash/internal/model"
	"github.com/pollwise/acdash/internal/registry"
)

// Source identifies which layer served a dashboard read.
type Source string

const (
	SourceCache       Source = "cache"
	SourcePrecomputed Source = "precomputed"
	SourceRealtime    Source = "realtime"
)

const (
	// cacheKeyPrefix is shared by every dashboard cache key, so a
	// schema-wide mutation can drop all derived entries in one call.
	cacheKeyPrefix = "dashboard:"

	saveTimeout = 15 * time.Second
)

func tenantCachePrefix(acID int) string {
	return fmt.Sprintf("%s%d:", cacheKeyPrefix, acID)
}

func statsCacheKey(acID int) string {
	return tenantCachePrefix(acID) + "stats"
}

// Result is the dashboard payload served to callers, a snapshot joined
// with the constituency name and the layer that produced it.
type Result struct {
	ACID             int               `json:"ac_id"`
	ACName           string            `json:"ac_name"`
	TotalMembers     int               `json:"total_members"`
	TotalFamilies    int               `json:"total_families"`
	TotalBooths      int               `json:"total_booths"`
	SurveysCompleted int               `json:"surveys_completed"`
	BoothStats       []model.BoothStat `json:"booth_stats"`
	Source           Source            `json:"source"`
	ComputedAt       time.Time         `json:"computed_at"`
}

// QueryService is the single read entry point for dashboard statistics.
// Reads fall through cache, then snapshot store, then a realtime compute,
// writing back through both layers on the way out.
type QueryService struct {
	reg      *registry.Registry
	cache    *cache.TTL[*model.Snapshot]
	store    SnapshotStore
	computer SnapshotComputer
	logger   zerolog.Logger

	cacheTTL       time.Duration
	snapshotMaxAge time.Duration

	saves sync.WaitGroup
}

func NewQueryService(
	reg *registry.Registry,
	c *cache.TTL[*model.Snapshot],
	store SnapshotStore,
	computer SnapshotComputer,
	logger zerolog.Logger,
	cacheTTL, snapshotMaxAge time.Duration,
) *QueryService {
	return &QueryService{
		reg:            reg,
		cache:          c,
		store:          store,
		computer:       computer,
		logger:         logger.With().Str("component", "query-service").Logger(),
		cacheTTL:       cacheTTL,
		snapshotMaxAge: snapshotMaxAge,
	}
}

// GetStats serves the dashboard statistics for one constituency.
func (s *QueryService) GetStats(ctx context.Context, acID int) (*Result, error) {
	ac, err := s.reg.Get(acID)
	if err != nil {
		return nil, err
	}

	key := statsCacheKey(acID)

	if snap, ok := s.cache.Get(key, s.cacheTTL); ok {
		statsRequestsTotal.WithLabelValues(string(SourceCache)).Inc()
		return s.result(ac, snap, SourceCache), nil
	}

	snap, err := s.store.Get(ctx, acID, s.snapshotMaxAge)
	if err != nil {
		// The snapshot store is an optimization; fall through to the
		// realtime path rather than failing the read.
		s.logger.Warn().Err(err).Int("ac_id", acID).Msg("snapshot store read failed")
	}
	if snap != nil {
		s.cache.Set(key, snap)
		statsRequestsTotal.WithLabelValues(string(SourcePrecomputed)).Inc()
		return s.result(ac, snap, SourcePrecomputed), nil
	}

	snap, err = s.computer.Compute(ctx, acID)
	if err != nil {
		// Transient failures are surfaced, never cached.
		return nil, err
	}

	s.cache.Set(key, snap)
	s.saveAsync(ctx, snap)

	statsRequestsTotal.WithLabelValues(string(SourceRealtime)).Inc()
	return s.result(ac, snap, SourceRealtime), nil
}

// saveAsync persists a freshly computed snapshot without blocking the
// caller, detached from the request context so a caller timeout does not
// waste the computed work. A save failure is logged only; the caller
// already holds a correct result.
func (s *QueryService) saveAsync(ctx context.Context, snap *model.Snapshot) {
	dctx := context.WithoutCancel(ctx)
	s.saves.Add(1)
	go func() {
		defer s.saves.Done()
		sctx, cancel := context.WithTimeout(dctx, saveTimeout)
		defer cancel()
		if err := s.store.Save(sctx, snap); err != nil {
			s.logger.Error().Err(err).Int("ac_id", snap.ACID).Msg("failed to persist computed snapshot")
		}
	}()
}

// AllStats serves the cross-constituency roll-up from the snapshot store.
// It never fans out realtime computes.
func (s *QueryService) AllStats(ctx context.Context) ([]Result, error) {
	snaps, err := s.store.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	results := []Result{}
	for i := range snaps {
		ac, err := s.reg.Get(snaps[i].ACID)
		if err != nil {
			// A snapshot for a constituency no longer registered is
			// skipped rather than failing the roll-up.
			s.logger.Warn().Int("ac_id", snaps[i].ACID).Msg("snapshot for unregistered constituency")
			continue
		}
		results = append(results, *s.result(ac, &snaps[i], SourcePrecomputed))
	}
	return results, nil
}

// InvalidateTenant drops every cached entry derived from one
// constituency's records. Mutation callers must invoke this after any
// write to the constituency's underlying data.
func (s *QueryService) InvalidateTenant(acID int) int {
	cacheInvalidationsTotal.WithLabelValues("tenant").Inc()
	removed := s.cache.Invalidate(tenantCachePrefix(acID))
	s.logger.Info().Int("ac_id", acID).Int("removed", removed).Msg("tenant cache invalidated")
	return removed
}

// InvalidateAll drops every constituency's cached entries plus any global
// metadata keys, for schema-wide mutations.
func (s *QueryService) InvalidateAll() int {
	cacheInvalidationsTotal.WithLabelValues("all").Inc()
	removed := s.cache.Invalidate(cacheKeyPrefix)
	s.logger.Info().Int("removed", removed).Msg("full cache invalidated")
	return removed
}

func (s *QueryService) result(ac model.Constituency, snap *model.Snapshot, source Source) *Result {
	booths := snap.BoothStats
	if booths == nil {
		booths = []model.BoothStat{}
	}
	return &Result{
		ACID:             ac.ID,
		ACName:           ac.Name,
		TotalMembers:     snap.TotalMembers,
		TotalFamilies:    snap.TotalFamilies,
		TotalBooths:      snap.TotalBooths,
		SurveysCompleted: snap.SurveysCompleted,
		BoothStats:       booths,
		Source:           source,
		ComputedAt:       snap.ComputedAt,
	}
}
