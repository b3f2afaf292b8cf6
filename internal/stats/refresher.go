package stats

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pollwise/acdash/internal/platform"
	"github.com/pollwise/acdash/internal/registry"
)

// Refresher recomputes and saves a snapshot for every registered
// constituency on a fixed interval, independent of request traffic. Load
// on the shard databases is capped by a bounded worker pool, and a cycle
// that is still running when the next tick fires causes that tick to be
// skipped entirely rather than queued.
type Refresher struct {
	reg      *registry.Registry
	computer SnapshotComputer
	store    SnapshotStore
	exporter SnapshotExporter // optional
	logger   zerolog.Logger

	interval    time.Duration
	concurrency int

	running atomic.Bool
}

func NewRefresher(
	reg *registry.Registry,
	computer SnapshotComputer,
	store SnapshotStore,
	exporter SnapshotExporter,
	logger zerolog.Logger,
	interval time.Duration,
	concurrency int,
) *Refresher {
	return &Refresher{
		reg:         reg,
		computer:    computer,
		store:       store,
		exporter:    exporter,
		logger:      logger.With().Str("component", "refresher").Logger(),
		interval:    interval,
		concurrency: concurrency,
	}
}

// Run executes refresh cycles until ctx is cancelled. The first cycle
// starts immediately so a fresh deployment warms the snapshot store
// without waiting a full interval.
func (r *Refresher) Run(ctx context.Context) {
	r.logger.Info().
		Dur("interval", r.interval).
		Int("concurrency", r.concurrency).
		Int("constituencies", r.reg.Len()).
		Msg("starting refresh loop")

	r.tick(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("refresh loop stopped")
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

// tick starts a cycle unless one is still running, in which case the tick
// is dropped.
func (r *Refresher) tick(ctx context.Context) {
	if !r.running.CompareAndSwap(false, true) {
		refreshCyclesTotal.WithLabelValues("skipped").Inc()
		r.logger.Warn().Msg("previous refresh cycle still running, skipping tick")
		return
	}
	go func() {
		defer r.running.Store(false)
		r.RunCycle(ctx)
	}()
}

// RunCycle recomputes snapshots for all constituencies once. One
// constituency's failure is logged and skipped; it never aborts the cycle
// for the others.
func (r *Refresher) RunCycle(ctx context.Context) {
	cycleID := platform.NewID()
	started := time.Now()
	logger := r.logger.With().Str("cycle_id", cycleID).Logger()
	logger.Info().Int("constituencies", r.reg.Len()).Msg("refresh cycle started")

	var refreshed, failed atomic.Int64

	var g errgroup.Group
	g.SetLimit(r.concurrency)

	for _, ac := range r.reg.All() {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			t0 := time.Now()
			logger.Debug().Int("ac_id", ac.ID).Msg("refreshing constituency")

			snap, err := r.computer.Compute(ctx, ac.ID)
			if err != nil {
				failed.Add(1)
				refreshConstituencyDuration.WithLabelValues("error").Observe(time.Since(t0).Seconds())
				logger.Error().Err(err).Int("ac_id", ac.ID).Msg("refresh failed for constituency")
				return nil
			}

			if err := r.store.Save(ctx, snap); err != nil {
				failed.Add(1)
				refreshConstituencyDuration.WithLabelValues("error").Observe(time.Since(t0).Seconds())
				logger.Error().Err(err).Int("ac_id", ac.ID).Msg("snapshot save failed for constituency")
				return nil
			}

			refreshed.Add(1)
			refreshConstituencyDuration.WithLabelValues("ok").Observe(time.Since(t0).Seconds())
			logger.Debug().Int("ac_id", ac.ID).Int("members", snap.TotalMembers).Msg("constituency refreshed")
			return nil
		})
	}
	g.Wait()

	refreshCyclesTotal.WithLabelValues("completed").Inc()
	logger.Info().
		Dur("duration", time.Since(started)).
		Int64("refreshed", refreshed.Load()).
		Int64("failed", failed.Load()).
		Msg("refresh cycle finished")

	if r.exporter != nil && refreshed.Load() > 0 {
		r.export(ctx, logger)
	}
}

func (r *Refresher) export(ctx context.Context, logger zerolog.Logger) {
	snaps, err := r.store.GetAll(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("snapshot export: list failed")
		return
	}
	if err := r.exporter.Export(ctx, snaps); err != nil {
		logger.Error().Err(err).Msg("snapshot export failed")
		return
	}
	logger.Info().Int("snapshots", len(snaps)).Msg("snapshot set exported")
}
