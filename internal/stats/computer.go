package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pollwise/acdash/internal/model"
	"github.com/pollwise/acdash/internal/shard"
)

// Computer runs the canonical aggregates for one constituency directly
// against its shard. This is the expensive path; results normally reach
// callers through the snapshot store or the cache instead.
type Computer struct {
	router shard.Router
	logger zerolog.Logger
}

func NewComputer(router shard.Router, logger zerolog.Logger) *Computer {
	return &Computer{
		router: router,
		logger: logger.With().Str("component", "stats-computer").Logger(),
	}
}

// Compute fans out the five aggregates concurrently and joins them, so
// total latency is bounded by the slowest single aggregate. If any
// aggregate fails the whole computation fails; no partial result is ever
// returned as complete.
func (c *Computer) Compute(ctx context.Context, acID int) (*model.Snapshot, error) {
	sh, err := c.router.Resolve(ctx, acID)
	if err != nil {
		return nil, err
	}

	snap := &model.Snapshot{
		ACID:       acID,
		BoothStats: []model.BoothStat{},
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := sh.Count(ctx, "voters", "")
		snap.TotalMembers = n
		return err
	})
	g.Go(func() error {
		n, err := c.countDistinct(ctx, sh, "family_key")
		snap.TotalFamilies = n
		return err
	})
	g.Go(func() error {
		n, err := c.countDistinct(ctx, sh, "booth_id")
		snap.TotalBooths = n
		return err
	})
	g.Go(func() error {
		n, err := sh.Count(ctx, "voters", "surveyed")
		snap.SurveysCompleted = n
		return err
	})
	g.Go(func() error {
		booths, err := c.boothStats(ctx, sh)
		if err != nil {
			return err
		}
		snap.BoothStats = booths
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("compute stats for constituency %d: %w", acID, err)
	}

	snap.ComputedAt = time.Now().UTC()
	return snap, nil
}

// countDistinct counts distinct non-empty values of column in the voters
// table.
func (c *Computer) countDistinct(ctx context.Context, sh *shard.Shard, column string) (int, error) {
	query := fmt.Sprintf(
		`SELECT count(DISTINCT %s) FROM %s WHERE %s <> ''`,
		column, sh.Table("voters"), column)

	var n int
	if err := sh.DB.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count distinct %s: %w", column, err)
	}
	return n, nil
}

// boothStats groups voters by booth, ordered by booth number. The first
// non-empty booth name seen wins.
func (c *Computer) boothStats(ctx context.Context, sh *shard.Shard) ([]model.BoothStat, error) {
	query := fmt.Sprintf(
		`SELECT booth_id, booth_no, coalesce(min(booth_name) FILTER (WHERE booth_name <> ''), ''), count(*)
		 FROM %s
		 WHERE booth_id <> ''
		 GROUP BY booth_id, booth_no
		 ORDER BY booth_no`, sh.Table("voters"))

	rows, err := sh.DB.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("booth stats: %w", err)
	}
	defer rows.Close()

	booths := []model.BoothStat{}
	for rows.Next() {
		var b model.BoothStat
		if err := rows.Scan(&b.BoothID, &b.BoothNo, &b.BoothName, &b.VoterCount); err != nil {
			return nil, fmt.Errorf("scan booth stat: %w", err)
		}
		booths = append(booths, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate booth stats: %w", err)
	}
	return booths, nil
}
