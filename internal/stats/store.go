package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pollwise/acdash/internal/model"
)

// DB is the subset of pgxpool.Pool used against the core database.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row
}

// Store persists precomputed snapshots in the core database, one row per
// constituency, replaced wholesale on each save.
type Store struct {
	db DB
}

func NewStore(db DB) *Store {
	return &Store{db: db}
}

const snapshotColumns = `ac_id, computed_at, total_members, total_families, total_booths, surveys_completed, booth_stats`

func scanSnapshot(row interface{ Scan(dest ...any) error }) (model.Snapshot, error) {
	var snap model.Snapshot
	var boothJSON []byte
	err := row.Scan(&snap.ACID, &snap.ComputedAt, &snap.TotalMembers, &snap.TotalFamilies,
		&snap.TotalBooths, &snap.SurveysCompleted, &boothJSON)
	if err != nil {
		return snap, err
	}
	snap.BoothStats = []model.BoothStat{}
	if len(boothJSON) > 0 {
		if err := json.Unmarshal(boothJSON, &snap.BoothStats); err != nil {
			return snap, fmt.Errorf("decode booth stats: %w", err)
		}
	}
	if snap.BoothStats == nil {
		snap.BoothStats = []model.BoothStat{}
	}
	return snap, nil
}

// Get returns the snapshot for acID, or nil when none exists or the stored
// one is older than maxAge. A maxAge of zero or less accepts any age.
func (s *Store) Get(ctx context.Context, acID int, maxAge time.Duration) (*model.Snapshot, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+snapshotColumns+` FROM snapshots WHERE ac_id = $1`, acID)

	snap, err := scanSnapshot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get snapshot for constituency %d: %w", acID, err)
	}

	if maxAge > 0 && snap.Stale(time.Now(), maxAge) {
		return nil, nil
	}
	return &snap, nil
}

// Save upserts the snapshot keyed by constituency id as a full replace.
// computed_at never moves backwards: a save carrying an older timestamp
// than the stored row is a no-op.
func (s *Store) Save(ctx context.Context, snap *model.Snapshot) error {
	boothJSON, err := json.Marshal(snap.BoothStats)
	if err != nil {
		return fmt.Errorf("encode booth stats: %w", err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO snapshots (ac_id, computed_at, total_members, total_families, total_booths, surveys_completed, booth_stats)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (ac_id) DO UPDATE SET
		   computed_at = EXCLUDED.computed_at,
		   total_members = EXCLUDED.total_members,
		   total_families = EXCLUDED.total_families,
		   total_booths = EXCLUDED.total_booths,
		   surveys_completed = EXCLUDED.surveys_completed,
		   booth_stats = EXCLUDED.booth_stats
		 WHERE snapshots.computed_at <= EXCLUDED.computed_at`,
		snap.ACID, snap.ComputedAt, snap.TotalMembers, snap.TotalFamilies,
		snap.TotalBooths, snap.SurveysCompleted, boothJSON,
	)
	if err != nil {
		return fmt.Errorf("save snapshot for constituency %d: %w", snap.ACID, err)
	}
	return nil
}

// GetAll returns the latest snapshot per constituency in ascending id
// order. An empty store yields an empty slice, not an error.
func (s *Store) GetAll(ctx context.Context) ([]model.Snapshot, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+snapshotColumns+` FROM snapshots ORDER BY ac_id`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	snaps := []model.Snapshot{}
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return snaps, nil
}
