package stats

import (
	"context"
	"time"

	"github.com/pollwise/acdash/internal/model"
)

// SnapshotComputer produces the canonical statistics for one constituency
// directly from its shard.
type SnapshotComputer interface {
	Compute(ctx context.Context, acID int) (*model.Snapshot, error)
}

// SnapshotStore is the durable per-constituency snapshot store.
type SnapshotStore interface {
	// Get returns the stored snapshot for acID, or nil when there is
	// none or it is older than maxAge. A maxAge of zero or less accepts
	// any age.
	Get(ctx context.Context, acID int, maxAge time.Duration) (*model.Snapshot, error)
	// Save atomically replaces the snapshot for its constituency.
	Save(ctx context.Context, snap *model.Snapshot) error
	// GetAll returns the latest snapshot per constituency, omitting
	// constituencies that have none.
	GetAll(ctx context.Context) ([]model.Snapshot, error)
}

// SnapshotExporter ships a full snapshot set to external storage.
type SnapshotExporter interface {
	Export(ctx context.Context, snaps []model.Snapshot) error
}
