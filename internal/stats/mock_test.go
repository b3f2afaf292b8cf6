package stats

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/mock"

	"github.com/pollwise/acdash/internal/model"
	"github.com/pollwise/acdash/internal/shard"
)

// ---------- Mock DB ----------

// mockDB implements the DB interface for testing.
type mockDB struct {
	mock.Mock
}

func (m *mockDB) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *mockDB) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	args := m.Called(ctx, sql, arguments)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(pgx.Rows), args.Error(1)
}

func (m *mockDB) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

// ---------- Mock Row ----------

// mockRow implements pgx.Row for testing.
type mockRow struct {
	scanFunc func(dest ...any) error
}

func (m *mockRow) Scan(dest ...any) error {
	return m.scanFunc(dest...)
}

// ---------- Mock Rows ----------

// mockRows implements pgx.Rows for testing.
// It iterates through a list of scan functions, one per row.
type mockRows struct {
	callIndex int
	scanFuncs []func(dest ...any) error
	err       error
}

func newMockRows(scanFuncs ...func(dest ...any) error) *mockRows {
	return &mockRows{scanFuncs: scanFuncs}
}

// newEmptyMockRows returns a mockRows that yields zero rows.
func newEmptyMockRows() *mockRows {
	return &mockRows{}
}

func (m *mockRows) Next() bool {
	return m.callIndex < len(m.scanFuncs)
}

func (m *mockRows) Scan(dest ...any) error {
	if m.callIndex < len(m.scanFuncs) {
		fn := m.scanFuncs[m.callIndex]
		m.callIndex++
		return fn(dest...)
	}
	return nil
}

func (m *mockRows) Err() error                                   { return m.err }
func (m *mockRows) Close()                                       {}
func (m *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (m *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (m *mockRows) RawValues() [][]byte                          { return nil }
func (m *mockRows) Values() ([]any, error)                       { return nil, nil }
func (m *mockRows) Conn() *pgx.Conn                              { return nil }

// ---------- Fake Router ----------

// fakeRouter implements shard.Router over a fixed set of mock-backed
// shards.
type fakeRouter struct {
	shards map[int]*shard.Shard
	errs   map[int]error
}

func (f *fakeRouter) Resolve(_ context.Context, acID int) (*shard.Shard, error) {
	if err, ok := f.errs[acID]; ok {
		return nil, err
	}
	sh, ok := f.shards[acID]
	if !ok {
		return nil, shard.ErrUnavailable
	}
	return sh, nil
}

// ---------- Fake Computer ----------

// fakeComputer implements SnapshotComputer with canned snapshots and a
// call counter. An optional gate blocks each Compute until released.
type fakeComputer struct {
	mu    sync.Mutex
	calls int
	snaps map[int]*model.Snapshot
	errs  map[int]error
	gate  chan struct{}
}

func (f *fakeComputer) Compute(ctx context.Context, acID int) (*model.Snapshot, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err, ok := f.errs[acID]; ok {
		return nil, err
	}
	if snap, ok := f.snaps[acID]; ok {
		copied := *snap
		return &copied, nil
	}
	return &model.Snapshot{ACID: acID, ComputedAt: time.Now().UTC(), BoothStats: []model.BoothStat{}}, nil
}

func (f *fakeComputer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// ---------- Fake Store ----------

// fakeStore implements SnapshotStore in memory.
type fakeStore struct {
	mu      sync.Mutex
	snaps   map[int]*model.Snapshot
	getErr  error
	saveErr error
	allErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{snaps: make(map[int]*model.Snapshot)}
}

func (f *fakeStore) Get(_ context.Context, acID int, maxAge time.Duration) (*model.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	snap, ok := f.snaps[acID]
	if !ok {
		return nil, nil
	}
	if maxAge > 0 && snap.Stale(time.Now(), maxAge) {
		return nil, nil
	}
	copied := *snap
	return &copied, nil
}

func (f *fakeStore) Save(_ context.Context, snap *model.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	copied := *snap
	f.snaps[snap.ACID] = &copied
	return nil
}

func (f *fakeStore) GetAll(_ context.Context) ([]model.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.allErr != nil {
		return nil, f.allErr
	}
	out := []model.Snapshot{}
	for _, snap := range f.snaps {
		out = append(out, *snap)
	}
	return out, nil
}

func (f *fakeStore) saved(acID int) *model.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snaps[acID]
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.snaps)
}

// ---------- Fake Exporter ----------

type fakeExporter struct {
	mu    sync.Mutex
	calls int
	last  []model.Snapshot
	err   error
}

func (f *fakeExporter) Export(_ context.Context, snaps []model.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.calls++
	f.last = snaps
	return nil
}

func (f *fakeExporter) exportCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
