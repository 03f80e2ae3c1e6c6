package scheduler

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cshoesmith/diskmonitor/internal/history"
	"github.com/cshoesmith/diskmonitor/internal/identity"
	"github.com/cshoesmith/diskmonitor/internal/model"
	"github.com/cshoesmith/diskmonitor/internal/publish"
	"github.com/cshoesmith/diskmonitor/internal/scoring"
	"github.com/cshoesmith/diskmonitor/internal/smart"
	"github.com/cshoesmith/diskmonitor/internal/source"
)

// ---------------------------------------------------------------------------
// Test fixtures
// ---------------------------------------------------------------------------

// stubSource is a scriptable Source: per-path payloads, errors, and delays.
type stubSource struct {
	mu       sync.Mutex
	devices  []source.Device
	enumErr  error
	payloads map[string][]byte
	errs     map[string]error
	delays   map[string]time.Duration
}

func newStubSource() *stubSource {
	return &stubSource{
		payloads: make(map[string][]byte),
		errs:     make(map[string]error),
		delays:   make(map[string]time.Duration),
	}
}

func (s *stubSource) Kind() string { return "stub" }

func (s *stubSource) Enumerate(context.Context) ([]source.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.devices), s.enumErr
}

func (s *stubSource) Snapshot(_ context.Context, dev source.Device) ([]byte, error) {
	s.mu.Lock()
	delay := s.delays[dev.Path]
	err := s.errs[dev.Path]
	payload, ok := s.payloads[dev.Path]
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay) // deliberately ignores ctx to exercise straggler handling
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no payload for %s", dev.Path)
	}
	return payload, nil
}

func (s *stubSource) addDevice(path string, payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices = append(s.devices, source.Device{Path: path})
	s.payloads[path] = payload
}

func (s *stubSource) removeDevice(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices = slices.DeleteFunc(s.devices, func(d source.Device) bool { return d.Path == path })
}

func (s *stubSource) failDevice(path string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[path] = err
}

func (s *stubSource) healDevice(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.errs, path)
}

func ataRow(id int, name string, raw int64) string {
	return fmt.Sprintf(`{"id": %d, "name": %q, "value": 100, "worst": 100, "thresh": 10,
		"when_failed": "", "flags": {"prefailure": false},
		"raw": {"value": %d, "string": "%d"}}`, id, name, raw, raw)
}

func ataPayload(serial string, rows ...string) []byte {
	return fmt.Appendf(nil, `{
		"device": {"name": "/dev/stub", "type": "ata", "protocol": "ATA"},
		"model_name": "Stub Disk 2TB",
		"serial_number": %q,
		"firmware_version": "SB01",
		"smart_status": {"passed": true},
		"temperature": {"current": 33},
		"power_on_time": {"hours": 5000},
		"ata_smart_attributes": {"table": [%s]}
	}`, serial, strings.Join(rows, ","))
}

// fakeRecorder captures persistence calls.
type fakeRecorder struct {
	mu      sync.Mutex
	err     error
	drives  []model.DriveIdentity
	entries map[string][]model.HistoryEntry
	snaps   []*model.SmartSnapshot
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{entries: make(map[string][]model.HistoryEntry)}
}

func (r *fakeRecorder) UpsertDrive(id model.DriveIdentity, _, _ int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.drives = append(r.drives, id)
	return nil
}

func (r *fakeRecorder) InsertHistoryEntry(key string, e model.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.entries[key] = append(r.entries[key], e)
	return nil
}

func (r *fakeRecorder) InsertSnapshot(snap *model.SmartSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.snaps = append(r.snaps, snap)
	return nil
}

func newTestScheduler(t *testing.T, src source.Source, rec Recorder) *Scheduler {
	t.Helper()
	return New(Config{
		PollInterval:  time.Hour,
		DeviceTimeout: 2 * time.Second,
		CycleTimeout:  5 * time.Second,
		MaxConcurrent: 4,
	}, src, identity.NewResolver(), scoring.NewScorer(scoring.DefaultPolicy()),
		history.New(10, 5, 0.1), publish.New(), rec)
}

// ---------------------------------------------------------------------------
// WorkerPool
// ---------------------------------------------------------------------------

func TestNewWorkerPool(t *testing.T) {
	pool := NewWorkerPool(4)
	require.NotNil(t, pool)
	assert.Equal(t, 4, cap(pool.sem))
}

func TestWorkerPool_Submit_ExecutesFunction(t *testing.T) {
	pool := NewWorkerPool(2)

	done := make(chan struct{})
	err := pool.Submit(context.Background(), func() { close(done) })
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("function was not executed in time")
	}
}

func TestWorkerPool_Submit_BlocksWhenFull(t *testing.T) {
	pool := NewWorkerPool(1)

	// Fill the single slot with a blocking function
	blocker := make(chan struct{})
	err := pool.Submit(context.Background(), func() {
		<-blocker
	})
	require.NoError(t, err)

	// Second submit should block until the first finishes or context cancels
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err = pool.Submit(ctx, func() {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(blocker)
}

func TestWorkerPool_Submit_ErrorOnCancelledContext(t *testing.T) {
	pool := NewWorkerPool(1)

	blocker := make(chan struct{})
	err := pool.Submit(context.Background(), func() {
		<-blocker
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	err = pool.Submit(ctx, func() {})
	assert.ErrorIs(t, err, context.Canceled)

	close(blocker)
}

// ---------------------------------------------------------------------------
// State
// ---------------------------------------------------------------------------

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "idle"},
		{StatePolling, "polling"},
		{StateAggregating, "aggregating"},
		{StatePublished, "published"},
		{StateShutdown, "shutdown"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.String())
		})
	}
}

// ---------------------------------------------------------------------------
// Cycle
// ---------------------------------------------------------------------------

func TestCycle_PublishesAllDrives(t *testing.T) {
	s := newTestScheduler(t, source.NewMock(42, 3), nil)

	require.NoError(t, s.cycle(context.Background()))

	snap, ok := s.pub.Latest()
	require.True(t, ok)
	assert.NotEmpty(t, snap.CycleID)
	assert.Equal(t, model.StatusGreen, snap.Macro)
	require.Len(t, snap.Drives, 3)
	for _, d := range snap.Drives {
		assert.True(t, d.Present)
		assert.False(t, d.Stale)
		require.NotNil(t, d.Snapshot)
		assert.NotZero(t, d.Health.Score)
		assert.Len(t, d.History, 1)
	}
	assert.Equal(t, StateIdle, s.State())
	assert.False(t, s.LastCycle().IsZero())
}

func TestCycle_SharedCycleTimestamp(t *testing.T) {
	s := newTestScheduler(t, source.NewMock(42, 3), nil)

	require.NoError(t, s.cycle(context.Background()))

	snap, ok := s.pub.Latest()
	require.True(t, ok)
	for _, d := range snap.Drives {
		assert.Equal(t, snap.Timestamp, d.Snapshot.Timestamp)
		assert.Equal(t, snap.Timestamp, d.History[len(d.History)-1].Timestamp)
		assert.Equal(t, snap.Timestamp, d.LastSeen)
	}
}

func TestCycle_ErrorWhenNothingKnown(t *testing.T) {
	s := newTestScheduler(t, newStubSource(), nil)

	err := s.cycle(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no devices")

	_, ok := s.pub.Latest()
	assert.False(t, ok, "a cycle with nothing to report publishes nothing")
}

func TestCycle_EnumerationErrorKeepsKnownDrives(t *testing.T) {
	src := newStubSource()
	src.addDevice("/dev/sda", ataPayload("AAA-001", ataRow(5, "Reallocated_Sector_Ct", 0)))
	s := newTestScheduler(t, src, nil)

	require.NoError(t, s.cycle(context.Background()))

	// Enumeration breaks; the known drive is still reachable at its path.
	src.mu.Lock()
	src.devices = nil
	src.enumErr = fmt.Errorf("scan failed")
	src.mu.Unlock()

	require.NoError(t, s.cycle(context.Background()))

	snap, ok := s.pub.Latest()
	require.True(t, ok)
	require.Len(t, snap.Drives, 1)
	assert.True(t, snap.Drives[0].Present)
	assert.False(t, snap.Drives[0].Stale)
}

func TestCycle_QueryFailureMarksStale(t *testing.T) {
	src := newStubSource()
	src.addDevice("/dev/sda", ataPayload("AAA-001", ataRow(5, "Reallocated_Sector_Ct", 0)))
	s := newTestScheduler(t, src, nil)

	require.NoError(t, s.cycle(context.Background()))
	src.failDevice("/dev/sda", fmt.Errorf("opening device: %w", source.ErrPermissionDenied))
	require.NoError(t, s.cycle(context.Background()))

	snap, _ := s.pub.Latest()
	require.Len(t, snap.Drives, 1)
	d := snap.Drives[0]
	assert.True(t, d.Stale)
	assert.True(t, d.Present)
	assert.Equal(t, model.FailPermissionDenied, d.Failure)
	assert.Equal(t, 1, d.ConsecutiveFailures)
	require.NotNil(t, d.Snapshot, "last good snapshot is retained")
	assert.Equal(t, model.StatusOrange, snap.Macro, "stale raises the aggregate to orange")

	require.NoError(t, s.cycle(context.Background()))
	snap, _ = s.pub.Latest()
	assert.Equal(t, 2, snap.Drives[0].ConsecutiveFailures)
}

func TestCycle_RecoveryClearsStale(t *testing.T) {
	src := newStubSource()
	src.addDevice("/dev/sda", ataPayload("AAA-001", ataRow(5, "Reallocated_Sector_Ct", 0)))
	s := newTestScheduler(t, src, nil)

	require.NoError(t, s.cycle(context.Background()))
	src.failDevice("/dev/sda", fmt.Errorf("boom"))
	require.NoError(t, s.cycle(context.Background()))
	src.healDevice("/dev/sda")
	require.NoError(t, s.cycle(context.Background()))

	snap, _ := s.pub.Latest()
	d := snap.Drives[0]
	assert.False(t, d.Stale)
	assert.Equal(t, model.FailNone, d.Failure)
	assert.Zero(t, d.ConsecutiveFailures)
}

func TestCycle_DroppedDriveGetsCourtesyQuery(t *testing.T) {
	src := newStubSource()
	src.addDevice("/dev/sda", ataPayload("AAA-001", ataRow(5, "Reallocated_Sector_Ct", 0)))
	src.addDevice("/dev/sdb", ataPayload("BBB-002", ataRow(5, "Reallocated_Sector_Ct", 0)))
	s := newTestScheduler(t, src, nil)

	require.NoError(t, s.cycle(context.Background()))

	// sdb drops out of enumeration but still answers at its old path.
	src.removeDevice("/dev/sdb")
	require.NoError(t, s.cycle(context.Background()))

	snap, _ := s.pub.Latest()
	require.Len(t, snap.Drives, 2)
	for _, d := range snap.Drives {
		assert.True(t, d.Present, "drive %s reachable via courtesy query", d.Identity.Key)
	}
}

func TestCycle_AbsentAfterCourtesyFailure(t *testing.T) {
	src := newStubSource()
	src.addDevice("/dev/sda", ataPayload("AAA-001", ataRow(5, "Reallocated_Sector_Ct", 0)))
	src.addDevice("/dev/sdb", ataPayload("BBB-002", ataRow(5, "Reallocated_Sector_Ct", 0)))
	s := newTestScheduler(t, src, nil)

	require.NoError(t, s.cycle(context.Background()))

	// sdb is gone: not enumerated and the courtesy query fails too.
	src.removeDevice("/dev/sdb")
	src.failDevice("/dev/sdb", fmt.Errorf("no such device"))
	require.NoError(t, s.cycle(context.Background()))

	snap, _ := s.pub.Latest()
	require.Len(t, snap.Drives, 2, "state is kept, never deleted")

	var gone model.DriveState
	for _, d := range snap.Drives {
		if d.Identity.Serial == "BBB-002" {
			gone = d
		}
	}
	assert.False(t, gone.Present)
	assert.False(t, gone.Stale, "absence is not staleness")
	assert.Zero(t, gone.ConsecutiveFailures)
	assert.Equal(t, model.StatusGreen, snap.Macro, "absent drives do not drag the aggregate")
}

func TestCycle_DedupTwoPathsOneDrive(t *testing.T) {
	src := newStubSource()
	// The same physical drive behind two paths; sdb reports more attributes.
	src.addDevice("/dev/sda", ataPayload("AAA-001",
		ataRow(5, "Reallocated_Sector_Ct", 2)))
	src.addDevice("/dev/sdb", ataPayload("AAA-001",
		ataRow(5, "Reallocated_Sector_Ct", 2),
		ataRow(194, "Temperature_Celsius", 33),
		ataRow(197, "Current_Pending_Sector", 0)))
	s := newTestScheduler(t, src, nil)

	require.NoError(t, s.cycle(context.Background()))

	snap, _ := s.pub.Latest()
	require.Len(t, snap.Drives, 1)
	d := snap.Drives[0]
	assert.Len(t, d.Snapshot.Attributes, 3, "richer observation wins")
	assert.ElementsMatch(t, []string{"/dev/sda", "/dev/sdb"}, d.Identity.Paths)
	assert.Len(t, d.History, 1, "one history entry per physical drive per cycle")
}

func TestCycle_StragglerRecordedAsTimeout(t *testing.T) {
	src := newStubSource()
	src.addDevice("/dev/sda", ataPayload("AAA-001", ataRow(5, "Reallocated_Sector_Ct", 0)))
	s := New(Config{
		PollInterval:  time.Hour,
		DeviceTimeout: 2 * time.Second,
		CycleTimeout:  150 * time.Millisecond,
		MaxConcurrent: 2,
	}, src, identity.NewResolver(), scoring.NewScorer(scoring.DefaultPolicy()),
		history.New(10, 5, 0.1), publish.New(), nil)

	require.NoError(t, s.cycle(context.Background()))

	// The device stops answering within the cycle budget.
	src.mu.Lock()
	src.delays["/dev/sda"] = 500 * time.Millisecond
	src.mu.Unlock()

	start := time.Now()
	require.NoError(t, s.cycle(context.Background()))
	assert.Less(t, time.Since(start), 450*time.Millisecond, "cycle must not wait for stragglers")

	snap, _ := s.pub.Latest()
	require.Len(t, snap.Drives, 1)
	assert.True(t, snap.Drives[0].Stale)
	assert.Equal(t, model.FailTimeout, snap.Drives[0].Failure)
}

func TestCycle_PersistsAfterPublish(t *testing.T) {
	rec := newFakeRecorder()
	s := newTestScheduler(t, source.NewMock(42, 3), rec)

	require.NoError(t, s.cycle(context.Background()))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Len(t, rec.drives, 3)
	assert.Len(t, rec.snaps, 3)
	assert.Len(t, rec.entries, 3)
	for key, entries := range rec.entries {
		assert.Len(t, entries, 1, "drive %s", key)
	}
}

func TestCycle_RepeatWithinSameSecondSkipsHistoryWrite(t *testing.T) {
	rec := newFakeRecorder()
	s := newTestScheduler(t, source.NewMock(42, 1), rec)

	require.NoError(t, s.cycle(context.Background()))
	require.NoError(t, s.cycle(context.Background()))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Len(t, rec.snaps, 2, "snapshot writes are keyed (ts, drive) and replace")
	total := 0
	for _, entries := range rec.entries {
		total += len(entries)
	}
	assert.Equal(t, 1, total, "an already-recorded cycle timestamp is not re-appended")
}

func TestCycle_RecorderErrorsAreNotFatal(t *testing.T) {
	rec := newFakeRecorder()
	rec.err = fmt.Errorf("disk full")
	s := newTestScheduler(t, source.NewMock(42, 2), rec)

	require.NoError(t, s.cycle(context.Background()))

	snap, ok := s.pub.Latest()
	require.True(t, ok)
	assert.Len(t, snap.Drives, 2)
}

// ---------------------------------------------------------------------------
// Seed
// ---------------------------------------------------------------------------

func TestSeed_PublishesRestoredStates(t *testing.T) {
	s := newTestScheduler(t, newStubSource(), nil)

	temp := 34
	poh := int64(9000)
	id := model.DriveIdentity{
		Key:       "AAA001|STUBDISK2TB",
		Serial:    "AAA-001",
		Model:     "Stub Disk 2TB",
		Interface: model.InterfaceSATA,
		Paths:     []string{"/dev/sda"},
	}
	restored := model.DriveState{
		Identity: id,
		Snapshot: &model.SmartSnapshot{
			Identity:  id,
			Timestamp: 1000,
			Attributes: []model.AttributeRecord{
				{ID: 5, Name: "Reallocated Sectors Count", RawValue: 3},
			},
			Temperature:  &temp,
			PowerOnHours: &poh,
		},
		FirstSeen: 500,
		LastSeen:  1000,
	}
	s.history.Load(id.Key, []model.HistoryEntry{
		{Timestamp: 900, Score: 86, Status: model.StatusGreen, Reallocated: 3},
		{Timestamp: 1000, Score: 86, Status: model.StatusGreen, Reallocated: 3},
	})

	s.Seed([]model.DriveState{restored})

	snap, ok := s.pub.Latest()
	require.True(t, ok)
	require.Len(t, snap.Drives, 1)
	d := snap.Drives[0]
	assert.True(t, d.Present)
	assert.False(t, d.Stale)
	assert.Len(t, d.History, 2)
	assert.Equal(t, model.TrendStable, d.Trend)
	assert.Equal(t, int64(500), d.FirstSeen)
	// Re-scored under the current policy, not trusted from disk: 13 for the
	// reallocated sectors plus a fraction for service life.
	assert.Equal(t, 86, d.Health.Score)
	assert.Equal(t, model.StatusGreen, d.Health.Status)
}

func TestSeed_ThenFirstCycleMarksMissingDriveAbsent(t *testing.T) {
	src := newStubSource()
	src.addDevice("/dev/sda", ataPayload("AAA-001", ataRow(5, "Reallocated_Sector_Ct", 0)))
	s := newTestScheduler(t, src, nil)

	gone := model.DriveIdentity{
		Key:       "GONE99|OLDDISK",
		Serial:    "GONE-99",
		Model:     "Old Disk",
		Interface: model.InterfaceSATA,
		Paths:     []string{"/dev/sdz"},
	}
	s.Seed([]model.DriveState{{Identity: gone, FirstSeen: 100, LastSeen: 200}})

	require.NoError(t, s.cycle(context.Background()))

	snap, _ := s.pub.Latest()
	require.Len(t, snap.Drives, 2)
	for _, d := range snap.Drives {
		switch d.Identity.Key {
		case "GONE99|OLDDISK":
			assert.False(t, d.Present, "restored drive that no longer answers is absent")
		default:
			assert.True(t, d.Present)
		}
	}
}

func TestSeed_EmptyIsNoop(t *testing.T) {
	s := newTestScheduler(t, newStubSource(), nil)
	s.Seed(nil)

	_, ok := s.pub.Latest()
	assert.False(t, ok)
}

// ---------------------------------------------------------------------------
// Run
// ---------------------------------------------------------------------------

func TestRun_ImmediateCycleThenCancel(t *testing.T) {
	s := newTestScheduler(t, source.NewMock(42, 2), nil)
	ch, unsubscribe := s.pub.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case snap := <-ch:
		assert.Len(t, snap.Drives, 2)
	case <-time.After(5 * time.Second):
		t.Fatal("no snapshot published by the immediate cycle")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after context cancel")
	}
	assert.Equal(t, StateShutdown, s.State())
}

func TestRun_ContinuesAfterCycleError(t *testing.T) {
	s := New(Config{
		PollInterval:  30 * time.Millisecond,
		DeviceTimeout: time.Second,
		CycleTimeout:  time.Second,
		MaxConcurrent: 2,
	}, newStubSource(), identity.NewResolver(), scoring.NewScorer(scoring.DefaultPolicy()),
		history.New(10, 5, 0.1), publish.New(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	// Every cycle errors (nothing to poll); the loop must keep running
	// until the context expires.
	err := s.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func TestClassifyFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want model.FailureKind
	}{
		{"timeout sentinel", source.ErrTimeout, model.FailTimeout},
		{"wrapped timeout", fmt.Errorf("querying: %w", source.ErrTimeout), model.FailTimeout},
		{"context deadline", context.DeadlineExceeded, model.FailTimeout},
		{"permission", source.ErrPermissionDenied, model.FailPermissionDenied},
		{"tool missing", source.ErrToolUnavailable, model.FailToolUnavailable},
		{"anything else", fmt.Errorf("device reset"), model.FailQuery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyFailure(tt.err))
		})
	}
}

func TestHistoryEntry_ATACounters(t *testing.T) {
	temp := 41
	poh := int64(7000)
	snap := &model.SmartSnapshot{
		Attributes: []model.AttributeRecord{
			{ID: 1, RawValue: 12},
			{ID: 5, RawValue: 7},
			{ID: 197, RawValue: 2},
			{ID: 198, RawValue: 1},
		},
		Temperature:  &temp,
		PowerOnHours: &poh,
	}

	e := historyEntry(1234, snap, model.HealthScore{Score: 80, Status: model.StatusGreen}, 12.5)
	assert.Equal(t, int64(1234), e.Timestamp)
	assert.Equal(t, 80, e.Score)
	assert.Equal(t, int64(7), e.Reallocated)
	assert.Equal(t, int64(2), e.Pending)
	assert.Equal(t, int64(1), e.Uncorrectable)
	assert.Equal(t, int64(12), e.ReadErrors)
	assert.Equal(t, int64(7000), e.PowerOnHours)
	assert.Equal(t, 41, e.Temperature)
	assert.Equal(t, 12.5, e.IOLoad)
}

func TestHistoryEntry_NVMeCounters(t *testing.T) {
	snap := &model.SmartSnapshot{
		Attributes: []model.AttributeRecord{
			{ID: smart.NVMeMediaErrors, RawValue: 4},
			{ID: smart.NVMeErrLogEntries, RawValue: 9},
		},
	}

	e := historyEntry(1, snap, model.HealthScore{}, 0)
	assert.Equal(t, int64(4), e.Uncorrectable, "media errors feed the uncorrectable column")
	assert.Equal(t, int64(9), e.ReadErrors)
	assert.Zero(t, e.Reallocated)
}

func TestHistoryEntry_SCSICounters(t *testing.T) {
	snap := &model.SmartSnapshot{
		Attributes: []model.AttributeRecord{
			{ID: smart.SCSIGrownDefects, RawValue: 5},
			{ID: smart.SCSIReadUncorrected, RawValue: 2},
			{ID: smart.SCSIWriteUncorrected, RawValue: 1},
			{ID: smart.SCSIVerifyUncorrected, RawValue: 1},
		},
	}

	e := historyEntry(1, snap, model.HealthScore{}, 0)
	assert.Equal(t, int64(5), e.Reallocated, "grown defects mirror reallocated sectors")
	assert.Equal(t, int64(4), e.Uncorrectable)
	assert.Equal(t, int64(2), e.ReadErrors)
}
