// Package scheduler runs the poll loop: enumerate drives, fan out queries
// under a concurrency bound, aggregate results single-threaded, publish one
// immutable snapshot per cycle, then persist.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/cshoesmith/diskmonitor/internal/history"
	"github.com/cshoesmith/diskmonitor/internal/identity"
	"github.com/cshoesmith/diskmonitor/internal/model"
	"github.com/cshoesmith/diskmonitor/internal/publish"
	"github.com/cshoesmith/diskmonitor/internal/scoring"
	"github.com/cshoesmith/diskmonitor/internal/smart"
	"github.com/cshoesmith/diskmonitor/internal/source"
)

// State is the scheduler's observable position in its cycle.
type State int32

const (
	StateIdle State = iota
	StatePolling
	StateAggregating
	StatePublished
	StateShutdown
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateAggregating:
		return "aggregating"
	case StatePublished:
		return "published"
	case StateShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Config bounds the poll loop.
type Config struct {
	PollInterval  time.Duration
	DeviceTimeout time.Duration
	CycleTimeout  time.Duration
	MaxConcurrent int
}

// WorkerPool bounds concurrent device queries across a cycle.
type WorkerPool struct {
	sem chan struct{}
}

// NewWorkerPool creates a worker pool with the given max concurrent workers.
func NewWorkerPool(maxWorkers int) *WorkerPool {
	return &WorkerPool{sem: make(chan struct{}, maxWorkers)}
}

// Submit runs fn in the pool, blocking if all workers are busy.
// Returns ctx.Err() if context is cancelled while waiting.
func (p *WorkerPool) Submit(ctx context.Context, fn func()) error {
	select {
	case p.sem <- struct{}{}:
		go func() {
			defer func() { <-p.sem }()
			fn()
		}()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recorder persists what a cycle produced. A nil Recorder runs the monitor
// memory-only; tests and --no-db setups use that.
type Recorder interface {
	UpsertDrive(id model.DriveIdentity, firstSeen, lastSeen int64) error
	InsertHistoryEntry(driveKey string, e model.HistoryEntry) error
	InsertSnapshot(snap *model.SmartSnapshot) error
}

// Scheduler owns the drive registry and the poll cycle that updates it. All
// registry writes happen on the cycle goroutine; everything else observes
// through the publisher or the atomic state/lastCycle accessors.
type Scheduler struct {
	cfg      Config
	src      source.Source
	resolver *identity.Resolver
	scorer   *scoring.Scorer
	history  *history.Store
	pub      *publish.Publisher
	rec      Recorder
	pool     *WorkerPool
	io       *ioSampler

	state     atomic.Int32
	lastCycle atomic.Int64

	registry map[string]*model.DriveState
}

// New wires a scheduler. rec may be nil to disable persistence.
func New(cfg Config, src source.Source, res *identity.Resolver, scorer *scoring.Scorer,
	hist *history.Store, pub *publish.Publisher, rec Recorder) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		src:      src,
		resolver: res,
		scorer:   scorer,
		history:  hist,
		pub:      pub,
		rec:      rec,
		pool:     NewWorkerPool(cfg.MaxConcurrent),
		io:       newIOSampler(),
		registry: make(map[string]*model.DriveState),
	}
}

// State returns the current cycle state.
func (s *Scheduler) State() State { return State(s.state.Load()) }

// LastCycle returns when the most recent cycle completed, zero before the
// first one.
func (s *Scheduler) LastCycle() time.Time {
	ts := s.lastCycle.Load()
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0)
}

// SourceKind names the active snapshot source.
func (s *Scheduler) SourceKind() string { return s.src.Kind() }

func (s *Scheduler) setState(st State) {
	old := State(s.state.Swap(int32(st)))
	if old != st {
		slog.Debug("scheduler state", "from", old.String(), "to", st.String())
	}
}

// Seed restores drive states persisted by an earlier run and publishes them,
// so consumers see data before the first live cycle finishes. Snapshots are
// re-scored under the current policy; history windows must already be loaded
// into the history store. Call before Run.
func (s *Scheduler) Seed(states []model.DriveState) {
	if len(states) == 0 {
		return
	}

	for i := range states {
		st := states[i].Clone()
		key := st.Identity.Key
		if key == "" {
			continue
		}
		s.resolver.Seed(st.Identity)
		if st.Snapshot != nil {
			st.Health = s.scorer.Score(st.Snapshot)
		}
		st.History = s.history.Window(key)
		st.Trend = s.history.Trend(key, st.Identity.Interface)
		st.Present = true
		st.Stale = false
		st.Failure = model.FailNone
		st.ConsecutiveFailures = 0
		s.registry[key] = &st
	}

	drives := s.sortedStates()
	s.pub.Publish(model.StatusSnapshot{
		CycleID:   uuid.NewString(),
		Timestamp: time.Now().Unix(),
		Macro:     model.MacroStatus(drives),
		Drives:    drives,
	})
	slog.Info("restored drive states", "drives", len(drives))
}

// Run executes an immediate first cycle, then one per poll interval. It
// blocks until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.Info("scheduler started", "interval", s.cfg.PollInterval, "source", s.src.Kind())

	if err := s.cycle(ctx); err != nil {
		slog.Error("poll cycle failed", "error", err)
	}

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.setState(StateShutdown)
			slog.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.cycle(ctx); err != nil {
				slog.Error("poll cycle failed", "error", err)
			}
		}
	}
}

// queryResult carries one device's outcome through a cycle.
type queryResult struct {
	dev     source.Device
	scanned bool   // device came from this cycle's enumeration
	forKey  string // courtesy probes: the drive this was issued for
	snap    *model.SmartSnapshot
	failure model.FailureKind
	err     error
}

func (s *Scheduler) cycle(ctx context.Context) error {
	s.setState(StatePolling)
	defer s.setState(StateIdle)

	cycleID := uuid.NewString()
	start := time.Now()
	ts := start.Unix()

	cctx := ctx
	if s.cfg.CycleTimeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, s.cfg.CycleTimeout)
		defer cancel()
	}

	devices, err := s.src.Enumerate(cctx)
	if err != nil {
		slog.Error("device enumeration failed", "cycle", cycleID, "error", err)
	}

	// Plan the cycle's queries: everything enumerated, plus one courtesy
	// probe via the last known path of each known drive the scan missed. A
	// drive is only marked not-present after that probe also fails.
	plan := make([]queryResult, 0, len(devices)+len(s.registry))
	planned := make(map[string]bool, len(devices))
	for _, dev := range devices {
		if planned[dev.Path] {
			continue
		}
		planned[dev.Path] = true
		plan = append(plan, queryResult{dev: dev, scanned: true})
	}
	for _, key := range slices.Sorted(maps.Keys(s.registry)) {
		path := lastPath(s.registry[key].Identity.Paths)
		if path == "" || planned[path] {
			continue
		}
		planned[path] = true
		plan = append(plan, queryResult{dev: source.Device{Path: path}, forKey: key})
	}

	if len(plan) == 0 && len(s.registry) == 0 {
		return fmt.Errorf("cycle %s: no devices enumerated and no known drives", cycleID)
	}

	results := make(map[string]*queryResult, len(plan))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := range plan {
		q := plan[i]
		wg.Add(1)
		if err := s.pool.Submit(cctx, func() {
			defer wg.Done()
			s.query(cctx, &q)
			mu.Lock()
			results[q.dev.Path] = &q
			mu.Unlock()
		}); err != nil {
			wg.Done()
			slog.Warn("query submission aborted", "cycle", cycleID, "device", q.dev.Path, "error", err)
			break
		}
	}

	// Wait bounded by the cycle deadline. Stragglers keep running until
	// their device timeout fires but the cycle moves on without them.
	waitDone := make(chan struct{})
	go func() { wg.Wait(); close(waitDone) }()
	select {
	case <-waitDone:
	case <-cctx.Done():
	}

	s.setState(StateAggregating)

	// Snapshot the results map; straggler writes after this point land in
	// the abandoned map and are dropped.
	mu.Lock()
	gathered := make(map[string]*queryResult, len(plan))
	maps.Copy(gathered, results)
	mu.Unlock()
	for i := range plan {
		q := plan[i]
		if _, ok := gathered[q.dev.Path]; ok {
			continue
		}
		q.failure = model.FailTimeout
		q.err = source.ErrTimeout
		gathered[q.dev.Path] = &q
	}

	// Successful queries first: resolve identities and dedup. A drive seen
	// through two paths this cycle keeps the richer attribute set.
	best := make(map[string]*queryResult)
	conflicts := make(map[string]int)
	for i := range plan {
		q := gathered[plan[i].dev.Path]
		if q.snap == nil {
			continue
		}
		res := s.resolver.Resolve(q.snap)
		if res.Conflict {
			conflicts[res.Key]++
		}
		if prev, ok := best[res.Key]; ok && len(q.snap.Attributes) <= len(prev.snap.Attributes) {
			continue
		}
		best[res.Key] = q
	}

	queried := make([]string, 0, len(best))
	for _, q := range best {
		queried = append(queried, q.dev.Path)
	}
	ioLoads := s.io.Sample(cctx, queried)

	pending := make(map[string]model.HistoryEntry, len(best))
	for _, key := range slices.Sorted(maps.Keys(best)) {
		q := best[key]
		snap := q.snap
		snap.Timestamp = ts

		st, ok := s.registry[key]
		if !ok {
			st = &model.DriveState{FirstSeen: ts}
			s.registry[key] = st
		}
		st.Identity = snap.Identity
		st.Snapshot = snap
		st.Health = s.scorer.Score(snap)
		st.Stale = false
		st.Failure = model.FailNone
		st.ConsecutiveFailures = 0
		st.Present = true
		st.LastSeen = ts
		st.IdentityConflicts += conflicts[key]

		entry := historyEntry(ts, snap, st.Health, ioLoads[q.dev.Path])
		if s.history.Append(key, entry) {
			pending[key] = entry
		}
		st.History = s.history.Window(key)
		st.Trend = s.history.Trend(key, snap.Identity.Interface)
	}

	// Failures second, so a drive that succeeded through another path this
	// cycle is not demoted by one bad probe.
	for i := range plan {
		q := gathered[plan[i].dev.Path]
		if q.snap != nil {
			continue
		}

		key := q.forKey
		if key == "" {
			if k, ok := s.resolver.KeyForPath(q.dev.Path); ok {
				key = k
			}
		}
		st, known := s.registry[key]
		if key == "" || !known {
			slog.Warn("query failed for unknown device",
				"cycle", cycleID, "device", q.dev.Path, "kind", string(q.failure), "error", q.err)
			continue
		}
		if _, succeeded := best[key]; succeeded {
			continue
		}

		if q.scanned {
			st.Stale = true
			st.Failure = q.failure
			st.ConsecutiveFailures++
			st.Present = true
			slog.Warn("device query failed",
				"cycle", cycleID, "device", q.dev.Path, "drive", key,
				"kind", string(q.failure), "failures", st.ConsecutiveFailures, "error", q.err)
		} else {
			st.Present = false
			slog.Info("drive no longer enumerated", "cycle", cycleID, "drive", key, "last_path", q.dev.Path)
		}
	}

	drives := s.sortedStates()
	macro := model.MacroStatus(drives)

	s.setState(StatePublished)
	s.pub.Publish(model.StatusSnapshot{
		CycleID:   cycleID,
		Timestamp: ts,
		Macro:     macro,
		Drives:    drives,
	})

	// Published state first, persistence second: a slow disk write must not
	// delay consumers.
	if s.rec != nil {
		for _, key := range slices.Sorted(maps.Keys(best)) {
			st := s.registry[key]
			if err := s.rec.UpsertDrive(st.Identity, st.FirstSeen, st.LastSeen); err != nil {
				slog.Error("storing drive", "drive", key, "error", err)
			}
			if err := s.rec.InsertSnapshot(st.Snapshot); err != nil {
				slog.Error("storing snapshot", "drive", key, "error", err)
			}
			if entry, ok := pending[key]; ok {
				if err := s.rec.InsertHistoryEntry(key, entry); err != nil {
					slog.Error("storing history entry", "drive", key, "error", err)
				}
			}
		}
	}

	s.lastCycle.Store(ts)
	slog.Debug("poll cycle complete",
		"cycle", cycleID, "drives", len(drives), "queried", len(plan),
		"macro", macro.String(), "duration", time.Since(start))
	return nil
}

// query fetches and parses one device. The per-device timeout nests inside
// the cycle deadline, so the effective bound is whichever is nearer.
func (s *Scheduler) query(ctx context.Context, q *queryResult) {
	qctx, cancel := context.WithTimeout(ctx, s.cfg.DeviceTimeout)
	defer cancel()

	raw, err := s.src.Snapshot(qctx, q.dev)
	if err != nil {
		q.err = err
		q.failure = classifyFailure(err)
		return
	}

	snap, err := smart.ParseSnapshot(q.dev.Path, raw)
	if err != nil {
		q.err = err
		q.failure = model.FailParse
		return
	}
	q.snap = snap
}

// classifyFailure maps a query error onto the failure kinds staleness
// reporting distinguishes.
func classifyFailure(err error) model.FailureKind {
	switch {
	case errors.Is(err, source.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return model.FailTimeout
	case errors.Is(err, source.ErrPermissionDenied):
		return model.FailPermissionDenied
	case errors.Is(err, source.ErrToolUnavailable):
		return model.FailToolUnavailable
	default:
		return model.FailQuery
	}
}

// historyEntry extracts the per-cycle counters trend math works over. SCSI
// drives feed their grown defect list into the reallocated column; NVMe
// media errors land in uncorrectable.
func historyEntry(ts int64, snap *model.SmartSnapshot, h model.HealthScore, ioLoad float64) model.HistoryEntry {
	e := model.HistoryEntry{Timestamp: ts, Score: h.Score, Status: h.Status, IOLoad: ioLoad}

	if a := snap.Attribute(5); a != nil {
		e.Reallocated = a.RawValue
	} else if a := snap.Attribute(smart.SCSIGrownDefects); a != nil {
		e.Reallocated = a.RawValue
	}
	if a := snap.Attribute(197); a != nil {
		e.Pending = a.RawValue
	}
	if a := snap.Attribute(198); a != nil {
		e.Uncorrectable = a.RawValue
	} else if a := snap.Attribute(smart.NVMeMediaErrors); a != nil {
		e.Uncorrectable = a.RawValue
	} else {
		for _, id := range []int{smart.SCSIReadUncorrected, smart.SCSIWriteUncorrected, smart.SCSIVerifyUncorrected} {
			if a := snap.Attribute(id); a != nil {
				e.Uncorrectable += a.RawValue
			}
		}
	}
	if a := snap.Attribute(1); a != nil {
		e.ReadErrors = a.RawValue
	} else if a := snap.Attribute(smart.NVMeErrLogEntries); a != nil {
		e.ReadErrors = a.RawValue
	} else if a := snap.Attribute(smart.SCSIReadUncorrected); a != nil {
		e.ReadErrors = a.RawValue
	}
	if snap.PowerOnHours != nil {
		e.PowerOnHours = *snap.PowerOnHours
	}
	if snap.Temperature != nil {
		e.Temperature = *snap.Temperature
	}
	return e
}

// sortedStates returns shallow copies of the registry ordered by key.
// Publisher cloning detaches them before anything outside the cycle reads.
func (s *Scheduler) sortedStates() []model.DriveState {
	drives := make([]model.DriveState, 0, len(s.registry))
	for _, key := range slices.Sorted(maps.Keys(s.registry)) {
		drives = append(drives, *s.registry[key])
	}
	return drives
}

func lastPath(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	return paths[len(paths)-1]
}
