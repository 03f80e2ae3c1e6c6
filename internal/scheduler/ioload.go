package scheduler

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/disk"
)

// ioSampler turns OS I/O counter deltas into a per-drive utilization
// percentage. One read per cycle covers every drive.
type ioSampler struct {
	read   func(ctx context.Context) (map[string]disk.IOCountersStat, error)
	prev   map[string]uint64 // device name -> cumulative io-time ms
	prevAt time.Time
}

func newIOSampler() *ioSampler {
	return &ioSampler{
		read: func(ctx context.Context) (map[string]disk.IOCountersStat, error) {
			return disk.IOCountersWithContext(ctx)
		},
		prev: make(map[string]uint64),
	}
}

// Sample returns the utilization percentage per device path since the last
// call. The first call primes the counters and reports zero; paths without a
// matching OS counter (mock drives, containers) stay at zero.
func (s *ioSampler) Sample(ctx context.Context, paths []string) map[string]float64 {
	loads := make(map[string]float64, len(paths))
	for _, p := range paths {
		loads[p] = 0
	}

	counters, err := s.read(ctx)
	if err != nil {
		slog.Debug("reading io counters", "error", err)
		return loads
	}

	now := time.Now()
	elapsedMs := now.Sub(s.prevAt).Milliseconds()
	cur := make(map[string]uint64, len(paths))

	for _, p := range paths {
		name, ioTime := matchCounter(counters, strings.TrimPrefix(p, "/dev/"))
		if name == "" {
			continue
		}
		cur[name] = ioTime

		before, ok := s.prev[name]
		if !ok || s.prevAt.IsZero() || elapsedMs <= 0 || ioTime < before {
			continue // unprimed, or the counter reset
		}
		loads[p] = min(float64(ioTime-before)/float64(elapsedMs)*100, 100)
	}

	s.prev = cur
	s.prevAt = now
	return loads
}

// matchCounter finds the counter for a device base name. NVMe controller
// paths (nvme0) match their namespace counters (nvme0n1); the busiest
// namespace wins.
func matchCounter(counters map[string]disk.IOCountersStat, base string) (string, uint64) {
	if c, ok := counters[base]; ok {
		return base, c.IoTime
	}

	var name string
	var best uint64
	for n, c := range counters {
		if strings.HasPrefix(n, base) && (name == "" || c.IoTime > best) {
			name, best = n, c.IoTime
		}
	}
	return name, best
}
