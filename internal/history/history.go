// Package history keeps the bounded per-drive time series behind trend
// detection.
package history

import (
	"slices"

	"github.com/cshoesmith/diskmonitor/internal/model"
)

// Store holds one bounded, append-only series per drive key. It is not safe
// for concurrent use: the poll cycle's aggregation step is the sole writer
// and reader; consumers see copies through the published state.
type Store struct {
	maxEntries  int
	trendWindow int
	noise       float64
	series      map[string][]model.HistoryEntry
}

// New builds a store retaining maxEntries per drive. Trend looks at the last
// trendWindow entries and ignores slopes within ±noise counts per cycle.
func New(maxEntries, trendWindow int, noise float64) *Store {
	if maxEntries <= 0 {
		maxEntries = 360
	}
	return &Store{
		maxEntries:  maxEntries,
		trendWindow: trendWindow,
		noise:       noise,
		series:      make(map[string][]model.HistoryEntry),
	}
}

// Append adds one entry to a drive's series and reports whether it was
// stored. Appending a timestamp the series already holds is a no-op, so
// re-ingesting a cycle cannot duplicate history. The oldest entry falls off
// once the retention count is exceeded.
func (s *Store) Append(key string, e model.HistoryEntry) bool {
	entries := s.series[key]
	for i := range entries {
		if entries[i].Timestamp == e.Timestamp {
			return false
		}
	}

	entries = append(entries, e)
	if len(entries) > s.maxEntries {
		entries = entries[len(entries)-s.maxEntries:]
	}
	s.series[key] = entries
	return true
}

// Window returns a copy of the retained series for a drive, oldest first.
func (s *Store) Window(key string) []model.HistoryEntry {
	return slices.Clone(s.series[key])
}

// Len returns the number of retained entries for a drive.
func (s *Store) Len(key string) int {
	return len(s.series[key])
}

// Load restores a series from persisted rows at startup. Rows are sorted by
// timestamp, de-duplicated, and bounded like live appends.
func (s *Store) Load(key string, entries []model.HistoryEntry) {
	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b model.HistoryEntry) int {
		switch {
		case a.Timestamp < b.Timestamp:
			return -1
		case a.Timestamp > b.Timestamp:
			return 1
		default:
			return 0
		}
	})

	kept := sorted[:0]
	var lastTS int64
	for i, e := range sorted {
		if i > 0 && e.Timestamp == lastTS {
			continue
		}
		kept = append(kept, e)
		lastTS = e.Timestamp
	}
	if len(kept) > s.maxEntries {
		kept = kept[len(kept)-s.maxEntries:]
	}
	s.series[key] = slices.Clone(kept)
}

// Trend classifies the drive's direction from the slope of its primary
// degradation counter: reallocated sectors for ATA-family drives, media
// errors for NVMe. The slope is least-squares over the trend window with x
// in cycle index units.
func (s *Store) Trend(key string, iface model.Interface) model.Trend {
	entries := s.series[key]
	if s.trendWindow > 1 && len(entries) > s.trendWindow {
		entries = entries[len(entries)-s.trendWindow:]
	}
	if len(entries) < 2 {
		return model.TrendUnknown
	}

	slope := fitSlope(entries, counterFor(iface))
	switch {
	case slope > s.noise:
		return model.TrendDegrading
	case slope < -s.noise:
		return model.TrendImproving
	default:
		return model.TrendStable
	}
}

func counterFor(iface model.Interface) func(model.HistoryEntry) float64 {
	if iface == model.InterfaceNVMe {
		return func(e model.HistoryEntry) float64 { return float64(e.Uncorrectable) }
	}
	return func(e model.HistoryEntry) float64 { return float64(e.Reallocated) }
}

// fitSlope is the least-squares slope of y over x = 0..n-1.
func fitSlope(entries []model.HistoryEntry, y func(model.HistoryEntry) float64) float64 {
	n := float64(len(entries))

	var sumX, sumY float64
	for i, e := range entries {
		sumX += float64(i)
		sumY += y(e)
	}
	meanX := sumX / n
	meanY := sumY / n

	var num, den float64
	for i, e := range entries {
		dx := float64(i) - meanX
		num += dx * (y(e) - meanY)
		den += dx * dx
	}
	if den == 0 {
		return 0
	}
	return num / den
}
