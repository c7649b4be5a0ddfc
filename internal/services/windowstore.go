package services

import (
	"demand-pipeline/internal/models"
)

// DefaultMaxWindowSize bounds per-region history at one week of hourly
// readings.
const DefaultMaxWindowSize = 168

// WindowStore maintains a bounded, ordered history of readings per region.
// It is the only mutable state in the pipeline and is not safe for
// concurrent writers: the driver owns it exclusively.
//
// Upsert semantics make the store idempotent under at-least-once delivery
// of the latest record: a redelivered or corrected reading for the same
// (timestamp, region) window replaces the stored tail instead of growing
// the history.
type WindowStore struct {
	maxSize   int
	histories map[string][]*models.Reading
}

// NewWindowStore creates a store with the given per-region capacity.
// A non-positive capacity falls back to DefaultMaxWindowSize.
func NewWindowStore(maxSize int) *WindowStore {
	if maxSize <= 0 {
		maxSize = DefaultMaxWindowSize
	}
	return &WindowStore{
		maxSize:   maxSize,
		histories: make(map[string][]*models.Reading),
	}
}

// Upsert merges a reading into its region's history and returns the same
// reading. If the reading shares a window with the stored tail it replaces
// it in place; otherwise it is appended and, when capacity is exceeded, the
// oldest element is evicted. Replacement never triggers eviction because it
// does not grow the history.
func (s *WindowStore) Upsert(reading *models.Reading) *models.Reading {
	history := s.histories[reading.Region]

	switch {
	case len(history) == 0:
		history = append(history, reading)
	case reading.SameWindow(history[len(history)-1]):
		history[len(history)-1] = reading
	default:
		history = append(history, reading)
	}

	if len(history) > s.maxSize {
		history[0] = nil // release the evicted reading
		history = history[1:]
	}

	s.histories[reading.Region] = history
	return reading
}

// History returns a snapshot of a region's readings, oldest first.
// Unknown regions yield an empty slice. The returned slice is a copy so
// callers cannot disturb eviction order.
func (s *WindowStore) History(region string) []*models.Reading {
	history := s.histories[region]
	if len(history) == 0 {
		return nil
	}
	out := make([]*models.Reading, len(history))
	copy(out, history)
	return out
}

// Len returns the current history length for a region.
func (s *WindowStore) Len(region string) int {
	return len(s.histories[region])
}

// Regions returns the number of regions with at least one stored reading.
func (s *WindowStore) Regions() int {
	return len(s.histories)
}
