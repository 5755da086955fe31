// Package cache holds the dashboard's view of the host: the latest polled
// status and a bounded history, guarded for one writer and many readers.
package cache

import (
	"sync"
	"time"

	"github.com/darshan-rambhia/hostwatch/internal/model"
)

// DefaultHistorySize is the number of history records kept when none is
// configured.
const DefaultHistorySize = 100

// Cache is a thread-safe in-memory store for polled status data.
type Cache struct {
	mu sync.RWMutex

	capacity int
	status   *model.ClassificationResult
	history  []model.HistoryRecord // oldest first

	lastPoll            time.Time
	lastError           string
	lastFailure         time.Time
	consecutiveFailures int
}

// Snapshot is a read-only deep copy of the cache state.
type Snapshot struct {
	Status              *model.ClassificationResult
	History             []model.HistoryRecord // oldest first
	LastPoll            time.Time
	LastError           string
	LastFailure         time.Time
	ConsecutiveFailures int
}

// Available reports whether any status has been received.
func (s Snapshot) Available() bool { return s.Status != nil }

// Degraded reports whether the most recent poll failed.
func (s Snapshot) Degraded() bool { return s.ConsecutiveFailures > 0 }

// New returns a Cache keeping at most capacity history records.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &Cache{
		capacity: capacity,
		history:  make([]model.HistoryRecord, 0, capacity),
	}
}

// Capacity returns the history bound.
func (c *Cache) Capacity() int { return c.capacity }

// Update replaces the current status and appends rec to the history,
// evicting the oldest record once the history is full. Both changes become
// visible to readers together.
func (c *Cache) Update(status model.ClassificationResult, rec model.HistoryRecord, at time.Time) {
	st := status.Clone()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.status = &st
	if len(c.history) == c.capacity {
		copy(c.history, c.history[1:])
		c.history = c.history[:c.capacity-1]
	}
	c.history = append(c.history, rec)
	c.lastPoll = at
	c.lastError = ""
	c.consecutiveFailures = 0
}

// RecordFailure notes a failed poll. The current status and history are left
// untouched.
func (c *Cache) RecordFailure(err error, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastError = err.Error()
	c.lastFailure = at
	c.consecutiveFailures++
}

// Snapshot returns a deep copy of the cache contents.
func (c *Cache) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := Snapshot{
		History:             make([]model.HistoryRecord, len(c.history)),
		LastPoll:            c.lastPoll,
		LastError:           c.lastError,
		LastFailure:         c.lastFailure,
		ConsecutiveFailures: c.consecutiveFailures,
	}
	copy(snap.History, c.history)
	if c.status != nil {
		st := c.status.Clone()
		snap.Status = &st
	}
	return snap
}
