// Package stats receives the single counters the lifecycle engine emits.
// Aggregation beyond these counters belongs to external consumers.
package stats

import (
	"sync"
	"time"
)

// Category names a counted lifecycle transition.
type Category string

const (
	CategoryClaimed     Category = "claimed"
	CategoryApproved    Category = "approved"
	CategoryDisapproved Category = "disapproved"
	CategoryOverdue     Category = "overdue"
	CategoryReset       Category = "reset"
	CategorySkipped     Category = "skipped"
)

// Recorder receives counter increments for effects flagged count=true.
// It is never called for undo.
type Recorder interface {
	Record(assigneeID string, category Category, delta int, at time.Time)
}

// Memory is an in-process Recorder keeping per-assignee counters.
type Memory struct {
	mu     sync.RWMutex
	counts map[string]map[Category]int
}

func NewMemory() *Memory {
	return &Memory{counts: make(map[string]map[Category]int)}
}

func (m *Memory) Record(assigneeID string, category Category, delta int, _ time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byCat, ok := m.counts[assigneeID]
	if !ok {
		byCat = make(map[Category]int)
		m.counts[assigneeID] = byCat
	}
	byCat[category] += delta
}

// Count returns one counter value.
func (m *Memory) Count(assigneeID string, category Category) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counts[assigneeID][category]
}

// Snapshot copies all counters.
func (m *Memory) Snapshot() map[string]map[Category]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]map[Category]int, len(m.counts))
	for id, byCat := range m.counts {
		copied := make(map[Category]int, len(byCat))
		for c, n := range byCat {
			copied[c] = n
		}
		out[id] = copied
	}
	return out
}
