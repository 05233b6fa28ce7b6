package stats

import "sync"

// PointsLedger tracks per-assignee point balances. Unlike the statistics
// counters, the ledger does see undo: awards are applied on approval and
// reclaimed when an approval is undone. The full reward economy lives
// outside the engine; this is only the balance the engine must keep
// consistent under concurrent approvals.
type PointsLedger struct {
	mu       sync.RWMutex
	balances map[string]int
}

func NewPointsLedger() *PointsLedger {
	return &PointsLedger{balances: make(map[string]int)}
}

// Apply adds delta (which may be negative) to the assignee's balance.
func (l *PointsLedger) Apply(assigneeID string, delta int) {
	if delta == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[assigneeID] += delta
}

func (l *PointsLedger) Balance(assigneeID string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[assigneeID]
}

func (l *PointsLedger) Snapshot() map[string]int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]int, len(l.balances))
	for id, n := range l.balances {
		out[id] = n
	}
	return out
}
