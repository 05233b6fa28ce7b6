package orchestrator

import (
	"sort"
	"sync"

	"github.com/choreguild/choreguild/internal/chore"
	"github.com/choreguild/choreguild/internal/engine"
)

// instanceTable is the in-memory working set of instances. All reads and
// writes go through clones so callers can never mutate table state outside
// a workflow lock.
type instanceTable struct {
	mu      sync.RWMutex
	byChore map[string]map[string]*chore.Instance
}

func newInstanceTable() *instanceTable {
	return &instanceTable{byChore: make(map[string]map[string]*chore.Instance)}
}

func (t *instanceTable) load(instances []*chore.Instance) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byChore = make(map[string]map[string]*chore.Instance, len(instances))
	for _, inst := range instances {
		m, ok := t.byChore[inst.ChoreID]
		if !ok {
			m = make(map[string]*chore.Instance)
			t.byChore[inst.ChoreID] = m
		}
		m[inst.AssigneeID] = inst.Clone()
	}
}

func (t *instanceTable) get(choreID, assigneeID string) *chore.Instance {
	t.mu.RLock()
	defer t.mu.RUnlock()
	inst, ok := t.byChore[choreID][assigneeID]
	if !ok {
		return nil
	}
	return inst.Clone()
}

func (t *instanceTable) put(instances ...*chore.Instance) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, inst := range instances {
		m, ok := t.byChore[inst.ChoreID]
		if !ok {
			m = make(map[string]*chore.Instance)
			t.byChore[inst.ChoreID] = m
		}
		m[inst.AssigneeID] = inst.Clone()
	}
}

func (t *instanceTable) listChore(choreID string) []*chore.Instance {
	t.mu.RLock()
	defer t.mu.RUnlock()
	m := t.byChore[choreID]
	out := make([]*chore.Instance, 0, len(m))
	for _, inst := range m {
		out = append(out, inst.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssigneeID < out[j].AssigneeID })
	return out
}

func (t *instanceTable) list() []*chore.Instance {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []*chore.Instance
	for _, m := range t.byChore {
		for _, inst := range m {
			out = append(out, inst.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// snapshot builds the pure-engine view of one chore's assignee states.
func (t *instanceTable) snapshot(choreID string) engine.Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	snap := make(engine.Snapshot)
	for assigneeID, inst := range t.byChore[choreID] {
		snap[assigneeID] = engine.AssigneeState{State: inst.State, ClaimedBy: inst.ClaimedBy}
	}
	return snap
}

func (t *instanceTable) deleteChore(choreID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byChore, choreID)
}

// definitionTable holds the current chore definitions, replaced wholesale on
// reload so in-flight workflows keep a consistent view of the copy they read.
type definitionTable struct {
	mu    sync.RWMutex
	byID  map[string]*chore.Definition
	order []string
}

func newDefinitionTable() *definitionTable {
	return &definitionTable{byID: make(map[string]*chore.Definition)}
}

func (t *definitionTable) replace(defs []*chore.Definition) {
	byID := make(map[string]*chore.Definition, len(defs))
	order := make([]string, 0, len(defs))
	for _, def := range defs {
		byID[def.ID] = def
		order = append(order, def.ID)
	}
	sort.Strings(order)
	t.mu.Lock()
	t.byID = byID
	t.order = order
	t.mu.Unlock()
}

func (t *definitionTable) get(id string) *chore.Definition {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.byID[id]
}

func (t *definitionTable) list() []*chore.Definition {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*chore.Definition, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.byID[id])
	}
	return out
}
