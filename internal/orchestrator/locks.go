package orchestrator

import (
	"sync"
	"time"
)

// keyedLocks provides per-key mutual exclusion for workflow execution.
// Independent instances lock on "choreID/assigneeID"; shared and
// shared-first chores lock on the chore ID alone, since all assignees share
// one logical instance.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[string]*sync.Mutex)}
}

func (k *keyedLocks) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	return m
}

// Lock blocks until the per-key mutex is held.
func (k *keyedLocks) Lock(key string) {
	k.get(key).Lock()
}

func (k *keyedLocks) Unlock(key string) {
	k.mu.Lock()
	m, ok := k.locks[key]
	k.mu.Unlock()
	if ok {
		m.Unlock()
	}
}

// TryLockWait attempts to acquire the per-key mutex within the given wait
// budget. The scanner uses it so one contended chore cannot stall a sweep;
// a false return means "skip and retry next pass".
func (k *keyedLocks) TryLockWait(key string, wait time.Duration) bool {
	m := k.get(key)
	deadline := time.Now().Add(wait)
	for {
		if m.TryLock() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(5 * time.Millisecond)
	}
}
