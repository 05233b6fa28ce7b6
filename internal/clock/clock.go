// Package clock provides an injectable time source so boundary and
// eligibility logic stays deterministic under test.
package clock

import (
	"sync"
	"time"
)

// Clock is the only way engine code reads the current time.
type Clock interface {
	Now() time.Time
}

// System reads the wall clock.
type System struct{}

func NewSystem() *System { return &System{} }

func (*System) Now() time.Time { return time.Now() }

// Fake is a settable clock for tests.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

func NewFake(now time.Time) *Fake {
	return &Fake{now: now}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) Set(now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = now
}

func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}
