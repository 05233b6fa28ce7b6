package chore

import "time"

// State is the lifecycle state of one (chore, assignee) instance.
type State string

const (
	StatePending          State = "PENDING"
	StateClaimed          State = "CLAIMED"
	StateApproved         State = "APPROVED"
	StateOverdue          State = "OVERDUE"
	StateSkipped          State = "SKIPPED"
	StateCompletedByOther State = "COMPLETED_BY_OTHER"
)

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case StatePending, StateClaimed, StateApproved, StateOverdue, StateSkipped, StateCompletedByOther:
		return true
	default:
		return false
	}
}

// Instance is the live lifecycle record for one (chore, assignee) pair.
// Shared criteria keep one record per assignee too; the transition engine
// moves them together so they act as a single logical instance.
type Instance struct {
	ChoreID    string `yaml:"chore_id" json:"chore_id"`
	AssigneeID string `yaml:"assignee_id" json:"assignee_id"`
	State      State  `yaml:"state" json:"state"`

	DueAt           *time.Time `yaml:"due_at,omitempty" json:"due_at,omitempty"`
	ClaimedAt       *time.Time `yaml:"claimed_at,omitempty" json:"claimed_at,omitempty"`
	ClaimedBy       string     `yaml:"claimed_by,omitempty" json:"claimed_by,omitempty"`
	ApprovedAt      *time.Time `yaml:"approved_at,omitempty" json:"approved_at,omitempty"`
	ApprovedBy      string     `yaml:"approved_by,omitempty" json:"approved_by,omitempty"`
	LastCompletedAt *time.Time `yaml:"last_completed_at,omitempty" json:"last_completed_at,omitempty"`

	// PeriodStart marks when the current approval period began. It is
	// monotonically non-decreasing and is the sole basis for "already
	// approved this period" checks.
	PeriodStart time.Time `yaml:"period_start" json:"period_start"`

	CreatedAt time.Time `yaml:"created_at" json:"created_at"`
	UpdatedAt time.Time `yaml:"updated_at" json:"updated_at"`
}

// NewInstance creates a fresh PENDING instance.
func NewInstance(choreID, assigneeID string, dueAt *time.Time, now time.Time) *Instance {
	return &Instance{
		ChoreID:     choreID,
		AssigneeID:  assigneeID,
		State:       StatePending,
		DueAt:       dueAt,
		PeriodStart: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Key identifies the instance within the state table.
func (i *Instance) Key() string {
	return i.ChoreID + "/" + i.AssigneeID
}

// ApprovedThisPeriod reports whether the last approval falls inside the
// current approval period. It never consults the wall clock.
func (i *Instance) ApprovedThisPeriod() bool {
	return i.ApprovedAt != nil && !i.ApprovedAt.Before(i.PeriodStart)
}

// PastDue reports whether the instance's due timestamp (plus the grace
// window) has passed at the given instant.
func (i *Instance) PastDue(now time.Time, window time.Duration) bool {
	return i.DueAt != nil && now.After(i.DueAt.Add(window))
}

// Clone returns a deep copy so callers never share mutable references
// across workflow boundaries.
func (i *Instance) Clone() *Instance {
	c := *i
	c.DueAt = cloneTime(i.DueAt)
	c.ClaimedAt = cloneTime(i.ClaimedAt)
	c.ApprovedAt = cloneTime(i.ApprovedAt)
	c.LastCompletedAt = cloneTime(i.LastCompletedAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
