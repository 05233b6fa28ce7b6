package chore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/choreguild/choreguild/internal/recurrence"
)

func validDef() *Definition {
	return &Definition{
		ID:                 "dishes",
		Name:               "Dishes",
		Schedule:           recurrence.Spec{Frequency: recurrence.FreqDaily},
		AssigneeIDs:        []string{"alice", "bob"},
		Criteria:           CriteriaIndependent,
		ResetTiming:        ResetAtMidnight,
		OverduePolicy:      OverdueHold,
		PendingClaimPolicy: PendingHold,
		Points:             5,
	}
}

func TestDefinitionValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Definition)
	}{
		{"empty id", func(d *Definition) { d.ID = "" }},
		{"no assignees", func(d *Definition) { d.AssigneeIDs = nil }},
		{"empty assignee", func(d *Definition) { d.AssigneeIDs = []string{""} }},
		{"duplicate assignee", func(d *Definition) { d.AssigneeIDs = []string{"alice", "alice"} }},
		{"unknown criteria", func(d *Definition) { d.Criteria = "majority" }},
		{"unknown reset timing", func(d *Definition) { d.ResetTiming = "weekly" }},
		{"unknown overdue policy", func(d *Definition) { d.OverduePolicy = "escalate" }},
		{"unknown pending policy", func(d *Definition) { d.PendingClaimPolicy = "ask" }},
		{"negative points", func(d *Definition) { d.Points = -1 }},
		{"negative window", func(d *Definition) { d.DueWindow = -time.Minute }},
		{"bad schedule", func(d *Definition) { d.Schedule = recurrence.Spec{Frequency: "sometimes"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := validDef()
			tt.mutate(def)
			assert.Error(t, def.Validate())
		})
	}

	assert.NoError(t, validDef().Validate())
}

func TestResetTimingFamilies(t *testing.T) {
	assert.True(t, ResetAtMidnight.MidnightFamily())
	assert.True(t, ResetAtMidnightOnce.MidnightFamily())
	assert.False(t, ResetAtDueDate.MidnightFamily())
	assert.True(t, ResetAtDueDate.DueDateFamily())
	assert.True(t, ResetAtDueDateOnce.DueDateFamily())
	assert.False(t, ResetImmediate.MidnightFamily())
	assert.False(t, ResetImmediate.DueDateFamily())

	assert.True(t, ResetAtMidnightOnce.OncePerPeriod())
	assert.True(t, ResetAtDueDateOnce.OncePerPeriod())
	assert.False(t, ResetAtMidnight.OncePerPeriod())
	assert.False(t, ResetImmediate.OncePerPeriod())
}

func TestInstanceApprovedThisPeriod(t *testing.T) {
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	inst := NewInstance("dishes", "alice", nil, now)
	assert.False(t, inst.ApprovedThisPeriod())

	approvedAt := now.Add(2 * time.Hour)
	inst.ApprovedAt = &approvedAt
	assert.True(t, inst.ApprovedThisPeriod())

	// a later period start invalidates the old approval
	inst.PeriodStart = approvedAt.Add(time.Hour)
	assert.False(t, inst.ApprovedThisPeriod())
}

func TestInstancePastDue(t *testing.T) {
	due := time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC)
	inst := &Instance{DueAt: &due}

	assert.False(t, inst.PastDue(due, 0), "exactly at due is not past due")
	assert.True(t, inst.PastDue(due.Add(time.Second), 0))
	assert.False(t, inst.PastDue(due.Add(30*time.Minute), time.Hour))
	assert.True(t, inst.PastDue(due.Add(61*time.Minute), time.Hour))

	assert.False(t, (&Instance{}).PastDue(due, 0), "no due date, never overdue")
}

func TestInstanceCloneIsDeep(t *testing.T) {
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	due := now.Add(9 * time.Hour)
	inst := NewInstance("dishes", "alice", &due, now)

	clone := inst.Clone()
	require.NotSame(t, inst, clone)
	require.NotSame(t, inst.DueAt, clone.DueAt)

	clone.DueAt = nil
	clone.State = StateClaimed
	assert.NotNil(t, inst.DueAt)
	assert.Equal(t, StatePending, inst.State)
}
