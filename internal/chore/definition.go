// Package chore holds the domain model for recurring assignable chores:
// definitions with their policy configuration, live instance state, and the
// typed errors the lifecycle workflows surface.
package chore

import (
	"fmt"
	"time"

	"github.com/choreguild/choreguild/internal/recurrence"
	"github.com/choreguild/choreguild/pkg/cerr"
)

// CompletionCriteria is the rule for how multiple assignees on one chore
// interact.
type CompletionCriteria string

const (
	// CriteriaIndependent gives each assignee their own lifecycle.
	CriteriaIndependent CompletionCriteria = "independent"
	// CriteriaShared makes one completion count for every assignee.
	CriteriaShared CompletionCriteria = "shared"
	// CriteriaSharedFirst lets the first approved assignee win the cycle.
	CriteriaSharedFirst CompletionCriteria = "shared_first"
)

// ResetTiming governs when a completed chore becomes re-claimable.
type ResetTiming string

const (
	// ResetAtMidnight resets at the daily rollover; re-claiming within the
	// same day is allowed.
	ResetAtMidnight ResetTiming = "at_midnight"
	// ResetAtMidnightOnce resets at the daily rollover and permits at most
	// one approval per logical day.
	ResetAtMidnightOnce ResetTiming = "at_midnight_once"
	// ResetAtDueDate resets when the due boundary passes; re-claiming
	// within the same period is allowed.
	ResetAtDueDate ResetTiming = "at_due_date"
	// ResetAtDueDateOnce resets at the due boundary with one approval per
	// period.
	ResetAtDueDateOnce ResetTiming = "at_due_date_once"
	// ResetImmediate resets inside approve(); the scanner never touches it.
	ResetImmediate ResetTiming = "immediate"
)

// MidnightFamily reports whether the timing is processed on the midnight
// trigger.
func (rt ResetTiming) MidnightFamily() bool {
	return rt == ResetAtMidnight || rt == ResetAtMidnightOnce
}

// DueDateFamily reports whether the timing is processed on the due-date
// tick.
func (rt ResetTiming) DueDateFamily() bool {
	return rt == ResetAtDueDate || rt == ResetAtDueDateOnce
}

// OncePerPeriod reports whether claiming is gated on "already approved this
// period".
func (rt ResetTiming) OncePerPeriod() bool {
	return rt == ResetAtMidnightOnce || rt == ResetAtDueDateOnce
}

// OverduePolicy governs whether and how an instance leaves OVERDUE.
type OverduePolicy string

const (
	// OverdueHold keeps the instance overdue until someone completes it.
	OverdueHold OverduePolicy = "hold"
	// OverdueClearAtBoundary clears the overdue state at the next boundary
	// pass.
	OverdueClearAtBoundary OverduePolicy = "clear_at_boundary"
	// OverdueClearOnDetection rolls the instance straight to the next cycle
	// the moment lateness is detected.
	OverdueClearOnDetection OverduePolicy = "clear_on_detection"
	// OverdueDisabled turns overdue detection off for the chore.
	OverdueDisabled OverduePolicy = "disabled"
)

// PendingClaimPolicy governs what happens to an unapproved claim when a
// reset boundary is reached.
type PendingClaimPolicy string

const (
	// PendingHold preserves the claim across the boundary.
	PendingHold PendingClaimPolicy = "hold"
	// PendingClear discards the claim and resets.
	PendingClear PendingClaimPolicy = "clear"
	// PendingAutoApprove synthesizes an approval before resetting.
	PendingAutoApprove PendingClaimPolicy = "auto_approve"
)

// Definition is the immutable-per-version configuration of a chore. It is
// owned by configuration management; the engine treats it as read-mostly
// input.
type Definition struct {
	ID          string          `yaml:"id" json:"id"`
	Name        string          `yaml:"name" json:"name"`
	Description string          `yaml:"description,omitempty" json:"description,omitempty"`
	Schedule    recurrence.Spec `yaml:"schedule" json:"schedule"`
	AssigneeIDs []string        `yaml:"assignees" json:"assignees"`

	Criteria           CompletionCriteria `yaml:"criteria" json:"criteria"`
	ResetTiming        ResetTiming        `yaml:"reset_timing" json:"reset_timing"`
	OverduePolicy      OverduePolicy      `yaml:"overdue_policy" json:"overdue_policy"`
	PendingClaimPolicy PendingClaimPolicy `yaml:"pending_claim_policy" json:"pending_claim_policy"`

	Points int `yaml:"points" json:"points"`
	// DueWindow is an optional grace offset after the due timestamp before
	// an unclaimed instance counts as overdue.
	DueWindow time.Duration `yaml:"due_window,omitempty" json:"due_window,omitempty"`

	CreatedAt time.Time `yaml:"created_at,omitempty" json:"created_at,omitempty"`
	UpdatedAt time.Time `yaml:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// Recurring reports whether the chore reschedules after completion.
func (d *Definition) Recurring() bool {
	return d.Schedule.Recurring()
}

// SharedInstance reports whether all assignees share one logical instance.
func (d *Definition) SharedInstance() bool {
	return d.Criteria == CriteriaShared || d.Criteria == CriteriaSharedFirst
}

// HasAssignee reports whether id is configured on the chore.
func (d *Definition) HasAssignee(id string) bool {
	for _, a := range d.AssigneeIDs {
		if a == id {
			return true
		}
	}
	return false
}

// Validate rejects malformed definitions with a configuration error.
func (d *Definition) Validate() error {
	if d.ID == "" {
		return NewConfigurationError("chore id cannot be empty", nil)
	}
	if len(d.AssigneeIDs) == 0 {
		return NewConfigurationError(fmt.Sprintf("chore %s has no assignees", d.ID), nil)
	}
	seen := make(map[string]bool, len(d.AssigneeIDs))
	for _, a := range d.AssigneeIDs {
		if a == "" {
			return NewConfigurationError(fmt.Sprintf("chore %s has an empty assignee id", d.ID), nil)
		}
		if seen[a] {
			return NewConfigurationError(fmt.Sprintf("chore %s lists assignee %s twice", d.ID, a), nil)
		}
		seen[a] = true
	}
	switch d.Criteria {
	case CriteriaIndependent, CriteriaShared, CriteriaSharedFirst:
	default:
		return NewConfigurationError(fmt.Sprintf("chore %s: unknown completion criteria %q", d.ID, d.Criteria), nil)
	}
	switch d.ResetTiming {
	case ResetAtMidnight, ResetAtMidnightOnce, ResetAtDueDate, ResetAtDueDateOnce, ResetImmediate:
	default:
		return NewConfigurationError(fmt.Sprintf("chore %s: unknown reset timing %q", d.ID, d.ResetTiming), nil)
	}
	switch d.OverduePolicy {
	case OverdueHold, OverdueClearAtBoundary, OverdueClearOnDetection, OverdueDisabled:
	default:
		return NewConfigurationError(fmt.Sprintf("chore %s: unknown overdue policy %q", d.ID, d.OverduePolicy), nil)
	}
	switch d.PendingClaimPolicy {
	case PendingHold, PendingClear, PendingAutoApprove:
	default:
		return NewConfigurationError(fmt.Sprintf("chore %s: unknown pending-claim policy %q", d.ID, d.PendingClaimPolicy), nil)
	}
	if d.Points < 0 {
		return NewConfigurationError(fmt.Sprintf("chore %s: negative point value", d.ID), nil)
	}
	if d.DueWindow < 0 {
		return NewConfigurationError(fmt.Sprintf("chore %s: negative due window", d.ID), nil)
	}
	if err := d.Schedule.Validate(); err != nil {
		return cerr.NewError(cerr.InvalidArgument,
			fmt.Sprintf("chore %s: %s", d.ID, cerr.MessageOf(err)), err)
	}
	return nil
}
