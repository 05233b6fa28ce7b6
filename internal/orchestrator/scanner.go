package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/choreguild/choreguild/internal/chore"
	"github.com/choreguild/choreguild/internal/engine"
	"github.com/choreguild/choreguild/pkg/panicerr"
)

// Trigger names the boundary pass cause. The midnight trigger processes the
// midnight-family reset timings, the due-date tick processes the
// due-date-family ones plus overdue detection for every chore.
type Trigger string

const (
	TriggerMidnight Trigger = "midnight"
	TriggerDueDate  Trigger = "due_date_tick"
)

// RunBoundaryPass sweeps every chore once for the given trigger. The pass
// is idempotent: a chore that needs nothing produces no state change, no
// statistics, and no events, so overlapping or repeated passes are safe. A
// panic or error in one chore is contained and does not stop the sweep.
func (o *Orchestrator) RunBoundaryPass(ctx context.Context, trigger Trigger) {
	now := o.clock.Now()
	for _, def := range o.defs.list() {
		def := def
		err := panicerr.Safe(func() error {
			return o.scanChore(ctx, def, trigger, now)
		})()
		if err != nil {
			slog.ErrorContext(ctx, "boundary pass failed for chore",
				"chore_id", def.ID, "trigger", trigger, "error", err)
		}
	}
}

// scanChore routes one chore through the pass under the right locks. Locks
// are acquired with a bounded wait: a chore busy in a workflow is skipped
// and picked up by the next pass instead of stalling the sweep.
func (o *Orchestrator) scanChore(ctx context.Context, def *chore.Definition, trigger Trigger, now time.Time) error {
	if def.SharedInstance() {
		if !o.locks.TryLockWait(def.ID, o.lockWait) {
			slog.DebugContext(ctx, "chore busy, skipping this pass", "chore_id", def.ID)
			return nil
		}
		defer o.locks.Unlock(def.ID)
		return o.scanShared(ctx, def, trigger, now)
	}

	for _, assigneeID := range def.AssigneeIDs {
		key := def.ID + "/" + assigneeID
		if !o.locks.TryLockWait(key, o.lockWait) {
			slog.DebugContext(ctx, "instance busy, skipping this pass",
				"chore_id", def.ID, "assignee_id", assigneeID)
			continue
		}
		err := o.scanIndependent(ctx, def, assigneeID, trigger, now)
		o.locks.Unlock(key)
		if err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) scanIndependent(ctx context.Context, def *chore.Definition, assigneeID string, trigger Trigger, now time.Time) error {
	inst := o.table.get(def.ID, assigneeID)
	if inst == nil {
		return nil
	}

	// Overdue detection runs on every due-date tick regardless of reset
	// timing family.
	if trigger == TriggerDueDate && def.OverduePolicy != chore.OverdueDisabled &&
		inst.State == chore.StatePending && inst.PastDue(now, def.DueWindow) {
		if err := o.markOverdueLocked(ctx, def, assigneeID, now); err != nil {
			return err
		}
		if def.OverduePolicy == chore.OverdueClearOnDetection {
			if err := o.boundaryReset(ctx, def, assigneeID, now); err != nil {
				return err
			}
		}
		inst = o.table.get(def.ID, assigneeID)
	}

	if !inResetScope(def, trigger) {
		return nil
	}
	// A completed non-recurring chore stays APPROVED until rescheduled.
	if !def.Recurring() && inst.State == chore.StateApproved {
		return nil
	}

	duePassed := inst.DueAt != nil && !now.Before(*inst.DueAt)
	if def.ResetTiming.DueDateFamily() && !duePassed {
		return nil
	}

	switch inst.State {
	case chore.StatePending:
		if !duePassed {
			return nil
		}
	case chore.StateClaimed:
		switch def.PendingClaimPolicy {
		case chore.PendingHold:
			return nil
		case chore.PendingAutoApprove:
			if err := o.autoApproveLocked(ctx, def, assigneeID, now); err != nil {
				slog.WarnContext(ctx, "auto-approve at boundary failed",
					"chore_id", def.ID, "assignee_id", assigneeID, "error", err)
				return nil
			}
		}
		// PendingClear falls through: the reset discards the claim.
	case chore.StateOverdue:
		if def.OverduePolicy == chore.OverdueHold {
			return nil
		}
	}
	return o.boundaryReset(ctx, def, assigneeID, now)
}

// scanShared processes shared and shared-first chores once at the chore
// level; their records move together.
func (o *Orchestrator) scanShared(ctx context.Context, def *chore.Definition, trigger Trigger, now time.Time) error {
	insts := o.table.listChore(def.ID)
	if len(insts) == 0 {
		return nil
	}

	if trigger == TriggerDueDate && def.OverduePolicy != chore.OverdueDisabled &&
		anyPendingPastDue(insts, now, def.DueWindow) {
		if err := o.markOverdueLocked(ctx, def, "", now); err != nil {
			return err
		}
		// Clearing on detection rolls the whole cycle, so it must not
		// preempt a claim already in flight.
		if def.OverduePolicy == chore.OverdueClearOnDetection && !anyState(insts, chore.StateClaimed) {
			if err := o.boundaryReset(ctx, def, "", now); err != nil {
				return err
			}
		}
		insts = o.table.listChore(def.ID)
	}

	if !inResetScope(def, trigger) {
		return nil
	}
	if !def.Recurring() && anyState(insts, chore.StateApproved) {
		return nil
	}

	// All records of a shared instance carry the same due timestamp.
	rep := insts[0]
	duePassed := rep.DueAt != nil && !now.Before(*rep.DueAt)
	if def.ResetTiming.DueDateFamily() && !duePassed {
		return nil
	}

	if claimant := firstInState(insts, chore.StateClaimed); claimant != nil {
		switch def.PendingClaimPolicy {
		case chore.PendingHold:
			return nil
		case chore.PendingAutoApprove:
			if err := o.autoApproveLocked(ctx, def, claimant.AssigneeID, now); err != nil {
				slog.WarnContext(ctx, "auto-approve at boundary failed",
					"chore_id", def.ID, "assignee_id", claimant.AssigneeID, "error", err)
				return nil
			}
			insts = o.table.listChore(def.ID)
		}
	}
	if def.OverduePolicy == chore.OverdueHold && anyState(insts, chore.StateOverdue) {
		return nil
	}

	allPending := true
	for _, inst := range insts {
		if inst.State != chore.StatePending {
			allPending = false
			break
		}
	}
	if allPending && !duePassed {
		return nil
	}
	return o.boundaryReset(ctx, def, "", now)
}

// boundaryReset resets the targeted records to PENDING and, for recurring
// chores whose due boundary has passed, rolls the due date forward past
// now. A reschedule failure is logged and the reset still applies; the due
// date stays put for the next pass to retry.
func (o *Orchestrator) boundaryReset(ctx context.Context, def *chore.Definition, actor string, now time.Time) error {
	if !def.Recurring() {
		return o.resetLocked(ctx, def, actor, now, true, nil)
	}
	return o.resetLocked(ctx, def, actor, now, true, func(inst *chore.Instance) (*time.Time, bool, error) {
		if inst.DueAt != nil && now.Before(*inst.DueAt) {
			return nil, false, nil
		}
		next, err := o.nextDueAfter(def, o.rescheduleAnchor(def, inst, now), now)
		if err != nil {
			slog.ErrorContext(ctx, "reschedule failed",
				"chore_id", def.ID, "assignee_id", inst.AssigneeID, "error", err)
			return nil, false, nil
		}
		return &next, true, nil
	})
}

func (o *Orchestrator) markOverdueLocked(ctx context.Context, def *chore.Definition, actor string, now time.Time) error {
	effects, err := engine.ComputeTransition(o.table.snapshot(def.ID),
		engine.ActionMarkOverdue, def.Criteria, actor, def.Points)
	if err != nil {
		return err
	}
	meta := applyMeta{now: now}
	changed := o.applyEffects(def, effects, meta)
	return o.finish(ctx, def, effects, changed, meta)
}

// autoApproveLocked synthesizes an approval for an unactioned claim at a
// boundary. It counts and publishes like a normal approval.
func (o *Orchestrator) autoApproveLocked(ctx context.Context, def *chore.Definition, actor string, now time.Time) error {
	effects, err := engine.ComputeTransition(o.table.snapshot(def.ID),
		engine.ActionApprove, def.Criteria, actor, def.Points)
	if err != nil {
		return err
	}
	meta := applyMeta{now: now, actor: "system"}
	changed := o.applyEffects(def, effects, meta)
	return o.finish(ctx, def, effects, changed, meta)
}

func inResetScope(def *chore.Definition, trigger Trigger) bool {
	switch trigger {
	case TriggerMidnight:
		return def.ResetTiming.MidnightFamily()
	case TriggerDueDate:
		return def.ResetTiming.DueDateFamily()
	default:
		return false
	}
}

func anyPendingPastDue(insts []*chore.Instance, now time.Time, window time.Duration) bool {
	for _, inst := range insts {
		if inst.State == chore.StatePending && inst.PastDue(now, window) {
			return true
		}
	}
	return false
}

func anyState(insts []*chore.Instance, s chore.State) bool {
	for _, inst := range insts {
		if inst.State == s {
			return true
		}
	}
	return false
}

func firstInState(insts []*chore.Instance, s chore.State) *chore.Instance {
	for _, inst := range insts {
		if inst.State == s {
			return inst
		}
	}
	return nil
}
