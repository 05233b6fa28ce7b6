package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/choreguild/choreguild/internal/chore"
	"github.com/choreguild/choreguild/internal/engine"
)

// Claim moves the assignee's instance to CLAIMED. Eligibility is
// re-validated under the instance lock, so two racing claims resolve to one
// winner and one AlreadyClaimedError.
func (o *Orchestrator) Claim(ctx context.Context, choreID, assigneeID string) (*chore.Instance, error) {
	def, err := o.Definition(choreID)
	if err != nil {
		return nil, err
	}
	if !def.HasAssignee(assigneeID) {
		return nil, chore.NewNotEligibleError(
			fmt.Sprintf("%s is not assigned to chore %s", assigneeID, choreID))
	}

	key := o.lockKey(def, assigneeID)
	o.locks.Lock(key)
	defer o.locks.Unlock(key)

	inst := o.table.get(choreID, assigneeID)
	if inst == nil {
		return nil, chore.NewNotFoundError("instance", choreID+"/"+assigneeID)
	}
	if err := o.claimGate(def, inst); err != nil {
		return nil, err
	}

	effects, err := engine.ComputeTransition(o.table.snapshot(choreID),
		engine.ActionClaim, def.Criteria, assigneeID, def.Points)
	if err != nil {
		return nil, err
	}

	meta := applyMeta{now: o.clock.Now(), actor: assigneeID}
	changed := o.applyEffects(def, effects, meta)
	if err := o.finish(ctx, def, effects, changed, meta); err != nil {
		return nil, err
	}
	return o.table.get(choreID, assigneeID), nil
}

// claimGate enforces the eligibility rules the pure engine cannot see:
// per-period approval limits and the terminal state of non-recurring chores.
func (o *Orchestrator) claimGate(def *chore.Definition, inst *chore.Instance) error {
	if def.ResetTiming.OncePerPeriod() && inst.ApprovedThisPeriod() {
		msg := "already approved this period"
		if inst.ApprovedBy != "" {
			msg += " by " + inst.ApprovedBy
		}
		return chore.NewNotEligibleError(msg)
	}
	if inst.State == chore.StateApproved && !def.Recurring() {
		return chore.NewNotEligibleError("chore is completed; reschedule it to reopen")
	}
	return nil
}

// Approve confirms a claim, credits points and statistics, and publishes
// chore.approved. Under shared criteria every assignee is credited; under
// shared-first the remaining assignees are closed out as
// COMPLETED_BY_OTHER. A second approval of the same claim fails with
// AlreadyApprovedError before any award is repeated.
func (o *Orchestrator) Approve(ctx context.Context, choreID, assigneeID, approver string) (*chore.Instance, error) {
	def, err := o.Definition(choreID)
	if err != nil {
		return nil, err
	}
	if !def.HasAssignee(assigneeID) {
		return nil, chore.NewNotEligibleError(
			fmt.Sprintf("%s is not assigned to chore %s", assigneeID, choreID))
	}

	key := o.lockKey(def, assigneeID)
	o.locks.Lock(key)
	defer o.locks.Unlock(key)

	inst := o.table.get(choreID, assigneeID)
	if inst == nil {
		return nil, chore.NewNotFoundError("instance", choreID+"/"+assigneeID)
	}
	if inst.State == chore.StateApproved {
		return nil, chore.NewAlreadyApprovedError(choreID, inst.ApprovedBy)
	}

	effects, err := engine.ComputeTransition(o.table.snapshot(choreID),
		engine.ActionApprove, def.Criteria, assigneeID, def.Points)
	if err != nil {
		return nil, err
	}

	now := o.clock.Now()
	meta := applyMeta{now: now, actor: approver}
	changed := o.applyEffects(def, effects, meta)
	if err := o.finish(ctx, def, effects, changed, meta); err != nil {
		return nil, err
	}

	// Immediate timing starts the next cycle inside the approval workflow;
	// the boundary scanner never touches these chores.
	if def.ResetTiming == chore.ResetImmediate && def.Recurring() {
		actor := assigneeID
		if def.SharedInstance() {
			actor = ""
		}
		err := o.resetLocked(ctx, def, actor, now, true, func(target *chore.Instance) (*time.Time, bool, error) {
			next, err := o.nextDueAfter(def, o.rescheduleAnchor(def, target, now), now)
			if err != nil {
				return nil, false, err
			}
			return &next, true, nil
		})
		if err != nil {
			slog.ErrorContext(ctx, "immediate reset after approval failed",
				"chore_id", choreID, "assignee_id", assigneeID, "error", err)
		}
	}
	return o.table.get(choreID, assigneeID), nil
}

// Disapprove rejects a claim and returns the instance to PENDING.
func (o *Orchestrator) Disapprove(ctx context.Context, choreID, assigneeID, approver, reason string) (*chore.Instance, error) {
	def, err := o.Definition(choreID)
	if err != nil {
		return nil, err
	}
	key := o.lockKey(def, assigneeID)
	o.locks.Lock(key)
	defer o.locks.Unlock(key)

	if o.table.get(choreID, assigneeID) == nil {
		return nil, chore.NewNotFoundError("instance", choreID+"/"+assigneeID)
	}
	effects, err := engine.ComputeTransition(o.table.snapshot(choreID),
		engine.ActionDisapprove, def.Criteria, assigneeID, def.Points)
	if err != nil {
		return nil, err
	}

	meta := applyMeta{now: o.clock.Now(), actor: approver, reason: reason}
	changed := o.applyEffects(def, effects, meta)
	if err := o.finish(ctx, def, effects, changed, meta); err != nil {
		return nil, err
	}
	return o.table.get(choreID, assigneeID), nil
}

// Undo reverses an approval: the instance returns to CLAIMED, the awarded
// points are reclaimed from the ledger, and no statistics or events fire.
// Under shared-first the assignees closed out as COMPLETED_BY_OTHER are
// reopened.
func (o *Orchestrator) Undo(ctx context.Context, choreID, assigneeID string) (*chore.Instance, error) {
	def, err := o.Definition(choreID)
	if err != nil {
		return nil, err
	}
	key := o.lockKey(def, assigneeID)
	o.locks.Lock(key)
	defer o.locks.Unlock(key)

	if o.table.get(choreID, assigneeID) == nil {
		return nil, chore.NewNotFoundError("instance", choreID+"/"+assigneeID)
	}
	effects, err := engine.ComputeTransition(o.table.snapshot(choreID),
		engine.ActionUndo, def.Criteria, assigneeID, def.Points)
	if err != nil {
		return nil, err
	}

	meta := applyMeta{now: o.clock.Now()}
	changed := o.applyEffects(def, effects, meta)
	if err := o.finish(ctx, def, effects, changed, meta); err != nil {
		return nil, err
	}
	return o.table.get(choreID, assigneeID), nil
}

// Skip marks the current cycle as deliberately not done. The instance waits
// in SKIPPED until the next boundary reset; no points are awarded.
func (o *Orchestrator) Skip(ctx context.Context, choreID, assigneeID string) (*chore.Instance, error) {
	def, err := o.Definition(choreID)
	if err != nil {
		return nil, err
	}
	key := o.lockKey(def, assigneeID)
	o.locks.Lock(key)
	defer o.locks.Unlock(key)

	if o.table.get(choreID, assigneeID) == nil {
		return nil, chore.NewNotFoundError("instance", choreID+"/"+assigneeID)
	}
	effects, err := engine.ComputeTransition(o.table.snapshot(choreID),
		engine.ActionSkip, def.Criteria, assigneeID, def.Points)
	if err != nil {
		return nil, err
	}

	meta := applyMeta{now: o.clock.Now(), actor: assigneeID}
	changed := o.applyEffects(def, effects, meta)
	if err := o.finish(ctx, def, effects, changed, meta); err != nil {
		return nil, err
	}
	return o.table.get(choreID, assigneeID), nil
}

// ManualReset returns instances to PENDING without touching the due date.
// It is a correction, so nothing is counted and no events fire. An empty
// assigneeID targets every assignee.
func (o *Orchestrator) ManualReset(ctx context.Context, choreID, assigneeID string) error {
	def, err := o.Definition(choreID)
	if err != nil {
		return err
	}
	if assigneeID != "" && !def.HasAssignee(assigneeID) {
		return chore.NewNotEligibleError(
			fmt.Sprintf("%s is not assigned to chore %s", assigneeID, choreID))
	}
	now := o.clock.Now()
	return o.withTargetLocks(def, assigneeID, func(actor string) error {
		return o.resetLocked(ctx, def, actor, now, false, nil)
	})
}

// ManualReschedule recomputes the due date from now and reopens the cycle.
// For non-recurring chores it reopens a completed instance without a due
// date; this is the only way an APPROVED non-recurring chore becomes
// claimable again. Nothing is counted and no events fire.
func (o *Orchestrator) ManualReschedule(ctx context.Context, choreID, assigneeID string) error {
	def, err := o.Definition(choreID)
	if err != nil {
		return err
	}
	if assigneeID != "" && !def.HasAssignee(assigneeID) {
		return chore.NewNotEligibleError(
			fmt.Sprintf("%s is not assigned to chore %s", assigneeID, choreID))
	}
	now := o.clock.Now()
	return o.withTargetLocks(def, assigneeID, func(actor string) error {
		if !def.Recurring() {
			return o.resetLocked(ctx, def, actor, now, false, nil)
		}
		return o.resetLocked(ctx, def, actor, now, false, func(*chore.Instance) (*time.Time, bool, error) {
			next, err := o.calc.NextDue(def.Schedule, now)
			if err != nil {
				return nil, false, chore.NewSchedulingError(def.ID, err)
			}
			return &next, true, nil
		})
	})
}

// withTargetLocks runs fn under the right lock set: once at chore level for
// shared instances, once per assignee otherwise. An empty assigneeID on an
// independent chore visits every assignee in configured order.
func (o *Orchestrator) withTargetLocks(def *chore.Definition, assigneeID string, fn func(actor string) error) error {
	if def.SharedInstance() {
		o.locks.Lock(def.ID)
		defer o.locks.Unlock(def.ID)
		return fn("")
	}
	if assigneeID != "" {
		key := def.ID + "/" + assigneeID
		o.locks.Lock(key)
		defer o.locks.Unlock(key)
		return fn(assigneeID)
	}
	for _, id := range def.AssigneeIDs {
		key := def.ID + "/" + id
		o.locks.Lock(key)
		err := fn(id)
		o.locks.Unlock(key)
		if err != nil {
			return err
		}
	}
	return nil
}

// resetLocked computes and applies reset effects for the actor's records
// (all records when actor is empty). The caller must hold the workflow
// lock. nextDueFor, when non-nil, supplies the rescheduled due instant per
// target; targets already PENDING still receive the new due date and period
// start so a boundary pass rolls an idle instance forward.
func (o *Orchestrator) resetLocked(
	ctx context.Context,
	def *chore.Definition,
	actor string,
	now time.Time,
	count bool,
	nextDueFor func(*chore.Instance) (*time.Time, bool, error),
) error {
	snap := o.table.snapshot(def.ID)
	effects, err := engine.ComputeTransition(snap, engine.ActionReset, def.Criteria, actor, def.Points)
	if err != nil {
		return err
	}
	if !count {
		for i := range effects {
			effects[i].Count = false
		}
	}

	targets := []string{actor}
	if actor == "" {
		targets = targets[:0]
		for _, inst := range o.table.listChore(def.ID) {
			targets = append(targets, inst.AssigneeID)
		}
	}

	meta := applyMeta{now: now}
	if nextDueFor != nil {
		meta.nextDue = make(map[string]*time.Time)
		for _, id := range targets {
			inst := o.table.get(def.ID, id)
			if inst == nil {
				continue
			}
			due, set, err := nextDueFor(inst)
			if err != nil {
				return err
			}
			if set {
				meta.nextDue[id] = due
			}
		}
	}

	changed := o.applyEffects(def, effects, meta)

	// A record that was already PENDING produced no effect but still needs
	// its due date and period rolled forward.
	touched := make(map[string]bool, len(changed))
	for _, inst := range changed {
		touched[inst.AssigneeID] = true
	}
	var rolled []*chore.Instance
	for id, due := range meta.nextDue {
		if touched[id] {
			continue
		}
		inst := o.table.get(def.ID, id)
		if inst == nil || inst.State != chore.StatePending {
			continue
		}
		inst.DueAt = due
		inst.PeriodStart = now
		inst.UpdatedAt = now
		o.table.put(inst)
		rolled = append(rolled, inst)
	}
	if len(rolled) > 0 {
		if err := o.instances.Put(ctx, rolled...); err != nil {
			return err
		}
	}
	return o.finish(ctx, def, effects, changed, meta)
}
