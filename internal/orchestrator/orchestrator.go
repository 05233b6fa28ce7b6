// Package orchestrator owns the stateful chore lifecycle: it holds the
// working set of instances, serializes workflows behind per-instance locks,
// feeds snapshots to the pure transition engine, and applies the effects it
// returns — persisting state, crediting statistics and points, and
// publishing events.
package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/choreguild/choreguild/internal/chore"
	"github.com/choreguild/choreguild/internal/clock"
	"github.com/choreguild/choreguild/internal/engine"
	"github.com/choreguild/choreguild/internal/event"
	"github.com/choreguild/choreguild/internal/recurrence"
	"github.com/choreguild/choreguild/internal/stats"
)

const defaultLockWait = 2 * time.Second

// maxCatchUpSteps bounds how far a reschedule rolls a stale due date
// forward in one pass.
const maxCatchUpSteps = 1000

// Orchestrator coordinates every lifecycle mutation. All collaborators are
// injected; the System clock and real repositories are wired by the daemon,
// fakes by tests.
type Orchestrator struct {
	defs  *definitionTable
	table *instanceTable
	locks *keyedLocks

	instances chore.InstanceRepository
	bus       *event.EventBus
	recorder  stats.Recorder
	ledger    *stats.PointsLedger
	clock     clock.Clock
	calc      *recurrence.Calculator

	lockWait time.Duration
}

// Option customizes orchestrator construction.
type Option func(*Orchestrator)

// WithLockWait sets the scanner's bounded lock wait.
func WithLockWait(d time.Duration) Option {
	return func(o *Orchestrator) { o.lockWait = d }
}

func New(
	instances chore.InstanceRepository,
	bus *event.EventBus,
	recorder stats.Recorder,
	ledger *stats.PointsLedger,
	clk clock.Clock,
	calc *recurrence.Calculator,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		defs:      newDefinitionTable(),
		table:     newInstanceTable(),
		locks:     newKeyedLocks(),
		instances: instances,
		bus:       bus,
		recorder:  recorder,
		ledger:    ledger,
		clock:     clk,
		calc:      calc,
		lockWait:  defaultLockWait,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Load reads the persisted instance set into the working table. Call once
// before serving workflows.
func (o *Orchestrator) Load(ctx context.Context) error {
	persisted, err := o.instances.List(ctx)
	if err != nil {
		return err
	}
	o.table.load(persisted)
	return nil
}

// ReplaceDefinitions swaps in a new definition set, rejecting the whole
// batch if any definition is malformed. It backfills missing instances for
// new chores and new assignees.
func (o *Orchestrator) ReplaceDefinitions(ctx context.Context, defs []*chore.Definition) error {
	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return err
		}
	}
	o.defs.replace(defs)
	return o.EnsureInstances(ctx)
}

// Definition returns the current definition, or a not-found error.
func (o *Orchestrator) Definition(choreID string) (*chore.Definition, error) {
	def := o.defs.get(choreID)
	if def == nil {
		return nil, chore.NewNotFoundError("chore", choreID)
	}
	return def, nil
}

// Definitions lists the current definition set ordered by ID.
func (o *Orchestrator) Definitions() []*chore.Definition {
	return o.defs.list()
}

// Instance returns a copy of one instance record.
func (o *Orchestrator) Instance(choreID, assigneeID string) (*chore.Instance, error) {
	inst := o.table.get(choreID, assigneeID)
	if inst == nil {
		return nil, chore.NewNotFoundError("instance", choreID+"/"+assigneeID)
	}
	return inst, nil
}

// Instances lists instance copies, filtered to one chore when choreID is
// non-empty.
func (o *Orchestrator) Instances(choreID string) []*chore.Instance {
	if choreID == "" {
		return o.table.list()
	}
	return o.table.listChore(choreID)
}

// EnsureInstances creates a PENDING instance for every (chore, assignee)
// pair that has none, with an initial due date for recurring schedules.
func (o *Orchestrator) EnsureInstances(ctx context.Context) error {
	now := o.clock.Now()
	var created []*chore.Instance
	for _, def := range o.defs.list() {
		var dueAt *time.Time
		if def.Recurring() {
			next, err := o.calc.NextDue(def.Schedule, now)
			if err != nil {
				return chore.NewSchedulingError(def.ID, err)
			}
			dueAt = &next
		}
		for _, assigneeID := range def.AssigneeIDs {
			if o.table.get(def.ID, assigneeID) != nil {
				continue
			}
			created = append(created, chore.NewInstance(def.ID, assigneeID, dueAt, now))
		}
	}
	if len(created) == 0 {
		return nil
	}
	o.table.put(created...)
	if err := o.instances.Put(ctx, created...); err != nil {
		return err
	}
	slog.InfoContext(ctx, "created chore instances", "count", len(created))
	return nil
}

// lockKey returns the mutual-exclusion key for a workflow. Shared-instance
// chores serialize at the chore level.
func (o *Orchestrator) lockKey(def *chore.Definition, assigneeID string) string {
	if def.SharedInstance() {
		return def.ID
	}
	return def.ID + "/" + assigneeID
}

// applyMeta carries the non-engine inputs an effect application needs.
type applyMeta struct {
	now      time.Time
	actor    string
	reason   string
	// nextDue maps assignee ID to the rescheduled due instant for reset
	// effects; a missing entry leaves the due date unchanged.
	nextDue map[string]*time.Time
}

// applyEffects folds the engine's effect list into the working table and
// returns the mutated instance copies in effect order.
func (o *Orchestrator) applyEffects(def *chore.Definition, effects []engine.Effect, meta applyMeta) []*chore.Instance {
	changed := make([]*chore.Instance, 0, len(effects))
	for _, eff := range effects {
		inst := o.table.get(def.ID, eff.AssigneeID)
		if inst == nil {
			continue
		}
		inst.State = eff.To
		switch eff.Kind {
		case engine.EffectClaimed:
			at := meta.now
			inst.ClaimedAt = &at
			inst.ClaimedBy = meta.actor
		case engine.EffectApproved:
			at := meta.now
			inst.ApprovedAt = &at
			inst.ApprovedBy = meta.actor
			inst.LastCompletedAt = &at
		case engine.EffectDisapproved:
			inst.ClaimedAt = nil
			inst.ClaimedBy = ""
		case engine.EffectUndone:
			if eff.To == chore.StateClaimed {
				inst.ApprovedAt = nil
				inst.ApprovedBy = ""
			}
		case engine.EffectReset, engine.EffectOverdueCleared:
			inst.ClaimedAt = nil
			inst.ClaimedBy = ""
			inst.PeriodStart = meta.now
			if due, ok := meta.nextDue[eff.AssigneeID]; ok {
				inst.DueAt = due
			}
		}
		inst.UpdatedAt = meta.now
		o.table.put(inst)
		changed = append(changed, inst)
	}
	return changed
}

// finish persists the mutated instances and fans the counted effects out to
// the points ledger, the statistics recorder, and the event bus. Persistence
// failure is surfaced; downstream fan-out is best effort.
func (o *Orchestrator) finish(ctx context.Context, def *chore.Definition, effects []engine.Effect, changed []*chore.Instance, meta applyMeta) error {
	if len(changed) == 0 {
		return nil
	}
	if err := o.instances.Put(ctx, changed...); err != nil {
		return err
	}

	byAssignee := make(map[string]*chore.Instance, len(changed))
	for _, inst := range changed {
		byAssignee[inst.AssigneeID] = inst
	}
	for _, eff := range effects {
		if eff.PointDelta != 0 {
			o.ledger.Apply(eff.AssigneeID, eff.PointDelta)
		}
		if !eff.Count {
			continue
		}
		if cat, ok := effectCategory(eff.Kind); ok {
			o.recorder.Record(eff.AssigneeID, cat, 1, meta.now)
		}
		o.publishEffect(ctx, def, eff, byAssignee[eff.AssigneeID], meta)
	}
	return nil
}

func effectCategory(kind engine.EffectKind) (stats.Category, bool) {
	switch kind {
	case engine.EffectClaimed:
		return stats.CategoryClaimed, true
	case engine.EffectApproved:
		return stats.CategoryApproved, true
	case engine.EffectDisapproved:
		return stats.CategoryDisapproved, true
	case engine.EffectOverdue:
		return stats.CategoryOverdue, true
	case engine.EffectReset:
		return stats.CategoryReset, true
	case engine.EffectSkipped:
		return stats.CategorySkipped, true
	default:
		return "", false
	}
}

func (o *Orchestrator) publishEffect(ctx context.Context, def *chore.Definition, eff engine.Effect, inst *chore.Instance, meta applyMeta) {
	var data any
	switch eff.Kind {
	case engine.EffectClaimed:
		data = event.ChoreClaimedData{
			ChoreID:    def.ID,
			AssigneeID: eff.AssigneeID,
			Actor:      meta.actor,
			ClaimedAt:  meta.now,
		}
	case engine.EffectApproved:
		data = event.ChoreApprovedData{
			ChoreID:    def.ID,
			AssigneeID: eff.AssigneeID,
			Approver:   meta.actor,
			Points:     eff.PointDelta,
			ApprovedAt: meta.now,
		}
	case engine.EffectDisapproved:
		data = event.ChoreDisapprovedData{
			ChoreID:    def.ID,
			AssigneeID: eff.AssigneeID,
			Reason:     meta.reason,
		}
	case engine.EffectOverdue:
		var dueAt time.Time
		if inst != nil && inst.DueAt != nil {
			dueAt = *inst.DueAt
		}
		data = event.ChoreOverdueData{
			ChoreID:    def.ID,
			AssigneeID: eff.AssigneeID,
			DueAt:      dueAt,
		}
	case engine.EffectReset:
		data = event.ChoreResetData{
			ChoreID:    def.ID,
			AssigneeID: eff.AssigneeID,
			FromState:  string(eff.From),
			NextDueAt:  meta.nextDue[eff.AssigneeID],
		}
	case engine.EffectSkipped:
		data = event.ChoreSkippedData{
			ChoreID:    def.ID,
			AssigneeID: eff.AssigneeID,
		}
	default:
		return
	}
	if err := o.bus.Publish(ctx, "orchestrator", data); err != nil {
		slog.WarnContext(ctx, "failed to publish lifecycle event",
			"chore_id", def.ID, "assignee_id", eff.AssigneeID,
			"kind", eff.Kind, "error", err)
	}
}

// nextDueAfter rolls the schedule forward from anchor until the result lies
// strictly after now, so a chore that missed several boundaries lands on
// the next future occurrence instead of an already-stale one.
func (o *Orchestrator) nextDueAfter(def *chore.Definition, anchor, now time.Time) (time.Time, error) {
	next, err := o.calc.NextDue(def.Schedule, anchor)
	if err != nil {
		return time.Time{}, err
	}
	for i := 0; i < maxCatchUpSteps && !next.After(now); i++ {
		next, err = o.calc.NextDue(def.Schedule, next)
		if err != nil {
			return time.Time{}, err
		}
	}
	if !next.After(now) {
		return time.Time{}, chore.NewSchedulingError(def.ID, recurrence.ErrNoNextDate)
	}
	return next, nil
}

// rescheduleAnchor picks the instant the next due date is computed from:
// the last completion for completion-anchored schedules, otherwise the
// previous due date, falling back to now for instances that never had one.
func (o *Orchestrator) rescheduleAnchor(def *chore.Definition, inst *chore.Instance, now time.Time) time.Time {
	if def.Schedule.FromCompletion && inst.LastCompletedAt != nil {
		return *inst.LastCompletedAt
	}
	if inst.DueAt != nil {
		return *inst.DueAt
	}
	return now
}
