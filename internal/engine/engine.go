// Package engine computes validated state transitions for chore instances.
// It is pure: no I/O, no clock reads; the orchestrator feeds it snapshots
// and applies the effect lists it returns.
package engine

import (
	"sort"

	"github.com/choreguild/choreguild/internal/chore"
)

// Action is a requested lifecycle transition.
type Action string

const (
	ActionClaim        Action = "claim"
	ActionApprove      Action = "approve"
	ActionDisapprove   Action = "disapprove"
	ActionUndo         Action = "undo"
	ActionSkip         Action = "skip"
	ActionReset        Action = "reset"
	ActionMarkOverdue  Action = "mark_overdue"
	ActionClearOverdue Action = "clear_overdue"
)

// EffectKind classifies an effect for statistics and event naming.
type EffectKind string

const (
	EffectClaimed          EffectKind = "claimed"
	EffectApproved         EffectKind = "approved"
	EffectDisapproved      EffectKind = "disapproved"
	EffectUndone           EffectKind = "undone"
	EffectSkipped          EffectKind = "skipped"
	EffectReset            EffectKind = "reset"
	EffectOverdue          EffectKind = "overdue"
	EffectOverdueCleared   EffectKind = "overdue_cleared"
	EffectCompletedByOther EffectKind = "completed_by_other"
)

// AssigneeState is the engine's view of one assignee's record.
type AssigneeState struct {
	State     chore.State
	ClaimedBy string
}

// Snapshot is an immutable view of every assignee's state for one chore.
type Snapshot map[string]AssigneeState

// Effect is one validated per-assignee state change. Count marks effects
// that feed statistics and events; corrective transitions carry false.
type Effect struct {
	AssigneeID string
	From       chore.State
	To         chore.State
	Kind       EffectKind
	Count      bool
	PointDelta int
}

// ComputeTransition validates action against the snapshot under the given
// completion criteria and returns the per-assignee effects. actor is the
// assignee performing (or targeted by) the action; for chore-level actions
// under shared criteria it may be empty, meaning "every assignee".
// points is the chore's configured point value.
func ComputeTransition(snap Snapshot, action Action, criteria chore.CompletionCriteria, actor string, points int) ([]Effect, error) {
	if len(snap) == 0 {
		return nil, chore.NewNotFoundError("instance", actor)
	}
	if actor != "" {
		if _, ok := snap[actor]; !ok {
			return nil, chore.NewNotFoundError("instance", actor)
		}
	}

	switch action {
	case ActionClaim:
		return computeClaim(snap, criteria, actor)
	case ActionApprove:
		return computeApprove(snap, criteria, actor, points)
	case ActionDisapprove:
		return computeDisapprove(snap, criteria, actor)
	case ActionUndo:
		return computeUndo(snap, criteria, actor, points)
	case ActionSkip:
		return computeSkip(snap, criteria, actor)
	case ActionReset:
		return computeReset(snap, criteria, actor)
	case ActionMarkOverdue:
		return computeMarkOverdue(snap, criteria, actor)
	case ActionClearOverdue:
		return computeClearOverdue(snap, criteria, actor)
	default:
		return nil, chore.NewTransitionError(string(action), "")
	}
}

// claimable reports whether a claim may start from s. APPROVED is included
// because the non-once reset timings allow re-claiming within the period;
// the orchestrator gates that case before calling the engine.
func claimable(s chore.State) bool {
	switch s {
	case chore.StatePending, chore.StateOverdue, chore.StateApproved:
		return true
	default:
		return false
	}
}

func computeClaim(snap Snapshot, criteria chore.CompletionCriteria, actor string) ([]Effect, error) {
	self := snap[actor]

	switch criteria {
	case chore.CriteriaIndependent:
		if self.State == chore.StateClaimed {
			return nil, chore.NewAlreadyClaimedError("", self.ClaimedBy)
		}
		if !claimable(self.State) {
			return nil, chore.NewTransitionError(string(ActionClaim), self.State)
		}
		return []Effect{claimEffect(actor, self.State, true)}, nil

	case chore.CriteriaShared:
		if self.State == chore.StateClaimed {
			return nil, chore.NewAlreadyClaimedError("", self.ClaimedBy)
		}
		if !claimable(self.State) {
			return nil, chore.NewTransitionError(string(ActionClaim), self.State)
		}
		// The whole shared instance moves together: the actor's effect
		// counts, the sibling records mirror it.
		effects := []Effect{claimEffect(actor, self.State, true)}
		for _, id := range sortedIDs(snap) {
			if id == actor {
				continue
			}
			effects = append(effects, claimEffect(id, snap[id].State, false))
		}
		return effects, nil

	case chore.CriteriaSharedFirst:
		for _, id := range sortedIDs(snap) {
			st := snap[id]
			if st.State == chore.StateClaimed {
				return nil, chore.NewAlreadyClaimedError("", st.ClaimedBy)
			}
			if st.State == chore.StateApproved {
				return nil, chore.NewNotEligibleError("this cycle was already completed")
			}
		}
		if self.State == chore.StateCompletedByOther || self.State == chore.StateSkipped {
			return nil, chore.NewNotEligibleError("this cycle was already completed by another assignee")
		}
		return []Effect{claimEffect(actor, self.State, true)}, nil
	}
	return nil, chore.NewConfigurationError("unknown completion criteria", nil)
}

func claimEffect(assignee string, from chore.State, count bool) Effect {
	return Effect{
		AssigneeID: assignee,
		From:       from,
		To:         chore.StateClaimed,
		Kind:       EffectClaimed,
		Count:      count,
	}
}

func computeApprove(snap Snapshot, criteria chore.CompletionCriteria, actor string, points int) ([]Effect, error) {
	self := snap[actor]
	if self.State == chore.StateApproved {
		return nil, chore.NewAlreadyApprovedError("", "")
	}
	if self.State != chore.StateClaimed {
		return nil, chore.NewTransitionError(string(ActionApprove), self.State)
	}

	switch criteria {
	case chore.CriteriaIndependent:
		return []Effect{{
			AssigneeID: actor,
			From:       self.State,
			To:         chore.StateApproved,
			Kind:       EffectApproved,
			Count:      true,
			PointDelta: points,
		}}, nil

	case chore.CriteriaShared:
		// One completion counts for everyone: each assignee is credited.
		var effects []Effect
		for _, id := range sortedIDs(snap) {
			effects = append(effects, Effect{
				AssigneeID: id,
				From:       snap[id].State,
				To:         chore.StateApproved,
				Kind:       EffectApproved,
				Count:      true,
				PointDelta: points,
			})
		}
		return effects, nil

	case chore.CriteriaSharedFirst:
		effects := []Effect{{
			AssigneeID: actor,
			From:       self.State,
			To:         chore.StateApproved,
			Kind:       EffectApproved,
			Count:      true,
			PointDelta: points,
		}}
		// The winner is approved; everyone still pending or overdue loses
		// the cycle in the same effect list.
		for _, id := range sortedIDs(snap) {
			if id == actor {
				continue
			}
			st := snap[id].State
			if st == chore.StatePending || st == chore.StateOverdue {
				effects = append(effects, Effect{
					AssigneeID: id,
					From:       st,
					To:         chore.StateCompletedByOther,
					Kind:       EffectCompletedByOther,
					Count:      false,
				})
			}
		}
		return effects, nil
	}
	return nil, chore.NewConfigurationError("unknown completion criteria", nil)
}

func computeDisapprove(snap Snapshot, criteria chore.CompletionCriteria, actor string) ([]Effect, error) {
	self := snap[actor]
	if self.State != chore.StateClaimed {
		return nil, chore.NewTransitionError(string(ActionDisapprove), self.State)
	}

	effects := []Effect{{
		AssigneeID: actor,
		From:       self.State,
		To:         chore.StatePending,
		Kind:       EffectDisapproved,
		Count:      true,
	}}
	if criteria == chore.CriteriaShared {
		for _, id := range sortedIDs(snap) {
			if id == actor {
				continue
			}
			effects = append(effects, Effect{
				AssigneeID: id,
				From:       snap[id].State,
				To:         chore.StatePending,
				Kind:       EffectDisapproved,
				Count:      false,
			})
		}
	}
	return effects, nil
}

func computeUndo(snap Snapshot, criteria chore.CompletionCriteria, actor string, points int) ([]Effect, error) {
	self := snap[actor]
	if self.State != chore.StateApproved {
		return nil, chore.NewTransitionError(string(ActionUndo), self.State)
	}

	switch criteria {
	case chore.CriteriaIndependent:
		return []Effect{undoEffect(actor, self.State, -points)}, nil

	case chore.CriteriaShared:
		// Every assignee was credited on approval, so every credit is
		// reclaimed.
		var effects []Effect
		for _, id := range sortedIDs(snap) {
			effects = append(effects, undoEffect(id, snap[id].State, -points))
		}
		return effects, nil

	case chore.CriteriaSharedFirst:
		effects := []Effect{undoEffect(actor, self.State, -points)}
		// Reopen the cycle for the assignees that lost it.
		for _, id := range sortedIDs(snap) {
			if id == actor {
				continue
			}
			if snap[id].State == chore.StateCompletedByOther {
				effects = append(effects, Effect{
					AssigneeID: id,
					From:       chore.StateCompletedByOther,
					To:         chore.StatePending,
					Kind:       EffectUndone,
					Count:      false,
				})
			}
		}
		return effects, nil
	}
	return nil, chore.NewConfigurationError("unknown completion criteria", nil)
}

func undoEffect(assignee string, from chore.State, pointDelta int) Effect {
	return Effect{
		AssigneeID: assignee,
		From:       from,
		To:         chore.StateClaimed,
		Kind:       EffectUndone,
		Count:      false,
		PointDelta: pointDelta,
	}
}

func computeSkip(snap Snapshot, criteria chore.CompletionCriteria, actor string) ([]Effect, error) {
	self := snap[actor]
	if self.State != chore.StatePending && self.State != chore.StateOverdue {
		return nil, chore.NewTransitionError(string(ActionSkip), self.State)
	}

	effects := []Effect{{
		AssigneeID: actor,
		From:       self.State,
		To:         chore.StateSkipped,
		Kind:       EffectSkipped,
		Count:      true,
	}}
	if criteria == chore.CriteriaShared {
		for _, id := range sortedIDs(snap) {
			if id == actor {
				continue
			}
			st := snap[id].State
			if st == chore.StatePending || st == chore.StateOverdue {
				effects = append(effects, Effect{
					AssigneeID: id,
					From:       st,
					To:         chore.StateSkipped,
					Kind:       EffectSkipped,
					Count:      false,
				})
			}
		}
	}
	return effects, nil
}

// computeReset returns every targeted record to PENDING. An empty actor
// resets all assignees (shared routing); otherwise only the actor's record
// moves.
func computeReset(snap Snapshot, criteria chore.CompletionCriteria, actor string) ([]Effect, error) {
	targets := []string{actor}
	if actor == "" {
		targets = sortedIDs(snap)
	}
	var effects []Effect
	for _, id := range targets {
		st := snap[id].State
		if st == chore.StatePending {
			continue
		}
		effects = append(effects, Effect{
			AssigneeID: id,
			From:       st,
			To:         chore.StatePending,
			Kind:       EffectReset,
			Count:      true,
		})
	}
	return effects, nil
}

func computeMarkOverdue(snap Snapshot, criteria chore.CompletionCriteria, actor string) ([]Effect, error) {
	targets := []string{actor}
	if actor == "" {
		targets = sortedIDs(snap)
	}
	var effects []Effect
	for _, id := range targets {
		st := snap[id].State
		if st != chore.StatePending {
			continue
		}
		effects = append(effects, Effect{
			AssigneeID: id,
			From:       st,
			To:         chore.StateOverdue,
			Kind:       EffectOverdue,
			Count:      true,
		})
	}
	if len(effects) == 0 && actor != "" {
		return nil, chore.NewTransitionError(string(ActionMarkOverdue), snap[actor].State)
	}
	return effects, nil
}

func computeClearOverdue(snap Snapshot, criteria chore.CompletionCriteria, actor string) ([]Effect, error) {
	targets := []string{actor}
	if actor == "" {
		targets = sortedIDs(snap)
	}
	var effects []Effect
	for _, id := range targets {
		if snap[id].State != chore.StateOverdue {
			continue
		}
		effects = append(effects, Effect{
			AssigneeID: id,
			From:       chore.StateOverdue,
			To:         chore.StatePending,
			Kind:       EffectOverdueCleared,
			Count:      false,
		})
	}
	return effects, nil
}

func sortedIDs(snap Snapshot) []string {
	ids := make([]string, 0, len(snap))
	for id := range snap {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
