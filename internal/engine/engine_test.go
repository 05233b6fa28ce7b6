package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/choreguild/choreguild/internal/chore"
)

func snap(states map[string]chore.State) Snapshot {
	s := make(Snapshot, len(states))
	for id, st := range states {
		s[id] = AssigneeState{State: st}
	}
	return s
}

func effectFor(t *testing.T, effects []Effect, assignee string) Effect {
	t.Helper()
	for _, e := range effects {
		if e.AssigneeID == assignee {
			return e
		}
	}
	t.Fatalf("no effect for %s", assignee)
	return Effect{}
}

func TestClaimIndependent(t *testing.T) {
	s := snap(map[string]chore.State{"alice": chore.StatePending, "bob": chore.StatePending})
	effects, err := ComputeTransition(s, ActionClaim, chore.CriteriaIndependent, "alice", 5)
	require.NoError(t, err)
	require.Len(t, effects, 1, "independent claim must not touch siblings")

	e := effects[0]
	assert.Equal(t, "alice", e.AssigneeID)
	assert.Equal(t, chore.StateClaimed, e.To)
	assert.True(t, e.Count)
	assert.Zero(t, e.PointDelta)
}

func TestClaimAlreadyClaimed(t *testing.T) {
	s := Snapshot{"alice": {State: chore.StateClaimed, ClaimedBy: "alice"}}
	_, err := ComputeTransition(s, ActionClaim, chore.CriteriaIndependent, "alice", 5)
	assert.ErrorIs(t, err, chore.ErrAlreadyClaimed)
}

func TestClaimSharedMirrorsSiblings(t *testing.T) {
	s := snap(map[string]chore.State{"alice": chore.StatePending, "bob": chore.StatePending})
	effects, err := ComputeTransition(s, ActionClaim, chore.CriteriaShared, "alice", 5)
	require.NoError(t, err)
	require.Len(t, effects, 2)

	assert.True(t, effectFor(t, effects, "alice").Count)
	bob := effectFor(t, effects, "bob")
	assert.Equal(t, chore.StateClaimed, bob.To)
	assert.False(t, bob.Count, "mirror effects must not be counted")
}

func TestClaimSharedFirstExcludesLosers(t *testing.T) {
	s := snap(map[string]chore.State{
		"alice": chore.StateCompletedByOther,
		"bob":   chore.StatePending,
	})
	_, err := ComputeTransition(s, ActionClaim, chore.CriteriaSharedFirst, "alice", 5)
	assert.ErrorIs(t, err, chore.ErrNotEligible)

	// a sibling holding the claim blocks everyone
	s = Snapshot{
		"alice": {State: chore.StatePending},
		"bob":   {State: chore.StateClaimed, ClaimedBy: "bob"},
	}
	_, err = ComputeTransition(s, ActionClaim, chore.CriteriaSharedFirst, "alice", 5)
	assert.ErrorIs(t, err, chore.ErrAlreadyClaimed)
}

func TestApproveIndependentAwardsPoints(t *testing.T) {
	s := snap(map[string]chore.State{"alice": chore.StateClaimed, "bob": chore.StatePending})
	effects, err := ComputeTransition(s, ActionApprove, chore.CriteriaIndependent, "alice", 7)
	require.NoError(t, err)
	require.Len(t, effects, 1)
	assert.Equal(t, chore.StateApproved, effects[0].To)
	assert.Equal(t, 7, effects[0].PointDelta)
	assert.True(t, effects[0].Count)
}

func TestApproveSharedCreditsEveryAssignee(t *testing.T) {
	s := snap(map[string]chore.State{
		"alice": chore.StateClaimed,
		"bob":   chore.StateClaimed,
		"carol": chore.StateClaimed,
	})
	effects, err := ComputeTransition(s, ActionApprove, chore.CriteriaShared, "alice", 3)
	require.NoError(t, err)
	require.Len(t, effects, 3)
	for _, e := range effects {
		assert.Equal(t, chore.StateApproved, e.To)
		assert.Equal(t, 3, e.PointDelta, "shared approval credits %s", e.AssigneeID)
		assert.True(t, e.Count)
	}
}

func TestApproveSharedFirstClosesOutOthers(t *testing.T) {
	s := snap(map[string]chore.State{
		"alice": chore.StateClaimed,
		"bob":   chore.StatePending,
		"carol": chore.StateOverdue,
	})
	effects, err := ComputeTransition(s, ActionApprove, chore.CriteriaSharedFirst, "alice", 4)
	require.NoError(t, err)
	require.Len(t, effects, 3)

	winner := effectFor(t, effects, "alice")
	assert.Equal(t, chore.StateApproved, winner.To)
	assert.Equal(t, 4, winner.PointDelta)

	for _, loser := range []string{"bob", "carol"} {
		e := effectFor(t, effects, loser)
		assert.Equal(t, chore.StateCompletedByOther, e.To)
		assert.False(t, e.Count)
		assert.Zero(t, e.PointDelta, "only the winner is awarded")
	}
}

func TestApproveTwiceFails(t *testing.T) {
	s := snap(map[string]chore.State{"alice": chore.StateApproved})
	_, err := ComputeTransition(s, ActionApprove, chore.CriteriaIndependent, "alice", 4)
	assert.ErrorIs(t, err, chore.ErrAlreadyApproved)
}

func TestApproveUnclaimedFails(t *testing.T) {
	s := snap(map[string]chore.State{"alice": chore.StatePending})
	_, err := ComputeTransition(s, ActionApprove, chore.CriteriaIndependent, "alice", 4)
	assert.ErrorIs(t, err, chore.ErrTransition)
}

func TestDisapproveReturnsToPending(t *testing.T) {
	s := snap(map[string]chore.State{"alice": chore.StateClaimed})
	effects, err := ComputeTransition(s, ActionDisapprove, chore.CriteriaIndependent, "alice", 4)
	require.NoError(t, err)
	require.Len(t, effects, 1)
	assert.Equal(t, chore.StatePending, effects[0].To)
	assert.True(t, effects[0].Count)
	assert.Zero(t, effects[0].PointDelta)
}

func TestUndoReclaimsPointsWithoutCounting(t *testing.T) {
	s := snap(map[string]chore.State{"alice": chore.StateApproved})
	effects, err := ComputeTransition(s, ActionUndo, chore.CriteriaIndependent, "alice", 6)
	require.NoError(t, err)
	require.Len(t, effects, 1)
	assert.Equal(t, chore.StateClaimed, effects[0].To)
	assert.Equal(t, -6, effects[0].PointDelta)
	assert.False(t, effects[0].Count, "undo never feeds statistics")
}

func TestUndoSharedFirstReopensLosers(t *testing.T) {
	s := snap(map[string]chore.State{
		"alice": chore.StateApproved,
		"bob":   chore.StateCompletedByOther,
	})
	effects, err := ComputeTransition(s, ActionUndo, chore.CriteriaSharedFirst, "alice", 6)
	require.NoError(t, err)
	require.Len(t, effects, 2)

	assert.Equal(t, chore.StateClaimed, effectFor(t, effects, "alice").To)
	bob := effectFor(t, effects, "bob")
	assert.Equal(t, chore.StatePending, bob.To)
	assert.Zero(t, bob.PointDelta)
}

func TestUndoSharedReclaimsEveryCredit(t *testing.T) {
	s := snap(map[string]chore.State{
		"alice": chore.StateApproved,
		"bob":   chore.StateApproved,
	})
	effects, err := ComputeTransition(s, ActionUndo, chore.CriteriaShared, "alice", 6)
	require.NoError(t, err)
	require.Len(t, effects, 2)
	for _, e := range effects {
		assert.Equal(t, -6, e.PointDelta)
	}
}

func TestSkipOnlyFromPendingOrOverdue(t *testing.T) {
	s := snap(map[string]chore.State{"alice": chore.StateOverdue})
	effects, err := ComputeTransition(s, ActionSkip, chore.CriteriaIndependent, "alice", 4)
	require.NoError(t, err)
	assert.Equal(t, chore.StateSkipped, effects[0].To)

	s = snap(map[string]chore.State{"alice": chore.StateClaimed})
	_, err = ComputeTransition(s, ActionSkip, chore.CriteriaIndependent, "alice", 4)
	assert.ErrorIs(t, err, chore.ErrTransition)
}

func TestSkipSharedFirstLeavesSiblingsOpen(t *testing.T) {
	s := snap(map[string]chore.State{"alice": chore.StatePending, "bob": chore.StatePending})
	effects, err := ComputeTransition(s, ActionSkip, chore.CriteriaSharedFirst, "alice", 4)
	require.NoError(t, err)
	require.Len(t, effects, 1, "shared-first skip must not close the cycle for siblings")
}

func TestResetAllAssignees(t *testing.T) {
	s := snap(map[string]chore.State{
		"alice": chore.StateApproved,
		"bob":   chore.StateSkipped,
		"carol": chore.StatePending,
	})
	effects, err := ComputeTransition(s, ActionReset, chore.CriteriaShared, "", 4)
	require.NoError(t, err)
	require.Len(t, effects, 2, "records already pending produce no effect")
	for _, e := range effects {
		assert.Equal(t, chore.StatePending, e.To)
	}
}

func TestResetIsIdempotent(t *testing.T) {
	s := snap(map[string]chore.State{"alice": chore.StatePending})
	effects, err := ComputeTransition(s, ActionReset, chore.CriteriaIndependent, "alice", 4)
	require.NoError(t, err)
	assert.Empty(t, effects)
}

func TestMarkOverdueOnlyPending(t *testing.T) {
	s := snap(map[string]chore.State{"alice": chore.StatePending, "bob": chore.StateClaimed})
	effects, err := ComputeTransition(s, ActionMarkOverdue, chore.CriteriaShared, "", 4)
	require.NoError(t, err)
	require.Len(t, effects, 1)
	assert.Equal(t, "alice", effects[0].AssigneeID)
	assert.Equal(t, chore.StateOverdue, effects[0].To)
	assert.True(t, effects[0].Count)

	_, err = ComputeTransition(s, ActionMarkOverdue, chore.CriteriaIndependent, "bob", 4)
	assert.ErrorIs(t, err, chore.ErrTransition)
}

func TestClearOverdueIsCorrective(t *testing.T) {
	s := snap(map[string]chore.State{"alice": chore.StateOverdue})
	effects, err := ComputeTransition(s, ActionClearOverdue, chore.CriteriaIndependent, "alice", 4)
	require.NoError(t, err)
	require.Len(t, effects, 1)
	assert.Equal(t, chore.StatePending, effects[0].To)
	assert.False(t, effects[0].Count)
}

func TestUnknownAssignee(t *testing.T) {
	s := snap(map[string]chore.State{"alice": chore.StatePending})
	_, err := ComputeTransition(s, ActionClaim, chore.CriteriaIndependent, "mallory", 4)
	assert.ErrorIs(t, err, chore.ErrNotFound)
}

func TestEffectsAreDeterministicallyOrdered(t *testing.T) {
	s := snap(map[string]chore.State{
		"zoe":   chore.StateClaimed,
		"alice": chore.StateClaimed,
		"mia":   chore.StateClaimed,
	})
	effects, err := ComputeTransition(s, ActionApprove, chore.CriteriaShared, "mia", 1)
	require.NoError(t, err)
	require.Len(t, effects, 3)
	assert.Equal(t, "alice", effects[0].AssigneeID)
	assert.Equal(t, "mia", effects[1].AssigneeID)
	assert.Equal(t, "zoe", effects[2].AssigneeID)
}
