package chore

import (
	"errors"
	"fmt"

	"github.com/choreguild/choreguild/pkg/cerr"
)

// Sentinel causes for the lifecycle error taxonomy. Callers distinguish
// them with errors.Is; the wrapping cerr.Error carries the user-facing
// message and HTTP classification.
var (
	ErrConfiguration   = errors.New("configuration error")
	ErrScheduling      = errors.New("scheduling error")
	ErrTransition      = errors.New("invalid transition")
	ErrAlreadyClaimed  = errors.New("already claimed")
	ErrAlreadyApproved = errors.New("already approved")
	ErrNotEligible     = errors.New("not eligible")
	ErrNotFound        = errors.New("not found")
)

func NewConfigurationError(msg string, underlying error) *cerr.Error {
	if underlying == nil {
		underlying = ErrConfiguration
	} else {
		underlying = fmt.Errorf("%w: %w", ErrConfiguration, underlying)
	}
	return cerr.NewError(cerr.InvalidArgument, msg, underlying)
}

func NewSchedulingError(choreID string, underlying error) *cerr.Error {
	return cerr.NewError(cerr.OutOfRange,
		fmt.Sprintf("chore %s: cannot compute a next due date", choreID),
		fmt.Errorf("%w: %w", ErrScheduling, underlying))
}

func NewTransitionError(action string, from State) *cerr.Error {
	return cerr.NewError(cerr.FailedPrecondition,
		fmt.Sprintf("cannot %s from state %s", action, from), ErrTransition)
}

// NewAlreadyClaimedError tells the losing actor who holds the claim.
func NewAlreadyClaimedError(choreID, claimedBy string) *cerr.Error {
	msg := "already claimed"
	if choreID != "" {
		msg = fmt.Sprintf("chore %s is already claimed", choreID)
	}
	if claimedBy != "" {
		msg += " by " + claimedBy
	}
	return cerr.NewError(cerr.AlreadyExists, msg, ErrAlreadyClaimed)
}

// NewAlreadyApprovedError tells the losing approver who won the race.
func NewAlreadyApprovedError(choreID, approvedBy string) *cerr.Error {
	msg := "already approved"
	if choreID != "" {
		msg = fmt.Sprintf("chore %s is already approved", choreID)
	}
	if approvedBy != "" {
		msg += " by " + approvedBy
	}
	return cerr.NewError(cerr.AlreadyExists, msg, ErrAlreadyApproved)
}

func NewNotEligibleError(reason string) *cerr.Error {
	return cerr.NewError(cerr.FailedPrecondition, reason, ErrNotEligible)
}

func NewNotFoundError(kind, id string) *cerr.Error {
	return cerr.NewError(cerr.NotFound,
		fmt.Sprintf("%s %s not found", kind, id), ErrNotFound)
}
