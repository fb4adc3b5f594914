package engine

import "errors"

// Validation rejections. The submitter gets them back wrapped with detail; state is untouched.
var (
	ErrWrongPhase     = errors.New("wrong phase")
	ErrNotAlive       = errors.New("actor not alive")
	ErrUnknownPlayer  = errors.New("unknown player")
	ErrRoleMismatch   = errors.New("role cannot use this ability")
	ErrAbilityUsed    = errors.New("ability already used")
	ErrInvalidTarget  = errors.New("invalid target")
	ErrSelfTarget     = errors.New("cannot target self")
	ErrRepeatTarget   = errors.New("cannot repeat last target")
	ErrCorrupted      = errors.New("actor is corrupted tonight")
	ErrMatchFinished  = errors.New("match finished")
	ErrNotYourTurn    = errors.New("not asked to act")
	ErrUnknownAbility = errors.New("unknown ability")
)

// Setup failures.
var ErrSeatCount = errors.New("seat count out of range")

// ErrInconsistent marks a fatal internal state problem. The match ends with it and is not persisted.
var ErrInconsistent = errors.New("inconsistent match state")
