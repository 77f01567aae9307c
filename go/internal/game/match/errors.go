package match

import "errors"

// Local precondition failures. They reach callers wrapped as
// apperr.KindRejected, so errors.Is works against either.
var (
	ErrNotYourTurn    = errors.New("not your turn")
	ErrRoomFinished   = errors.New("room already finished")
	ErrMoveInFlight   = errors.New("a move is already in flight for this room")
	ErrNotPending     = errors.New("room is not open for joining")
	ErrOwnRoom        = errors.New("cannot join your own room")
	ErrInvalidBet     = errors.New("invalid bet")
	ErrInvalidTimeout = errors.New("invalid turn timeout")
	ErrInvalidNumber  = errors.New("number out of range")
	ErrUnknownRoom    = errors.New("unknown room")
	ErrNoPlayer       = errors.New("local player not identified")
)
