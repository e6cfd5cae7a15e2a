package engine

import "errors"

// Every failure is surfaced synchronously to the caller and aborts the whole
// operation; no partial state is ever persisted. Nothing is retried
// internally — the caller's only remedy is to resubmit.
var (
	// Input validation.
	ErrTextTooShort      = errors.New("engine: text too short")
	ErrTextTooLong       = errors.New("engine: text too long")
	ErrZeroAmount        = errors.New("engine: amount must be non-zero")
	ErrDuplicateAnswer   = errors.New("engine: duplicate answer text for question")
	ErrMaxAnswersReached = errors.New("engine: question already has the maximum number of answers")
	ErrInvalidConfig     = errors.New("engine: configuration value out of bounds")

	// State preconditions.
	ErrQuestionNotFound  = errors.New("engine: question not found")
	ErrQuestionNotActive = errors.New("engine: question is not active")
	ErrAnswerNotFound    = errors.New("engine: answer not found")
	ErrAnswerNotActive   = errors.New("engine: answer is not active")

	// Economic safety.
	ErrSlippageExceeded       = errors.New("engine: output below caller's minimum")
	ErrDeadlineExpired        = errors.New("engine: transaction deadline expired")
	ErrInsufficientShares     = errors.New("engine: position holds fewer shares than requested")
	ErrSharesReserveViolation = errors.New("engine: sell would breach the pool or share reserve floor")
	ErrNoFeesToClaim          = errors.New("engine: no accumulated fees to claim")

	// Authorization.
	ErrNotAuthorized = errors.New("engine: caller lacks the required capability")

	// System mode.
	ErrEnforcedPause = errors.New("engine: operation unavailable while paused")
	ErrNotPaused     = errors.New("engine: emergency withdrawal requires paused state")

	// ErrReentrantCall is returned when an external transfer hook calls
	// back into the engine while an operation is in progress.
	ErrReentrantCall = errors.New("engine: reentrant call rejected")
)
