package engine

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/opinionex/answer-engine/internal/access"
)

// Moderation and admin entry points. Capability checks run before any other
// validation. These remain available while paused — a pause is exactly when
// moderators and admins need to act.

// --- Moderation (content safety, reversible, no economic change) ---

// FlagAnswer marks an answer for review.
func (e *Engine) FlagAnswer(actor string, answerID uint64) ([]Event, error) {
	return e.setAnswerFlag(actor, answerID, true, EventAnswerFlagged)
}

// UnflagAnswer clears a review flag.
func (e *Engine) UnflagAnswer(actor string, answerID uint64) ([]Event, error) {
	return e.setAnswerFlag(actor, answerID, false, EventAnswerUnflagged)
}

func (e *Engine) setAnswerFlag(actor string, answerID uint64, flagged bool, evType EventType) ([]Event, error) {
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.exit()

	if !e.oracle.HasCapability(actor, access.Moderator) {
		return nil, ErrNotAuthorized
	}
	a, ok := e.answers[answerID]
	if !ok {
		return nil, ErrAnswerNotFound
	}

	a.IsFlagged = flagged
	ev := e.emit(Event{Type: evType, QuestionID: a.QuestionID, AnswerID: answerID, Actor: actor})
	return []Event{ev}, nil
}

// DeactivateAnswer halts buying into an answer. Sells stay possible so
// holders are never locked out of their value.
func (e *Engine) DeactivateAnswer(actor string, answerID uint64) ([]Event, error) {
	return e.setAnswerActive(actor, answerID, false, EventAnswerDeactivated)
}

// ReactivateAnswer re-enables buying.
func (e *Engine) ReactivateAnswer(actor string, answerID uint64) ([]Event, error) {
	return e.setAnswerActive(actor, answerID, true, EventAnswerReactivated)
}

func (e *Engine) setAnswerActive(actor string, answerID uint64, active bool, evType EventType) ([]Event, error) {
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.exit()

	if !e.oracle.HasCapability(actor, access.Moderator) {
		return nil, ErrNotAuthorized
	}
	a, ok := e.answers[answerID]
	if !ok {
		return nil, ErrAnswerNotFound
	}

	a.IsActive = active
	ev := e.emit(Event{Type: evType, QuestionID: a.QuestionID, AnswerID: answerID, Actor: actor})
	return []Event{ev}, nil
}

// DeactivateQuestion halts question creation flows: no new answers and no
// buys under the question. Re-setting the same value twice is allowed.
func (e *Engine) DeactivateQuestion(actor string, questionID uint64) ([]Event, error) {
	return e.setQuestionActive(actor, questionID, false, EventQuestionDeactivated)
}

// ReactivateQuestion re-enables a question.
func (e *Engine) ReactivateQuestion(actor string, questionID uint64) ([]Event, error) {
	return e.setQuestionActive(actor, questionID, true, EventQuestionReactivated)
}

func (e *Engine) setQuestionActive(actor string, questionID uint64, active bool, evType EventType) ([]Event, error) {
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.exit()

	if !e.oracle.HasCapability(actor, access.Moderator) {
		return nil, ErrNotAuthorized
	}
	q, ok := e.questions[questionID]
	if !ok {
		return nil, ErrQuestionNotFound
	}

	q.IsActive = active
	ev := e.emit(Event{Type: evType, QuestionID: questionID, Actor: actor})
	return []Event{ev}, nil
}

// --- Admin (economic parameters, pause, incident recovery) ---

// updateConfig validates a candidate configuration and installs it
// atomically with a bumped version.
func (e *Engine) updateConfig(actor string, mutate func(*Config)) ([]Event, error) {
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.exit()

	if !e.oracle.HasCapability(actor, access.Admin) {
		return nil, ErrNotAuthorized
	}

	next := e.cfg
	mutate(&next)
	if err := next.Validate(); err != nil {
		return nil, err
	}
	next.Version = e.cfg.Version + 1
	e.cfg = next

	ev := e.emit(Event{Type: EventConfigChanged, Actor: actor, Version: next.Version})
	return []Event{ev}, nil
}

// SetTradingFees adjusts the platform and creator fee rates, each bounded
// at 10%.
func (e *Engine) SetTradingFees(actor string, platformBps, creatorBps int64) ([]Event, error) {
	return e.updateConfig(actor, func(c *Config) {
		c.PlatformFeeBps = platformBps
		c.CreatorFeeBps = creatorBps
	})
}

// SetQuestionCreationFee adjusts the flat creation fee, up to the ceiling.
func (e *Engine) SetQuestionCreationFee(actor string, fee decimal.Decimal) ([]Event, error) {
	return e.updateConfig(actor, func(c *Config) { c.QuestionCreationFee = fee })
}

// SetAnswerProposalStake adjusts the proposal stake within its floor and
// ceiling.
func (e *Engine) SetAnswerProposalStake(actor string, stake decimal.Decimal) ([]Event, error) {
	return e.updateConfig(actor, func(c *Config) { c.AnswerProposalStake = stake })
}

// SetMaxAnswersPerQuestion adjusts the answer cap (2–50).
func (e *Engine) SetMaxAnswersPerQuestion(actor string, max int) ([]Event, error) {
	return e.updateConfig(actor, func(c *Config) { c.MaxAnswersPerQuestion = max })
}

// SetTreasury redirects platform fees to a new non-empty account.
func (e *Engine) SetTreasury(actor, treasury string) ([]Event, error) {
	return e.updateConfig(actor, func(c *Config) { c.Treasury = treasury })
}

// Pause halts every economic entry point until Unpause.
func (e *Engine) Pause(actor string) ([]Event, error) {
	return e.updateConfig(actor, func(c *Config) { c.Paused = true })
}

// Unpause resumes normal operation.
func (e *Engine) Unpause(actor string) ([]Event, error) {
	return e.updateConfig(actor, func(c *Config) { c.Paused = false })
}

// EmergencyWithdraw sweeps a specified custody balance to a recipient for
// incident recovery. Usable only while paused.
func (e *Engine) EmergencyWithdraw(ctx context.Context, actor, recipient string, amount decimal.Decimal) ([]Event, error) {
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.exit()

	if !e.oracle.HasCapability(actor, access.Admin) {
		return nil, ErrNotAuthorized
	}
	if !e.cfg.Paused {
		return nil, ErrNotPaused
	}
	if amount.Sign() <= 0 {
		return nil, ErrZeroAmount
	}

	if err := e.gateway.TransferOut(ctx, recipient, amount); err != nil {
		return nil, fmt.Errorf("emergency withdraw: %w", err)
	}

	ev := e.emit(Event{
		Type:   EventEmergencyWithdrawal,
		Actor:  actor,
		Text:   recipient,
		Amount: amount,
	})
	return []Event{ev}, nil
}
