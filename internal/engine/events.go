package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventType names an entry in the engine's append-only event log.
type EventType string

const (
	EventQuestionCreated     EventType = "question_created"
	EventQuestionDeactivated EventType = "question_deactivated"
	EventQuestionReactivated EventType = "question_reactivated"
	EventAnswerProposed      EventType = "answer_proposed"
	EventAnswerDeactivated   EventType = "answer_deactivated"
	EventAnswerReactivated   EventType = "answer_reactivated"
	EventAnswerFlagged       EventType = "answer_flagged"
	EventAnswerUnflagged     EventType = "answer_unflagged"
	EventSharesBought        EventType = "shares_bought"
	EventSharesSold          EventType = "shares_sold"
	EventFeesAccrued         EventType = "fees_accrued"
	EventFeesClaimed         EventType = "fees_claimed"
	EventConfigChanged       EventType = "config_changed"
	EventEmergencyWithdrawal EventType = "emergency_withdrawal"
)

// Event is one entry in the append-only output log. Events are the only
// contract external indexers and front ends rely on; they are never
// delivered as callbacks, only read from the log or from operation results.
type Event struct {
	Seq        uint64          `json:"seq"`
	Type       EventType       `json:"type"`
	At         time.Time       `json:"at"`
	QuestionID uint64          `json:"question_id,omitempty"`
	AnswerID   uint64          `json:"answer_id,omitempty"`
	Actor      string          `json:"actor,omitempty"`
	Text       string          `json:"text,omitempty"`
	Amount     decimal.Decimal `json:"amount"` // base units; meaning depends on Type
	Shares     decimal.Decimal `json:"shares"`
	Price      decimal.Decimal `json:"price"` // resulting spot price, base units per share
	Fee        decimal.Decimal `json:"fee"`
	Version    uint64          `json:"version,omitempty"` // config version, for config_changed
}

// emit appends an event to the log, stamping sequence and time.
// Callers hold the engine write lock.
func (e *Engine) emit(ev Event) Event {
	e.eventSeq++
	ev.Seq = e.eventSeq
	ev.At = e.now()
	e.events = append(e.events, ev)
	return ev
}

// Events returns all log entries with Seq > sinceSeq, oldest first.
func (e *Engine) Events(sinceSeq uint64) []Event {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Event, 0)
	for _, ev := range e.events {
		if ev.Seq > sinceSeq {
			out = append(out, ev)
		}
	}
	return out
}
