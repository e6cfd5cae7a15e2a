// Package store defines the persistence interface for the answer engine.
// The in-memory engine owns the authoritative market state; the store keeps
// the durable record behind it: the immutable trade ledger plus question and
// answer snapshots for history and dashboard reads. Implementations include
// PostgreSQL (source of truth), Redis (read-through cache), and in-memory
// (for testing).
package store

import (
	"context"
	"errors"

	"github.com/opinionex/answer-engine/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	// --- Snapshots (last-write-wins mirrors of engine state) ---

	// UpsertQuestion writes a question snapshot.
	UpsertQuestion(ctx context.Context, q *model.Question) error

	// GetQuestion retrieves a question snapshot by id.
	GetQuestion(ctx context.Context, id uint64) (*model.Question, error)

	// ListQuestions returns all question snapshots ordered by id.
	ListQuestions(ctx context.Context) ([]model.Question, error)

	// UpsertAnswer writes an answer snapshot.
	UpsertAnswer(ctx context.Context, a *model.Answer) error

	// GetAnswer retrieves an answer snapshot by id.
	GetAnswer(ctx context.Context, id uint64) (*model.Answer, error)

	// ListAnswersByQuestion returns a question's answer snapshots in
	// proposal order.
	ListAnswersByQuestion(ctx context.Context, questionID uint64) ([]model.Answer, error)

	// --- Immutable ledger ---

	// InsertTrade appends an immutable trade record.
	InsertTrade(ctx context.Context, entry *model.TradeEntry) error

	// GetTradesByAnswer returns all trades for an answer, oldest first.
	GetTradesByAnswer(ctx context.Context, answerID uint64) ([]model.TradeEntry, error)

	// GetTradesByTrader returns all trades by an account, oldest first.
	GetTradesByTrader(ctx context.Context, trader string) ([]model.TradeEntry, error)
}
