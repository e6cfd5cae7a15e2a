package engine

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/opinionex/answer-engine/internal/curve"
	"github.com/opinionex/answer-engine/internal/model"
)

// Read-only queries. All return copies; none mutate state.

// Question returns a question by id.
func (e *Engine) Question(id uint64) (model.Question, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	q, ok := e.questions[id]
	if !ok {
		return model.Question{}, ErrQuestionNotFound
	}
	return snapshotQuestion(q), nil
}

// Questions returns all questions ordered by id.
func (e *Engine) Questions() []model.Question {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]model.Question, 0, len(e.questions))
	for _, q := range e.questions {
		out = append(out, snapshotQuestion(q))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Answer returns an answer by id.
func (e *Engine) Answer(id uint64) (model.Answer, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	a, ok := e.answers[id]
	if !ok {
		return model.Answer{}, ErrAnswerNotFound
	}
	return *a, nil
}

// AnswerIDs returns a question's answer ids in proposal order.
func (e *Engine) AnswerIDs(questionID uint64) ([]uint64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	q, ok := e.questions[questionID]
	if !ok {
		return nil, ErrQuestionNotFound
	}
	return append([]uint64(nil), q.AnswerIDs...), nil
}

// Position returns a holder's stake in an answer. A holder with no position
// gets a zero position, not an error.
func (e *Engine) Position(answerID uint64, holder string) (model.Position, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if _, ok := e.answers[answerID]; !ok {
		return model.Position{}, ErrAnswerNotFound
	}
	if pos := e.positions[positionKey{answerID, holder}]; pos != nil {
		return *pos, nil
	}
	return model.Position{
		AnswerID:  answerID,
		Holder:    holder,
		Shares:    decimal.Zero,
		CostBasis: decimal.Zero,
	}, nil
}

// HolderCount returns the number of accounts with a nonzero share position
// in an answer.
func (e *Engine) HolderCount(answerID uint64) (int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if _, ok := e.answers[answerID]; !ok {
		return 0, ErrAnswerNotFound
	}
	return len(e.holders[answerID]), nil
}

// PendingFees returns a creator's unclaimed fee balance.
func (e *Engine) PendingFees(account string) decimal.Decimal {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pendingFees[account]
}

// TotalFeesOutstanding returns the platform-wide unclaimed creator-fee total.
func (e *Engine) TotalFeesOutstanding() decimal.Decimal {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.totalFees
}

// SharePrice returns an answer's spot price (base units per share). Unknown
// answers get the genesis baseline of one token per share — a defensive
// default for a read-only helper, not an error.
func (e *Engine) SharePrice(answerID uint64) decimal.Decimal {
	e.mu.RLock()
	defer e.mu.RUnlock()

	a, ok := e.answers[answerID]
	if !ok {
		return curve.Unit
	}
	price, err := curve.SpotPrice(a.PoolValue, a.TotalShares)
	if err != nil {
		return curve.Unit
	}
	return price
}

// LeadingAnswer returns the answer with the strictly greatest pool value
// under a question, with its pool value as the market-cap proxy. Ties
// resolve to the lowest answer id (first proposed wins).
func (e *Engine) LeadingAnswer(questionID uint64) (uint64, decimal.Decimal, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	q, ok := e.questions[questionID]
	if !ok {
		return 0, decimal.Zero, ErrQuestionNotFound
	}
	if len(q.AnswerIDs) == 0 {
		return 0, decimal.Zero, ErrAnswerNotFound
	}

	var leaderID uint64
	leaderPool := decimal.Zero
	for _, id := range q.AnswerIDs {
		a := e.answers[id]
		if leaderID == 0 || a.PoolValue.GreaterThan(leaderPool) {
			leaderID = id
			leaderPool = a.PoolValue
		}
	}
	return leaderID, leaderPool, nil
}

// Config returns the current configuration record.
func (e *Engine) Config() Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}
