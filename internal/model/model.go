// Package model defines the core domain types shared across the answer engine.
// All monetary values use shopspring/decimal — never float64 for money.
// Amounts are integer-valued in base units of the settlement token
// (1 token = 1,000,000 base units, i.e. six decimal places).
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Question is a market: a prompt that competing answers are traded against.
// Questions are never deleted; moderation toggles IsActive.
type Question struct {
	ID          uint64          `json:"id" db:"id"`
	Text        string          `json:"text" db:"text"`
	Description string          `json:"description" db:"description"`
	Creator     string          `json:"creator" db:"creator"`
	IsActive    bool            `json:"is_active" db:"is_active"`
	TotalVolume decimal.Decimal `json:"total_volume" db:"total_volume"` // cumulative trade notional, base units
	AnswerIDs   []uint64        `json:"answer_ids" db:"answer_ids"`     // insertion order, append-only
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// Answer is one tradable outcome under a question. Its share pool follows a
// constant-ratio bonding curve: price = PoolValue / TotalShares.
type Answer struct {
	ID          uint64          `json:"id" db:"id"`
	QuestionID  uint64          `json:"question_id" db:"question_id"`
	Text        string          `json:"text" db:"text"`
	Proposer    string          `json:"proposer" db:"proposer"`
	TotalShares decimal.Decimal `json:"total_shares" db:"total_shares"` // whole shares, >= 1 always
	PoolValue   decimal.Decimal `json:"pool_value" db:"pool_value"`     // base units backing the shares
	IsActive    bool            `json:"is_active" db:"is_active"`
	IsFlagged   bool            `json:"is_flagged" db:"is_flagged"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// Position is one holder's stake in one answer.
type Position struct {
	AnswerID  uint64          `json:"answer_id"`
	Holder    string          `json:"holder"`
	Shares    decimal.Decimal `json:"shares"`
	CostBasis decimal.Decimal `json:"cost_basis"` // base units paid for shares currently held
}

// Sides for TradeEntry.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// TradeEntry is an immutable record of a buy or sell execution.
// Once created, these are never modified or deleted.
type TradeEntry struct {
	ID         string          `json:"id" db:"id"`
	QuestionID uint64          `json:"question_id" db:"question_id"`
	AnswerID   uint64          `json:"answer_id" db:"answer_id"`
	Trader     string          `json:"trader" db:"trader"`
	Side       string          `json:"side" db:"side"`     // "BUY" or "SELL"
	Amount     decimal.Decimal `json:"amount" db:"amount"` // gross notional, base units
	Shares     decimal.Decimal `json:"shares" db:"shares"` // shares minted or burned
	Price      decimal.Decimal `json:"price" db:"price"`   // resulting spot price, base units per share
	Timestamp  time.Time       `json:"timestamp" db:"timestamp"`
}
