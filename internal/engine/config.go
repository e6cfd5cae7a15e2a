package engine

import (
	"github.com/shopspring/decimal"

	"github.com/opinionex/answer-engine/internal/curve"
)

// Text length bounds.
const (
	MinQuestionTextLen = 5
	MaxQuestionTextLen = 100
	MaxDescriptionLen  = 280
	MinAnswerTextLen   = 1
	MaxAnswerTextLen   = 60
)

// Configuration bounds enforced at write time.
const (
	MaxFeeBps       = 1000 // 10%, per fee
	MinAnswersLimit = 2
	MaxAnswersLimit = 50
)

var (
	// MaxQuestionCreationFee caps the flat fee an admin can set: 100 tokens.
	MaxQuestionCreationFee = decimal.NewFromInt(100).Mul(curve.Unit)

	// MinAnswerProposalStake / MaxAnswerProposalStake bound the proposal
	// stake between one token and 1000 tokens.
	MinAnswerProposalStake = curve.Unit
	MaxAnswerProposalStake = decimal.NewFromInt(1000).Mul(curve.Unit)
)

// Config is the engine's global configuration. It is an explicit versioned
// record: admin mutators validate a full replacement and install it
// atomically, bumping Version, rather than poking ambient globals.
type Config struct {
	QuestionCreationFee   decimal.Decimal `json:"question_creation_fee"` // base units, paid to treasury
	AnswerProposalStake   decimal.Decimal `json:"answer_proposal_stake"` // base units, seeds the pool
	PlatformFeeBps        int64           `json:"platform_fee_bps"`
	CreatorFeeBps         int64           `json:"creator_fee_bps"`
	MaxAnswersPerQuestion int             `json:"max_answers_per_question"`
	Treasury              string          `json:"treasury"`
	Paused                bool            `json:"paused"`
	Version               uint64          `json:"version"` // bumped on every admin mutation
}

// DefaultConfig returns the launch parameters: 2-token creation fee,
// 5-token proposal stake, 1.5% platform / 0.5% creator fees, 10 answers
// per question.
func DefaultConfig(treasury string) Config {
	return Config{
		QuestionCreationFee:   decimal.NewFromInt(2).Mul(curve.Unit),
		AnswerProposalStake:   decimal.NewFromInt(5).Mul(curve.Unit),
		PlatformFeeBps:        150,
		CreatorFeeBps:         50,
		MaxAnswersPerQuestion: 10,
		Treasury:              treasury,
	}
}

// Validate checks every bound the admin mutators enforce.
func (c Config) Validate() error {
	if c.QuestionCreationFee.Sign() < 0 || c.QuestionCreationFee.GreaterThan(MaxQuestionCreationFee) {
		return ErrInvalidConfig
	}
	if c.AnswerProposalStake.LessThan(MinAnswerProposalStake) || c.AnswerProposalStake.GreaterThan(MaxAnswerProposalStake) {
		return ErrInvalidConfig
	}
	if c.PlatformFeeBps < 0 || c.PlatformFeeBps > MaxFeeBps {
		return ErrInvalidConfig
	}
	if c.CreatorFeeBps < 0 || c.CreatorFeeBps > MaxFeeBps {
		return ErrInvalidConfig
	}
	if c.MaxAnswersPerQuestion < MinAnswersLimit || c.MaxAnswersPerQuestion > MaxAnswersLimit {
		return ErrInvalidConfig
	}
	if c.Treasury == "" {
		return ErrInvalidConfig
	}
	return nil
}
