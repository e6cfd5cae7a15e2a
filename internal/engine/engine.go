// Package engine implements the multi-answer bonding-curve share market:
// question/answer lifecycle, share issuance and redemption pricing, fee
// splitting, reserve invariants, and moderation/admin control.
//
// Every public entry point executes as one atomic unit: all validation runs
// before any state mutation or token transfer, and a failure anywhere aborts
// the call with no partial effect. An explicit operation-in-progress guard
// rejects nested entry, so a token-transfer hook can never observe or mutate
// half-updated state.
//
// All monetary values use shopspring/decimal — never float64 for money.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/opinionex/answer-engine/internal/access"
	"github.com/opinionex/answer-engine/internal/curve"
	"github.com/opinionex/answer-engine/internal/model"
	"github.com/opinionex/answer-engine/internal/token"
)

type positionKey struct {
	answerID uint64
	holder   string
}

// Engine owns the authoritative market state. The surrounding service layer
// serializes callers; the busy guard exists to reject genuine reentrancy
// from gateway hooks, not to queue concurrent requests.
type Engine struct {
	mu   sync.RWMutex
	busy atomic.Bool

	cfg     Config
	gateway token.Gateway
	oracle  access.Oracle
	now     func() time.Time

	questions   map[uint64]*model.Question
	answers     map[uint64]*model.Answer
	positions   map[positionKey]*model.Position
	holders     map[uint64]map[string]struct{}
	pendingFees map[string]decimal.Decimal
	totalFees   decimal.Decimal // sum of pendingFees, platform-wide

	nextQuestionID uint64
	nextAnswerID   uint64

	events   []Event
	eventSeq uint64
}

// Option customizes engine construction.
type Option func(*Engine)

// WithClock overrides the time source (deadlines, event stamps).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New validates cfg and constructs an engine backed by the given gateway
// and capability oracle.
func New(cfg Config, gw token.Gateway, oracle access.Oracle, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:         cfg,
		gateway:     gw,
		oracle:      oracle,
		now:         func() time.Time { return time.Now().UTC() },
		questions:   make(map[uint64]*model.Question),
		answers:     make(map[uint64]*model.Answer),
		positions:   make(map[positionKey]*model.Position),
		holders:     make(map[uint64]map[string]struct{}),
		pendingFees: make(map[string]decimal.Decimal),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// enter acquires the operation guard and the write lock. The guard is
// checked before the lock so a reentrant call from a transfer hook fails
// with ErrReentrantCall instead of deadlocking.
func (e *Engine) enter() error {
	if !e.busy.CompareAndSwap(false, true) {
		return ErrReentrantCall
	}
	e.mu.Lock()
	return nil
}

// exit releases the write lock and the guard, on every exit path.
func (e *Engine) exit() {
	e.mu.Unlock()
	e.busy.Store(false)
}

// --- Results ---

// QuestionResult is returned by CreateQuestion.
type QuestionResult struct {
	Question model.Question
	Events   []Event
}

// ProposeResult is returned by ProposeAnswer.
type ProposeResult struct {
	Answer model.Answer
	Events []Event
}

// TradeResult is returned by BuyShares and SellShares.
type TradeResult struct {
	QuestionID  uint64          `json:"question_id"`
	AnswerID    uint64          `json:"answer_id"`
	Trader      string          `json:"trader"`
	Side        string          `json:"side"`
	Amount      decimal.Decimal `json:"amount"` // gross notional, base units
	PlatformFee decimal.Decimal `json:"platform_fee"`
	CreatorFee  decimal.Decimal `json:"creator_fee"`
	Shares      decimal.Decimal `json:"shares"` // minted (buy) or burned (sell)
	Payout      decimal.Decimal `json:"payout"` // net to seller; zero on buys
	Price       decimal.Decimal `json:"price"`  // resulting spot price
	Events      []Event         `json:"-"`
}

// ClaimResult is returned by ClaimAccumulatedFees.
type ClaimResult struct {
	Account string          `json:"account"`
	Amount  decimal.Decimal `json:"amount"`
	Events  []Event         `json:"-"`
}

// --- Question Registry ---

// CreateQuestion validates the prompt, pulls the flat creation fee from the
// creator straight through to the treasury, and registers an active
// question with no answers.
func (e *Engine) CreateQuestion(ctx context.Context, creator, text, description string) (*QuestionResult, error) {
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.exit()

	if e.cfg.Paused {
		return nil, ErrEnforcedPause
	}
	if err := validateLength(text, MinQuestionTextLen, MaxQuestionTextLen); err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(description) > MaxDescriptionLen {
		return nil, ErrTextTooLong
	}

	fee := e.cfg.QuestionCreationFee
	if fee.Sign() > 0 {
		if err := e.gateway.TransferIn(ctx, creator, fee); err != nil {
			return nil, fmt.Errorf("question creation fee: %w", err)
		}
		if err := e.gateway.TransferOut(ctx, e.cfg.Treasury, fee); err != nil {
			return nil, fmt.Errorf("question creation fee: %w", err)
		}
	}

	e.nextQuestionID++
	q := &model.Question{
		ID:          e.nextQuestionID,
		Text:        text,
		Description: description,
		Creator:     creator,
		IsActive:    true,
		TotalVolume: decimal.Zero,
		CreatedAt:   e.now(),
	}
	e.questions[q.ID] = q

	ev := e.emit(Event{
		Type:       EventQuestionCreated,
		QuestionID: q.ID,
		Actor:      creator,
		Text:       text,
		Fee:        fee,
	})

	return &QuestionResult{Question: snapshotQuestion(q), Events: []Event{ev}}, nil
}

// --- Answer Market ---

// ProposeAnswer stakes the configured amount into a fresh answer pool,
// minting the genesis share supply (exactly one token per share) to the
// proposer.
func (e *Engine) ProposeAnswer(ctx context.Context, proposer string, questionID uint64, text string) (*ProposeResult, error) {
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.exit()

	if e.cfg.Paused {
		return nil, ErrEnforcedPause
	}

	q, ok := e.questions[questionID]
	if !ok {
		return nil, ErrQuestionNotFound
	}
	if !q.IsActive {
		return nil, ErrQuestionNotActive
	}
	if err := validateLength(text, MinAnswerTextLen, MaxAnswerTextLen); err != nil {
		return nil, err
	}
	for _, id := range q.AnswerIDs {
		if strings.EqualFold(e.answers[id].Text, text) {
			return nil, ErrDuplicateAnswer
		}
	}
	if len(q.AnswerIDs) >= e.cfg.MaxAnswersPerQuestion {
		return nil, ErrMaxAnswersReached
	}

	stake := e.cfg.AnswerProposalStake
	genesis := curve.GenesisShares(stake)

	if err := e.gateway.TransferIn(ctx, proposer, stake); err != nil {
		return nil, fmt.Errorf("answer proposal stake: %w", err)
	}

	e.nextAnswerID++
	a := &model.Answer{
		ID:          e.nextAnswerID,
		QuestionID:  questionID,
		Text:        text,
		Proposer:    proposer,
		TotalShares: genesis,
		PoolValue:   stake,
		IsActive:    true,
		CreatedAt:   e.now(),
	}
	e.answers[a.ID] = a
	q.AnswerIDs = append(q.AnswerIDs, a.ID)

	e.positions[positionKey{a.ID, proposer}] = &model.Position{
		AnswerID:  a.ID,
		Holder:    proposer,
		Shares:    genesis,
		CostBasis: stake,
	}
	e.holders[a.ID] = map[string]struct{}{proposer: {}}

	ev := e.emit(Event{
		Type:       EventAnswerProposed,
		QuestionID: questionID,
		AnswerID:   a.ID,
		Actor:      proposer,
		Text:       text,
		Amount:     stake,
		Shares:     genesis,
		Price:      curve.Unit,
	})

	return &ProposeResult{Answer: *a, Events: []Event{ev}}, nil
}

// BuyShares splits platform and creator fees off the top, adds the remainder
// to the answer's pool, and mints shares at the pre-trade pool/share ratio.
func (e *Engine) BuyShares(ctx context.Context, buyer string, answerID uint64, amount, minSharesOut decimal.Decimal, deadline time.Time) (*TradeResult, error) {
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.exit()

	if e.cfg.Paused {
		return nil, ErrEnforcedPause
	}
	if e.now().After(deadline) {
		return nil, ErrDeadlineExpired
	}
	if amount.Sign() <= 0 {
		return nil, ErrZeroAmount
	}

	a, ok := e.answers[answerID]
	if !ok {
		return nil, ErrAnswerNotFound
	}
	if !a.IsActive {
		return nil, ErrAnswerNotActive
	}
	q := e.questions[a.QuestionID]
	if !q.IsActive {
		return nil, ErrQuestionNotActive
	}

	platformFee := curve.Fee(amount, e.cfg.PlatformFeeBps)
	creatorFee := curve.Fee(amount, e.cfg.CreatorFeeBps)
	net := amount.Sub(platformFee).Sub(creatorFee)

	sharesOut, err := curve.SharesOut(net, a.TotalShares, a.PoolValue)
	if err != nil {
		return nil, err
	}
	if sharesOut.LessThan(minSharesOut) {
		return nil, ErrSlippageExceeded
	}

	if err := e.gateway.TransferIn(ctx, buyer, amount); err != nil {
		return nil, fmt.Errorf("buy: %w", err)
	}
	if platformFee.Sign() > 0 {
		if err := e.gateway.TransferOut(ctx, e.cfg.Treasury, platformFee); err != nil {
			return nil, fmt.Errorf("buy platform fee: %w", err)
		}
	}

	// Creator fee is pull-based: credited to the accumulator, never pushed
	// to an address that may reject it.
	if creatorFee.Sign() > 0 {
		e.accrueFee(q.Creator, creatorFee)
	}

	a.PoolValue = a.PoolValue.Add(net)
	a.TotalShares = a.TotalShares.Add(sharesOut)

	pos := e.positions[positionKey{answerID, buyer}]
	if pos == nil {
		pos = &model.Position{AnswerID: answerID, Holder: buyer}
		e.positions[positionKey{answerID, buyer}] = pos
	}
	pos.Shares = pos.Shares.Add(sharesOut)
	pos.CostBasis = pos.CostBasis.Add(amount)
	e.holders[answerID][buyer] = struct{}{}

	q.TotalVolume = q.TotalVolume.Add(amount)

	price, _ := curve.SpotPrice(a.PoolValue, a.TotalShares)

	events := []Event{e.emit(Event{
		Type:       EventSharesBought,
		QuestionID: a.QuestionID,
		AnswerID:   answerID,
		Actor:      buyer,
		Amount:     amount,
		Shares:     sharesOut,
		Price:      price,
		Fee:        platformFee.Add(creatorFee),
	})}
	if creatorFee.Sign() > 0 {
		events = append(events, e.emit(Event{
			Type:       EventFeesAccrued,
			QuestionID: a.QuestionID,
			AnswerID:   answerID,
			Actor:      q.Creator,
			Fee:        creatorFee,
		}))
	}

	return &TradeResult{
		QuestionID:  a.QuestionID,
		AnswerID:    answerID,
		Trader:      buyer,
		Side:        model.SideBuy,
		Amount:      amount,
		PlatformFee: platformFee,
		CreatorFee:  creatorFee,
		Shares:      sharesOut,
		Payout:      decimal.Zero,
		Price:       price,
		Events:      events,
	}, nil
}

// SellShares burns shares for the proportional pool slice, fees off the
// gross. Selling stays possible on a deactivated answer so holders are
// never locked out of their value; only an unknown answer blocks a sell.
func (e *Engine) SellShares(ctx context.Context, seller string, answerID uint64, sharesIn, minUsdcOut decimal.Decimal, deadline time.Time) (*TradeResult, error) {
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.exit()

	if e.cfg.Paused {
		return nil, ErrEnforcedPause
	}
	if e.now().After(deadline) {
		return nil, ErrDeadlineExpired
	}
	if sharesIn.Sign() <= 0 {
		return nil, ErrZeroAmount
	}

	a, ok := e.answers[answerID]
	if !ok {
		return nil, ErrAnswerNotFound
	}

	pos := e.positions[positionKey{answerID, seller}]
	if pos == nil || pos.Shares.LessThan(sharesIn) {
		return nil, ErrInsufficientShares
	}

	gross, err := curve.GrossPayout(sharesIn, a.PoolValue, a.TotalShares)
	if err != nil {
		return nil, err
	}
	platformFee := curve.Fee(gross, e.cfg.PlatformFeeBps)
	creatorFee := curve.Fee(gross, e.cfg.CreatorFeeBps)
	net := gross.Sub(platformFee).Sub(creatorFee)

	if net.LessThan(minUsdcOut) {
		return nil, ErrSlippageExceeded
	}
	if curve.ViolatesReserve(a.TotalShares, sharesIn, a.PoolValue, gross) {
		return nil, ErrSharesReserveViolation
	}

	q := e.questions[a.QuestionID]

	// State is fully updated before any outbound transfer, so a transfer
	// hook re-entering the engine can never see shares that were paid out
	// but not burned.
	a.PoolValue = a.PoolValue.Sub(gross)
	a.TotalShares = a.TotalShares.Sub(sharesIn)

	pos.CostBasis = pos.CostBasis.Sub(curve.Apportion(pos.CostBasis, sharesIn, pos.Shares))
	pos.Shares = pos.Shares.Sub(sharesIn)
	if pos.Shares.IsZero() {
		delete(e.positions, positionKey{answerID, seller})
		delete(e.holders[answerID], seller)
	}

	if creatorFee.Sign() > 0 {
		e.accrueFee(q.Creator, creatorFee)
	}
	q.TotalVolume = q.TotalVolume.Add(gross)

	if platformFee.Sign() > 0 {
		if err := e.gateway.TransferOut(ctx, e.cfg.Treasury, platformFee); err != nil {
			return nil, fmt.Errorf("sell platform fee: %w", err)
		}
	}
	if net.Sign() > 0 {
		if err := e.gateway.TransferOut(ctx, seller, net); err != nil {
			return nil, fmt.Errorf("sell payout: %w", err)
		}
	}

	price, _ := curve.SpotPrice(a.PoolValue, a.TotalShares)

	events := []Event{e.emit(Event{
		Type:       EventSharesSold,
		QuestionID: a.QuestionID,
		AnswerID:   answerID,
		Actor:      seller,
		Amount:     gross,
		Shares:     sharesIn,
		Price:      price,
		Fee:        platformFee.Add(creatorFee),
	})}
	if creatorFee.Sign() > 0 {
		events = append(events, e.emit(Event{
			Type:       EventFeesAccrued,
			QuestionID: a.QuestionID,
			AnswerID:   answerID,
			Actor:      q.Creator,
			Fee:        creatorFee,
		}))
	}

	return &TradeResult{
		QuestionID:  a.QuestionID,
		AnswerID:    answerID,
		Trader:      seller,
		Side:        model.SideSell,
		Amount:      gross,
		PlatformFee: platformFee,
		CreatorFee:  creatorFee,
		Shares:      sharesIn,
		Payout:      net,
		Price:       price,
		Events:      events,
	}, nil
}

// --- Fee Accumulator ---

// ClaimAccumulatedFees pays out the caller's entire pending creator-fee
// balance. The balance is zeroed before the transfer, so a reentrant
// double-claim can never observe the old balance.
func (e *Engine) ClaimAccumulatedFees(ctx context.Context, caller string) (*ClaimResult, error) {
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.exit()

	if e.cfg.Paused {
		return nil, ErrEnforcedPause
	}

	amount := e.pendingFees[caller]
	if amount.Sign() <= 0 {
		return nil, ErrNoFeesToClaim
	}

	delete(e.pendingFees, caller)
	e.totalFees = e.totalFees.Sub(amount)

	if err := e.gateway.TransferOut(ctx, caller, amount); err != nil {
		// Transfer failed: the whole call aborts with no effect.
		e.pendingFees[caller] = amount
		e.totalFees = e.totalFees.Add(amount)
		return nil, fmt.Errorf("fee claim: %w", err)
	}

	ev := e.emit(Event{
		Type:  EventFeesClaimed,
		Actor: caller,
		Fee:   amount,
	})

	return &ClaimResult{Account: caller, Amount: amount, Events: []Event{ev}}, nil
}

// accrueFee credits a creator's pending balance. Callers hold the write lock.
func (e *Engine) accrueFee(creator string, amount decimal.Decimal) {
	e.pendingFees[creator] = e.pendingFees[creator].Add(amount)
	e.totalFees = e.totalFees.Add(amount)
}

// --- helpers ---

func validateLength(text string, min, max int) error {
	n := utf8.RuneCountInString(text)
	if n < min {
		return ErrTextTooShort
	}
	if n > max {
		return ErrTextTooLong
	}
	return nil
}

// snapshotQuestion copies a question, including its answer-id slice, so
// callers cannot mutate engine state through a result.
func snapshotQuestion(q *model.Question) model.Question {
	out := *q
	out.AnswerIDs = append([]uint64(nil), q.AnswerIDs...)
	return out
}
