package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/opinionex/answer-engine/internal/access"
	"github.com/opinionex/answer-engine/internal/engine"
	"github.com/opinionex/answer-engine/internal/token"
)

// --- Moderation ---

func TestModeration_RequiresCapability(t *testing.T) {
	e := newTestEnv(t)
	qid := e.seedQuestion(t, "alice")
	aid := e.seedAnswer(t, "bob", qid, "Base")

	calls := map[string]func() ([]engine.Event, error){
		"FlagAnswer":         func() ([]engine.Event, error) { return e.eng.FlagAnswer("rando", aid) },
		"UnflagAnswer":       func() ([]engine.Event, error) { return e.eng.UnflagAnswer("rando", aid) },
		"DeactivateAnswer":   func() ([]engine.Event, error) { return e.eng.DeactivateAnswer("rando", aid) },
		"ReactivateAnswer":   func() ([]engine.Event, error) { return e.eng.ReactivateAnswer("rando", aid) },
		"DeactivateQuestion": func() ([]engine.Event, error) { return e.eng.DeactivateQuestion("rando", qid) },
		"ReactivateQuestion": func() ([]engine.Event, error) { return e.eng.ReactivateQuestion("rando", qid) },
	}
	for name, call := range calls {
		if _, err := call(); err != engine.ErrNotAuthorized {
			t.Errorf("%s without capability: expected ErrNotAuthorized, got %v", name, err)
		}
	}

	// Admin alone does not grant moderation.
	if _, err := e.eng.FlagAnswer("admin", aid); err != engine.ErrNotAuthorized {
		t.Errorf("admin without moderator capability: expected ErrNotAuthorized, got %v", err)
	}
}

func TestFlagUnflagAnswer(t *testing.T) {
	e := newTestEnv(t)
	qid := e.seedQuestion(t, "alice")
	aid := e.seedAnswer(t, "bob", qid, "Base")

	evs, err := e.eng.FlagAnswer("mod", aid)
	if err != nil {
		t.Fatalf("FlagAnswer: %v", err)
	}
	if len(evs) != 1 || evs[0].Type != engine.EventAnswerFlagged {
		t.Errorf("expected an answer_flagged event, got %+v", evs)
	}
	a, _ := e.eng.Answer(aid)
	if !a.IsFlagged {
		t.Error("answer should be flagged")
	}
	// Flagging does not halt trading.
	e.fund("carol", 100)
	if _, err := e.eng.BuyShares(context.Background(), "carol", aid, usdc(10), decimal.Zero, e.far); err != nil {
		t.Errorf("buy on flagged answer should succeed, got %v", err)
	}

	if _, err := e.eng.UnflagAnswer("mod", aid); err != nil {
		t.Fatalf("UnflagAnswer: %v", err)
	}
	a, _ = e.eng.Answer(aid)
	if a.IsFlagged {
		t.Error("answer should be unflagged")
	}
}

func TestModeration_UnknownTargets(t *testing.T) {
	e := newTestEnv(t)

	if _, err := e.eng.FlagAnswer("mod", 999); err != engine.ErrAnswerNotFound {
		t.Errorf("expected ErrAnswerNotFound, got %v", err)
	}
	if _, err := e.eng.DeactivateQuestion("mod", 999); err != engine.ErrQuestionNotFound {
		t.Errorf("expected ErrQuestionNotFound, got %v", err)
	}
}

func TestModeration_Idempotent(t *testing.T) {
	e := newTestEnv(t)
	qid := e.seedQuestion(t, "alice")

	if _, err := e.eng.DeactivateQuestion("mod", qid); err != nil {
		t.Fatalf("first deactivation: %v", err)
	}
	// Re-setting the same state is allowed, not an error.
	if _, err := e.eng.DeactivateQuestion("mod", qid); err != nil {
		t.Errorf("second deactivation should succeed, got %v", err)
	}
	q, _ := e.eng.Question(qid)
	if q.IsActive {
		t.Error("question should stay inactive")
	}
}

// --- Admin configuration ---

func TestAdmin_RequiresCapability(t *testing.T) {
	e := newTestEnv(t)

	if _, err := e.eng.SetTradingFees("mod", 100, 100); err != engine.ErrNotAuthorized {
		t.Errorf("moderator setting fees: expected ErrNotAuthorized, got %v", err)
	}
	if _, err := e.eng.Pause("rando"); err != engine.ErrNotAuthorized {
		t.Errorf("rando pausing: expected ErrNotAuthorized, got %v", err)
	}
}

func TestAdmin_SetTradingFees(t *testing.T) {
	e := newTestEnv(t)

	evs, err := e.eng.SetTradingFees("admin", 200, 100)
	if err != nil {
		t.Fatalf("SetTradingFees: %v", err)
	}
	cfg := e.eng.Config()
	if cfg.PlatformFeeBps != 200 || cfg.CreatorFeeBps != 100 {
		t.Errorf("fees not applied: %+v", cfg)
	}
	if cfg.Version != 1 {
		t.Errorf("expected config version 1, got %d", cfg.Version)
	}
	if len(evs) != 1 || evs[0].Type != engine.EventConfigChanged || evs[0].Version != 1 {
		t.Errorf("expected a config_changed event at version 1, got %+v", evs)
	}

	// Each fee is independently capped at 10%; the combined rate is not.
	if _, err := e.eng.SetTradingFees("admin", 1001, 0); err != engine.ErrInvalidConfig {
		t.Errorf("expected ErrInvalidConfig for platform fee above cap, got %v", err)
	}
	if _, err := e.eng.SetTradingFees("admin", 0, 1001); err != engine.ErrInvalidConfig {
		t.Errorf("expected ErrInvalidConfig for creator fee above cap, got %v", err)
	}
	if _, err := e.eng.SetTradingFees("admin", 1000, 1000); err != nil {
		t.Errorf("both fees at the cap should be valid, got %v", err)
	}

	// A rejected update must not bump the version.
	if _, err := e.eng.SetTradingFees("admin", -1, 0); err != engine.ErrInvalidConfig {
		t.Errorf("expected ErrInvalidConfig for negative fee, got %v", err)
	}
	if v := e.eng.Config().Version; v != 2 {
		t.Errorf("expected version 2 after two valid updates, got %d", v)
	}
}

func TestAdmin_ParameterBounds(t *testing.T) {
	e := newTestEnv(t)

	if _, err := e.eng.SetQuestionCreationFee("admin", engine.MaxQuestionCreationFee.Add(decimal.NewFromInt(1))); err != engine.ErrInvalidConfig {
		t.Errorf("creation fee above ceiling: expected ErrInvalidConfig, got %v", err)
	}
	if _, err := e.eng.SetQuestionCreationFee("admin", decimal.Zero); err != nil {
		t.Errorf("zero creation fee is valid, got %v", err)
	}

	if _, err := e.eng.SetAnswerProposalStake("admin", decimal.NewFromInt(1)); err != engine.ErrInvalidConfig {
		t.Errorf("stake below one token: expected ErrInvalidConfig, got %v", err)
	}
	if _, err := e.eng.SetAnswerProposalStake("admin", usdc(1000)); err != nil {
		t.Errorf("stake at ceiling is valid, got %v", err)
	}

	if _, err := e.eng.SetMaxAnswersPerQuestion("admin", 1); err != engine.ErrInvalidConfig {
		t.Errorf("answer cap of 1: expected ErrInvalidConfig, got %v", err)
	}
	if _, err := e.eng.SetMaxAnswersPerQuestion("admin", 51); err != engine.ErrInvalidConfig {
		t.Errorf("answer cap of 51: expected ErrInvalidConfig, got %v", err)
	}

	if _, err := e.eng.SetTreasury("admin", ""); err != engine.ErrInvalidConfig {
		t.Errorf("empty treasury: expected ErrInvalidConfig, got %v", err)
	}
	if _, err := e.eng.SetTreasury("admin", "treasury2"); err != nil {
		t.Errorf("SetTreasury: %v", err)
	}
	if e.eng.Config().Treasury != "treasury2" {
		t.Error("treasury not updated")
	}
}

func TestAdmin_FeeChangeAppliesToNextTrade(t *testing.T) {
	e := newTestEnv(t)
	qid := e.seedQuestion(t, "alice")
	aid := e.seedAnswer(t, "bob", qid, "Base")
	e.fund("carol", 1000)

	if _, err := e.eng.SetTradingFees("admin", 0, 0); err != nil {
		t.Fatalf("SetTradingFees: %v", err)
	}
	res, err := e.eng.BuyShares(context.Background(), "carol", aid, usdc(100), decimal.Zero, e.far)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if !res.PlatformFee.IsZero() || !res.CreatorFee.IsZero() {
		t.Errorf("zero-fee trade still charged: platform=%s creator=%s", res.PlatformFee, res.CreatorFee)
	}
	// Full amount goes to the pool: 100*5/5 = 100 shares.
	if !res.Shares.Equal(di(100)) {
		t.Errorf("expected 100 shares at zero fees, got %s", res.Shares)
	}
}

// --- Pause / emergency ---

func TestPause_BlocksEconomicEntryPoints(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	qid := e.seedQuestion(t, "alice")
	aid := e.seedAnswer(t, "bob", qid, "Base")
	e.fund("carol", 1000)
	if _, err := e.eng.BuyShares(ctx, "carol", aid, usdc(100), decimal.Zero, e.far); err != nil {
		t.Fatalf("buy: %v", err)
	}

	if _, err := e.eng.Pause("admin"); err != nil {
		t.Fatalf("Pause: %v", err)
	}

	if _, err := e.eng.CreateQuestion(ctx, "alice", "another question", ""); err != engine.ErrEnforcedPause {
		t.Errorf("CreateQuestion while paused: expected ErrEnforcedPause, got %v", err)
	}
	if _, err := e.eng.ProposeAnswer(ctx, "bob", qid, "another"); err != engine.ErrEnforcedPause {
		t.Errorf("ProposeAnswer while paused: expected ErrEnforcedPause, got %v", err)
	}
	if _, err := e.eng.BuyShares(ctx, "carol", aid, usdc(10), decimal.Zero, e.far); err != engine.ErrEnforcedPause {
		t.Errorf("BuyShares while paused: expected ErrEnforcedPause, got %v", err)
	}
	if _, err := e.eng.SellShares(ctx, "carol", aid, di(1), decimal.Zero, e.far); err != engine.ErrEnforcedPause {
		t.Errorf("SellShares while paused: expected ErrEnforcedPause, got %v", err)
	}
	if _, err := e.eng.ClaimAccumulatedFees(ctx, "alice"); err != engine.ErrEnforcedPause {
		t.Errorf("ClaimAccumulatedFees while paused: expected ErrEnforcedPause, got %v", err)
	}

	// Moderation stays available while paused.
	if _, err := e.eng.FlagAnswer("mod", aid); err != nil {
		t.Errorf("moderation while paused should succeed, got %v", err)
	}
	// Queries stay available while paused.
	if _, err := e.eng.Question(qid); err != nil {
		t.Errorf("query while paused should succeed, got %v", err)
	}

	// Unpause restores everything.
	if _, err := e.eng.Unpause("admin"); err != nil {
		t.Fatalf("Unpause: %v", err)
	}
	if _, err := e.eng.ClaimAccumulatedFees(ctx, "alice"); err != nil {
		t.Errorf("claim after unpause: %v", err)
	}
}

func TestEmergencyWithdraw(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	qid := e.seedQuestion(t, "alice")
	e.seedAnswer(t, "bob", qid, "Base")

	// Only while paused.
	if _, err := e.eng.EmergencyWithdraw(ctx, "admin", "recovery", usdc(1)); err != engine.ErrNotPaused {
		t.Errorf("expected ErrNotPaused, got %v", err)
	}

	if _, err := e.eng.Pause("admin"); err != nil {
		t.Fatalf("Pause: %v", err)
	}

	if _, err := e.eng.EmergencyWithdraw(ctx, "mod", "recovery", usdc(1)); err != engine.ErrNotAuthorized {
		t.Errorf("moderator withdrawing: expected ErrNotAuthorized, got %v", err)
	}
	if _, err := e.eng.EmergencyWithdraw(ctx, "admin", "recovery", decimal.Zero); err != engine.ErrZeroAmount {
		t.Errorf("zero withdrawal: expected ErrZeroAmount, got %v", err)
	}

	custodyBefore := e.bank.Custody()
	evs, err := e.eng.EmergencyWithdraw(ctx, "admin", "recovery", usdc(3))
	if err != nil {
		t.Fatalf("EmergencyWithdraw: %v", err)
	}
	if len(evs) != 1 || evs[0].Type != engine.EventEmergencyWithdrawal {
		t.Errorf("expected an emergency_withdrawal event, got %+v", evs)
	}
	if !e.bank.BalanceOf("recovery").Equal(usdc(3)) {
		t.Errorf("recipient balance = %s, want 3 tokens", e.bank.BalanceOf("recovery"))
	}
	if !custodyBefore.Sub(e.bank.Custody()).Equal(usdc(3)) {
		t.Error("custody must drop by exactly the withdrawn amount")
	}

	// Cannot sweep more than custody holds.
	if _, err := e.eng.EmergencyWithdraw(ctx, "admin", "recovery", usdc(1_000_000)); err == nil {
		t.Error("over-withdrawal should fail")
	}
}

// --- Reentrancy ---

// hookGateway wraps a Bank and fires a hook before delegating TransferIn,
// standing in for a token with transfer callbacks.
type hookGateway struct {
	*token.Bank
	hook func()
}

func (g *hookGateway) TransferIn(ctx context.Context, from string, amount decimal.Decimal) error {
	if g.hook != nil {
		g.hook()
	}
	return g.Bank.TransferIn(ctx, from, amount)
}

func TestReentrancyGuard(t *testing.T) {
	bank := token.NewBank()
	oracle := access.NewStaticOracle()
	gw := &hookGateway{Bank: bank}

	eng, err := engine.New(engine.DefaultConfig("treasury"), gw, oracle,
		engine.WithClock(func() time.Time { return testNow }))
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}

	fund := func(account string) {
		bank.Mint(account, usdc(1000))
		bank.Approve(account, usdc(1000))
	}
	fund("alice")
	fund("bob")
	fund("carol")

	ctx := context.Background()
	far := testNow.Add(time.Hour)

	qres, err := eng.CreateQuestion(ctx, "alice", "Will it happen?", "")
	if err != nil {
		t.Fatalf("CreateQuestion: %v", err)
	}
	pres, err := eng.ProposeAnswer(ctx, "bob", qres.Question.ID, "Base")
	if err != nil {
		t.Fatalf("ProposeAnswer: %v", err)
	}
	aid := pres.Answer.ID

	// The hook re-enters the engine mid-trade. The nested call must be
	// rejected with ErrReentrantCall; the outer call must complete.
	var nestedErr error
	gw.hook = func() {
		gw.hook = nil // fire once
		_, nestedErr = eng.BuyShares(ctx, "carol", aid, usdc(10), decimal.Zero, far)
	}

	res, err := eng.BuyShares(ctx, "carol", aid, usdc(100), decimal.Zero, far)
	if err != nil {
		t.Fatalf("outer buy must succeed, got %v", err)
	}
	if nestedErr != engine.ErrReentrantCall {
		t.Errorf("nested buy: expected ErrReentrantCall, got %v", nestedErr)
	}
	if !res.Shares.Equal(di(98)) {
		t.Errorf("outer buy minted %s shares, want 98", res.Shares)
	}

	a, err := eng.Answer(aid)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	// Only the outer trade touched the pool.
	if !a.PoolValue.Equal(usdc(103)) || !a.TotalShares.Equal(di(103)) {
		t.Errorf("state reflects the nested trade: pool=%s shares=%s", a.PoolValue, a.TotalShares)
	}
}

// --- Event log ---

func TestEventLog_SequencedAndFilterable(t *testing.T) {
	e := newTestEnv(t)
	qid := e.seedQuestion(t, "alice")
	e.seedAnswer(t, "bob", qid, "Base")

	all := e.eng.Events(0)
	if len(all) < 2 {
		t.Fatalf("expected at least 2 events, got %d", len(all))
	}
	for i, ev := range all {
		if ev.Seq != uint64(i+1) {
			t.Fatalf("event %d has seq %d, want %d", i, ev.Seq, i+1)
		}
	}
	if all[0].Type != engine.EventQuestionCreated || all[1].Type != engine.EventAnswerProposed {
		t.Errorf("unexpected event order: %s, %s", all[0].Type, all[1].Type)
	}

	tail := e.eng.Events(all[len(all)-1].Seq - 1)
	if len(tail) != 1 || tail[0].Seq != all[len(all)-1].Seq {
		t.Errorf("since-filter wrong: got %+v", tail)
	}
}
