// Package service provides the HTTP handlers for the answer engine:
// question and answer lifecycle, share trading, fee claims, moderation,
// and admin control.
//
// All monetary values use shopspring/decimal — never float64 for money.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/opinionex/answer-engine/internal/engine"
	"github.com/opinionex/answer-engine/internal/metrics"
	"github.com/opinionex/answer-engine/internal/model"
	"github.com/opinionex/answer-engine/internal/store"
	"github.com/opinionex/answer-engine/internal/token"
)

// defaultTradeDeadline applies when a trade request carries no deadline.
const defaultTradeDeadline = 30 * time.Second

// Service handles market operations. The engine guards itself against
// reentrancy but does not queue callers, so the service serializes all
// mutating calls behind a mutex (single-instance). For horizontal scaling,
// replace with distributed locking.
type Service struct {
	eng   *engine.Engine
	store store.Store
	mu    sync.Mutex
	wsHub *WSHub // optional WebSocket hub for real-time broadcasts
}

// NewService creates a new answer-engine service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(eng *engine.Engine, st store.Store, hub *WSHub) *Service {
	return &Service{
		eng:   eng,
		store: st,
		wsHub: hub,
	}
}

// --- Request/Response types ---

// CreateQuestionRequest is the JSON body for POST /questions.
type CreateQuestionRequest struct {
	Creator     string `json:"creator"`
	Text        string `json:"text"`
	Description string `json:"description"`
}

// ProposeAnswerRequest is the JSON body for POST /answers.
type ProposeAnswerRequest struct {
	Proposer   string `json:"proposer"`
	QuestionID uint64 `json:"question_id"`
	Text       string `json:"text"`
}

// BuyRequest is the JSON body for POST /trades/buy.
type BuyRequest struct {
	Buyer        string          `json:"buyer"`
	AnswerID     uint64          `json:"answer_id"`
	Amount       decimal.Decimal `json:"amount"`         // gross, base units
	MinSharesOut decimal.Decimal `json:"min_shares_out"` // slippage bound; 0 = none
	Deadline     int64           `json:"deadline"`       // unix seconds; 0 = default
}

// SellRequest is the JSON body for POST /trades/sell.
type SellRequest struct {
	Seller       string          `json:"seller"`
	AnswerID     uint64          `json:"answer_id"`
	Shares       decimal.Decimal `json:"shares"`
	MinAmountOut decimal.Decimal `json:"min_amount_out"` // net, base units; 0 = none
	Deadline     int64           `json:"deadline"`       // unix seconds; 0 = default
}

// ActorRequest is the JSON body for moderation and simple admin actions.
type ActorRequest struct {
	Actor string `json:"actor"`
}

// SetFeesRequest is the JSON body for POST /admin/fees.
type SetFeesRequest struct {
	Actor          string `json:"actor"`
	PlatformFeeBps int64  `json:"platform_fee_bps"`
	CreatorFeeBps  int64  `json:"creator_fee_bps"`
}

// SetAmountRequest is the JSON body for amount-valued admin settings.
type SetAmountRequest struct {
	Actor  string          `json:"actor"`
	Amount decimal.Decimal `json:"amount"` // base units
}

// SetMaxAnswersRequest is the JSON body for POST /admin/max-answers.
type SetMaxAnswersRequest struct {
	Actor string `json:"actor"`
	Max   int    `json:"max"`
}

// SetTreasuryRequest is the JSON body for POST /admin/treasury.
type SetTreasuryRequest struct {
	Actor    string `json:"actor"`
	Treasury string `json:"treasury"`
}

// EmergencyWithdrawRequest is the JSON body for POST /admin/emergency-withdraw.
type EmergencyWithdrawRequest struct {
	Actor     string          `json:"actor"`
	Recipient string          `json:"recipient"`
	Amount    decimal.Decimal `json:"amount"` // base units
}

// --- Question handlers ---

// CreateQuestion handles POST /api/v1/questions
func (s *Service) CreateQuestion(w http.ResponseWriter, r *http.Request) {
	var req CreateQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Creator == "" {
		writeError(w, "creator is required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	res, err := s.eng.CreateQuestion(r.Context(), req.Creator, req.Text, req.Description)
	s.mu.Unlock()
	if err != nil {
		writeEngineError(w, err)
		return
	}

	s.persistQuestion(r.Context(), res.Question.ID)
	s.refreshActiveQuestions()

	slog.Info("question created",
		"id", res.Question.ID,
		"creator", req.Creator,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(res.Question)
}

// ListQuestions handles GET /api/v1/questions
func (s *Service) ListQuestions(w http.ResponseWriter, _ *http.Request) {
	questions := s.eng.Questions()
	if questions == nil {
		questions = []model.Question{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(questions)
}

// GetQuestion handles GET /api/v1/questions/{questionID}
func (s *Service) GetQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "questionID")
	if err != nil {
		writeError(w, "invalid question id", http.StatusBadRequest)
		return
	}

	q, err := s.eng.Question(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(q)
}

// ListAnswers handles GET /api/v1/questions/{questionID}/answers
func (s *Service) ListAnswers(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "questionID")
	if err != nil {
		writeError(w, "invalid question id", http.StatusBadRequest)
		return
	}

	ids, err := s.eng.AnswerIDs(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	answers := make([]model.Answer, 0, len(ids))
	for _, aid := range ids {
		a, err := s.eng.Answer(aid)
		if err != nil {
			continue
		}
		answers = append(answers, a)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(answers)
}

// GetLeader handles GET /api/v1/questions/{questionID}/leader
func (s *Service) GetLeader(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "questionID")
	if err != nil {
		writeError(w, "invalid question id", http.StatusBadRequest)
		return
	}

	leaderID, pool, err := s.eng.LeadingAnswer(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	resp := map[string]interface{}{
		"answer_id":  leaderID,
		"pool_value": pool,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// --- Answer handlers ---

// ProposeAnswer handles POST /api/v1/answers
func (s *Service) ProposeAnswer(w http.ResponseWriter, r *http.Request) {
	var req ProposeAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Proposer == "" {
		writeError(w, "proposer is required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	res, err := s.eng.ProposeAnswer(r.Context(), req.Proposer, req.QuestionID, req.Text)
	s.mu.Unlock()
	if err != nil {
		writeEngineError(w, err)
		return
	}

	s.persistQuestion(r.Context(), req.QuestionID)
	s.persistAnswer(r.Context(), res.Answer.ID)

	slog.Info("answer proposed",
		"id", res.Answer.ID,
		"question", req.QuestionID,
		"proposer", req.Proposer,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(res.Answer)
}

// GetAnswer handles GET /api/v1/answers/{answerID}
func (s *Service) GetAnswer(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "answerID")
	if err != nil {
		writeError(w, "invalid answer id", http.StatusBadRequest)
		return
	}

	a, err := s.eng.Answer(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(a)
}

// GetPrice handles GET /api/v1/answers/{answerID}/price
func (s *Service) GetPrice(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "answerID")
	if err != nil {
		writeError(w, "invalid answer id", http.StatusBadRequest)
		return
	}
	if _, err := s.eng.Answer(id); err != nil {
		writeEngineError(w, err)
		return
	}

	resp := map[string]decimal.Decimal{"price": s.eng.SharePrice(id)}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// GetHolders handles GET /api/v1/answers/{answerID}/holders
func (s *Service) GetHolders(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "answerID")
	if err != nil {
		writeError(w, "invalid answer id", http.StatusBadRequest)
		return
	}

	count, err := s.eng.HolderCount(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	resp := map[string]int{"holders": count}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// GetAnswerHistory handles GET /api/v1/answers/{answerID}/history
// Returns ledger entries to reconstruct price history.
func (s *Service) GetAnswerHistory(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "answerID")
	if err != nil {
		writeError(w, "invalid answer id", http.StatusBadRequest)
		return
	}

	entries, err := s.store.GetTradesByAnswer(r.Context(), id)
	if err != nil {
		writeError(w, "failed to get answer history", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []model.TradeEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

// GetPosition handles GET /api/v1/answers/{answerID}/positions/{holder}
func (s *Service) GetPosition(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "answerID")
	if err != nil {
		writeError(w, "invalid answer id", http.StatusBadRequest)
		return
	}
	holder := chi.URLParam(r, "holder")

	pos, err := s.eng.Position(id, holder)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(pos)
}

// --- Trade handlers ---

// Buy handles POST /api/v1/trades/buy
func (s *Service) Buy(w http.ResponseWriter, r *http.Request) {
	var req BuyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Buyer == "" {
		writeError(w, "buyer is required", http.StatusBadRequest)
		return
	}

	start := time.Now()
	s.mu.Lock()
	res, err := s.eng.BuyShares(r.Context(), req.Buyer, req.AnswerID,
		req.Amount, req.MinSharesOut, tradeDeadline(req.Deadline))
	s.mu.Unlock()
	if err != nil {
		writeEngineError(w, err)
		return
	}
	metrics.TradesTotal.WithLabelValues(model.SideBuy).Inc()
	metrics.TradeLatency.WithLabelValues(model.SideBuy).Observe(time.Since(start).Seconds())

	entry := s.recordTrade(r.Context(), res)

	slog.Info("shares bought",
		"trade_id", entry.ID,
		"buyer", req.Buyer,
		"answer", req.AnswerID,
		"amount", res.Amount.String(),
		"shares", res.Shares.String(),
		"price", res.Price.String(),
	)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

// Sell handles POST /api/v1/trades/sell
func (s *Service) Sell(w http.ResponseWriter, r *http.Request) {
	var req SellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Seller == "" {
		writeError(w, "seller is required", http.StatusBadRequest)
		return
	}

	start := time.Now()
	s.mu.Lock()
	res, err := s.eng.SellShares(r.Context(), req.Seller, req.AnswerID,
		req.Shares, req.MinAmountOut, tradeDeadline(req.Deadline))
	s.mu.Unlock()
	if err != nil {
		if errors.Is(err, engine.ErrSharesReserveViolation) {
			metrics.ReserveRejections.Inc()
		}
		writeEngineError(w, err)
		return
	}
	metrics.TradesTotal.WithLabelValues(model.SideSell).Inc()
	metrics.TradeLatency.WithLabelValues(model.SideSell).Observe(time.Since(start).Seconds())

	entry := s.recordTrade(r.Context(), res)

	slog.Info("shares sold",
		"trade_id", entry.ID,
		"seller", req.Seller,
		"answer", req.AnswerID,
		"gross", res.Amount.String(),
		"payout", res.Payout.String(),
		"shares", res.Shares.String(),
		"price", res.Price.String(),
	)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

// GetTraderHistory handles GET /api/v1/trades/{trader}
func (s *Service) GetTraderHistory(w http.ResponseWriter, r *http.Request) {
	trader := chi.URLParam(r, "trader")

	entries, err := s.store.GetTradesByTrader(r.Context(), trader)
	if err != nil {
		writeError(w, "failed to get trade history", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []model.TradeEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

// --- Fee handlers ---

// ClaimFees handles POST /api/v1/fees/claim
func (s *Service) ClaimFees(w http.ResponseWriter, r *http.Request) {
	var req ActorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Actor == "" {
		writeError(w, "actor is required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	res, err := s.eng.ClaimAccumulatedFees(r.Context(), req.Actor)
	s.mu.Unlock()
	if err != nil {
		writeEngineError(w, err)
		return
	}

	slog.Info("fees claimed", "account", req.Actor, "amount", res.Amount.String())

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

// GetPendingFees handles GET /api/v1/fees/{account}
func (s *Service) GetPendingFees(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")

	resp := map[string]decimal.Decimal{"pending": s.eng.PendingFees(account)}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// --- Event feed ---

// GetEvents handles GET /api/v1/events?since=N
func (s *Service) GetEvents(w http.ResponseWriter, r *http.Request) {
	var since uint64
	if v := r.URL.Query().Get("since"); v != "" {
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, "invalid since parameter", http.StatusBadRequest)
			return
		}
		since = parsed
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.eng.Events(since))
}

// --- Moderation handlers ---

// FlagAnswer handles POST /api/v1/mod/answers/{answerID}/flag
func (s *Service) FlagAnswer(w http.ResponseWriter, r *http.Request) {
	s.moderateAnswer(w, r, s.eng.FlagAnswer)
}

// UnflagAnswer handles POST /api/v1/mod/answers/{answerID}/unflag
func (s *Service) UnflagAnswer(w http.ResponseWriter, r *http.Request) {
	s.moderateAnswer(w, r, s.eng.UnflagAnswer)
}

// DeactivateAnswer handles POST /api/v1/mod/answers/{answerID}/deactivate
func (s *Service) DeactivateAnswer(w http.ResponseWriter, r *http.Request) {
	s.moderateAnswer(w, r, s.eng.DeactivateAnswer)
}

// ReactivateAnswer handles POST /api/v1/mod/answers/{answerID}/reactivate
func (s *Service) ReactivateAnswer(w http.ResponseWriter, r *http.Request) {
	s.moderateAnswer(w, r, s.eng.ReactivateAnswer)
}

func (s *Service) moderateAnswer(w http.ResponseWriter, r *http.Request, op func(string, uint64) ([]engine.Event, error)) {
	id, err := parseID(r, "answerID")
	if err != nil {
		writeError(w, "invalid answer id", http.StatusBadRequest)
		return
	}
	var req ActorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	evs, err := op(req.Actor, id)
	s.mu.Unlock()
	if err != nil {
		writeEngineError(w, err)
		return
	}

	s.persistAnswer(r.Context(), id)
	slog.Info("answer moderated", "answer", id, "actor", req.Actor, "action", evs[0].Type)
	writeEvents(w, evs)
}

// DeactivateQuestion handles POST /api/v1/mod/questions/{questionID}/deactivate
func (s *Service) DeactivateQuestion(w http.ResponseWriter, r *http.Request) {
	s.moderateQuestion(w, r, s.eng.DeactivateQuestion)
}

// ReactivateQuestion handles POST /api/v1/mod/questions/{questionID}/reactivate
func (s *Service) ReactivateQuestion(w http.ResponseWriter, r *http.Request) {
	s.moderateQuestion(w, r, s.eng.ReactivateQuestion)
}

func (s *Service) moderateQuestion(w http.ResponseWriter, r *http.Request, op func(string, uint64) ([]engine.Event, error)) {
	id, err := parseID(r, "questionID")
	if err != nil {
		writeError(w, "invalid question id", http.StatusBadRequest)
		return
	}
	var req ActorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	evs, err := op(req.Actor, id)
	s.mu.Unlock()
	if err != nil {
		writeEngineError(w, err)
		return
	}

	s.persistQuestion(r.Context(), id)
	s.refreshActiveQuestions()
	slog.Info("question moderated", "question", id, "actor", req.Actor, "action", evs[0].Type)
	writeEvents(w, evs)
}

// --- Admin handlers ---

// SetTradingFees handles POST /api/v1/admin/fees
func (s *Service) SetTradingFees(w http.ResponseWriter, r *http.Request) {
	var req SetFeesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	evs, err := s.eng.SetTradingFees(req.Actor, req.PlatformFeeBps, req.CreatorFeeBps)
	s.mu.Unlock()
	if err != nil {
		writeEngineError(w, err)
		return
	}

	slog.Info("trading fees updated", "actor", req.Actor,
		"platform_bps", req.PlatformFeeBps, "creator_bps", req.CreatorFeeBps)
	writeEvents(w, evs)
}

// SetCreationFee handles POST /api/v1/admin/creation-fee
func (s *Service) SetCreationFee(w http.ResponseWriter, r *http.Request) {
	s.adminAmount(w, r, s.eng.SetQuestionCreationFee, "question creation fee updated")
}

// SetProposalStake handles POST /api/v1/admin/proposal-stake
func (s *Service) SetProposalStake(w http.ResponseWriter, r *http.Request) {
	s.adminAmount(w, r, s.eng.SetAnswerProposalStake, "answer proposal stake updated")
}

func (s *Service) adminAmount(w http.ResponseWriter, r *http.Request, op func(string, decimal.Decimal) ([]engine.Event, error), msg string) {
	var req SetAmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	evs, err := op(req.Actor, req.Amount)
	s.mu.Unlock()
	if err != nil {
		writeEngineError(w, err)
		return
	}

	slog.Info(msg, "actor", req.Actor, "amount", req.Amount.String())
	writeEvents(w, evs)
}

// SetMaxAnswers handles POST /api/v1/admin/max-answers
func (s *Service) SetMaxAnswers(w http.ResponseWriter, r *http.Request) {
	var req SetMaxAnswersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	evs, err := s.eng.SetMaxAnswersPerQuestion(req.Actor, req.Max)
	s.mu.Unlock()
	if err != nil {
		writeEngineError(w, err)
		return
	}

	slog.Info("max answers per question updated", "actor", req.Actor, "max", req.Max)
	writeEvents(w, evs)
}

// SetTreasury handles POST /api/v1/admin/treasury
func (s *Service) SetTreasury(w http.ResponseWriter, r *http.Request) {
	var req SetTreasuryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	evs, err := s.eng.SetTreasury(req.Actor, req.Treasury)
	s.mu.Unlock()
	if err != nil {
		writeEngineError(w, err)
		return
	}

	slog.Info("treasury updated", "actor", req.Actor, "treasury", req.Treasury)
	writeEvents(w, evs)
}

// Pause handles POST /api/v1/admin/pause
func (s *Service) Pause(w http.ResponseWriter, r *http.Request) {
	s.adminToggle(w, r, s.eng.Pause, "engine paused")
}

// Unpause handles POST /api/v1/admin/unpause
func (s *Service) Unpause(w http.ResponseWriter, r *http.Request) {
	s.adminToggle(w, r, s.eng.Unpause, "engine unpaused")
}

func (s *Service) adminToggle(w http.ResponseWriter, r *http.Request, op func(string) ([]engine.Event, error), msg string) {
	var req ActorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	evs, err := op(req.Actor)
	s.mu.Unlock()
	if err != nil {
		writeEngineError(w, err)
		return
	}

	slog.Warn(msg, "actor", req.Actor)
	writeEvents(w, evs)
}

// EmergencyWithdraw handles POST /api/v1/admin/emergency-withdraw
func (s *Service) EmergencyWithdraw(w http.ResponseWriter, r *http.Request) {
	var req EmergencyWithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	evs, err := s.eng.EmergencyWithdraw(r.Context(), req.Actor, req.Recipient, req.Amount)
	s.mu.Unlock()
	if err != nil {
		writeEngineError(w, err)
		return
	}

	slog.Warn("emergency withdrawal",
		"actor", req.Actor,
		"recipient", req.Recipient,
		"amount", req.Amount.String(),
	)
	writeEvents(w, evs)
}

// GetConfig handles GET /api/v1/admin/config
func (s *Service) GetConfig(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.eng.Config())
}

// --- Persistence and broadcast helpers ---

// recordTrade writes the immutable ledger entry and refreshed snapshots,
// and broadcasts the trade. The engine is authoritative; store errors are
// logged, not surfaced to the trader.
func (s *Service) recordTrade(ctx context.Context, res *engine.TradeResult) *model.TradeEntry {
	entry := &model.TradeEntry{
		ID:         uuid.New().String(),
		QuestionID: res.QuestionID,
		AnswerID:   res.AnswerID,
		Trader:     res.Trader,
		Side:       res.Side,
		Amount:     res.Amount,
		Shares:     res.Shares,
		Price:      res.Price,
		Timestamp:  time.Now().UTC(),
	}

	if err := s.store.InsertTrade(ctx, entry); err != nil {
		slog.Warn("trade ledger write failed", "trade_id", entry.ID, "err", err)
	}
	s.persistQuestion(ctx, res.QuestionID)
	s.persistAnswer(ctx, res.AnswerID)

	metrics.FeeVolume.WithLabelValues("platform").Add(toFloat(res.PlatformFee))
	metrics.FeeVolume.WithLabelValues("creator").Add(toFloat(res.CreatorFee))

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:       "trade_executed",
			QuestionID: res.QuestionID,
			AnswerID:   res.AnswerID,
			Trader:     res.Trader,
			Side:       res.Side,
			Amount:     res.Amount.String(),
			Shares:     res.Shares.String(),
			Price:      res.Price.String(),
		})
	}
	return entry
}

func (s *Service) persistQuestion(ctx context.Context, id uint64) {
	q, err := s.eng.Question(id)
	if err != nil {
		return
	}
	if err := s.store.UpsertQuestion(ctx, &q); err != nil {
		slog.Warn("question snapshot write failed", "question", id, "err", err)
	}
}

func (s *Service) persistAnswer(ctx context.Context, id uint64) {
	a, err := s.eng.Answer(id)
	if err != nil {
		return
	}
	if err := s.store.UpsertAnswer(ctx, &a); err != nil {
		slog.Warn("answer snapshot write failed", "answer", id, "err", err)
	}
}

func (s *Service) refreshActiveQuestions() {
	active := 0
	for _, q := range s.eng.Questions() {
		if q.IsActive {
			active++
		}
	}
	metrics.ActiveQuestions.Set(float64(active))
}

// --- helpers ---

func parseID(r *http.Request, name string) (uint64, error) {
	return strconv.ParseUint(chi.URLParam(r, name), 10, 64)
}

// tradeDeadline converts a request deadline (unix seconds) into a time,
// applying the default when absent.
func tradeDeadline(unix int64) time.Time {
	if unix == 0 {
		return time.Now().UTC().Add(defaultTradeDeadline)
	}
	return time.Unix(unix, 0).UTC()
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func writeEvents(w http.ResponseWriter, evs []engine.Event) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"events": evs})
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeEngineError maps engine and token errors onto HTTP statuses:
// validation failures are 400, authorization 403, unknown entities 404,
// economic and state conflicts 409, and an enforced pause 503.
func writeEngineError(w http.ResponseWriter, err error) {
	writeError(w, err.Error(), errStatus(err))
}

func errStatus(err error) int {
	switch {
	case errors.Is(err, engine.ErrTextTooShort),
		errors.Is(err, engine.ErrTextTooLong),
		errors.Is(err, engine.ErrZeroAmount),
		errors.Is(err, engine.ErrInvalidConfig),
		errors.Is(err, engine.ErrDeadlineExpired),
		errors.Is(err, token.ErrNonPositiveAmount):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, engine.ErrQuestionNotFound),
		errors.Is(err, engine.ErrAnswerNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrEnforcedPause):
		return http.StatusServiceUnavailable
	case errors.Is(err, engine.ErrDuplicateAnswer),
		errors.Is(err, engine.ErrMaxAnswersReached),
		errors.Is(err, engine.ErrQuestionNotActive),
		errors.Is(err, engine.ErrAnswerNotActive),
		errors.Is(err, engine.ErrSlippageExceeded),
		errors.Is(err, engine.ErrInsufficientShares),
		errors.Is(err, engine.ErrSharesReserveViolation),
		errors.Is(err, engine.ErrNoFeesToClaim),
		errors.Is(err, engine.ErrNotPaused),
		errors.Is(err, engine.ErrReentrantCall),
		errors.Is(err, token.ErrInsufficientFunds),
		errors.Is(err, token.ErrInsufficientAllowance),
		errors.Is(err, token.ErrInsufficientCustody):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
