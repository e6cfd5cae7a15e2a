package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/opinionex/answer-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, refresh or invalidate cache) ---

func (s *CachedStore) UpsertQuestion(ctx context.Context, q *model.Question) error {
	if err := s.primary.UpsertQuestion(ctx, q); err != nil {
		return err
	}
	s.cacheQuestion(ctx, q)
	return nil
}

func (s *CachedStore) UpsertAnswer(ctx context.Context, a *model.Answer) error {
	if err := s.primary.UpsertAnswer(ctx, a); err != nil {
		return err
	}
	s.cacheAnswer(ctx, a)
	// The parent question's answer-id list may have grown.
	s.rdb.Del(ctx, questionKey(a.QuestionID))
	return nil
}

func (s *CachedStore) InsertTrade(ctx context.Context, entry *model.TradeEntry) error {
	if err := s.primary.InsertTrade(ctx, entry); err != nil {
		return err
	}
	// Invalidate trade history for this answer and trader.
	s.rdb.Del(ctx, answerTradesKey(entry.AnswerID), traderTradesKey(entry.Trader))
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetQuestion(ctx context.Context, id uint64) (*model.Question, error) {
	data, err := s.rdb.Get(ctx, questionKey(id)).Bytes()
	if err == nil {
		var q model.Question
		if json.Unmarshal(data, &q) == nil {
			return &q, nil
		}
	}

	// Cache miss: read from primary.
	q, err := s.primary.GetQuestion(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheQuestion(ctx, q)
	return q, nil
}

func (s *CachedStore) GetAnswer(ctx context.Context, id uint64) (*model.Answer, error) {
	data, err := s.rdb.Get(ctx, answerKey(id)).Bytes()
	if err == nil {
		var a model.Answer
		if json.Unmarshal(data, &a) == nil {
			return &a, nil
		}
	}

	a, err := s.primary.GetAnswer(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheAnswer(ctx, a)
	return a, nil
}

func (s *CachedStore) GetTradesByAnswer(ctx context.Context, answerID uint64) ([]model.TradeEntry, error) {
	data, err := s.rdb.Get(ctx, answerTradesKey(answerID)).Bytes()
	if err == nil {
		var trades []model.TradeEntry
		if json.Unmarshal(data, &trades) == nil {
			return trades, nil
		}
	}

	trades, err := s.primary.GetTradesByAnswer(ctx, answerID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(trades); err == nil {
		s.rdb.Set(ctx, answerTradesKey(answerID), data, s.ttl)
	}
	return trades, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListQuestions(ctx context.Context) ([]model.Question, error) {
	return s.primary.ListQuestions(ctx)
}

func (s *CachedStore) ListAnswersByQuestion(ctx context.Context, questionID uint64) ([]model.Answer, error) {
	return s.primary.ListAnswersByQuestion(ctx, questionID)
}

func (s *CachedStore) GetTradesByTrader(ctx context.Context, trader string) ([]model.TradeEntry, error) {
	return s.primary.GetTradesByTrader(ctx, trader)
}

// --- Cache helpers ---

func (s *CachedStore) cacheQuestion(ctx context.Context, q *model.Question) {
	if data, err := json.Marshal(q); err == nil {
		s.rdb.Set(ctx, questionKey(q.ID), data, s.ttl)
	}
}

func (s *CachedStore) cacheAnswer(ctx context.Context, a *model.Answer) {
	if data, err := json.Marshal(a); err == nil {
		s.rdb.Set(ctx, answerKey(a.ID), data, s.ttl)
	}
}

func questionKey(id uint64) string        { return fmt.Sprintf("question:%d", id) }
func answerKey(id uint64) string          { return fmt.Sprintf("answer:%d", id) }
func answerTradesKey(id uint64) string    { return fmt.Sprintf("trades:answer:%d", id) }
func traderTradesKey(trader string) string { return fmt.Sprintf("trades:trader:%s", trader) }
