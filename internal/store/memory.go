package store

import (
	"context"
	"sort"
	"sync"

	"github.com/opinionex/answer-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu        sync.RWMutex
	questions map[uint64]*model.Question
	answers   map[uint64]*model.Answer
	trades    []model.TradeEntry
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		questions: make(map[uint64]*model.Question),
		answers:   make(map[uint64]*model.Answer),
	}
}

func (s *MemoryStore) UpsertQuestion(_ context.Context, q *model.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to avoid external mutation.
	copy := *q
	copy.AnswerIDs = append([]uint64(nil), q.AnswerIDs...)
	s.questions[q.ID] = &copy
	return nil
}

func (s *MemoryStore) GetQuestion(_ context.Context, id uint64) (*model.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.questions[id]
	if !ok {
		return nil, ErrNotFound
	}
	copy := *q
	copy.AnswerIDs = append([]uint64(nil), q.AnswerIDs...)
	return &copy, nil
}

func (s *MemoryStore) ListQuestions(_ context.Context) ([]model.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	questions := make([]model.Question, 0, len(s.questions))
	for _, q := range s.questions {
		copy := *q
		copy.AnswerIDs = append([]uint64(nil), q.AnswerIDs...)
		questions = append(questions, copy)
	}
	sort.Slice(questions, func(i, j int) bool { return questions[i].ID < questions[j].ID })
	return questions, nil
}

func (s *MemoryStore) UpsertAnswer(_ context.Context, a *model.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *a
	s.answers[a.ID] = &copy
	return nil
}

func (s *MemoryStore) GetAnswer(_ context.Context, id uint64) (*model.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.answers[id]
	if !ok {
		return nil, ErrNotFound
	}
	copy := *a
	return &copy, nil
}

func (s *MemoryStore) ListAnswersByQuestion(_ context.Context, questionID uint64) ([]model.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var answers []model.Answer
	for _, a := range s.answers {
		if a.QuestionID == questionID {
			answers = append(answers, *a)
		}
	}
	// Answer ids are assigned in proposal order.
	sort.Slice(answers, func(i, j int) bool { return answers[i].ID < answers[j].ID })
	return answers, nil
}

func (s *MemoryStore) InsertTrade(_ context.Context, entry *model.TradeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trades = append(s.trades, *entry)
	return nil
}

func (s *MemoryStore) GetTradesByAnswer(_ context.Context, answerID uint64) ([]model.TradeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.TradeEntry
	for _, t := range s.trades {
		if t.AnswerID == answerID {
			result = append(result, t)
		}
	}
	return result, nil
}

func (s *MemoryStore) GetTradesByTrader(_ context.Context, trader string) ([]model.TradeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.TradeEntry
	for _, t := range s.trades {
		if t.Trader == trader {
			result = append(result, t)
		}
	}
	return result, nil
}
