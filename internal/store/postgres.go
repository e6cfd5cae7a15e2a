package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/opinionex/answer-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) UpsertQuestion(ctx context.Context, q *model.Question) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO questions (id, text, description, creator, is_active, total_volume, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7)
		 ON CONFLICT (id) DO UPDATE
		 SET is_active = EXCLUDED.is_active, total_volume = EXCLUDED.total_volume`,
		q.ID, q.Text, q.Description, q.Creator, q.IsActive,
		q.TotalVolume.String(), q.CreatedAt,
	)
	return err
}

func (s *PostgresStore) GetQuestion(ctx context.Context, id uint64) (*model.Question, error) {
	var q model.Question
	var volume string

	err := s.pool.QueryRow(ctx,
		`SELECT id, text, description, creator, is_active, total_volume::TEXT, created_at
		 FROM questions WHERE id = $1`, id).
		Scan(&q.ID, &q.Text, &q.Description, &q.Creator, &q.IsActive, &volume, &q.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get question %d: %w", id, err)
	}
	q.TotalVolume, _ = decimal.NewFromString(volume)

	q.AnswerIDs, err = s.answerIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (s *PostgresStore) ListQuestions(ctx context.Context) ([]model.Question, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, text, description, creator, is_active, total_volume::TEXT, created_at
		 FROM questions ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		var volume string
		if err := rows.Scan(&q.ID, &q.Text, &q.Description, &q.Creator,
			&q.IsActive, &volume, &q.CreatedAt); err != nil {
			return nil, err
		}
		q.TotalVolume, _ = decimal.NewFromString(volume)
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// answerIDs returns a question's answer ids in proposal order.
func (s *PostgresStore) answerIDs(ctx context.Context, questionID uint64) ([]uint64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM answers WHERE question_id = $1 ORDER BY id`, questionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PostgresStore) UpsertAnswer(ctx context.Context, a *model.Answer) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO answers (id, question_id, text, proposer, total_shares, pool_value, is_active, is_flagged, created_at)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE
		 SET total_shares = EXCLUDED.total_shares, pool_value = EXCLUDED.pool_value,
		     is_active = EXCLUDED.is_active, is_flagged = EXCLUDED.is_flagged`,
		a.ID, a.QuestionID, a.Text, a.Proposer,
		a.TotalShares.String(), a.PoolValue.String(),
		a.IsActive, a.IsFlagged, a.CreatedAt,
	)
	return err
}

func (s *PostgresStore) GetAnswer(ctx context.Context, id uint64) (*model.Answer, error) {
	var a model.Answer
	var shares, pool string

	err := s.pool.QueryRow(ctx,
		`SELECT id, question_id, text, proposer,
		        total_shares::TEXT, pool_value::TEXT,
		        is_active, is_flagged, created_at
		 FROM answers WHERE id = $1`, id).
		Scan(&a.ID, &a.QuestionID, &a.Text, &a.Proposer,
			&shares, &pool,
			&a.IsActive, &a.IsFlagged, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get answer %d: %w", id, err)
	}

	a.TotalShares, _ = decimal.NewFromString(shares)
	a.PoolValue, _ = decimal.NewFromString(pool)
	return &a, nil
}

func (s *PostgresStore) ListAnswersByQuestion(ctx context.Context, questionID uint64) ([]model.Answer, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, question_id, text, proposer,
		        total_shares::TEXT, pool_value::TEXT,
		        is_active, is_flagged, created_at
		 FROM answers WHERE question_id = $1 ORDER BY id`, questionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.Answer
	for rows.Next() {
		var a model.Answer
		var shares, pool string
		if err := rows.Scan(&a.ID, &a.QuestionID, &a.Text, &a.Proposer,
			&shares, &pool,
			&a.IsActive, &a.IsFlagged, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.TotalShares, _ = decimal.NewFromString(shares)
		a.PoolValue, _ = decimal.NewFromString(pool)
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

func (s *PostgresStore) InsertTrade(ctx context.Context, e *model.TradeEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO trades (id, question_id, answer_id, trader, side, amount, shares, price, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7::NUMERIC, $8::NUMERIC, $9)`,
		e.ID, e.QuestionID, e.AnswerID, e.Trader, e.Side,
		e.Amount.String(), e.Shares.String(), e.Price.String(),
		e.Timestamp,
	)
	return err
}

func (s *PostgresStore) GetTradesByAnswer(ctx context.Context, answerID uint64) ([]model.TradeEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, question_id, answer_id, trader, side,
		        amount::TEXT, shares::TEXT, price::TEXT, timestamp
		 FROM trades WHERE answer_id = $1 ORDER BY timestamp`, answerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTrades(rows)
}

func (s *PostgresStore) GetTradesByTrader(ctx context.Context, trader string) ([]model.TradeEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, question_id, answer_id, trader, side,
		        amount::TEXT, shares::TEXT, price::TEXT, timestamp
		 FROM trades WHERE trader = $1 ORDER BY timestamp`, trader)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTrades(rows)
}

// scanTrades reads pgx rows into TradeEntry slices.
type pgxRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanTrades(rows pgxRows) ([]model.TradeEntry, error) {
	var entries []model.TradeEntry
	for rows.Next() {
		var e model.TradeEntry
		var amountS, sharesS, priceS string

		if err := rows.Scan(&e.ID, &e.QuestionID, &e.AnswerID, &e.Trader, &e.Side,
			&amountS, &sharesS, &priceS, &e.Timestamp); err != nil {
			return nil, err
		}

		e.Amount, _ = decimal.NewFromString(amountS)
		e.Shares, _ = decimal.NewFromString(sharesS)
		e.Price, _ = decimal.NewFromString(priceS)

		entries = append(entries, e)
	}
	return entries, nil
}
