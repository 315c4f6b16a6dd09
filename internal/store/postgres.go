package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/victornm/quizwire/internal/domain"
)

// Postgres is the database-backed store. The profile collection is still
// held in memory; SaveUsers upserts every profile in one transaction.
type Postgres struct {
	db *pgxpool.Pool
	profiles
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	const stmt = `
SELECT id, text, option_a, option_b, option_c, option_d, correct_answer, points, category, difficulty, time_limit
FROM questions
ORDER BY id;`

	rows, err := s.db.Query(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}

	qs, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Question, error) {
		var (
			q       domain.Question
			correct string
		)
		err := r.Scan(&q.ID, &q.Text, &q.OptionA, &q.OptionB, &q.OptionC, &q.OptionD,
			&correct, &q.Points, &q.Category, &q.Difficulty, &q.TimeLimit)
		if err != nil {
			return domain.Question{}, err
		}
		if correct != "" {
			q.CorrectAnswer = correct[0]
		}
		return q, nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect questions: %w", err)
	}

	if len(qs) == 0 {
		return nil, fmt.Errorf("questions table is empty")
	}

	return qs, nil
}

func (s *Postgres) LoadUsers(ctx context.Context) (int, error) {
	const stmt = `
SELECT username, total_points, games_played, games_won, curr_streak, max_streak, last_login
FROM users;`

	rows, err := s.db.Query(ctx, stmt)
	if err != nil {
		return 0, fmt.Errorf("query users: %w", err)
	}

	users, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (*domain.Profile, error) {
		var u domain.Profile
		err := r.Scan(&u.Username, &u.TotalPoints, &u.GamesPlayed, &u.GamesWon,
			&u.CurrStreak, &u.MaxStreak, &u.LastLogin)
		if err != nil {
			return nil, err
		}
		return &u, nil
	})
	if err != nil {
		return 0, fmt.Errorf("collect users: %w", err)
	}

	s.mu.Lock()
	s.users = users
	s.mu.Unlock()

	return len(users), nil
}

func (s *Postgres) FindUser(username string) *domain.Profile {
	return s.find(username)
}

func (s *Postgres) CreateUser(username string) *domain.Profile {
	u := s.create(username)

	if err := s.SaveUsers(context.Background()); err != nil {
		slog.Error("store: save users after create failed", "username", username, "error", err)
	}

	return u
}

func (s *Postgres) SaveUsers(ctx context.Context) (err error) {
	users := s.snapshot()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = stderrors.Join(err, tx.Rollback(ctx))
		}
	}()

	const stmt = `
INSERT INTO users (username, total_points, games_played, games_won, curr_streak, max_streak, last_login)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (username) DO UPDATE SET
	total_points = EXCLUDED.total_points,
	games_played = EXCLUDED.games_played,
	games_won    = EXCLUDED.games_won,
	curr_streak  = EXCLUDED.curr_streak,
	max_streak   = EXCLUDED.max_streak,
	last_login   = EXCLUDED.last_login;`

	for _, u := range users { // TODO: batch with pgx.Batch
		_, err = tx.Exec(ctx, stmt, u.Username, u.TotalPoints, u.GamesPlayed, u.GamesWon,
			u.CurrStreak, u.MaxStreak, u.LastLogin)
		if err != nil {
			return fmt.Errorf("upsert user %s: %w", u.Username, err)
		}
	}

	return tx.Commit(ctx)
}
