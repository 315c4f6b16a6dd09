// Package leaderboard mirrors all-time point totals into a Redis sorted
// set. It is an observer of the game: Redis failures are logged and never
// reach the session.
package leaderboard

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/quizwire/internal/domain"
	"github.com/victornm/quizwire/internal/errors"
	"github.com/victornm/quizwire/internal/event"
)

type Config struct {
	EventBus *event.Bus
	Redis    redis.UniversalClient
	Prefix   string
}

type Service struct {
	eb     *event.Bus
	redis  redis.UniversalClient
	prefix string
}

func NewService(c Config) *Service {
	s := &Service{
		eb:     c.EventBus,
		redis:  c.Redis,
		prefix: c.Prefix,
	}

	s.eb.Subscribe(domain.EventNameGameEnded, func(ctx context.Context, e event.Event) error {
		return s.RecordGame(ctx, e.(domain.EventGameEnded))
	})

	return s
}

// RecordGame accumulates each player's round score into the all-time set.
func (s *Service) RecordGame(ctx context.Context, e domain.EventGameEnded) error {
	for _, r := range e.Results {
		if err := s.redis.ZIncrBy(ctx, s.key(), float64(r.Score), r.Username).Err(); err != nil {
			return fmt.Errorf("record score: user=%s: %w", r.Username, err)
		}
	}

	return nil
}

type Entry struct {
	Username string  `json:"username"`
	Points   float64 `json:"points"`
}

// Top returns the n highest all-time scorers, best first.
func (s *Service) Top(ctx context.Context, n int64) ([]Entry, error) {
	res, err := s.redis.ZRevRangeWithScores(ctx, s.key(), 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("get leaderboard: %w", err)
	}

	if len(res) == 0 {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("leaderboard is empty"))
	}

	entries := make([]Entry, 0, len(res))
	for _, z := range res {
		entries = append(entries, Entry{
			Username: z.Member.(string),
			Points:   z.Score,
		})
	}

	return entries, nil
}

func (s *Service) key() string {
	return fmt.Sprintf("%s:alltime", s.prefix)
}
