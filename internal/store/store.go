// Package store persists user profiles and loads the question set.
//
// All backends keep the profile collection in memory after LoadUsers;
// FindUser and CreateUser operate on that collection, and SaveUsers
// rewrites the whole collection to the backing storage. There is no
// incremental update and no rollback: a failed write is logged by the
// caller and the in-memory state stays authoritative.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/victornm/quizwire/internal/domain"
)

// lastLoginLayout is the timestamp format stored on profiles.
const lastLoginLayout = "2006-01-02 15:04:05"

type Store interface {
	// LoadQuestions returns the question set in play order. An empty set
	// is an error: the server cannot run without questions.
	LoadQuestions(ctx context.Context) ([]domain.Question, error)

	// LoadUsers loads the profile collection into memory. A missing
	// store is not an error; it yields an empty collection.
	LoadUsers(ctx context.Context) (int, error)

	// FindUser returns the profile with exactly the given username,
	// or nil.
	FindUser(username string) *domain.Profile

	// CreateUser adds a zero-stats profile and persists the collection.
	CreateUser(username string) *domain.Profile

	// SaveUsers rewrites the entire profile collection.
	SaveUsers(ctx context.Context) error
}

// profiles is the shared in-memory profile collection.
type profiles struct {
	mu    sync.Mutex
	users []*domain.Profile
}

func (p *profiles) find(username string) *domain.Profile {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, u := range p.users {
		if u.Username == username {
			return u
		}
	}

	return nil
}

func (p *profiles) create(username string) *domain.Profile {
	u := &domain.Profile{
		Username:  username,
		LastLogin: time.Now().Format(lastLoginLayout),
	}

	p.mu.Lock()
	p.users = append(p.users, u)
	p.mu.Unlock()

	return u
}

func (p *profiles) snapshot() []*domain.Profile {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]*domain.Profile(nil), p.users...)
}
