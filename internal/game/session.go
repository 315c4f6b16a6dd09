package game

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/victornm/quizwire/internal/errors"
	"github.com/victornm/quizwire/internal/wire"
)

// GameState is the phase of the single shared session. Transitions are
// monotonic: Waiting -> Active -> Finished.
type GameState int

const (
	Waiting GameState = iota
	Active
	Finished
)

// Session is the one shared game instance of the process. The roster is
// kept in join order, which doubles as turn order for every question.
type Session struct {
	mu sync.Mutex

	state         GameState
	players       []*Player
	currQuestion  int
	currTurn      int
	questionStart time.Time

	// started is closed exactly once when the game starts; the
	// scheduler blocks on it out of Waiting.
	started chan struct{}
}

func NewSession() *Session {
	return &Session{
		started: make(chan struct{}),
	}
}

// StartSignal is closed when the session leaves Waiting.
func (s *Session) StartSignal() <-chan struct{} {
	return s.started
}

func (s *Session) State() GameState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) PlayerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.players)
}

// Join admits p into the lobby and returns the new roster size. The rest
// of the roster is notified after the lock is released.
func (s *Session) Join(p *Player) (int, error) {
	s.mu.Lock()

	if s.state != Waiting {
		s.mu.Unlock()
		return 0, errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("Game already in progress."))
	}

	if st := p.State(); st == StateInGame || st == StateLobby {
		s.mu.Unlock()
		return 0, errors.New(errors.CodeRedundant,
			errors.WithMessagef("Already in game lobby"))
	}

	p.SetState(StateLobby)
	p.score = 0
	s.players = append(s.players, p)
	n := len(s.players)

	s.mu.Unlock()

	s.Broadcast(wire.Message(wire.TagInfo, "%s joined the game (Total: %d players)\n", p.Username(), n), p)

	return n, nil
}

// Start moves the session to Active, marks every admitted player in-game
// and fires the start signal exactly once.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Waiting {
		return errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("Game already started!"))
	}

	if len(s.players) < 2 {
		return errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("Need at least 2 players to start!"))
	}

	s.state = Active
	for _, p := range s.players {
		p.SetState(StateInGame)
	}

	close(s.started)
	return nil
}

// Remove drops p from the roster, shifting later entries down. The turn
// index is clamped back to 0 when it would point past the shrunken roster.
// No-op if p is not on the roster.
func (s *Session) Remove(p *Player) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, q := range s.players {
		if q != p {
			continue
		}

		s.players = append(s.players[:i], s.players[i+1:]...)
		if s.currTurn >= len(s.players) && len(s.players) > 0 {
			s.currTurn = 0
		}

		slog.Info("game: player removed from roster",
			"username", p.Username(), "players", len(s.players))
		return
	}
}

// IsCurrentTurn reports whether the turn cursor currently points at p.
func (s *Session) IsCurrentTurn(p *Player) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.currTurn < len(s.players) && s.players[s.currTurn] == p
}

// Broadcast sends msg to every connected player except exclude. The lock
// is held only to snapshot the recipient list; writes happen after
// release.
func (s *Session) Broadcast(msg []byte, exclude *Player) {
	s.mu.Lock()
	recipients := make([]*Player, 0, len(s.players))
	for _, p := range s.players {
		if p != exclude && p.State() != StateDisconnected {
			recipients = append(recipients, p)
		}
	}
	s.mu.Unlock()

	for _, p := range recipients {
		p.Send(msg)
	}
}

// Scores returns "name: score" pairs in roster order, for logging.
func (s *Session) Scores() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, fmt.Sprintf("%s: %d", p.Username(), p.score))
	}
	return out
}
