package game

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/victornm/quizwire/internal/domain"
)

// State is a player's connection lifecycle state.
type State int32

const (
	StateConnected State = iota
	StateLobby
	StateInGame
	StateDisconnected
)

// anonName is the display name of a connection before login or registration.
const anonName = "__anon__"

// Player is one live connection admitted to the server. Its answer slot is
// guarded by the player's own lock, never the session lock, so the
// scheduler's polling wait cannot stall command processing for other
// players.
type Player struct {
	// ID identifies the connection in logs.
	ID string

	conn net.Conn

	sendMu sync.Mutex

	state atomic.Int32

	// score is the running score for the current game. It is written
	// only between Join and the winner announcement, under the session
	// lock.
	score int

	mu          sync.Mutex
	username    string
	profile     *domain.Profile
	hasAnswered bool
	answer      byte
	answeredAt  time.Time
}

func NewPlayer(id string, conn net.Conn) *Player {
	p := &Player{
		ID:       id,
		conn:     conn,
		username: anonName,
	}
	p.state.Store(int32(StateConnected))
	return p
}

func (p *Player) State() State {
	return State(p.state.Load())
}

func (p *Player) SetState(s State) {
	p.state.Store(int32(s))
}

func (p *Player) Username() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.username
}

func (p *Player) SetUsername(name string) {
	p.mu.Lock()
	p.username = name
	p.mu.Unlock()
}

func (p *Player) Profile() *domain.Profile {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.profile
}

func (p *Player) SetProfile(u *domain.Profile) {
	p.mu.Lock()
	p.profile = u
	p.mu.Unlock()
}

// Send writes one framed message to the connection. Sends to a
// disconnected player are dropped silently.
func (p *Player) Send(msg []byte) {
	if p.State() == StateDisconnected {
		return
	}

	p.sendMu.Lock()
	defer p.sendMu.Unlock()
	_, _ = p.conn.Write(msg)
}

// ClearAnswer empties the answer slot before a new turn.
func (p *Player) ClearAnswer() {
	p.mu.Lock()
	p.hasAnswered = false
	p.answer = 0
	p.answeredAt = time.Time{}
	p.mu.Unlock()
}

// SubmitAnswer records the letter unless an answer is already present.
// It reports whether this was the first submission for the turn.
func (p *Player) SubmitAnswer(letter byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.hasAnswered {
		return false
	}

	p.hasAnswered = true
	p.answer = letter
	p.answeredAt = time.Now()
	return true
}

// Answer returns the current content of the answer slot.
func (p *Player) Answer() (letter byte, answered bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.answer, p.hasAnswered
}
