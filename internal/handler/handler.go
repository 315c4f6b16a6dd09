// Package handler runs one blocking read-dispatch loop per client
// connection. Each inbound line is trimmed and matched by exact
// case-sensitive prefix; every precondition failure is reported to the
// offending client only and is never fatal to the connection.
package handler

import (
	"context"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/victornm/quizwire/internal/domain"
	"github.com/victornm/quizwire/internal/errors"
	"github.com/victornm/quizwire/internal/event"
	"github.com/victornm/quizwire/internal/game"
	"github.com/victornm/quizwire/internal/store"
	"github.com/victornm/quizwire/internal/telemetry"
	"github.com/victornm/quizwire/internal/wire"
)

const lastLoginLayout = "2006-01-02 15:04:05"

const helpText = `// ===== Server Specific Commands =====//
answer : abcd...      => Answer to current question
help                  => Display command list
login : username      => Login into user with name 'username'
logout                => Log out of the current user
meow                  => 'meow :3' back
register : username   => Register new user with name 'username'
stats                 => Show stats of current user
quit/exit             => Quit cleanly from the server and close client
// ===== Client Specific Commands =====//
clear                 => Clear terminal
`

type Config struct {
	Session  *game.Session
	Store    store.Store
	EventBus *event.Bus
}

type Handler struct {
	ss    *game.Session
	store store.Store
	eb    *event.Bus
}

func New(c Config) *Handler {
	return &Handler{
		ss:    c.Session,
		store: c.Store,
		eb:    c.EventBus,
	}
}

// Handle owns conn until the client quits or the transport fails. It
// closes conn before returning.
func (h *Handler) Handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	p := game.NewPlayer(uuid.NewString(), conn)
	telemetry.ConnectionsTotal.Inc()

	slog.InfoContext(ctx, "handler: client connected", "conn", p.ID, "remote", conn.RemoteAddr())

	r := wire.NewReader(conn)
	for {
		cmd, err := r.ReadCommand()
		if err != nil {
			slog.InfoContext(ctx, "handler: client disconnected", "conn", p.ID, "username", p.Username())
			h.depart(p)
			return
		}

		slog.DebugContext(ctx, "handler: command received", "conn", p.ID, "command", cmd)

		if h.dispatch(ctx, p, cmd) {
			h.depart(p)
			return
		}
	}
}

// depart removes p from the session if it was admitted, notifying the
// rest of the roster, and marks the connection disconnected.
func (h *Handler) depart(p *game.Player) {
	if st := p.State(); st == game.StateInGame || st == game.StateLobby {
		h.ss.Broadcast(wire.Message(wire.TagInfo, "%s left the game", p.Username()), p)
		h.ss.Remove(p)
	}

	p.SetState(game.StateDisconnected)
}

// dispatch handles one command and reports whether the connection should
// close.
func (h *Handler) dispatch(ctx context.Context, p *game.Player, cmd string) (stop bool) {
	switch {
	case strings.HasPrefix(cmd, "answer : "):
		telemetry.CommandsTotal.WithLabelValues("answer").Inc()
		h.answer(p, cmd[len("answer : "):])

	case strings.HasPrefix(cmd, "help"):
		telemetry.CommandsTotal.WithLabelValues("help").Inc()
		p.Send(wire.Message(wire.TagResp, "%s", helpText))

	case strings.HasPrefix(cmd, "join"):
		telemetry.CommandsTotal.WithLabelValues("join").Inc()
		h.join(ctx, p)

	case strings.HasPrefix(cmd, "login : "):
		telemetry.CommandsTotal.WithLabelValues("login").Inc()
		h.login(ctx, p, firstWord(cmd[len("login : "):]))

	case strings.HasPrefix(cmd, "logout"):
		telemetry.CommandsTotal.WithLabelValues("logout").Inc()
		h.logout(p)

	case strings.HasPrefix(cmd, "meow"):
		telemetry.CommandsTotal.WithLabelValues("meow").Inc()
		p.Send(wire.Message(wire.TagResp, "meow :3"))

	case strings.HasPrefix(cmd, "register : "):
		telemetry.CommandsTotal.WithLabelValues("register").Inc()
		h.register(p, firstWord(cmd[len("register : "):]))

	case strings.HasPrefix(cmd, "stats"):
		telemetry.CommandsTotal.WithLabelValues("stats").Inc()
		h.stats(p)

	case strings.HasPrefix(cmd, "start"):
		telemetry.CommandsTotal.WithLabelValues("start").Inc()
		h.start(ctx, p)

	case strings.HasPrefix(cmd, "quit"), strings.HasPrefix(cmd, "exit"):
		telemetry.CommandsTotal.WithLabelValues("quit").Inc()
		p.Send(wire.Message(wire.TagResp, "bye-bye!"))
		return true

	default:
		telemetry.CommandsTotal.WithLabelValues("unknown").Inc()
		p.Send(wire.Message(wire.TagErr, "Unrecognized Command"))
	}

	return false
}

func (h *Handler) answer(p *game.Player, arg string) {
	if p.State() != game.StateInGame {
		p.Send(wire.Message(wire.TagErr, "Not in game"))
		return
	}

	if !h.ss.IsCurrentTurn(p) {
		p.Send(wire.Message(wire.TagWarn, "Not your turn!"))
		return
	}

	if arg == "" {
		p.Send(wire.Message(wire.TagErr, "Invalid answer. Use A, B, C or D."))
		return
	}

	letter := arg[0] & 0x5F // ASCII uppercase
	if letter < 'A' || letter > 'D' {
		p.Send(wire.Message(wire.TagErr, "Invalid answer. Use A, B, C or D."))
		return
	}

	// A repeated submission keeps the first answer and gets no reply.
	if p.SubmitAnswer(letter) {
		p.Send(wire.Message(wire.TagResp, "Answer received!"))
	}
}

func (h *Handler) join(ctx context.Context, p *game.Player) {
	if p.Profile() == nil {
		p.Send(wire.Message(wire.TagErr, "Please login first to join the game!"))
		return
	}

	n, err := h.ss.Join(p)
	if err != nil {
		p.Send(wire.Line(errors.Convert(err).Line()))
		return
	}

	p.Send(wire.Message(wire.TagResp, "Joined game! Players: %d", n))

	slog.InfoContext(ctx, "game: player joined the party", "username", p.Username(), "players", n)
	h.eb.Publish(ctx, domain.EventPlayerJoined{
		Username:    p.Username(),
		PlayerCount: n,
	})
}

func (h *Handler) login(ctx context.Context, p *game.Player, username string) {
	if p.Profile() != nil {
		p.Send(wire.Message(wire.TagWarn, "You are already logged in. Maybe you meant 'logout'?"))
		return
	}

	u := h.store.FindUser(username)
	if u == nil {
		p.Send(wire.Message(wire.TagErr, "User not found. Please register first."))
		return
	}

	p.SetUsername(username)
	p.SetProfile(u)
	u.LastLogin = time.Now().Format(lastLoginLayout)

	if err := h.store.SaveUsers(ctx); err != nil {
		slog.ErrorContext(ctx, "handler: save users after login failed", "username", username, "error", err)
	}

	p.Send(wire.Message(wire.TagResp, "Welcome back %s! Points: %d, Games: %d, Wins: %d",
		username, u.TotalPoints, u.GamesPlayed, u.GamesWon))
}

func (h *Handler) logout(p *game.Player) {
	if p.Profile() == nil {
		p.Send(wire.Message(wire.TagWarn, "You are already logged out. Maybe you meant 'quit'?"))
		return
	}

	p.SetProfile(nil)
	p.Send(wire.Message(wire.TagResp, "Logged Out"))
}

func (h *Handler) register(p *game.Player, username string) {
	if p.Profile() != nil {
		p.Send(wire.Message(wire.TagWarn, "You are already logged in."))
		return
	}

	if h.store.FindUser(username) != nil {
		p.Send(wire.Message(wire.TagErr, "Username already exists!"))
		return
	}

	u := h.store.CreateUser(username)
	p.SetProfile(u)
	p.SetUsername(username)
	p.Send(wire.Message(wire.TagResp, "Registered new user '%s'", username))
}

func (h *Handler) stats(p *game.Player) {
	u := p.Profile()
	if u == nil {
		p.Send(wire.Message(wire.TagErr, "Please login first to view stats"))
		return
	}

	winRate := decimal.Zero
	if u.GamesPlayed > 0 {
		winRate = decimal.NewFromInt(int64(u.GamesWon * 100)).Div(decimal.NewFromInt(int64(u.GamesPlayed)))
	}

	p.Send(wire.Message(wire.TagResp, "Stats: %s | Points: %d | Games: %d | Wins: %d | Win Rate: %.1f | Max Streak: %d",
		p.Username(), u.TotalPoints, u.GamesPlayed, u.GamesWon, winRate.InexactFloat64(), u.MaxStreak))
}

func (h *Handler) start(ctx context.Context, p *game.Player) {
	if err := h.ss.Start(); err != nil {
		p.Send(wire.Line(errors.Convert(err).Line()))
		return
	}

	slog.InfoContext(ctx, "game: game started",
		"username", p.Username(), "players", h.ss.PlayerCount())
}

// firstWord mirrors scanf-style token parsing: everything up to the first
// whitespace.
func firstWord(s string) string {
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		return s[:i]
	}
	return s
}
