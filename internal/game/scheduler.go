package game

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/victornm/quizwire/internal/domain"
	"github.com/victornm/quizwire/internal/event"
	"github.com/victornm/quizwire/internal/store"
	"github.com/victornm/quizwire/internal/wire"
)

const (
	defaultPollInterval = 100 * time.Millisecond
	defaultStartPause   = 2 * time.Second
	defaultResultPause  = 2 * time.Second
	defaultQuestionGap  = 3 * time.Second
)

type SchedulerConfig struct {
	Session   *Session
	Store     store.Store
	EventBus  *event.Bus
	Questions []domain.Question

	// Pacing knobs. Zero values pick the defaults; tests shrink them.
	PollInterval time.Duration
	StartPause   time.Duration
	ResultPause  time.Duration
	QuestionGap  time.Duration
}

// Scheduler drives the question x player loop on its own goroutine. It
// shares the session with the connection handlers and is the only writer
// of the turn cursor.
type Scheduler struct {
	c  SchedulerConfig
	ss *Session
}

func NewScheduler(c SchedulerConfig) *Scheduler {
	if c.PollInterval == 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.StartPause == 0 {
		c.StartPause = defaultStartPause
	}
	if c.ResultPause == 0 {
		c.ResultPause = defaultResultPause
	}
	if c.QuestionGap == 0 {
		c.QuestionGap = defaultQuestionGap
	}

	return &Scheduler{c: c, ss: c.Session}
}

// Run blocks until the session starts, then plays every question in load
// order and announces the winner. It returns early only when ctx is
// canceled.
func (sc *Scheduler) Run(ctx context.Context) {
	ss := sc.ss

	slog.InfoContext(ctx, "game: scheduler started, waiting for start signal")
	select {
	case <-ctx.Done():
		return
	case <-ss.StartSignal():
	}

	ss.Broadcast(wire.Message(wire.TagGame, "Ladies and gentlemen, the game is starting! Get ready!"), nil)
	if sc.c.EventBus != nil {
		sc.c.EventBus.Publish(ctx, domain.EventGameStarted{
			PlayerCount:   ss.PlayerCount(),
			QuestionCount: len(sc.c.Questions),
		})
	}
	sc.pause(ctx, sc.c.StartPause)

	total := len(sc.c.Questions)
	for qIdx := 0; qIdx < total; qIdx++ {
		ss.mu.Lock()
		if len(ss.players) == 0 {
			ss.mu.Unlock()
			slog.InfoContext(ctx, "game: no players left, ending game")
			break
		}

		ss.currQuestion = qIdx
		q := sc.c.Questions[qIdx]
		playersInRound := len(ss.players)
		ss.mu.Unlock()

		slog.InfoContext(ctx, "game: question", "number", qIdx+1, "total", total, "text", q.Text)

		sc.playRound(ctx, q, playersInRound)
		if ctx.Err() != nil {
			return
		}

		if qIdx < total-1 {
			ss.Broadcast(wire.Message(wire.TagInfo, "Next question in %d seconds... (%d/%d)",
				int(sc.c.QuestionGap.Seconds()), qIdx+2, total), nil)
			sc.pause(ctx, sc.c.QuestionGap)
		}
	}

	slog.InfoContext(ctx, "game: all questions completed")

	ss.mu.Lock()
	ss.state = Finished
	ss.mu.Unlock()

	sc.announceWinner(ctx)
}

// playRound visits positions 0..playersInRound-1 of the roster for one
// question. playersInRound was cached at question start while the roster
// itself stays live: a removal mid-round shifts later entries down, so
// this loop can skip or repeat a slot for the rest of the round. Kept
// as-is, matching the original semantics.
func (sc *Scheduler) playRound(ctx context.Context, q domain.Question, playersInRound int) {
	ss := sc.ss

	for playerIdx := 0; playerIdx < playersInRound; playerIdx++ {
		if ctx.Err() != nil {
			return
		}

		ss.mu.Lock()
		if len(ss.players) == 0 || playerIdx >= len(ss.players) {
			ss.mu.Unlock()
			return
		}

		ss.currTurn = playerIdx
		curr := ss.players[playerIdx]
		// Snapshot the name: a mid-turn logout may change it.
		name := curr.Username()
		if curr.State() == StateDisconnected {
			ss.mu.Unlock()
			continue
		}
		ss.mu.Unlock()

		slog.InfoContext(ctx, "game: turn", "position", playerIdx+1, "of", playersInRound, "username", name)

		curr.Send(wire.Message(wire.TagQues, "It's your turn! Read the question and choose wisely:\n%s\nA:%s\nB:%s\nC:%s\nD:%s\n",
			q.Text, q.OptionA, q.OptionB, q.OptionC, q.OptionD))
		ss.Broadcast(wire.Message(wire.TagQues, "Spectating player %s:\n%s\nA:%s\nB:%s\nC:%s\nD:%s\n",
			name, q.Text, q.OptionA, q.OptionB, q.OptionC, q.OptionD), curr)

		start := time.Now()
		ss.mu.Lock()
		ss.questionStart = start
		ss.mu.Unlock()

		curr.ClearAnswer()

		answered := sc.awaitAnswer(ctx, curr, start, q.TimeLimit)

		if curr.State() == StateDisconnected {
			slog.InfoContext(ctx, "game: player disconnected during their turn", "username", name)
			ss.Broadcast(wire.Message(wire.TagInfo, "%s disconnected\n", name), curr)
			continue
		}

		if answered {
			letter, _ := curr.Answer()
			correct := letter == q.CorrectAnswer
			if correct {
				ss.mu.Lock()
				curr.score += q.Points
				ss.mu.Unlock()
				slog.InfoContext(ctx, "game: correct answer", "username", name, "points", q.Points)
			} else {
				slog.InfoContext(ctx, "game: wrong answer",
					"username", name, "answered", string(letter), "correct", string(q.CorrectAnswer))
			}
			sc.announceResult(ctx, curr, correct, q)
		} else {
			slog.InfoContext(ctx, "game: answer timed out", "username", name)
			sc.announceTimeout(ctx, curr)
		}
	}
}

// awaitAnswer polls the player's answer slot until it fills, the player
// disconnects, or the deadline passes. A bounded busy-wait on the
// per-player lock keeps the session lock free for other handlers.
func (sc *Scheduler) awaitAnswer(ctx context.Context, p *Player, start time.Time, timeLimit int) bool {
	deadline := time.Duration(timeLimit) * time.Second

	for time.Since(start) < deadline {
		if ctx.Err() != nil {
			return false
		}

		_, answered := p.Answer()
		if answered || p.State() == StateDisconnected {
			return answered
		}

		sc.pause(ctx, sc.c.PollInterval)
	}

	return false
}

func (sc *Scheduler) announceResult(ctx context.Context, p *Player, correct bool, q domain.Question) {
	sc.ss.mu.Lock()
	totalScore := p.score
	sc.ss.mu.Unlock()

	if correct {
		p.Send(wire.Message(wire.TagWin, "You answered correctly! +%d points (Total: %d)", q.Points, totalScore))
	} else {
		p.Send(wire.Message(wire.TagLose, "Oops! You answered incorrectly. Correct answer was: %c. (Total: %d points)",
			q.CorrectAnswer, totalScore))
	}

	sc.ss.Broadcast(wire.Message(wire.TagInfo, "Player responded, moving on to the next contestant!\n"), p)
	sc.pause(ctx, sc.c.ResultPause)
}

func (sc *Scheduler) announceTimeout(ctx context.Context, p *Player) {
	sc.ss.mu.Lock()
	totalScore := p.score
	sc.ss.mu.Unlock()

	p.Send(wire.Message(wire.TagLose, "Oops, you ran out of time! No points awarded. (Total: %d points)", totalScore))
	sc.ss.Broadcast(wire.Message(wire.TagInfo, "Player ran out of time...I wonder what happened. Anyways, moving on to the next contestant!\n"), p)
	sc.pause(ctx, sc.c.ResultPause)
}

// announceWinner computes the winners over the current roster, applies
// the stat mutations, persists the profile store once and broadcasts the
// final summary. Every player tied at the max score wins.
func (sc *Scheduler) announceWinner(ctx context.Context) {
	ss := sc.ss

	ss.mu.Lock()
	if len(ss.players) == 0 {
		ss.mu.Unlock()
		return
	}

	maxScore := -1
	for _, p := range ss.players {
		if p.score > maxScore {
			maxScore = p.score
		}
	}

	var winners []string
	results := make([]domain.PlayerResult, 0, len(ss.players))
	for _, p := range ss.players {
		won := p.score == maxScore
		name := p.Username()
		if won {
			winners = append(winners, name)
		}

		if u := p.Profile(); u != nil {
			if won {
				u.GamesWon++
				u.CurrStreak++
				if u.MaxStreak < u.CurrStreak {
					u.MaxStreak = u.CurrStreak
				}
			} else {
				u.CurrStreak = 0
			}

			u.TotalPoints += p.score
			u.GamesPlayed++
		}

		results = append(results, domain.PlayerResult{Username: name, Score: p.score, Won: won})
	}
	ss.mu.Unlock()

	if err := sc.c.Store.SaveUsers(ctx); err != nil {
		slog.ErrorContext(ctx, "game: save users after game end failed", "error", err)
	}

	var msg []byte
	if len(winners) == 1 {
		msg = wire.Message(wire.TagEnd, "Winner: %s with %d points!\n", winners[0], maxScore)
	} else {
		msg = wire.Message(wire.TagEnd, "Tie! Winners: %s with %d points each!\n", strings.Join(winners, ", "), maxScore)
	}
	ss.Broadcast(msg, nil)

	if sc.c.EventBus != nil {
		sc.c.EventBus.Publish(ctx, domain.EventGameEnded{
			Results:  results,
			Winners:  winners,
			MaxScore: maxScore,
		})
	}
}

func (sc *Scheduler) pause(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
