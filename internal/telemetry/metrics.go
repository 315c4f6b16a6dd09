package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/victornm/quizwire/internal/domain"
	"github.com/victornm/quizwire/internal/event"
)

var (
	ConnectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quizwire_connections_total",
		Help: "Accepted client connections.",
	})

	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quizwire_commands_total",
		Help: "Dispatched client commands.",
	}, []string{"command"})

	GamesCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quizwire_games_completed_total",
		Help: "Games played to the winner announcement.",
	})

	SessionPlayers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "quizwire_session_players",
		Help: "Players currently admitted to the session.",
	})
)

// Monitor keeps the game gauges in sync with the session via the event
// bus.
func Monitor(eb *event.Bus) {
	eb.Subscribe(domain.EventNamePlayerJoined, func(_ context.Context, e event.Event) error {
		SessionPlayers.Set(float64(e.(domain.EventPlayerJoined).PlayerCount))
		return nil
	})

	eb.Subscribe(domain.EventNameGameEnded, func(_ context.Context, _ event.Event) error {
		GamesCompletedTotal.Inc()
		return nil
	})
}
