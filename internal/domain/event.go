package domain

const (
	EventNamePlayerJoined = "player.joined"
	EventNameGameStarted  = "game.started"
	EventNameGameEnded    = "game.ended"
)

type EventPlayerJoined struct {
	Username    string
	PlayerCount int
}

func (EventPlayerJoined) Name() string { return EventNamePlayerJoined }

type EventGameStarted struct {
	PlayerCount   int
	QuestionCount int
}

func (EventGameStarted) Name() string { return EventNameGameStarted }

type EventGameEnded struct {
	Results  []PlayerResult
	Winners  []string
	MaxScore int
}

func (EventGameEnded) Name() string { return EventNameGameEnded }
