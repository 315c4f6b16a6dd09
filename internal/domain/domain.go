package domain

// Question is one trivia question, loaded once at boot.
// Questions are played strictly in load order.
type Question struct {
	ID            int
	Text          string
	OptionA       string
	OptionB       string
	OptionC       string
	OptionD       string
	CorrectAnswer byte
	Points        int
	Category      string
	Difficulty    string
	// TimeLimit is the answer deadline in seconds.
	TimeLimit int
}

// Profile holds the persisted all-time statistics for one username.
type Profile struct {
	Username    string
	TotalPoints int
	GamesPlayed int
	GamesWon    int
	CurrStreak  int
	MaxStreak   int
	LastLogin   string
}

// PlayerResult is one player's outcome of a finished game.
type PlayerResult struct {
	Username string
	Score    int
	Won      bool
}
