package store

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/victornm/quizwire/internal/domain"
)

const (
	usersFile     = "users.xml"
	questionsFile = "questions.xml"
)

// XML is the file-backed store. Profiles and questions live as XML
// documents inside a single data directory.
type XML struct {
	dir string
	profiles
}

func NewXML(dir string) *XML {
	return &XML{dir: dir}
}

type xmlQuestionList struct {
	XMLName   xml.Name      `xml:"questions"`
	Questions []xmlQuestion `xml:"question"`
}

type xmlQuestion struct {
	ID         int         `xml:"id,attr"`
	Points     int         `xml:"points,attr"`
	TimeLimit  int         `xml:"time_limit,attr"`
	Category   string      `xml:"category,attr"`
	Difficulty string      `xml:"difficulty,attr"`
	Text       string      `xml:"text"`
	Options    []xmlOption `xml:"options>option"`
	Correct    string      `xml:"correct_answer"`
}

type xmlOption struct {
	Letter string `xml:"letter,attr"`
	Text   string `xml:",chardata"`
}

func (s *XML) LoadQuestions(_ context.Context) ([]domain.Question, error) {
	b, err := os.ReadFile(filepath.Join(s.dir, questionsFile))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", questionsFile, err)
	}

	var doc xmlQuestionList
	if err := xml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", questionsFile, err)
	}

	qs := make([]domain.Question, 0, len(doc.Questions))
	for _, xq := range doc.Questions {
		q := domain.Question{
			ID:         xq.ID,
			Text:       xq.Text,
			Points:     xq.Points,
			Category:   xq.Category,
			Difficulty: xq.Difficulty,
			TimeLimit:  xq.TimeLimit,
		}
		if xq.Correct != "" {
			q.CorrectAnswer = xq.Correct[0]
		}
		for _, o := range xq.Options {
			if o.Letter == "" {
				continue
			}
			switch o.Letter[0] {
			case 'A', 'a':
				q.OptionA = o.Text
			case 'B', 'b':
				q.OptionB = o.Text
			case 'C', 'c':
				q.OptionC = o.Text
			case 'D', 'd':
				q.OptionD = o.Text
			}
		}
		qs = append(qs, q)
	}

	if len(qs) == 0 {
		return nil, fmt.Errorf("%s: no questions", questionsFile)
	}

	return qs, nil
}

type xmlUserList struct {
	XMLName xml.Name  `xml:"users"`
	Users   []xmlUser `xml:"user"`
}

type xmlUser struct {
	Username string `xml:"username,attr"`
	Stats    struct {
		Points int `xml:"points,attr"`
		Games  int `xml:"games,attr"`
		Wins   int `xml:"wins,attr"`
	} `xml:"stats"`
	Streaks struct {
		Max     int `xml:"max,attr"`
		Current int `xml:"current,attr"`
	} `xml:"streaks"`
	LastLogin string `xml:"last_login"`
}

func (s *XML) LoadUsers(ctx context.Context) (int, error) {
	b, err := os.ReadFile(filepath.Join(s.dir, usersFile))
	if errors.Is(err, fs.ErrNotExist) {
		slog.InfoContext(ctx, "store: no users file, starting with empty user set", "file", usersFile)
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", usersFile, err)
	}

	var doc xmlUserList
	if err := xml.Unmarshal(b, &doc); err != nil {
		return 0, fmt.Errorf("parse %s: %w", usersFile, err)
	}

	users := make([]*domain.Profile, 0, len(doc.Users))
	for _, xu := range doc.Users {
		users = append(users, &domain.Profile{
			Username:    xu.Username,
			TotalPoints: xu.Stats.Points,
			GamesPlayed: xu.Stats.Games,
			GamesWon:    xu.Stats.Wins,
			MaxStreak:   xu.Streaks.Max,
			CurrStreak:  xu.Streaks.Current,
			LastLogin:   xu.LastLogin,
		})
	}

	s.mu.Lock()
	s.users = users
	s.mu.Unlock()

	return len(users), nil
}

func (s *XML) CreateUser(username string) *domain.Profile {
	u := s.create(username)

	if err := s.SaveUsers(context.Background()); err != nil {
		slog.Error("store: save users after create failed", "username", username, "error", err)
	}

	return u
}

func (s *XML) SaveUsers(_ context.Context) error {
	users := s.snapshot()

	doc := xmlUserList{Users: make([]xmlUser, 0, len(users))}
	for _, u := range users {
		var xu xmlUser
		xu.Username = u.Username
		xu.Stats.Points = u.TotalPoints
		xu.Stats.Games = u.GamesPlayed
		xu.Stats.Wins = u.GamesWon
		xu.Streaks.Max = u.MaxStreak
		xu.Streaks.Current = u.CurrStreak
		xu.LastLogin = u.LastLogin
		doc.Users = append(doc.Users, xu)
	}

	b, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", usersFile, err)
	}

	b = append([]byte(xml.Header), b...)
	if err := os.WriteFile(filepath.Join(s.dir, usersFile), b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", usersFile, err)
	}

	return nil
}

func (s *XML) FindUser(username string) *domain.Profile {
	return s.find(username)
}
