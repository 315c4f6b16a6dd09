package store_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quizwire/internal/store"
)

const questionsXML = `<?xml version="1.0" encoding="UTF-8"?>
<questions>
  <question id="1" points="10" time_limit="30" category="animals" difficulty="easy">
    <text>What meows?</text>
    <options>
      <option letter="A">cat</option>
      <option letter="B">dog</option>
      <option letter="C">fish</option>
      <option letter="D">rock</option>
    </options>
    <correct_answer>A</correct_answer>
  </question>
  <question id="2" points="20" time_limit="15" category="space" difficulty="hard">
    <text>Closest star?</text>
    <options>
      <option letter="a">Sirius</option>
      <option letter="b">The Sun</option>
      <option letter="c">Vega</option>
      <option letter="d">Proxima</option>
    </options>
    <correct_answer>B</correct_answer>
  </question>
</questions>
`

func TestXML_LoadQuestions(t *testing.T) {
	t.Parallel()

	t.Run("loads in file order", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "questions.xml"), []byte(questionsXML), 0o644))

		qs, err := store.NewXML(dir).LoadQuestions(context.Background())
		require.NoError(t, err)
		require.Len(t, qs, 2)

		q := qs[0]
		assert.Equal(t, 1, q.ID)
		assert.Equal(t, "What meows?", q.Text)
		assert.Equal(t, "cat", q.OptionA)
		assert.Equal(t, "rock", q.OptionD)
		assert.Equal(t, byte('A'), q.CorrectAnswer)
		assert.Equal(t, 10, q.Points)
		assert.Equal(t, "animals", q.Category)
		assert.Equal(t, "easy", q.Difficulty)
		assert.Equal(t, 30, q.TimeLimit)

		// Lowercase option letters are accepted too.
		assert.Equal(t, "The Sun", qs[1].OptionB)
	})

	t.Run("missing file is an error", func(t *testing.T) {
		_, err := store.NewXML(t.TempDir()).LoadQuestions(context.Background())
		require.Error(t, err)
	})

	t.Run("empty question set is an error", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "questions.xml"), []byte("<questions></questions>"), 0o644))

		_, err := store.NewXML(dir).LoadQuestions(context.Background())
		require.Error(t, err)
	})
}

func TestXML_Users(t *testing.T) {
	t.Parallel()

	t.Run("missing users file degrades to empty set", func(t *testing.T) {
		s := store.NewXML(t.TempDir())

		n, err := s.LoadUsers(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, n)
		assert.Nil(t, s.FindUser("alice"))
	})

	t.Run("create persists and round-trips", func(t *testing.T) {
		dir := t.TempDir()
		s := store.NewXML(dir)

		u := s.CreateUser("alice")
		require.NotNil(t, u)
		assert.NotEmpty(t, u.LastLogin)

		u.TotalPoints = 30
		u.GamesPlayed = 2
		u.GamesWon = 1
		u.CurrStreak = 1
		u.MaxStreak = 3
		require.NoError(t, s.SaveUsers(context.Background()))

		// A fresh store over the same dir sees the saved profile.
		s2 := store.NewXML(dir)
		n, err := s2.LoadUsers(context.Background())
		require.NoError(t, err)
		require.Equal(t, 1, n)

		got := s2.FindUser("alice")
		require.NotNil(t, got)
		assert.Equal(t, 30, got.TotalPoints)
		assert.Equal(t, 2, got.GamesPlayed)
		assert.Equal(t, 1, got.GamesWon)
		assert.Equal(t, 1, got.CurrStreak)
		assert.Equal(t, 3, got.MaxStreak)
		assert.Equal(t, u.LastLogin, got.LastLogin)
	})

	t.Run("find is exact match", func(t *testing.T) {
		s := store.NewXML(t.TempDir())
		s.CreateUser("alice")

		assert.NotNil(t, s.FindUser("alice"))
		assert.Nil(t, s.FindUser("Alice"))
		assert.Nil(t, s.FindUser("alic"))
	})
}
