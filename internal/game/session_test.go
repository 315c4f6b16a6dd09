package game

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makePlayer(t *testing.T, name string) *Player {
	t.Helper()

	server, client := net.Pipe()
	t.Cleanup(func() {
		server.Close()
		client.Close()
	})

	// Drain everything the session writes so Send never blocks the test.
	go func() {
		buf := make([]byte, 1024)
		for {
			if _, err := client.Read(buf); err != nil {
				return
			}
		}
	}()

	p := NewPlayer(name, server)
	p.SetUsername(name)
	return p
}

func TestSession_Join(t *testing.T) {
	t.Parallel()

	t.Run("join order is roster order", func(t *testing.T) {
		s := NewSession()

		for i, name := range []string{"a", "b", "c"} {
			n, err := s.Join(makePlayer(t, name))
			require.NoError(t, err)
			require.Equal(t, i+1, n)
		}

		require.Equal(t, []string{"a: 0", "b: 0", "c: 0"}, s.Scores())
	})

	t.Run("rejoin from lobby is rejected", func(t *testing.T) {
		s := NewSession()
		p := makePlayer(t, "a")

		_, err := s.Join(p)
		require.NoError(t, err)

		_, err = s.Join(p)
		require.Error(t, err)
		assert.Equal(t, StateLobby, p.State())
		assert.Equal(t, 1, s.PlayerCount())
	})

	t.Run("join resets score", func(t *testing.T) {
		s := NewSession()
		p := makePlayer(t, "a")
		p.score = 42

		_, err := s.Join(p)
		require.NoError(t, err)
		assert.Equal(t, 0, p.score)
	})

	t.Run("join after start is rejected", func(t *testing.T) {
		s := NewSession()
		_, err := s.Join(makePlayer(t, "a"))
		require.NoError(t, err)
		_, err = s.Join(makePlayer(t, "b"))
		require.NoError(t, err)
		require.NoError(t, s.Start())

		_, err = s.Join(makePlayer(t, "c"))
		require.Error(t, err)
		assert.Equal(t, 2, s.PlayerCount())
	})
}

func TestSession_Start(t *testing.T) {
	t.Parallel()

	t.Run("needs two players", func(t *testing.T) {
		s := NewSession()
		_, err := s.Join(makePlayer(t, "a"))
		require.NoError(t, err)

		require.Error(t, s.Start())
		assert.Equal(t, Waiting, s.State())
	})

	t.Run("start fires the signal once and marks players in game", func(t *testing.T) {
		s := NewSession()
		a, b := makePlayer(t, "a"), makePlayer(t, "b")
		_, err := s.Join(a)
		require.NoError(t, err)
		_, err = s.Join(b)
		require.NoError(t, err)

		require.NoError(t, s.Start())
		assert.Equal(t, Active, s.State())
		assert.Equal(t, StateInGame, a.State())
		assert.Equal(t, StateInGame, b.State())

		select {
		case <-s.StartSignal():
		default:
			t.Fatal("start signal not fired")
		}

		// Second start must fail without re-firing the closed signal.
		require.Error(t, s.Start())
		assert.Equal(t, Active, s.State())
	})
}

func TestSession_Remove(t *testing.T) {
	t.Parallel()

	t.Run("removal shifts later entries down", func(t *testing.T) {
		s := NewSession()
		a, b, c := makePlayer(t, "a"), makePlayer(t, "b"), makePlayer(t, "c")
		for _, p := range []*Player{a, b, c} {
			_, err := s.Join(p)
			require.NoError(t, err)
		}

		s.Remove(b)
		require.Equal(t, []string{"a: 0", "c: 0"}, s.Scores())
	})

	t.Run("remove of absent player is a no-op", func(t *testing.T) {
		s := NewSession()
		a := makePlayer(t, "a")
		_, err := s.Join(a)
		require.NoError(t, err)

		s.Remove(makePlayer(t, "ghost"))
		require.Equal(t, 1, s.PlayerCount())
	})

	t.Run("turn index stays valid across any join/remove sequence", func(t *testing.T) {
		s := NewSession()
		players := make([]*Player, 0, 5)
		for _, name := range []string{"a", "b", "c", "d", "e"} {
			p := makePlayer(t, name)
			players = append(players, p)
			_, err := s.Join(p)
			require.NoError(t, err)
		}

		s.mu.Lock()
		s.currTurn = 4
		s.mu.Unlock()

		for _, p := range []*Player{players[4], players[0], players[2]} {
			s.Remove(p)

			s.mu.Lock()
			if len(s.players) > 0 {
				assert.Less(t, s.currTurn, len(s.players))
			}
			s.mu.Unlock()
		}
	})
}

func TestSession_IsCurrentTurn(t *testing.T) {
	t.Parallel()

	s := NewSession()
	a, b := makePlayer(t, "a"), makePlayer(t, "b")
	_, err := s.Join(a)
	require.NoError(t, err)
	_, err = s.Join(b)
	require.NoError(t, err)

	assert.True(t, s.IsCurrentTurn(a))
	assert.False(t, s.IsCurrentTurn(b))

	s.mu.Lock()
	s.currTurn = 1
	s.mu.Unlock()

	assert.False(t, s.IsCurrentTurn(a))
	assert.True(t, s.IsCurrentTurn(b))
}

func TestPlayer_AnswerSlot(t *testing.T) {
	t.Parallel()

	p := makePlayer(t, "a")

	_, answered := p.Answer()
	require.False(t, answered)

	require.True(t, p.SubmitAnswer('B'))

	// The first answer is kept on a repeated submission.
	require.False(t, p.SubmitAnswer('C'))
	letter, answered := p.Answer()
	assert.True(t, answered)
	assert.Equal(t, byte('B'), letter)

	p.ClearAnswer()
	letter, answered = p.Answer()
	assert.False(t, answered)
	assert.Equal(t, byte(0), letter)
}
