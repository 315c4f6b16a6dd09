package wire_test

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quizwire/internal/wire"
)

func TestMessage(t *testing.T) {
	t.Parallel()

	got := wire.Message(wire.TagResp, "Joined game! Players: %d", 3)
	assert.Equal(t, "RESP:Joined game! Players: 3\x00", string(got))

	// Interior newlines survive; only the trailing NUL delimits.
	got = wire.Message(wire.TagQues, "line one\nline two")
	assert.Equal(t, "QUES:line one\nline two\x00", string(got))
}

func TestReader_ReadCommand(t *testing.T) {
	t.Parallel()

	r := wire.NewReader(strings.NewReader("help\n  answer : a  \r\nquit\x00\x00\n"))

	cmd, err := r.ReadCommand()
	require.NoError(t, err)
	assert.Equal(t, "help", cmd)

	cmd, err = r.ReadCommand()
	require.NoError(t, err)
	assert.Equal(t, "answer : a", cmd)

	cmd, err = r.ReadCommand()
	require.NoError(t, err)
	assert.Equal(t, "quit", cmd)

	_, err = r.ReadCommand()
	assert.ErrorIs(t, err, io.EOF)
}
