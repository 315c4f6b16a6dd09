// Package wire implements the line protocol spoken between the server and
// its terminal clients. Every server message starts with a 4-character tag
// followed by ':'; the peer uses the tag purely for display coloring.
package wire

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

const (
	TagResp = "RESP"
	TagErr  = "ERR_"
	TagWarn = "WARN"
	TagInfo = "INFO"
	TagQues = "QUES"
	TagWin  = "WRES"
	TagLose = "LRES"
	TagEnd  = "END_"
	TagGame = "GAME"
)

// Delim terminates each server message on the stream. Messages may contain
// interior newlines (question bodies do), so framing uses NUL instead.
const Delim byte = 0

// Message renders one framed server message.
func Message(tag, format string, args ...any) []byte {
	s := tag + ":" + fmt.Sprintf(format, args...)
	return append([]byte(s), Delim)
}

// Line frames an already-tagged line.
func Line(s string) []byte {
	return append([]byte(s), Delim)
}

// cutset covers newline framing, NUL padding and stray whitespace sent by
// terminal clients.
const cutset = "\x00 \t\r\n"

// Reader reads client commands, one per line.
type Reader struct {
	r *bufio.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// ReadCommand returns the next trimmed command line. It returns the command
// read so far even when err is non-nil, mirroring bufio.Reader.
func (r *Reader) ReadCommand() (string, error) {
	line, err := r.r.ReadString('\n')
	return strings.Trim(line, cutset), err
}
