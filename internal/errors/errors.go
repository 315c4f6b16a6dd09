package errors

import (
	"errors"
	"fmt"
)

type Code uint32

const (
	CodeInvalidArgument Code = iota + 1
	CodeNotFound
	CodeAlreadyExists
	CodeFailedPrecondition
	CodeOutOfTurn
	CodeRedundant
	CodeInternal
)

var code2name = map[Code]string{
	CodeInvalidArgument:    "invalid argument",
	CodeNotFound:           "not found",
	CodeAlreadyExists:      "already exists",
	CodeFailedPrecondition: "failed precondition",
	CodeOutOfTurn:          "out of turn",
	CodeRedundant:          "redundant",
	CodeInternal:           "internal",
}

// Codes that indicate a harmless repeat of something the client already did
// are surfaced as warnings; everything else is a hard protocol error.
var code2tag = map[Code]string{
	CodeOutOfTurn: "WARN",
	CodeRedundant: "WARN",
}

type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	err     error
}

func New(code Code, opts ...Option) *Error {
	e := &Error{
		Code:    code,
		Message: code2name[code],
	}

	for _, opt := range opts {
		opt.apply(e)
	}

	return e
}

func (e *Error) Error() string {
	s := fmt.Sprintf("code: %d, message: %s", e.Code, e.Message)
	if e.err != nil {
		s += fmt.Sprintf(", err: %s", e.err)
	}

	return s
}

func (e *Error) Unwrap() error {
	return e.err
}

// WireTag returns the 4-character protocol tag used when reporting
// this error to a client.
func (e *Error) WireTag() string {
	if t, ok := code2tag[e.Code]; ok {
		return t
	}

	return "ERR_"
}

// Line renders the full protocol line for this error.
func (e *Error) Line() string {
	return e.WireTag() + ":" + e.Message
}

func Convert(err error) *Error {
	var e *Error
	if !errors.As(err, &e) {
		return Internal(err)
	}

	return e
}

func Internal(err error) *Error {
	return New(CodeInternal, WithCause(err))
}

type Option interface {
	apply(*Error)
}

type optionFunc func(*Error)

func (f optionFunc) apply(e *Error) {
	f(e)
}

func WithCause(err error) Option {
	return optionFunc(func(e *Error) {
		e.err = err
	})
}

func WithMessagef(format string, args ...any) Option {
	return optionFunc(func(e *Error) {
		e.Message = fmt.Sprintf(format, args...)
	})
}
