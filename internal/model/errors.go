package model

import (
	"errors"
	"fmt"
)

// Error kinds. Every failure surfaced by the pipeline matches exactly one of
// them through errors.Is.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrInputNotFound = errors.New("input not found")
	ErrFormat        = errors.New("format error")
	ErrIntegrity     = errors.New("integrity error")
	ErrUsage         = errors.New("usage error")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string {
	return e.msg
}

func (e *kindError) Unwrap() error {
	return e.kind
}

// Errorf formats a message and tags it with the given error kind.
func Errorf(kind error, format string, args ...interface{}) error {
	return &kindError{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// ErrorKind returns the kind sentinel of err, or nil when err carries none.
func ErrorKind(err error) error {
	for _, kind := range []error{ErrConfiguration, ErrInputNotFound, ErrFormat, ErrIntegrity, ErrUsage} {
		if errors.Is(err, kind) {
			return kind
		}
	}

	return nil
}
