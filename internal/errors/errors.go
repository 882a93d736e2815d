// Package errors defines the dev server's typed error, whose WireError
// method feeds the HMR error overlay payload (hmr.ErrorPayload).
package errors

import (
	"fmt"

	"vite.dev/core/internal/hmr"
)

// Kind classifies where in the pipeline an Error originated.
type Kind string

const (
	ErrResolve   Kind = "resolve"
	ErrTransform Kind = "transform"
	ErrOptimize  Kind = "optimize"
	ErrIO        Kind = "io"
	ErrProtocol  Kind = "protocol"
)

// Error is the dev server's single error type. Every internal failure
// that can reach the browser overlay or a log line is wrapped in one of
// these before it leaves the package that produced it.
type Error struct {
	Kind    Kind
	Message string
	Stack   string
	Frame   string
	Id      string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WireError renders e as the {message, stack, frame} shape the HMR
// error overlay message embeds.
func (e *Error) WireError() *hmr.ErrorPayload {
	return &hmr.ErrorPayload{
		Message: e.Message,
		Stack:   e.Stack,
		Frame:   e.Frame,
		Id:      e.Id,
	}
}

// New builds an Error of the given kind wrapping cause; the cause is
// stored in Err, which Unwrap exposes to errors.Is and errors.As.
func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// WithFrame attaches a source-frame excerpt for the overlay.
func (e *Error) WithFrame(frame string) *Error {
	e.Frame = frame
	return e
}

// WithStack attaches a stack trace string for the overlay.
func (e *Error) WithStack(stack string) *Error {
	e.Stack = stack
	return e
}
