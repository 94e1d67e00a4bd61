// Package errors implements SpiderScript's three error kinds (spec.md §7):
// SyntaxError, CompileError, and RuntimeError, each carrying a file/line
// position when one is available.
package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is one of the three error kinds spec §7 names.
type Kind string

const (
	Syntax  Kind = "SyntaxError"
	Compile Kind = "CompileError"
	Runtime Kind = "RuntimeError"
)

// Position is a file/line pair, attached to every user-visible message
// when available (spec §7).
type Position struct {
	File string
	Line int
}

func (p Position) String() string {
	if p.File == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", p.File, p.Line)
}

// ScriptError is the concrete error type returned by the lexer, parser,
// compiler, and VM.
type ScriptError struct {
	Kind    Kind
	Message string
	Pos     Position
	// RuntimeKind narrows a RuntimeError further (e.g. "arithmetic",
	// "null", "type", "native", "uncaught") so hosts and tests can match
	// on it without parsing Message (spec §8 scenario S4).
	RuntimeKind string
	cause       error
}

func (e *ScriptError) Error() string {
	if e.Pos.File != "" {
		return fmt.Sprintf("%s: %s (at %s)", e.Kind, e.Message, e.Pos)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap makes ScriptError compatible with errors.Is/errors.As. This
// package's Cause follows the same link.
func (e *ScriptError) Unwrap() error { return e.cause }

// New builds a ScriptError with no position information.
func New(kind Kind, format string, args ...interface{}) *ScriptError {
	return &ScriptError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// At builds a ScriptError with a file/line position.
func At(kind Kind, file string, line int, format string, args ...interface{}) *ScriptError {
	return &ScriptError{Kind: kind, Message: fmt.Sprintf(format, args...), Pos: Position{File: file, Line: line}}
}

// Wrap attaches format/args as a RuntimeError whose cause is the given
// Go error — used when a native function call fails (spec §4.8, §7).
func Wrap(err error, file string, line int, format string, args ...interface{}) *ScriptError {
	return &ScriptError{
		Kind:    Runtime,
		Message: fmt.Sprintf(format, args...),
		Pos:     Position{File: file, Line: line},
		cause:   errors.WithStack(err),
	}
}

// WithRuntimeKind sets the narrower runtime-error classification and
// returns the receiver for chaining.
func (e *ScriptError) WithRuntimeKind(k string) *ScriptError {
	e.RuntimeKind = k
	return e
}

// Cause returns the underlying Go error, if any, per pkg/errors' Cause
// convention.
func Cause(err error) error {
	if se, ok := err.(*ScriptError); ok && se.cause != nil {
		return errors.Cause(se.cause)
	}
	return errors.Cause(err)
}
