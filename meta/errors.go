package meta

import (
	"errors"
	"fmt"
	"strings"
)

// Position is the originating call site of an error, when known.
type Position struct {
	Line   int
	Column int
}

// RuntimeError carries enough context for the execution engine to raise the
// matching language-level exception.
type RuntimeError struct {
	Type    string
	Message string
	Name    string
	Module  string
	Pos     Position
	err     error
}

const (
	ErrorTypeRuntime  = "RuntimeError"
	ErrorTypeType     = "TypeError"
	ErrorTypeName     = "NameError"
	ErrorTypeNoMethod = "NoMethodError"
	ErrorTypeArgument = "ArgumentError"
)

func (re *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString(re.Type)
	b.WriteString(": ")
	b.WriteString(re.Message)
	if re.Pos.Line > 0 && re.Pos.Column > 0 {
		fmt.Fprintf(&b, " (%d:%d)", re.Pos.Line, re.Pos.Column)
	} else if re.Pos.Line > 0 {
		fmt.Fprintf(&b, " (line %d)", re.Pos.Line)
	}
	return b.String()
}

// Unwrap returns the host error a RuntimeError was built from, if any.
func (re *RuntimeError) Unwrap() error {
	return re.err
}

func newTypeError(format string, args ...any) *RuntimeError {
	return &RuntimeError{Type: ErrorTypeType, Message: fmt.Sprintf(format, args...)}
}

func newNameError(name string, format string, args ...any) *RuntimeError {
	return &RuntimeError{Type: ErrorTypeName, Name: name, Message: fmt.Sprintf(format, args...)}
}

func newNoMethodError(name string, receiver string, format string, args ...any) *RuntimeError {
	return &RuntimeError{Type: ErrorTypeNoMethod, Name: name, Module: receiver, Message: fmt.Sprintf(format, args...)}
}

func newArgumentError(format string, args ...any) *RuntimeError {
	return &RuntimeError{Type: ErrorTypeArgument, Message: fmt.Sprintf(format, args...)}
}

func (re *RuntimeError) in(m *Module) *RuntimeError {
	if m != nil {
		re.Module = m.inspect()
	}
	return re
}

// IsErrorType reports whether err is a RuntimeError of the given type.
func IsErrorType(err error, kind string) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Type == kind
	}
	return false
}

// WithPosition stamps pos onto err. Errors that are not RuntimeErrors are
// wrapped as a RuntimeError of the base type.
func WithPosition(err error, pos Position) error {
	if err == nil {
		return nil
	}
	var re *RuntimeError
	if errors.As(err, &re) {
		if re.Pos.Line > 0 {
			return err
		}
		stamped := *re
		stamped.Pos = pos
		return &stamped
	}
	return &RuntimeError{Type: ErrorTypeRuntime, Message: err.Error(), Pos: pos, err: err}
}
