package errors

import (
	"fmt"
	"io"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// EngineError is the interface implemented by every language-level error
// the engine raises on its own behalf (as opposed to values thrown by user
// code, which travel as *value.Exception).
type EngineError interface {
	error
	Pos() Position
	// Kind returns the constructor name user code observes, e.g. "TypeError".
	Kind() string
	// Message returns the error message without kind or position.
	Message() string
	Unwrap() error
}

// base carries the fields shared by all concrete error kinds.
type base struct {
	Position
	Msg   string
	Cause error
}

func (b *base) format(kind string) string {
	if b.Position.IsValid() {
		return fmt.Sprintf("%s at %s: %s", kind, b.Position, b.Msg)
	}
	return kind + ": " + b.Msg
}

func (b *base) Pos() Position { return b.Position }
func (b *base) Message() string { return b.Msg }
func (b *base) Unwrap() error { return b.Cause }

// --- Concrete Error Types ---

// ReferenceError: unresolvable identifiers, temporal-dead-zone access,
// strict writes to undeclared names, unresolved module imports.
type ReferenceError struct{ base }

func (e *ReferenceError) Error() string { return e.format(e.Kind()) }
func (e *ReferenceError) Kind() string { return "ReferenceError" }

// TypeError: writes to immutable bindings, incompatible global
// redeclarations, `this` misuse in derived constructors, non-callables.
type TypeError struct{ base }

func (e *TypeError) Error() string { return e.format(e.Kind()) }
func (e *TypeError) Kind() string { return "TypeError" }

// SyntaxError: early errors found during declaration hoisting and module
// linking (duplicate declarations, ambiguous exports).
type SyntaxError struct{ base }

func (e *SyntaxError) Error() string { return e.format(e.Kind()) }
func (e *SyntaxError) Kind() string { return "SyntaxError" }

// RangeError is raised by the few range checks the core performs.
type RangeError struct{ base }

func (e *RangeError) Error() string { return e.format(e.Kind()) }
func (e *RangeError) Kind() string { return "RangeError" }

// EvalError is raised when eval is used in a realm that does not permit it.
type EvalError struct{ base }

func (e *EvalError) Error() string { return e.format(e.Kind()) }
func (e *EvalError) Kind() string { return "EvalError" }

// ResolutionError reports a module specifier that cannot be normalized or
// a module that cannot be located. User code observes it as a SyntaxError.
type ResolutionError struct {
	base
	Specifier string
	Referrer  string
}

func (e *ResolutionError) Error() string { return e.format("ResolutionError") }
func (e *ResolutionError) Kind() string { return "SyntaxError" }

// --- Constructors ---

func NewReferenceError(format string, args ...interface{}) *ReferenceError {
	return &ReferenceError{base{Msg: fmt.Sprintf(format, args...)}}
}

func NewTypeError(format string, args ...interface{}) *TypeError {
	return &TypeError{base{Msg: fmt.Sprintf(format, args...)}}
}

func NewSyntaxError(format string, args ...interface{}) *SyntaxError {
	return &SyntaxError{base{Msg: fmt.Sprintf(format, args...)}}
}

func NewRangeError(format string, args ...interface{}) *RangeError {
	return &RangeError{base{Msg: fmt.Sprintf(format, args...)}}
}

func NewEvalError(format string, args ...interface{}) *EvalError {
	return &EvalError{base{Msg: fmt.Sprintf(format, args...)}}
}

func NewResolutionError(specifier, referrer string, cause error) *ResolutionError {
	msg := fmt.Sprintf("cannot resolve module %q", specifier)
	if referrer != "" {
		msg += fmt.Sprintf(" imported from %q", referrer)
	}
	if cause != nil {
		msg += ": " + cause.Error()
	}
	return &ResolutionError{base: base{Msg: msg, Cause: cause}, Specifier: specifier, Referrer: referrer}
}

// At returns a copy of the syntax error positioned at pos.
func (e *SyntaxError) At(pos Position) *SyntaxError {
	c := *e
	c.Position = pos
	return &c
}

// --- Predicates ---

func IsReferenceError(err error) bool {
	var e *ReferenceError
	return pkgerrors.As(err, &e)
}

func IsTypeError(err error) bool {
	var e *TypeError
	return pkgerrors.As(err, &e)
}

func IsSyntaxError(err error) bool {
	var e *SyntaxError
	return pkgerrors.As(err, &e)
}

func IsRangeError(err error) bool {
	var e *RangeError
	return pkgerrors.As(err, &e)
}

func IsEvalError(err error) bool {
	var e *EvalError
	return pkgerrors.As(err, &e)
}

func IsResolutionError(err error) bool {
	var e *ResolutionError
	return pkgerrors.As(err, &e)
}

// KindOf returns the language-visible kind of err, or "" if err is not an
// EngineError.
func KindOf(err error) string {
	var e EngineError
	if pkgerrors.As(err, &e) {
		return e.Kind()
	}
	return ""
}

// --- Wrapping ---

// Wrapf annotates a host-level failure (I/O, decoding) with context.
func Wrapf(err error, format string, args ...interface{}) error {
	return pkgerrors.Wrapf(err, format, args...)
}

// Errorf builds a host-level error with a stack trace.
func Errorf(format string, args ...interface{}) error {
	return pkgerrors.Errorf(format, args...)
}

// Cause returns the innermost error of a Wrapf chain.
func Cause(err error) error {
	return pkgerrors.Cause(err)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return pkgerrors.As(err, target)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return pkgerrors.Is(err, target)
}

// --- Invariants ---

// InvariantError is a host-level assertion failure: a caller broke a
// contract of the engine (declaring a name twice, walking a module graph in
// the wrong state). It is never observable by language code.
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string { return "invariant violated: " + e.Msg }

// Invariant panics with an *InvariantError.
func Invariant(format string, args ...interface{}) {
	panic(&InvariantError{Msg: fmt.Sprintf(format, args...)})
}

// --- Error Reporting ---

// Display writes err to w. Positioned engine errors are followed by the
// offending source line and a caret marker.
func Display(w io.Writer, err error) {
	var e EngineError
	if !pkgerrors.As(err, &e) {
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}
	pos := e.Pos()
	if !pos.IsValid() || pos.Source == nil {
		fmt.Fprintln(w, e.Error())
		return
	}
	fmt.Fprintf(w, "%s at %s: %s\n", e.Kind(), pos, e.Message())
	line := pos.Source.Line(pos.Line)
	if line == "" {
		return
	}
	fmt.Fprintf(w, "  %s\n", strings.TrimRight(line, "\t "))
	col := pos.Column - 1
	if col < 0 {
		col = 0
	}
	fmt.Fprintf(w, "  %s^\n", strings.Repeat(" ", col))
}
