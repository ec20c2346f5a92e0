package errors

import (
	"bytes"
	"fmt"
	"testing"

	pkgerrors "github.com/pkg/errors"

	"escore/pkg/source"
)

func TestKinds(t *testing.T) {
	tests := []struct {
		err  error
		kind string
		text string
	}{
		{NewReferenceError("x is not defined"), "ReferenceError", "ReferenceError: x is not defined"},
		{NewTypeError("Assignment to constant variable."), "TypeError", "TypeError: Assignment to constant variable."},
		{NewSyntaxError("Identifier '%s' has already been declared", "a"), "SyntaxError", "SyntaxError: Identifier 'a' has already been declared"},
		{NewRangeError("too deep"), "RangeError", "RangeError: too deep"},
		{NewEvalError("eval is not permitted in this realm"), "EvalError", "EvalError: eval is not permitted in this realm"},
		{fmt.Errorf("plain"), "", "plain"},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.kind {
			t.Errorf("Expected kind %q, got %q", tt.kind, got)
		}
		if got := tt.err.Error(); got != tt.text {
			t.Errorf("Expected %q, got %q", tt.text, got)
		}
	}
}

func TestResolutionErrorIsSyntaxErrorToUserCode(t *testing.T) {
	cause := fmt.Errorf("file does not exist")
	err := NewResolutionError("./missing", "main.yaml", cause)

	if KindOf(err) != "SyntaxError" {
		t.Errorf("Expected SyntaxError kind, got %q", KindOf(err))
	}
	if !IsResolutionError(err) || IsSyntaxError(err) {
		t.Errorf("Expected only IsResolutionError to match")
	}
	want := `ResolutionError: cannot resolve module "./missing" imported from "main.yaml": file does not exist`
	if err.Error() != want {
		t.Errorf("Expected %q, got %q", want, err.Error())
	}
	if Cause(Wrapf(err, "import failed")) != err {
		t.Errorf("Expected Cause to reach the resolution error")
	}
	if !Is(err, cause) {
		t.Errorf("Expected the cause to be in the chain")
	}
}

func TestPredicatesSeeThroughWrapping(t *testing.T) {
	err := pkgerrors.Wrap(NewTypeError("not a function"), "calling f")
	if !IsTypeError(err) {
		t.Errorf("Expected IsTypeError through Wrap")
	}
	if IsReferenceError(err) || IsRangeError(err) || IsEvalError(err) {
		t.Errorf("Expected no other kind to match")
	}
	var te *TypeError
	if !As(err, &te) || te.Message() != "not a function" {
		t.Errorf("Expected As to find the TypeError, got %v", te)
	}
}

func TestErrorfIsHostLevel(t *testing.T) {
	base := Errorf("initializer %q failed", "core")
	if base.Error() != `initializer "core" failed` {
		t.Errorf("Unexpected message %q", base.Error())
	}
	if KindOf(base) != "" {
		t.Errorf("Expected no language kind, got %q", KindOf(base))
	}
	if Cause(Wrapf(base, "realm")) != base {
		t.Errorf("Expected Cause to unwrap to the Errorf error")
	}
}

func TestAtAndDisplay(t *testing.T) {
	src := source.NewSourceFile("main.yaml", "app/main.yaml", "body:\n  - init: {name: y}\n")
	orig := NewSyntaxError("'y' is not declared")
	err := orig.At(Position{Line: 2, Column: 5, Source: src})

	if orig.Pos().IsValid() {
		t.Errorf("Expected At to leave the original unpositioned")
	}
	if err.Error() != "SyntaxError at app/main.yaml:2:5: 'y' is not declared" {
		t.Errorf("Expected positioned message, got %q", err.Error())
	}

	var buf bytes.Buffer
	Display(&buf, err)
	want := "SyntaxError at app/main.yaml:2:5: 'y' is not declared\n    - init: {name: y}\n      ^\n"
	if buf.String() != want {
		t.Errorf("Expected %q, got %q", want, buf.String())
	}

	buf.Reset()
	Display(&buf, fmt.Errorf("disk on fire"))
	if buf.String() != "Error: disk on fire\n" {
		t.Errorf("Expected plain error display, got %q", buf.String())
	}

	buf.Reset()
	Display(&buf, NewTypeError("bad"))
	if buf.String() != "TypeError: bad\n" {
		t.Errorf("Expected unpositioned display, got %q", buf.String())
	}
}

func TestInvariantPanics(t *testing.T) {
	defer func() {
		r := recover()
		ie, ok := r.(*InvariantError)
		if !ok {
			t.Fatalf("Expected *InvariantError, got %T", r)
		}
		if ie.Error() != "invariant violated: binding x already exists" {
			t.Errorf("Expected invariant message, got %q", ie.Error())
		}
	}()
	Invariant("binding %s already exists", "x")
}
