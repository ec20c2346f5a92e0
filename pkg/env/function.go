package env

import (
	"escore/pkg/errors"
	"escore/pkg/value"
)

// ThisStatus tracks the this binding of a function record.
type ThisStatus uint8

const (
	// ThisLexical: arrow functions have no this binding of their own.
	ThisLexical ThisStatus = iota
	// ThisUninitialized: derived constructors before super() returns.
	ThisUninitialized
	ThisInitialized
)

func (s ThisStatus) String() string {
	switch s {
	case ThisLexical:
		return "lexical"
	case ThisUninitialized:
		return "uninitialized"
	case ThisInitialized:
		return "initialized"
	default:
		return "unknown"
	}
}

// FunctionRecord is the top-level record of a function activation.
type FunctionRecord struct {
	*DeclarativeRecord

	function   *value.Object
	homeObject *value.Object
	newTarget  value.Value
	thisValue  value.Value
	thisStatus ThisStatus

	// Arguments is the arguments object, when one was created.
	Arguments *value.Object
}

// Function returns the function object being activated.
func (r *FunctionRecord) Function() *value.Object { return r.function }

// HomeObject returns the object used for super lookups, or nil.
func (r *FunctionRecord) HomeObject() *value.Object { return r.homeObject }

// NewTarget returns new.target: the constructor for [[Construct]]
// activations, undefined otherwise.
func (r *FunctionRecord) NewTarget() value.Value { return r.newTarget }

func (r *FunctionRecord) ThisStatus() ThisStatus { return r.thisStatus }

// HasThisBinding is true once a this slot exists, initialized or not.
func (r *FunctionRecord) HasThisBinding() bool {
	return r.thisStatus != ThisLexical
}

func (r *FunctionRecord) HasSuperBinding() bool {
	return r.thisStatus != ThisLexical && r.homeObject != nil
}

// BindThisValue initializes the this binding. It may succeed only once.
func (r *FunctionRecord) BindThisValue(v value.Value) error {
	if r.thisStatus == ThisLexical {
		errors.Invariant("binding this in a lexical-this function environment")
	}
	if r.thisStatus == ThisInitialized {
		return errors.NewReferenceError("Super constructor may only be called once")
	}
	r.thisValue = v
	r.thisStatus = ThisInitialized
	return nil
}

// GetThisBinding returns this, failing before the binding is initialized.
func (r *FunctionRecord) GetThisBinding() (value.Value, error) {
	if r.thisStatus == ThisLexical {
		errors.Invariant("reading this from a lexical-this function environment")
	}
	if r.thisStatus == ThisUninitialized {
		return value.Undefined, errors.NewReferenceError("Must call super constructor in derived class before accessing 'this' or returning from derived constructor")
	}
	return r.thisValue, nil
}

// GetSuperBase returns the prototype of the home object, or null when no
// home object is attached.
func (r *FunctionRecord) GetSuperBase() value.Value {
	if r.homeObject == nil {
		return value.Null
	}
	return value.ObjectValue(r.homeObject.Prototype())
}
