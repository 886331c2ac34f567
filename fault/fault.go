// Package fault defines the error taxonomy shared by the pipeline:
// validation, infrastructure, planning, and domain failures. Callers use
// fault.IsKind (or the Is* helpers) to decide whether a failure is fatal
// for the current stage or can be absorbed with a safe default.
package fault

import (
	"errors"
	"fmt"
)

// Kind categorizes an error for propagation decisions.
type Kind int

const (
	// KindValidation marks malformed input (wrong embedding dimension,
	// missing content or owner). Fails fast, never retried.
	KindValidation Kind = iota

	// KindInfrastructure marks collaborator transport or connectivity
	// failures. Absorbed with a safe default where a stage is non-fatal,
	// otherwise propagated.
	KindInfrastructure

	// KindPlanning marks malformed structured planning output. Always
	// fatal: a contract violation of the planning collaborator.
	KindPlanning

	// KindDomain marks business-rule violations such as an empty query or
	// owner on search. Fails fast.
	KindDomain
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindInfrastructure:
		return "infrastructure"
	case KindPlanning:
		return "planning"
	case KindDomain:
		return "domain"
	default:
		return "unknown"
	}
}

// Error wraps an underlying error with its kind and the operation that
// produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Error returns a formatted error message.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a fault of the given kind with a formatted message.
func New(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap attaches a kind and operation to an existing error. If err is
// already a fault, its kind is preserved and only the operation context
// is added.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		kind = fe.Kind
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Validation creates a validation fault.
func Validation(op, format string, args ...any) error {
	return New(KindValidation, op, format, args...)
}

// Infrastructure creates an infrastructure fault.
func Infrastructure(op, format string, args ...any) error {
	return New(KindInfrastructure, op, format, args...)
}

// Planning creates a planning fault.
func Planning(op, format string, args ...any) error {
	return New(KindPlanning, op, format, args...)
}

// Domain creates a domain fault.
func Domain(op, format string, args ...any) error {
	return New(KindDomain, op, format, args...)
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == kind
	}
	return false
}

// IsValidation reports whether err is a validation fault.
func IsValidation(err error) bool { return IsKind(err, KindValidation) }

// IsInfrastructure reports whether err is an infrastructure fault.
func IsInfrastructure(err error) bool { return IsKind(err, KindInfrastructure) }

// IsPlanning reports whether err is a planning fault.
func IsPlanning(err error) bool { return IsKind(err, KindPlanning) }

// IsDomain reports whether err is a domain fault.
func IsDomain(err error) bool { return IsKind(err, KindDomain) }
