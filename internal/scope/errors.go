package scope

import (
	"errors"
	"fmt"
)

// Error represents a scope definition or composition failure.
//
// Scope errors include:
//   - Unbound model: the registry has no model and none could be resolved
//   - Scope mismatch: relations from different registries were merged
//   - Unknown member: a scope name that was never defined was called
//   - Invalid argument: a builder received a value it cannot use
//   - Body failed: a scope body returned an error
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Registry names the registry the error was raised on.
	Registry string

	// Name is the scope involved, when there is one.
	Name string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes scope errors.
type ErrorCode string

const (
	// ErrCodeUnboundModel indicates no model is bound or resolvable.
	ErrCodeUnboundModel ErrorCode = "UNBOUND_MODEL"

	// ErrCodeScopeMismatch indicates a merge across registries.
	ErrCodeScopeMismatch ErrorCode = "SCOPE_MISMATCH"

	// ErrCodeUnknownMember indicates a call to an undefined scope.
	ErrCodeUnknownMember ErrorCode = "UNKNOWN_MEMBER"

	// ErrCodeInvalidArgument indicates a builder argument was rejected.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"

	// ErrCodeBodyFailed indicates a scope body returned an error.
	ErrCodeBodyFailed ErrorCode = "BODY_FAILED"
)

// Sentinels for errors.Is. They match any *Error with the same code.
var (
	ErrUnboundModel    = &Error{Code: ErrCodeUnboundModel}
	ErrScopeMismatch   = &Error{Code: ErrCodeScopeMismatch}
	ErrUnknownMember   = &Error{Code: ErrCodeUnknownMember}
	ErrInvalidArgument = &Error{Code: ErrCodeInvalidArgument}
	ErrBodyFailed      = &Error{Code: ErrCodeBodyFailed}
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	switch {
	case e.Registry != "" && e.Name != "":
		msg = fmt.Sprintf("%s (registry=%s, scope=%s)", msg, e.Registry, e.Name)
	case e.Registry != "":
		msg = fmt.Sprintf("%s (registry=%s)", msg, e.Registry)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Code == e.Code
}

// IsUnboundModel returns true if err is an unbound model error.
// Uses errors.As to handle wrapped errors.
func IsUnboundModel(err error) bool { return hasCode(err, ErrCodeUnboundModel) }

// IsScopeMismatch returns true if err is a scope mismatch error.
func IsScopeMismatch(err error) bool { return hasCode(err, ErrCodeScopeMismatch) }

// IsUnknownMember returns true if err is an unknown member error.
func IsUnknownMember(err error) bool { return hasCode(err, ErrCodeUnknownMember) }

func hasCode(err error, code ErrorCode) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// NewUnboundModelError creates an Error for a registry without a model.
func NewUnboundModelError(registry string, cause error) *Error {
	return &Error{
		Code:     ErrCodeUnboundModel,
		Message:  "no model is bound to the registry",
		Registry: registry,
		Err:      cause,
	}
}

// NewScopeMismatchError creates an Error for a cross-registry merge.
func NewScopeMismatchError(registry, other string) *Error {
	return &Error{
		Code:     ErrCodeScopeMismatch,
		Message:  fmt.Sprintf("cannot merge a relation of %s", other),
		Registry: registry,
	}
}

// NewUnknownMemberError creates an Error for an undefined scope.
func NewUnknownMemberError(registry, name string) *Error {
	return &Error{
		Code:     ErrCodeUnknownMember,
		Message:  "undefined scope",
		Registry: registry,
		Name:     name,
	}
}

func newInvalidArgumentError(registry, format string, args ...any) *Error {
	return &Error{
		Code:     ErrCodeInvalidArgument,
		Message:  fmt.Sprintf(format, args...),
		Registry: registry,
	}
}

func newBodyError(registry, name string, cause error) *Error {
	return &Error{
		Code:     ErrCodeBodyFailed,
		Message:  "scope body failed",
		Registry: registry,
		Name:     name,
		Err:      cause,
	}
}
