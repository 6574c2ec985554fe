package errors

import (
	"fmt"
)

// New creates an Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates an Error with the given code and a formatted message.
//
// Example:
//
//	err := errors.Newf(errors.CodeNotFoundAgent, "actions: agent %d is not attached", agent)
func Newf(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps err with a code and message. If err is nil, Wrap returns nil.
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps err with a code and formatted message. If err is nil, Wrapf
// returns nil.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// Validationf creates a validation error with a formatted message.
func Validationf(format string, args ...any) *Error {
	return Newf(CodeValidation, format, args...)
}

// AgentNotFound creates the error reported when an operation targets an
// agent without an attached action queue.
func AgentNotFound(agent uint64) *Error {
	return Newf(CodeNotFoundAgent, "actions: agent %d has no action queue", agent).
		WithDetail("agent", agent)
}

// Reentrant creates the error reported when an immediate modification is
// requested for an agent from inside one of its own action callbacks.
func Reentrant(agent uint64, op string) *Error {
	return Newf(CodeConflictReentrant,
		"actions: immediate %s on agent %d while its action callback is running; use Deferred", op, agent).
		WithDetail("agent", agent).
		WithDetail("op", op)
}
