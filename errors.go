package mediator

import (
	"context"
	"errors"
)

var (
	// Registration errors.
	ErrHandlerNotFound  = errors.New("mediator: handler not found")
	ErrDuplicateHandler = errors.New("mediator: duplicate handler")
	ErrInvalidType      = errors.New("mediator: empty message type")

	// Execution errors.
	ErrValidation  = errors.New("mediator: validation failed")
	ErrExecution   = errors.New("mediator: execution failed")
	ErrRateLimited = errors.New("mediator: rate limited")
	ErrDeadLetter  = errors.New("mediator: delivery dead-lettered")

	// Cache errors.
	ErrMissingCacheKey = errors.New("mediator: cacheable query without cache key")
	ErrCacheClosed     = errors.New("mediator: query cache closed")

	// Lifecycle errors.
	ErrBusClosed    = errors.New("mediator: bus closed")
	ErrDLQNotFound  = errors.New("mediator: dlq entry not found")
	ErrStoreClosed  = errors.New("mediator: store closed")
	ErrNilMessage   = errors.New("mediator: nil message")
	ErrNilHandler   = errors.New("mediator: nil handler")
	ErrNoSubscriber = errors.New("mediator: subscriber not registered")
)

// ErrorCode is the machine-readable failure class carried by a Result.
type ErrorCode string

// Error codes surfaced on Result.ErrorCode.
const (
	CodeNone             ErrorCode = ""
	CodeHandlerNotFound  ErrorCode = "HANDLER_NOT_FOUND"
	CodeValidation       ErrorCode = "VALIDATION_ERROR"
	CodeExecution        ErrorCode = "EXECUTION_ERROR"
	CodeDuplicateHandler ErrorCode = "DUPLICATE_HANDLER"
	CodeDeadLetter       ErrorCode = "DEAD_LETTER"
	CodeCanceled         ErrorCode = "CANCELED"
)

// CodeOf classifies err. Anything unrecognised is an execution error.
func CodeOf(err error) ErrorCode {
	switch {
	case err == nil:
		return CodeNone
	case errors.Is(err, ErrHandlerNotFound):
		return CodeHandlerNotFound
	case errors.Is(err, ErrValidation), errors.Is(err, ErrMissingCacheKey),
		errors.Is(err, ErrInvalidType), errors.Is(err, ErrNilMessage):
		return CodeValidation
	case errors.Is(err, ErrDuplicateHandler):
		return CodeDuplicateHandler
	case errors.Is(err, ErrDeadLetter):
		return CodeDeadLetter
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeCanceled
	default:
		return CodeExecution
	}
}
