// Package apperr defines the error taxonomy shared by services and handlers.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the transport layer.
type Kind string

const (
	KindValidation Kind = "VALIDATION_ERROR"
	KindNotFound   Kind = "NOT_FOUND"
	KindDuplicate  Kind = "DUPLICATE"
	KindConstraint Kind = "CONSTRAINT_VIOLATION"
	KindAuth       Kind = "UNAUTHORIZED"
	KindStorage    Kind = "STORAGE_ERROR"
)

// Error is a classified, client-presentable error.
type Error struct {
	Kind    Kind
	Message string
	// Fields maps offending input fields to a reason (validation only).
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Validation reports client-fixable bad input.
func Validation(message string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

// NotFound reports a missing entity.
func NotFound(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %q not found", entity, id)}
}

// NotFoundMany reports that several referenced ids are missing.
func NotFoundMany(entity string, ids []string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s not found: %q", entity, ids)}
}

// Duplicate reports a slug collision.
func Duplicate(entity, slug string) *Error {
	return &Error{
		Kind:    KindDuplicate,
		Message: fmt.Sprintf("%s with slug %q already exists", entity, slug),
		Fields:  map[string]string{"slug": slug},
	}
}

// Constraint reports an operation blocked by dependent records.
func Constraint(format string, args ...any) *Error {
	return &Error{Kind: KindConstraint, Message: fmt.Sprintf(format, args...)}
}

// Auth reports a missing or invalid credential.
func Auth(message string) *Error {
	return &Error{Kind: KindAuth, Message: message}
}

// Storage reports an object-storage failure the caller cannot fix.
func Storage(message string, err error) *Error {
	return &Error{Kind: KindStorage, Message: message, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
