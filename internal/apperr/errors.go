// Package apperr defines the closed set of failure kinds returned by the CRM core.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation          Kind = "validation"
	KindReferentialConflict Kind = "referential_conflict"
	KindNotFound            Kind = "not_found"
	KindStorageCorrupt      Kind = "storage_corrupt"
)

// Sentinels for errors.Is; an *Error matches the sentinel of its kind.
var (
	ErrValidation          = &Error{Kind: KindValidation, Code: "VALIDATION"}
	ErrReferentialConflict = &Error{Kind: KindReferentialConflict, Code: "REFERENTIAL_CONFLICT"}
	ErrNotFound            = &Error{Kind: KindNotFound, Code: "NOT_FOUND"}
	ErrStorageCorrupt      = &Error{Kind: KindStorageCorrupt, Code: "STORAGE_CORRUPT"}
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches another *Error of the same kind whose code is either the
// kind's sentinel code or equal to e's code.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok || other.Kind != e.Kind {
		return false
	}
	return other.Code == e.Code || other.Code == sentinelCode(other.Kind)
}

func sentinelCode(kind Kind) string {
	switch kind {
	case KindValidation:
		return ErrValidation.Code
	case KindReferentialConflict:
		return ErrReferentialConflict.Code
	case KindNotFound:
		return ErrNotFound.Code
	case KindStorageCorrupt:
		return ErrStorageCorrupt.Code
	default:
		return ""
	}
}

func newError(kind Kind, code, message string, details any) *Error {
	return &Error{
		Kind:    kind,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func Validation(code, message string) *Error {
	return newError(KindValidation, code, message, nil)
}

func Conflict(code, message string, details any) *Error {
	return newError(KindReferentialConflict, code, message, details)
}

func NotFound(code, message string) *Error {
	return newError(KindNotFound, code, message, nil)
}

func Corrupt(code, message string) *Error {
	return newError(KindStorageCorrupt, code, message, nil)
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
