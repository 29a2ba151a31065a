package library

import (
	"errors"
	"fmt"
)

// Code is a machine-readable failure class. Front ends switch on it.
type Code string

const (
	CodeInvalidCredentials     Code = "INVALID_CREDENTIALS"
	CodeInvalidInput           Code = "INVALID_INPUT"
	CodeInvalidDate            Code = "INVALID_DATE"
	CodeBookUnavailable        Code = "BOOK_UNAVAILABLE"
	CodeBookNotFound           Code = "BOOK_NOT_FOUND"
	CodeStudentNotFound        Code = "STUDENT_NOT_FOUND"
	CodeLoanNotFound           Code = "LOAN_NOT_FOUND"
	CodePersistenceUnavailable Code = "PERSISTENCE_UNAVAILABLE"
	CodeUnauthorized           Code = "UNAUTHORIZED"
	CodeForbidden              Code = "FORBIDDEN"
	CodeInconsistent           Code = "INCONSISTENT"
)

// Error is a circulation failure with a code and a message fit for a user.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// WithCause returns a copy of e wrapping err.
func (e *Error) WithCause(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, cause: err}
}

// WithMessagef returns a copy of e with a more specific message.
func (e *Error) WithMessagef(format string, args ...any) *Error {
	return &Error{Code: e.Code, Message: fmt.Sprintf(format, args...), cause: e.cause}
}

var (
	ErrInvalidCredentials     = &Error{Code: CodeInvalidCredentials, Message: "invalid identifier or secret"}
	ErrInvalidInput           = &Error{Code: CodeInvalidInput, Message: "invalid input"}
	ErrInvalidDate            = &Error{Code: CodeInvalidDate, Message: "invalid date, use YYYY-MM-DD"}
	ErrBookUnavailable        = &Error{Code: CodeBookUnavailable, Message: "no copies of this book are available"}
	ErrBookNotFound           = &Error{Code: CodeBookNotFound, Message: "book not found"}
	ErrStudentNotFound        = &Error{Code: CodeStudentNotFound, Message: "student not found"}
	ErrLoanNotFound           = &Error{Code: CodeLoanNotFound, Message: "loan not found"}
	ErrPersistenceUnavailable = &Error{Code: CodePersistenceUnavailable, Message: "library data is unavailable"}
	ErrUnauthorized           = &Error{Code: CodeUnauthorized, Message: "not logged in"}
	ErrForbidden              = &Error{Code: CodeForbidden, Message: "not allowed for this role"}
	ErrInconsistent           = &Error{Code: CodeInconsistent, Message: "library data is inconsistent"}
)

// CodeOf extracts the code of a circulation error, or "" for anything else.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
