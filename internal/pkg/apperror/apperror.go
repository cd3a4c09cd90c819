// Package apperror carries the error kinds surfaced by the chat and ingestion
// flows so that transports can map them without string matching.
package apperror

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindRetrievalUnavailable  Kind = "RETRIEVAL_UNAVAILABLE"
	KindRetrievalAuth         Kind = "RETRIEVAL_AUTH"
	KindGenerationUnavailable Kind = "GENERATION_UNAVAILABLE"
	KindGenerationAuth        Kind = "GENERATION_AUTH"
	KindIngestion             Kind = "INGESTION_ERROR"
	KindSessionNotFound       Kind = "SESSION_NOT_FOUND"
	KindInvalidInput          Kind = "INVALID_INPUT"
	KindNotFound              Kind = "NOT_FOUND"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsAuth reports whether an upstream service rejected our credentials.
func IsAuth(err error) bool {
	k := KindOf(err)
	return k == KindRetrievalAuth || k == KindGenerationAuth
}
