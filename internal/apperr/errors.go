// Package apperr defines the closed set of error classifications shared by
// the remote clients, the store and the cart orchestrator.
package apperr

import (
	"errors"
	"fmt"
)

type Kind uint8

const (
	Unknown Kind = iota
	// Unauthenticated means the bearer token is missing, malformed, expired
	// or rejected by the user service.
	Unauthenticated
	// AccessDenied means the identity resolved but is not allowed to perform
	// the operation (wrong cart owner, inactive account, non-admin).
	AccessDenied
	NotFound
	InvalidInput
	// ProductInvalid covers inactive products, insufficient stock and price
	// anomalies reported by product validation.
	ProductInvalid
	// DependencyUnavailable means a remote service could not be reached after
	// retries were exhausted, or answered with a server error.
	DependencyUnavailable
	// StorageDegraded means the primary cart store is unreachable. It is
	// recovered internally by the fallback store and normally not surfaced.
	StorageDegraded
)

func (k Kind) String() string {
	switch k {
	case Unauthenticated:
		return "unauthenticated"
	case AccessDenied:
		return "access_denied"
	case NotFound:
		return "not_found"
	case InvalidInput:
		return "invalid_input"
	case ProductInvalid:
		return "product_invalid"
	case DependencyUnavailable:
		return "dependency_unavailable"
	case StorageDegraded:
		return "storage_degraded"
	}
	return "unknown"
}

type Error struct {
	kind Kind
	msg  string
	err  error
}

func New(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{kind: kind, msg: msg, err: err}
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *Error) Unwrap() error {
	return e.err
}

func (e *Error) Kind() Kind {
	return e.kind
}

// KindOf walks the error chain and returns the classification of the first
// *Error found, or Unknown.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.kind
	}
	return Unknown
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
