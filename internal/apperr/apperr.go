// Package apperr classifies failures so request boundaries can map them to
// responses without knowing where an error came from.
package apperr

import (
	"errors"
	"net/http"
)

type Kind string

const (
	KindInvalidRequest         Kind = "INVALID_REQUEST"
	KindServiceMisconfigured   Kind = "SERVICE_MISCONFIGURED"
	KindNotAuthenticated       Kind = "NOT_AUTHENTICATED"
	KindRemoteServiceFailure   Kind = "REMOTE_SERVICE_FAILURE"
	KindDevicePermissionDenied Kind = "DEVICE_PERMISSION_DENIED"
)

// Error carries a Kind plus a message that is safe to show to the caller.
// Err is the underlying cause, if any, and is never sent over the wire.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func InvalidRequest(msg string) *Error       { return New(KindInvalidRequest, msg) }
func ServiceMisconfigured(msg string) *Error { return New(KindServiceMisconfigured, msg) }
func NotAuthenticated(msg string) *Error     { return New(KindNotAuthenticated, msg) }

func RemoteServiceFailure(msg string, err error) *Error {
	return Wrap(KindRemoteServiceFailure, msg, err)
}

func DevicePermissionDenied(msg string, err error) *Error {
	return Wrap(KindDevicePermissionDenied, msg, err)
}

// KindOf reports the Kind of the first *Error in err's chain.
// Unclassified errors count as remote failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindRemoteServiceFailure
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// Message returns the caller-facing message for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case KindInvalidRequest:
		return http.StatusBadRequest
	case KindNotAuthenticated:
		return http.StatusUnauthorized
	case KindDevicePermissionDenied:
		return http.StatusForbidden
	case KindServiceMisconfigured:
		return http.StatusInternalServerError
	case KindRemoteServiceFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
