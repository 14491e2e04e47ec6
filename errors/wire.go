package errors

import (
	"errors"
)

// WireError is the payload of a protocol-level "error" event. Message is
// human-readable and may be displayed verbatim by clients.
type WireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MapToWireError converts an error chain into the protocol error payload.
// Unrecognized errors are reported as retryable internal failures so that a
// single participant's bad luck never leaks internals or kills the process.
func MapToWireError(err error) WireError {
	switch {
	case errors.Is(err, ErrAuthenticationFailed):
		return WireError{Code: "authentication_failed", Message: "invalid or missing token"}
	case errors.Is(err, ErrAuthorizationDenied):
		return WireError{Code: "authorization_denied", Message: "you do not have permission to do that"}
	case errors.Is(err, ErrUnknownCollaborator):
		return WireError{Code: "not_found", Message: "invalid email"}
	case errors.Is(err, ErrNotFound):
		return WireError{Code: "not_found", Message: "document not found"}
	case errors.Is(err, ErrAlreadyJoined):
		return WireError{Code: "already_joined", Message: "leave the current document first"}
	case errors.Is(err, ErrNotJoined):
		return WireError{Code: "not_joined", Message: "join a document first"}
	case errors.Is(err, ErrBadRequest):
		return WireError{Code: "bad_request", Message: "malformed message"}
	case errors.Is(err, ErrStoreUnavailable):
		return WireError{Code: "retry_later", Message: "document store unavailable, retry later"}
	default:
		return WireError{Code: "internal", Message: "internal error, retry later"}
	}
}
