package errors

import (
	stderrors "errors"
	"fmt"
)

// Is re-exports the standard library errors.Is so callers of this package do
// not need a second aliased import.
func Is(err, target error) bool { return stderrors.Is(err, target) }

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	// Connection / protocol errors. Each one is reported only to the
	// participant whose action caused it.
	ErrAuthenticationFailed = fmt.Errorf("authentication failed")
	ErrAuthorizationDenied  = fmt.Errorf("authorization denied")
	ErrNotFound             = fmt.Errorf("not found")
	ErrUnknownCollaborator  = fmt.Errorf("unknown collaborator identity")
	ErrOwnerCollaborator    = fmt.Errorf("owner cannot be added as collaborator")
	ErrAlreadyJoined        = fmt.Errorf("already joined a document")
	ErrNotJoined            = fmt.Errorf("no document joined")
	ErrBadRequest           = fmt.Errorf("malformed message")
	ErrStoreUnavailable     = fmt.Errorf("document store unavailable, retry later")

	// ErrUserAlreadyExists is only hit by the seeding tool; the sync
	// surface never creates users.
	ErrUserAlreadyExists = fmt.Errorf("user already exists")

	// ErrSlowConsumer marks a failed best-effort delivery to one recipient.
	// It is logged and isolated; the recipient is cleaned up by the normal
	// disconnect path, never by the broadcast.
	ErrSlowConsumer = fmt.Errorf("recipient too slow, delivery dropped")
)
