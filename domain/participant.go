package domain

import "github.com/google/uuid"

// ParticipantID identifies one live connection, not a user: the same user
// connected twice is two distinct participants.
type ParticipantID = uuid.UUID

// Participant is one authenticated connection joined to a document session.
// It is owned by its connection handler; the registry and the broadcast
// worker only reference it.
type Participant struct {
	ID         ParticipantID
	UserID     UserID
	DocumentID DocumentID
}
