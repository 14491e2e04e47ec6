// Package domain contains core concepts of the document synchronization system.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"time"

	"github.com/google/uuid"
)

type DocumentID = uuid.UUID

type UserID = uuid.UUID

// Document is the durable metadata + content record held by the store.
// The live session only caches Content; the store keeps the last value written.
type Document struct {
	ID        DocumentID
	Name      string
	OwnerID   UserID
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Collaborator grants edit access on a document to a user.
// Ownership is implicit authorization and is never stored in this relation.
type Collaborator struct {
	DocumentID DocumentID
	UserID     UserID
}

type User struct {
	ID           UserID
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}
