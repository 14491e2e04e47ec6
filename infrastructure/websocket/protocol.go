// Package websocket is the connection-facing edge of the service: it upgrades
// HTTP requests, authenticates bearer tokens, and speaks the JSON event
// protocol with each participant.
package websocket

import (
	"encoding/json"

	"doc-sync/errors"
)

// Event types. Inbound from the client: join_document, document_updated,
// leave_document. Outbound: document_state (initial snapshot after a join),
// document_broadcast (someone else's update), error.
const (
	TypeJoinDocument      = "join_document"
	TypeLeaveDocument     = "leave_document"
	TypeDocumentUpdated   = "document_updated"
	TypeDocumentState     = "document_state"
	TypeDocumentBroadcast = "document_broadcast"
	TypeError             = "error"
)

// Envelope frames every message in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type JoinDocumentPayload struct {
	DocumentID string `json:"document_id"`
}

type LeaveDocumentPayload struct {
	DocumentID string `json:"document_id"`
}

type DocumentUpdatedPayload struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

type DocumentStatePayload struct {
	DocumentID string `json:"document_id"`
	Content    string `json:"content"`
}

type DocumentBroadcastPayload struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	UserID  string `json:"user_id"`
}

func newEnvelope(eventType string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: eventType, Payload: data}, nil
}

// errorEnvelope converts a domain error into its wire form. Marshaling a
// WireError cannot fail, so the error path stays infallible.
func errorEnvelope(err error) Envelope {
	data, _ := json.Marshal(errors.MapToWireError(err))
	return Envelope{Type: TypeError, Payload: data}
}
