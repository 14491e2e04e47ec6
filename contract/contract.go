//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"doc-sync/domain"
	"doc-sync/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IRegistry is the session registry: the in-memory map of live document
// sessions. A session exists exactly while its participant set is non-empty.
type IRegistry interface {
	// Join adds the participant to the document's session, creating the
	// session (and loading its content from the store) if absent. The
	// returned snapshot is the content the participant should receive as
	// initial state.
	Join(ctx context.Context, p domain.Participant, sink EventSink) (string, error)
	// Leave removes the participant; removing a non-member is a no-op.
	// The session is torn down when its last participant leaves.
	Leave(p domain.Participant)
	Snapshot(id domain.DocumentID) (string, bool)
	SetContent(id domain.DocumentID, content string) bool
	// SinksForDocument returns a copy of the session's sinks, excluding the
	// given participant, so fan-out can run without holding session locks.
	SinksForDocument(id domain.DocumentID, exclude domain.ParticipantID) []EventSink
}

// IDocumentStore is the external document-metadata capability the core calls.
// The embedded Badger implementation gives read-your-writes within a process.
type IDocumentStore interface {
	GetDocument(ctx context.Context, id domain.DocumentID) (domain.Document, error)
	UpdateContent(ctx context.Context, id domain.DocumentID, content string) error
	ListCollaborators(ctx context.Context, id domain.DocumentID) ([]domain.UserID, error)
	AddCollaborator(ctx context.Context, id domain.DocumentID, userID domain.UserID) error
	RemoveCollaborator(ctx context.Context, id domain.DocumentID, userID domain.UserID) error
}

// IUserDirectory resolves collaborator identities presented by owners.
type IUserDirectory interface {
	UserByEmail(ctx context.Context, email string) (domain.User, error)
	UserByID(ctx context.Context, id domain.UserID) (domain.User, error)
}

// ITokenVerifier is the external auth capability: opaque bearer token in,
// user identity or failure out.
type ITokenVerifier interface {
	Verify(token string) (domain.UserID, error)
}

type IOrchestrator interface {
	Dispatch(e event.DomainEvent)
	RegisterSinks(sink ...EventSink)
	Start(ctx context.Context) error
	Stop()
}
