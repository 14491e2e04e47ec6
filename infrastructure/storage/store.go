package storage

import (
	"context"
	"log/slog"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"

	"doc-sync/domain"
)

// Store composes the repositories into the document-store and user-directory
// capabilities the core consumes.
type Store struct {
	Documents     *DocumentRepository
	Users         *UserRepository
	Collaborators *CollaboratorRepository
}

func NewStore(db *badger.DB, writer *bluge.Writer, log *slog.Logger) *Store {
	return &Store{
		Documents:     NewDocumentRepository(db, writer, log),
		Users:         NewUserRepository(db),
		Collaborators: NewCollaboratorRepository(db),
	}
}

func (s *Store) GetDocument(ctx context.Context, id domain.DocumentID) (domain.Document, error) {
	return s.Documents.GetDocument(ctx, id)
}

func (s *Store) UpdateContent(ctx context.Context, id domain.DocumentID, content string) error {
	return s.Documents.UpdateContent(ctx, id, content)
}

func (s *Store) ListCollaborators(ctx context.Context, id domain.DocumentID) ([]domain.UserID, error) {
	return s.Collaborators.ListCollaborators(ctx, id)
}

func (s *Store) AddCollaborator(ctx context.Context, id domain.DocumentID, userID domain.UserID) error {
	return s.Collaborators.AddCollaborator(ctx, id, userID)
}

func (s *Store) RemoveCollaborator(ctx context.Context, id domain.DocumentID, userID domain.UserID) error {
	return s.Collaborators.RemoveCollaborator(ctx, id, userID)
}

func (s *Store) UserByEmail(ctx context.Context, email string) (domain.User, error) {
	return s.Users.UserByEmail(ctx, email)
}

func (s *Store) UserByID(ctx context.Context, id domain.UserID) (domain.User, error) {
	return s.Users.UserByID(ctx, id)
}
