package storage

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"doc-sync/domain"
)

const collaboratorPrefix = "collab:"

type ICollaboratorRepository interface {
	AddCollaborator(ctx context.Context, docID domain.DocumentID, userID domain.UserID) error
	RemoveCollaborator(ctx context.Context, docID domain.DocumentID, userID domain.UserID) error
	ListCollaborators(ctx context.Context, docID domain.DocumentID) ([]domain.UserID, error)
}

// CollaboratorRepository keeps the collaborator list as one key per pair,
// "collab:{doc_uuid}:{user_uuid}". Membership is key existence, so both add
// and remove are idempotent for free and listing is a prefix scan.
type CollaboratorRepository struct {
	db *badger.DB
}

func NewCollaboratorRepository(db *badger.DB) *CollaboratorRepository {
	return &CollaboratorRepository{db: db}
}

func collaboratorKey(docID domain.DocumentID, userID domain.UserID) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", collaboratorPrefix, docID, userID))
}

func (c *CollaboratorRepository) AddCollaborator(_ context.Context, docID domain.DocumentID, userID domain.UserID) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(collaboratorKey(docID, userID), nil)
	})
}

func (c *CollaboratorRepository) RemoveCollaborator(_ context.Context, docID domain.DocumentID, userID domain.UserID) error {
	return c.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(collaboratorKey(docID, userID))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
}

func (c *CollaboratorRepository) ListCollaborators(_ context.Context, docID domain.DocumentID) ([]domain.UserID, error) {
	var out []domain.UserID
	err := c.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		prefix := []byte(fmt.Sprintf("%s%s:", collaboratorPrefix, docID))
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			userID, err := uuid.Parse(string(it.Item().Key()[len(prefix):]))
			if err != nil {
				return fmt.Errorf("corrupt collaborator key %q: %w", it.Item().Key(), err)
			}
			out = append(out, userID)
		}
		return nil
	})
	return out, err
}
