package services

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"doc-sync/auth"
	"doc-sync/contract"
	"doc-sync/domain"
	"doc-sync/errors"
)

type IAccessService interface {
	IsAuthorized(ctx context.Context, docID domain.DocumentID, userID domain.UserID) error
	Grant(ctx context.Context, actor domain.UserID, docID domain.DocumentID, email string) error
	Revoke(ctx context.Context, actor domain.UserID, docID domain.DocumentID, email string) error
}

// AccessService decides who may enter a document session and lets owners
// manage the collaborator list.
type AccessService struct {
	store contract.IDocumentStore
	users contract.IUserDirectory
}

func NewAccessService(store contract.IDocumentStore, users contract.IUserDirectory) *AccessService {
	return &AccessService{store: store, users: users}
}

// IsAuthorized reports whether the user may participate in the document:
// the owner always may, anyone on the collaborator list may, nobody else.
func (s *AccessService) IsAuthorized(ctx context.Context, docID domain.DocumentID, userID domain.UserID) error {
	doc, err := s.store.GetDocument(ctx, docID)
	if err != nil {
		return err
	}
	if doc.OwnerID == userID {
		return nil
	}

	collaborators, err := s.store.ListCollaborators(ctx, docID)
	if err != nil {
		return err
	}
	if lo.Contains(collaborators, userID) {
		return nil
	}
	return errors.ErrAuthorizationDenied
}

// Grant adds the user behind the given email to the document's collaborator
// list. Only the owner may grant; granting an existing collaborator is a
// no-op.
func (s *AccessService) Grant(ctx context.Context, actor domain.UserID, docID domain.DocumentID, email string) error {
	userID, err := s.resolveAsOwner(ctx, actor, docID, email)
	if err != nil {
		return err
	}
	return s.store.AddCollaborator(ctx, docID, userID)
}

// Revoke removes the user behind the given email from the collaborator list.
// Only the owner may revoke; revoking a non-collaborator is a no-op.
// Live sessions are not evicted: access is re-checked at the next join.
func (s *AccessService) Revoke(ctx context.Context, actor domain.UserID, docID domain.DocumentID, email string) error {
	userID, err := s.resolveAsOwner(ctx, actor, docID, email)
	if err != nil {
		return err
	}
	return s.store.RemoveCollaborator(ctx, docID, userID)
}

// resolveAsOwner checks the mutation preconditions shared by Grant and
// Revoke: the document exists, the actor owns it, and the email resolves to
// a known user.
func (s *AccessService) resolveAsOwner(ctx context.Context, actor domain.UserID, docID domain.DocumentID, email string) (domain.UserID, error) {
	// Check the identity format before touching storage.
	if err := auth.ValidateCollaboratorIdentity(email); err != nil {
		return domain.UserID{}, err
	}

	doc, err := s.store.GetDocument(ctx, docID)
	if err != nil {
		return domain.UserID{}, err
	}
	if doc.OwnerID != actor {
		return domain.UserID{}, errors.ErrAuthorizationDenied
	}

	user, err := s.users.UserByEmail(ctx, email)
	if err != nil {
		return domain.UserID{}, fmt.Errorf("%w: %s", errors.ErrUnknownCollaborator, email)
	}
	if user.ID == doc.OwnerID {
		// The owner always has access and is never on their own list.
		return domain.UserID{}, errors.ErrOwnerCollaborator
	}
	return user.ID, nil
}
