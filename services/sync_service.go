package services

import (
	"context"
	"fmt"
	"time"

	"doc-sync/contract"
	"doc-sync/domain"
	"doc-sync/domain/event"
	"doc-sync/errors"
)

type ISyncService interface {
	Join(ctx context.Context, p domain.Participant, sink contract.EventSink) (string, error)
	Leave(p domain.Participant)
	UpdateContent(ctx context.Context, cmd domain.UpdateContentCommand) error
}

// SyncService is the entry point for connection handlers: it ties access
// control, the session registry, the document store and the event pipeline
// together.
type SyncService struct {
	registry     contract.IRegistry
	access       IAccessService
	store        contract.IDocumentStore
	orchestrator contract.IOrchestrator
}

func NewSyncService(registry contract.IRegistry, access IAccessService,
	store contract.IDocumentStore, orchestrator contract.IOrchestrator) *SyncService {
	return &SyncService{
		registry:     registry,
		access:       access,
		store:        store,
		orchestrator: orchestrator,
	}
}

// Join checks the participant's access, enters the session and returns the
// content snapshot the participant should receive as initial state.
func (s *SyncService) Join(ctx context.Context, p domain.Participant, sink contract.EventSink) (string, error) {
	if err := s.access.IsAuthorized(ctx, p.DocumentID, p.UserID); err != nil {
		return "", err
	}

	snapshot, err := s.registry.Join(ctx, p, sink)
	if err != nil {
		return "", err
	}

	s.orchestrator.Dispatch(event.ParticipantJoined{
		Document:    p.DocumentID,
		Participant: p,
		At:          time.Now().UTC(),
	})
	return snapshot, nil
}

// Leave removes the participant from its session. Safe to call more than
// once: the registry treats a non-member removal as a no-op.
func (s *SyncService) Leave(p domain.Participant) {
	s.registry.Leave(p)
	s.orchestrator.Dispatch(event.ParticipantLeft{
		Document:    p.DocumentID,
		Participant: p,
		At:          time.Now().UTC(),
	})
}

// UpdateContent replaces the session's content with the command's, persists
// it, and hands the update to the broadcast pipeline. Last write wins across
// senders.
//
// The store write happens here, synchronously, before the event is announced:
// the broadcast channel sheds events under load, which may only ever cost
// recipients staleness. By the time a session tears down and its cache is
// discarded, every acknowledged update is already in the store.
func (s *SyncService) UpdateContent(ctx context.Context, cmd domain.UpdateContentCommand) error {
	if !s.registry.SetContent(cmd.Document, cmd.Content) {
		return errors.ErrNotJoined
	}

	if err := s.store.UpdateContent(ctx, cmd.Document, cmd.Content); err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return err
		}
		return fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}

	s.orchestrator.Dispatch(event.ContentUpdated{
		Document: cmd.Document,
		Origin:   cmd.Origin,
		Content:  cmd.Content,
		At:       cmd.SentAt,
	})
	return nil
}
