// Package runtime owns the live side of the system: the session registry,
// the orchestrator and its workers. It carries no business rules beyond the
// session lifecycle itself.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"doc-sync/contract"
	"doc-sync/domain"
	"doc-sync/errors"
)

// session is the live collaboration context for one document. It exists
// exactly while members is non-empty; content is a cache of the store's copy,
// loaded once when the session is created and discarded when it dies.
type session struct {
	mu      sync.Mutex
	loaded  bool
	gone    bool
	content string
	members map[domain.ParticipantID]contract.EventSink
}

type Registry struct {
	mu       sync.RWMutex
	log      *slog.Logger
	store    contract.IDocumentStore
	sessions map[domain.DocumentID]*session
}

func NewRegistry(log *slog.Logger, store contract.IDocumentStore) *Registry {
	return &Registry{
		log:      log,
		store:    store,
		sessions: make(map[domain.DocumentID]*session),
	}
}

// Join adds the participant to the document's session, creating it lazily.
// The initial content is fetched from the store exactly once per session
// lifetime, under the per-document lock only: joins and updates on other
// documents never wait on this load, and the registry map lock is never held
// across the store call.
func (r *Registry) Join(ctx context.Context, p domain.Participant, sink contract.EventSink) (string, error) {
	for {
		s := r.getOrCreate(p.DocumentID)

		s.mu.Lock()
		if s.gone {
			// Lost a race with the last leaver; the map entry is fresh now.
			s.mu.Unlock()
			continue
		}

		if !s.loaded {
			doc, err := r.store.GetDocument(ctx, p.DocumentID)
			if err != nil {
				if len(s.members) == 0 {
					s.gone = true
					r.remove(p.DocumentID, s)
				}
				s.mu.Unlock()
				if errors.Is(err, errors.ErrNotFound) {
					return "", err
				}
				return "", fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
			}
			s.content = doc.Content
			s.loaded = true
		}

		s.members[p.ID] = sink
		snapshot := s.content
		s.mu.Unlock()

		r.log.Debug("participant joined session",
			"document_id", p.DocumentID, "participant_id", p.ID, "user_id", p.UserID)
		return snapshot, nil
	}
}

// Leave removes the participant from its session. Leaving twice, or leaving a
// document that was never joined, is a no-op: disconnects and explicit leaves
// race and both paths call Leave.
func (r *Registry) Leave(p domain.Participant) {
	r.mu.RLock()
	s, ok := r.sessions[p.DocumentID]
	r.mu.RUnlock()
	if !ok {
		return
	}

	s.mu.Lock()
	if _, member := s.members[p.ID]; !member {
		s.mu.Unlock()
		return
	}
	delete(s.members, p.ID)
	if len(s.members) == 0 {
		// Last one out tears the session down; the cached content is
		// discarded, the store already holds the last value written.
		s.gone = true
		s.content = ""
		r.remove(p.DocumentID, s)
		r.log.Debug("session torn down", "document_id", p.DocumentID)
	}
	s.mu.Unlock()

	r.log.Debug("participant left session",
		"document_id", p.DocumentID, "participant_id", p.ID)
}

// Snapshot returns the session's cached content, false if no session exists.
func (r *Registry) Snapshot(id domain.DocumentID) (string, bool) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return "", false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gone {
		return "", false
	}
	return s.content, true
}

// SetContent replaces the cached content (last write wins). Returns false if
// the session no longer exists, which callers treat as a stale update.
func (r *Registry) SetContent(id domain.DocumentID, content string) bool {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gone {
		return false
	}
	s.content = content
	return true
}

// SinksForDocument returns a snapshot copy of the session's sinks minus the
// excluded participant. Fan-out iterates the copy without any lock held, so a
// slow delivery never blocks joins or leaves on the same document.
func (r *Registry) SinksForDocument(id domain.DocumentID, exclude domain.ParticipantID) []contract.EventSink {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var sinks []contract.EventSink
	for pID, sink := range s.members {
		if pID == exclude {
			continue
		}
		sinks = append(sinks, sink)
	}
	return sinks
}

// SessionCount and ParticipantCount feed the monitoring stats provider.
func (r *Registry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) ParticipantCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := 0
	for _, s := range r.sessions {
		s.mu.Lock()
		total += len(s.members)
		s.mu.Unlock()
	}
	return total
}

func (r *Registry) getOrCreate(id domain.DocumentID) *session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		s = &session{members: make(map[domain.ParticipantID]contract.EventSink)}
		r.sessions[id] = s
	}
	return s
}

// remove is called with the session's own mutex held; the registry mutex is
// only ever taken after a session mutex on this path, never the other way
// around with both held, so the order cannot deadlock.
func (r *Registry) remove(id domain.DocumentID, s *session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sessions[id]; ok && cur == s {
		delete(r.sessions, id)
	}
}
