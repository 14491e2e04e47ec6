package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"doc-sync/domain"
	"doc-sync/domain/event"
	"doc-sync/errors"
)

type fakeSink struct{}

func (fakeSink) Consume(_ context.Context, _ event.DomainEvent) error {
	return nil
}

// fakeStore serves a fixed set of documents and counts loads, so tests can
// assert content is fetched exactly once per session lifetime.
type fakeStore struct {
	mu    sync.Mutex
	docs  map[domain.DocumentID]domain.Document
	loads int
	fail  bool
}

func newFakeStore(docs ...domain.Document) *fakeStore {
	m := make(map[domain.DocumentID]domain.Document)
	for _, d := range docs {
		m[d.ID] = d
	}
	return &fakeStore{docs: m}
}

func (f *fakeStore) GetDocument(_ context.Context, id domain.DocumentID) (domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return domain.Document{}, fmt.Errorf("store down")
	}
	f.loads++
	d, ok := f.docs[id]
	if !ok {
		return domain.Document{}, errors.ErrNotFound
	}
	return d, nil
}

func (f *fakeStore) UpdateContent(_ context.Context, id domain.DocumentID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := f.docs[id]
	d.Content = content
	f.docs[id] = d
	return nil
}

func (f *fakeStore) ListCollaborators(context.Context, domain.DocumentID) ([]domain.UserID, error) {
	return nil, nil
}

func (f *fakeStore) AddCollaborator(context.Context, domain.DocumentID, domain.UserID) error {
	return nil
}

func (f *fakeStore) RemoveCollaborator(context.Context, domain.DocumentID, domain.UserID) error {
	return nil
}

func testLogger() *slog.Logger {
	return logs.GetLoggerFromLevel(slog.LevelDebug)
}

func participantFor(docID domain.DocumentID) domain.Participant {
	return domain.Participant{ID: uuid.New(), UserID: uuid.New(), DocumentID: docID}
}

func TestRegistry_Join_CreatesSessionAndReturnsSnapshot(t *testing.T) {
	req := require.New(t)
	doc := domain.Document{ID: uuid.New(), Content: "<p>hello</p>"}
	store := newFakeStore(doc)
	registry := NewRegistry(testLogger(), store)

	// Given no session exists
	req.Zero(registry.SessionCount())

	// When a participant joins
	snapshot, err := registry.Join(context.Background(), participantFor(doc.ID), fakeSink{})

	// Then the session exists and the snapshot is the stored content
	req.NoError(err)
	req.Equal("<p>hello</p>", snapshot)
	req.Equal(1, registry.SessionCount())
	req.Equal(1, registry.ParticipantCount())
}

func TestRegistry_Join_LoadsContentOncePerSessionLifetime(t *testing.T) {
	req := require.New(t)
	doc := domain.Document{ID: uuid.New(), Content: "v1"}
	store := newFakeStore(doc)
	registry := NewRegistry(testLogger(), store)

	p1 := participantFor(doc.ID)
	p2 := participantFor(doc.ID)

	// When two participants join the same document
	_, err := registry.Join(context.Background(), p1, fakeSink{})
	req.NoError(err)
	_, err = registry.Join(context.Background(), p2, fakeSink{})
	req.NoError(err)

	// Then the store was consulted only once
	req.Equal(1, store.loads)

	// When the session dies and a participant rejoins
	registry.Leave(p1)
	registry.Leave(p2)
	req.Zero(registry.SessionCount())
	_, err = registry.Join(context.Background(), participantFor(doc.ID), fakeSink{})
	req.NoError(err)

	// Then the content is reloaded for the new session
	req.Equal(2, store.loads)
}

func TestRegistry_Join_UnknownDocument(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(testLogger(), newFakeStore())

	_, err := registry.Join(context.Background(), participantFor(uuid.New()), fakeSink{})

	req.ErrorIs(err, errors.ErrNotFound)
	// No half-created session may survive a failed join
	req.Zero(registry.SessionCount())
}

func TestRegistry_Join_StoreUnavailable(t *testing.T) {
	req := require.New(t)
	store := newFakeStore()
	store.fail = true
	registry := NewRegistry(testLogger(), store)

	_, err := registry.Join(context.Background(), participantFor(uuid.New()), fakeSink{})

	req.ErrorIs(err, errors.ErrStoreUnavailable)
	req.Zero(registry.SessionCount())
}

func TestRegistry_Leave_IsIdempotent(t *testing.T) {
	req := require.New(t)
	doc := domain.Document{ID: uuid.New(), Content: ""}
	registry := NewRegistry(testLogger(), newFakeStore(doc))

	p1 := participantFor(doc.ID)
	p2 := participantFor(doc.ID)
	_, err := registry.Join(context.Background(), p1, fakeSink{})
	req.NoError(err)
	_, err = registry.Join(context.Background(), p2, fakeSink{})
	req.NoError(err)

	// When the same participant leaves twice (disconnect racing explicit leave)
	registry.Leave(p1)
	registry.Leave(p1)

	// Then the end state is the same as leaving once
	req.Equal(1, registry.SessionCount())
	req.Equal(1, registry.ParticipantCount())

	// And leaving a never-joined participant changes nothing
	registry.Leave(participantFor(doc.ID))
	req.Equal(1, registry.ParticipantCount())
}

func TestRegistry_SetContent_LastWriteWins(t *testing.T) {
	req := require.New(t)
	doc := domain.Document{ID: uuid.New(), Content: "initial"}
	registry := NewRegistry(testLogger(), newFakeStore(doc))

	p := participantFor(doc.ID)
	_, err := registry.Join(context.Background(), p, fakeSink{})
	req.NoError(err)

	req.True(registry.SetContent(doc.ID, "X"))
	req.True(registry.SetContent(doc.ID, "Y"))

	snapshot, ok := registry.Snapshot(doc.ID)
	req.True(ok)
	req.Equal("Y", snapshot)

	// A dead session rejects updates instead of resurrecting
	registry.Leave(p)
	req.False(registry.SetContent(doc.ID, "Z"))
	_, ok = registry.Snapshot(doc.ID)
	req.False(ok)
}

func TestRegistry_SinksForDocument_ExcludesOrigin(t *testing.T) {
	req := require.New(t)
	doc := domain.Document{ID: uuid.New()}
	registry := NewRegistry(testLogger(), newFakeStore(doc))

	origin := participantFor(doc.ID)
	other := participantFor(doc.ID)
	_, err := registry.Join(context.Background(), origin, fakeSink{})
	req.NoError(err)
	_, err = registry.Join(context.Background(), other, fakeSink{})
	req.NoError(err)

	// The origin never receives its own echo
	req.Len(registry.SinksForDocument(doc.ID, origin.ID), 1)
	req.Len(registry.SinksForDocument(doc.ID, uuid.Nil), 2)
	req.Nil(registry.SinksForDocument(uuid.New(), uuid.Nil))
}

// The session-exists-iff-non-empty invariant must hold after every operation
// of any random join/leave interleaving.
func TestRegistry_SessionLifecycleInvariant_RandomizedSequence(t *testing.T) {
	req := require.New(t)
	doc := domain.Document{ID: uuid.New()}
	registry := NewRegistry(testLogger(), newFakeStore(doc))

	rng := rand.New(rand.NewSource(42))
	var joined []domain.Participant

	for i := 0; i < 500; i++ {
		if len(joined) == 0 || rng.Intn(2) == 0 {
			p := participantFor(doc.ID)
			_, err := registry.Join(context.Background(), p, fakeSink{})
			req.NoError(err)
			joined = append(joined, p)
		} else {
			idx := rng.Intn(len(joined))
			registry.Leave(joined[idx])
			joined = append(joined[:idx], joined[idx+1:]...)
		}

		if len(joined) == 0 {
			req.Zero(registry.SessionCount(), "empty session must not exist (step %d)", i)
		} else {
			req.Equal(1, registry.SessionCount(), "session must exist while members remain (step %d)", i)
			req.Equal(len(joined), registry.ParticipantCount())
		}
	}
}

func TestRegistry_ConcurrentJoinLeave_NoLostUpdates(t *testing.T) {
	req := require.New(t)
	doc := domain.Document{ID: uuid.New()}
	registry := NewRegistry(testLogger(), newFakeStore(doc))

	const workers = 32
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				p := participantFor(doc.ID)
				if _, err := registry.Join(context.Background(), p, fakeSink{}); err != nil {
					t.Error(err)
					return
				}
				registry.SetContent(doc.ID, "c")
				registry.Leave(p)
			}
		}()
	}
	wg.Wait()

	// All joins were matched by leaves: no session may survive
	req.Zero(registry.SessionCount())
	req.Zero(registry.ParticipantCount())
}
