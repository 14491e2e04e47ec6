package websocket_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	gws "github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"doc-sync/auth"
	"doc-sync/domain"
	"doc-sync/errors"
	"doc-sync/infrastructure/websocket"
	"doc-sync/runtime"
	"doc-sync/runtime/workers"
	"doc-sync/services"
)

type memoryStore struct {
	mu            sync.Mutex
	docs          map[domain.DocumentID]domain.Document
	users         map[string]domain.User
	collaborators map[domain.DocumentID]map[domain.UserID]struct{}
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		docs:          map[domain.DocumentID]domain.Document{},
		users:         map[string]domain.User{},
		collaborators: map[domain.DocumentID]map[domain.UserID]struct{}{},
	}
}

func (m *memoryStore) addDocument(doc domain.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.ID] = doc
	m.collaborators[doc.ID] = map[domain.UserID]struct{}{}
}

func (m *memoryStore) addUser(user domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.Email] = user
}

func (m *memoryStore) GetDocument(_ context.Context, id domain.DocumentID) (domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return domain.Document{}, errors.ErrNotFound
	}
	return doc, nil
}

func (m *memoryStore) UpdateContent(_ context.Context, id domain.DocumentID, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return errors.ErrNotFound
	}
	doc.Content = content
	m.docs[id] = doc
	return nil
}

func (m *memoryStore) ListCollaborators(_ context.Context, id domain.DocumentID) ([]domain.UserID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.UserID
	for userID := range m.collaborators[id] {
		out = append(out, userID)
	}
	return out, nil
}

func (m *memoryStore) AddCollaborator(_ context.Context, id domain.DocumentID, userID domain.UserID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collaborators[id][userID] = struct{}{}
	return nil
}

func (m *memoryStore) RemoveCollaborator(_ context.Context, id domain.DocumentID, userID domain.UserID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collaborators[id], userID)
	return nil
}

func (m *memoryStore) UserByEmail(_ context.Context, email string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[email]
	if !ok {
		return domain.User{}, errors.ErrNotFound
	}
	return user, nil
}

func (m *memoryStore) UserByID(_ context.Context, id domain.UserID) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.ID == id {
			return user, nil
		}
	}
	return domain.User{}, errors.ErrNotFound
}

type fixture struct {
	store    *memoryStore
	registry *runtime.Registry
	server   *httptest.Server
	cancel   context.CancelFunc
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelError)

	store := newMemoryStore()
	registry := runtime.NewRegistry(log, store)
	supervisor := workers.NewSupervisor(log, 10*time.Millisecond)
	orchestrator := runtime.NewOrchestrator(log, supervisor, registry, nil, 64, time.Second)
	access := services.NewAccessService(store, store)
	sync := services.NewSyncService(registry, access, store, orchestrator)
	server := websocket.NewServer(log, sync, auth.Verifier{}, nil, 16)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_ = orchestrator.Start(ctx)
	}()
	ts := httptest.NewServer(server.Router())

	f := &fixture{store: store, registry: registry, server: ts, cancel: cancel}
	t.Cleanup(func() {
		ts.Close()
		cancel()
	})
	return f
}

func (f *fixture) wsURL() string {
	return "ws" + strings.TrimPrefix(f.server.URL, "http")
}

type client struct {
	t    *testing.T
	conn *gws.Conn
}

func dial(t *testing.T, f *fixture, token string) *client {
	t.Helper()
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, _, err := gws.DefaultDialer.Dial(f.wsURL()+"/ws", header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &client{t: t, conn: conn}
}

func (c *client) send(eventType string, payload any) {
	c.t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteJSON(websocket.Envelope{Type: eventType, Payload: data}))
}

// expect reads frames until one of the wanted type arrives.
func (c *client) expect(eventType string) websocket.Envelope {
	c.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	require.NoError(c.t, c.conn.SetReadDeadline(deadline))
	for {
		var envelope websocket.Envelope
		require.NoError(c.t, c.conn.ReadJSON(&envelope))
		if envelope.Type == eventType {
			return envelope
		}
	}
}

func (c *client) expectError(code string) {
	c.t.Helper()
	envelope := c.expect(websocket.TypeError)
	var wire errors.WireError
	require.NoError(c.t, json.Unmarshal(envelope.Payload, &wire))
	require.Equal(c.t, code, wire.Code)
}

func (c *client) expectNoFrame(timeout time.Duration) {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(timeout)))
	_, _, err := c.conn.ReadMessage()
	require.Error(c.t, err, "expected no frame, got one")
}

func token(t *testing.T, userID domain.UserID) string {
	t.Helper()
	tok, err := auth.GenerateToken(userID, time.Minute)
	require.NoError(t, err)
	return tok
}

func TestServer_JoinReturnsSnapshot(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	owner := domain.User{ID: uuid.New(), Email: "owner@example.com"}
	doc := domain.Document{ID: uuid.New(), OwnerID: owner.ID, Content: "current body"}
	f.store.addUser(owner)
	f.store.addDocument(doc)

	c := dial(t, f, token(t, owner.ID))
	c.send(websocket.TypeJoinDocument, websocket.JoinDocumentPayload{DocumentID: doc.ID.String()})

	envelope := c.expect(websocket.TypeDocumentState)
	var state websocket.DocumentStatePayload
	req.NoError(json.Unmarshal(envelope.Payload, &state))
	req.Equal(doc.ID.String(), state.DocumentID)
	req.Equal("current body", state.Content)
}

func TestServer_JoinWithoutTokenRejected(t *testing.T) {
	f := newFixture(t)

	doc := domain.Document{ID: uuid.New(), OwnerID: uuid.New()}
	f.store.addDocument(doc)

	c := dial(t, f, "")
	c.send(websocket.TypeJoinDocument, websocket.JoinDocumentPayload{DocumentID: doc.ID.String()})
	c.expectError("authentication_failed")
}

func TestServer_JoinWithGarbageTokenRejected(t *testing.T) {
	f := newFixture(t)

	doc := domain.Document{ID: uuid.New(), OwnerID: uuid.New()}
	f.store.addDocument(doc)

	c := dial(t, f, "not-a-jwt")
	c.send(websocket.TypeJoinDocument, websocket.JoinDocumentPayload{DocumentID: doc.ID.String()})
	c.expectError("authentication_failed")
}

func TestServer_StrangerDeniedCollaboratorAdmitted(t *testing.T) {
	f := newFixture(t)

	owner := domain.User{ID: uuid.New(), Email: "owner@example.com"}
	collaborator := domain.User{ID: uuid.New(), Email: "writer@example.com"}
	stranger := domain.User{ID: uuid.New(), Email: "stranger@example.com"}
	doc := domain.Document{ID: uuid.New(), OwnerID: owner.ID}
	f.store.addDocument(doc)
	require.NoError(t, f.store.AddCollaborator(context.Background(), doc.ID, collaborator.ID))

	s := dial(t, f, token(t, stranger.ID))
	s.send(websocket.TypeJoinDocument, websocket.JoinDocumentPayload{DocumentID: doc.ID.String()})
	s.expectError("authorization_denied")

	c := dial(t, f, token(t, collaborator.ID))
	c.send(websocket.TypeJoinDocument, websocket.JoinDocumentPayload{DocumentID: doc.ID.String()})
	c.expect(websocket.TypeDocumentState)
}

func TestServer_JoinUnknownDocument(t *testing.T) {
	f := newFixture(t)

	c := dial(t, f, token(t, uuid.New()))
	c.send(websocket.TypeJoinDocument, websocket.JoinDocumentPayload{DocumentID: uuid.New().String()})
	c.expectError("not_found")
}

func TestServer_UpdateBroadcastsToOthersNotSelf(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	owner := domain.User{ID: uuid.New(), Email: "owner@example.com"}
	collaborator := domain.User{ID: uuid.New(), Email: "writer@example.com"}
	doc := domain.Document{ID: uuid.New(), OwnerID: owner.ID, Content: "v0"}
	f.store.addDocument(doc)
	req.NoError(f.store.AddCollaborator(context.Background(), doc.ID, collaborator.ID))

	ownerConn := dial(t, f, token(t, owner.ID))
	ownerConn.send(websocket.TypeJoinDocument, websocket.JoinDocumentPayload{DocumentID: doc.ID.String()})
	ownerConn.expect(websocket.TypeDocumentState)

	collabConn := dial(t, f, token(t, collaborator.ID))
	collabConn.send(websocket.TypeJoinDocument, websocket.JoinDocumentPayload{DocumentID: doc.ID.String()})
	collabConn.expect(websocket.TypeDocumentState)

	ownerConn.send(websocket.TypeDocumentUpdated, websocket.DocumentUpdatedPayload{
		ID: doc.ID.String(), Content: "owner edit",
	})

	envelope := collabConn.expect(websocket.TypeDocumentBroadcast)
	var broadcast websocket.DocumentBroadcastPayload
	req.NoError(json.Unmarshal(envelope.Payload, &broadcast))
	req.Equal("owner edit", broadcast.Content)
	req.Equal(owner.ID.String(), broadcast.UserID)

	// The sender never sees its own edit come back.
	ownerConn.expectNoFrame(200 * time.Millisecond)

	// A late joiner sees the latest content.
	late := dial(t, f, token(t, collaborator.ID))
	late.send(websocket.TypeJoinDocument, websocket.JoinDocumentPayload{DocumentID: doc.ID.String()})
	stateEnvelope := late.expect(websocket.TypeDocumentState)
	var state websocket.DocumentStatePayload
	req.NoError(json.Unmarshal(stateEnvelope.Payload, &state))
	req.Equal("owner edit", state.Content)
}

func TestServer_UpdateWithoutJoinRejected(t *testing.T) {
	f := newFixture(t)

	owner := domain.User{ID: uuid.New(), Email: "owner@example.com"}
	doc := domain.Document{ID: uuid.New(), OwnerID: owner.ID}
	f.store.addDocument(doc)

	c := dial(t, f, token(t, owner.ID))
	c.send(websocket.TypeDocumentUpdated, websocket.DocumentUpdatedPayload{
		ID: doc.ID.String(), Content: "too soon",
	})
	c.expectError("not_joined")
}

func TestServer_MalformedFramesRejected(t *testing.T) {
	f := newFixture(t)

	owner := domain.User{ID: uuid.New(), Email: "owner@example.com"}
	doc := domain.Document{ID: uuid.New(), OwnerID: owner.ID}
	f.store.addUser(owner)
	f.store.addDocument(doc)

	c := dial(t, f, token(t, owner.ID))

	// Not JSON at all.
	require.NoError(t, c.conn.WriteMessage(gws.TextMessage, []byte("{not json")))
	c.expectError("bad_request")

	// Unknown event type.
	c.send("document_teleported", struct{}{})
	c.expectError("bad_request")

	// Known type, payload of the wrong shape.
	require.NoError(t, c.conn.WriteJSON(websocket.Envelope{
		Type:    websocket.TypeJoinDocument,
		Payload: json.RawMessage(`"not-an-object"`),
	}))
	c.expectError("bad_request")

	// The connection survives all of it.
	c.send(websocket.TypeJoinDocument, websocket.JoinDocumentPayload{DocumentID: doc.ID.String()})
	c.expect(websocket.TypeDocumentState)
}

func TestServer_LeaveThenRejoin(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	owner := domain.User{ID: uuid.New(), Email: "owner@example.com"}
	doc := domain.Document{ID: uuid.New(), OwnerID: owner.ID, Content: "body"}
	f.store.addDocument(doc)

	c := dial(t, f, token(t, owner.ID))
	c.send(websocket.TypeJoinDocument, websocket.JoinDocumentPayload{DocumentID: doc.ID.String()})
	c.expect(websocket.TypeDocumentState)

	c.send(websocket.TypeLeaveDocument, websocket.LeaveDocumentPayload{DocumentID: doc.ID.String()})

	// After leaving, updates are rejected until the next join.
	c.send(websocket.TypeDocumentUpdated, websocket.DocumentUpdatedPayload{
		ID: doc.ID.String(), Content: "ghost",
	})
	c.expectError("not_joined")

	c.send(websocket.TypeJoinDocument, websocket.JoinDocumentPayload{DocumentID: doc.ID.String()})
	c.expect(websocket.TypeDocumentState)

	req.Eventually(func() bool { return f.registry.SessionCount() == 1 },
		time.Second, 10*time.Millisecond)
}

func TestServer_DisconnectTearsDownSession(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	owner := domain.User{ID: uuid.New(), Email: "owner@example.com"}
	doc := domain.Document{ID: uuid.New(), OwnerID: owner.ID}
	f.store.addDocument(doc)

	c := dial(t, f, token(t, owner.ID))
	c.send(websocket.TypeJoinDocument, websocket.JoinDocumentPayload{DocumentID: doc.ID.String()})
	c.expect(websocket.TypeDocumentState)
	req.Equal(1, f.registry.SessionCount())

	req.NoError(c.conn.Close())

	req.Eventually(func() bool { return f.registry.SessionCount() == 0 },
		time.Second, 10*time.Millisecond)
}

func TestServer_Healthz(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	resp, err := http.Get(f.server.URL + "/healthz")
	req.NoError(err)
	defer func() { _ = resp.Body.Close() }()
	req.Equal(http.StatusOK, resp.StatusCode)
}
