package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"doc-sync/domain"
	"doc-sync/errors"
	"doc-sync/services"
)

// connState is the connection's lifecycle position. Transitions only move
// forward or between Authenticated and Joined; a Closed connection never
// comes back.
type connState int

const (
	stateUnauthenticated connState = iota
	stateAuthenticated
	stateJoined
	stateClosed
)

func (s connState) String() string {
	switch s {
	case stateUnauthenticated:
		return "unauthenticated"
	case stateAuthenticated:
		return "authenticated"
	case stateJoined:
		return "joined"
	case stateClosed:
		return "closed"
	}
	return "unknown"
}

const writeTimeout = 10 * time.Second

// connHandler drives one WebSocket connection. The read loop is the only
// goroutine mutating state, so the state machine needs no lock; the writer
// goroutine owns all writes to the socket.
type connHandler struct {
	log     *slog.Logger
	ws      *websocket.Conn
	service services.ISyncService

	state       connState
	userID      domain.UserID
	participant domain.Participant
	sink        *connSink

	closeOnce sync.Once
}

func newConnHandler(log *slog.Logger, ws *websocket.Conn,
	service services.ISyncService, bufferSize int) *connHandler {
	return &connHandler{
		log:     log,
		ws:      ws,
		service: service,
		state:   stateUnauthenticated,
		sink:    newConnSink(bufferSize),
	}
}

// authenticate promotes the connection once its bearer token has been
// verified. An unauthenticated connection stays open but every join attempt
// is rejected.
func (h *connHandler) authenticate(userID domain.UserID) {
	h.userID = userID
	h.state = stateAuthenticated
}

// run blocks until the connection dies, servicing reads; the writer runs
// alongside. Teardown happens exactly once regardless of how the loops end.
func (h *connHandler) run(ctx context.Context) {
	defer h.teardown()

	go h.writeLoop()

	for {
		_, data, err := h.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("Connection closed unexpectedly", "error", err)
			}
			return
		}

		var envelope Envelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			h.send(errorEnvelope(errors.ErrBadRequest))
			continue
		}
		h.handle(ctx, envelope)
	}
}

func (h *connHandler) handle(ctx context.Context, envelope Envelope) {
	switch envelope.Type {
	case TypeJoinDocument:
		h.handleJoin(ctx, envelope.Payload)
	case TypeDocumentUpdated:
		h.handleUpdate(ctx, envelope.Payload)
	case TypeLeaveDocument:
		h.handleLeave(envelope.Payload)
	default:
		h.log.Debug("Unknown event type", "type", envelope.Type, "state", h.state)
		h.send(errorEnvelope(errors.ErrBadRequest))
	}
}

func (h *connHandler) handleJoin(ctx context.Context, payload json.RawMessage) {
	switch h.state {
	case stateUnauthenticated:
		h.send(errorEnvelope(errors.ErrAuthenticationFailed))
		return
	case stateJoined:
		h.send(errorEnvelope(errors.ErrAlreadyJoined))
		return
	case stateAuthenticated:
	default:
		return
	}

	var join JoinDocumentPayload
	if err := json.Unmarshal(payload, &join); err != nil {
		h.send(errorEnvelope(errors.ErrBadRequest))
		return
	}
	docID, err := uuid.Parse(join.DocumentID)
	if err != nil {
		h.send(errorEnvelope(errors.ErrNotFound))
		return
	}

	participant := domain.Participant{
		ID:         uuid.New(),
		UserID:     h.userID,
		DocumentID: docID,
	}
	snapshot, err := h.service.Join(ctx, participant, h.sink)
	if err != nil {
		h.send(errorEnvelope(err))
		return
	}

	h.participant = participant
	h.state = stateJoined

	state, err := newEnvelope(TypeDocumentState, DocumentStatePayload{
		DocumentID: docID.String(),
		Content:    snapshot,
	})
	if err != nil {
		h.log.Error("Failed to encode document state", "error", err)
		return
	}
	h.send(state)
}

func (h *connHandler) handleUpdate(ctx context.Context, payload json.RawMessage) {
	if h.state != stateJoined {
		h.send(errorEnvelope(errors.ErrNotJoined))
		return
	}

	var update DocumentUpdatedPayload
	if err := json.Unmarshal(payload, &update); err != nil {
		h.send(errorEnvelope(errors.ErrBadRequest))
		return
	}
	docID, err := uuid.Parse(update.ID)
	if err != nil || docID != h.participant.DocumentID {
		// Updates only target the joined document.
		h.send(errorEnvelope(errors.ErrNotJoined))
		return
	}

	err = h.service.UpdateContent(ctx, domain.UpdateContentCommand{
		Document: docID,
		Origin:   h.participant,
		Content:  update.Content,
		SentAt:   time.Now().UTC(),
	})
	if err != nil {
		h.send(errorEnvelope(err))
	}
}

func (h *connHandler) handleLeave(payload json.RawMessage) {
	if h.state != stateJoined {
		h.send(errorEnvelope(errors.ErrNotJoined))
		return
	}

	var leave LeaveDocumentPayload
	if err := json.Unmarshal(payload, &leave); err != nil {
		h.send(errorEnvelope(errors.ErrBadRequest))
		return
	}
	docID, err := uuid.Parse(leave.DocumentID)
	if err != nil || docID != h.participant.DocumentID {
		h.send(errorEnvelope(errors.ErrNotJoined))
		return
	}

	h.service.Leave(h.participant)
	h.participant = domain.Participant{}
	h.state = stateAuthenticated
}

// send queues an envelope for the writer goroutine. Replies share the fan-out
// channel, so a saturated connection drops replies the same way it drops
// broadcasts.
func (h *connHandler) send(envelope Envelope) {
	if err := h.sink.trySend(envelope); err != nil {
		h.log.Warn("Outbound buffer full, dropping reply", "type", envelope.Type)
	}
}

func (h *connHandler) writeLoop() {
	for envelope := range h.sink.outbound {
		_ = h.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := h.ws.WriteJSON(envelope); err != nil {
			h.log.Debug("Write failed, closing connection", "error", err)
			_ = h.ws.Close()
			// Keep draining so teardown's close(outbound) never blocks a sender.
		}
	}
}

// teardown runs the exactly-once disconnect path: leave the session if
// joined, mark the state machine closed, stop the writer.
func (h *connHandler) teardown() {
	h.closeOnce.Do(func() {
		if h.state == stateJoined {
			h.service.Leave(h.participant)
		}
		h.state = stateClosed
		h.sink.close()
		_ = h.ws.Close()
	})
}
