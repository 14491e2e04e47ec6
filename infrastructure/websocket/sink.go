package websocket

import (
	"context"
	"sync"

	"doc-sync/domain/event"
	"doc-sync/errors"
)

// connSink adapts one connection's outbound channel to the EventSink the
// registry fans out to. Consume never blocks: the write deadline belongs to
// the connection's writer goroutine, not to the broadcast worker. A full
// channel means the recipient cannot keep up, and the delivery is dropped.
//
// The closed flag covers the gap between a fan-out snapshot taken before the
// participant left and the teardown closing the channel.
type connSink struct {
	mu       sync.Mutex
	closed   bool
	outbound chan Envelope
}

func newConnSink(bufferSize int) *connSink {
	return &connSink{outbound: make(chan Envelope, bufferSize)}
}

func (s *connSink) Consume(_ context.Context, e event.DomainEvent) error {
	updated, ok := e.(event.ContentUpdated)
	if !ok {
		return nil
	}

	envelope, err := newEnvelope(TypeDocumentBroadcast, DocumentBroadcastPayload{
		ID:      updated.Document.String(),
		Content: updated.Content,
		UserID:  updated.Origin.UserID.String(),
	})
	if err != nil {
		return err
	}
	return s.trySend(envelope)
}

func (s *connSink) trySend(envelope Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.ErrSlowConsumer
	}
	select {
	case s.outbound <- envelope:
		return nil
	default:
		return errors.ErrSlowConsumer
	}
}

func (s *connSink) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.outbound)
	}
}
