package sink

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"doc-sync/domain"
	"doc-sync/domain/event"
	"doc-sync/observability"
)

func TestTelemetrySink_CountsUpdatesAndLanguages(t *testing.T) {
	req := require.New(t)
	monitoring := observability.NewMonitoringManager(logs.GetLoggerFromLevel(slog.LevelError), nil)
	telemetry := NewTelemetrySink(monitoring)

	docID := uuid.New()
	origin := domain.Participant{ID: uuid.New(), UserID: uuid.New(), DocumentID: docID}

	err := telemetry.Consume(context.Background(), event.ContentUpdated{
		Document: docID, Origin: origin,
		Content: "The quick brown fox jumps over the lazy dog", At: time.Now(),
	})
	req.NoError(err)
	req.EqualValues(1, atomic.LoadUint64(&monitoring.UpdatesApplied))

	// Non-update events pass through untouched.
	err = telemetry.Consume(context.Background(), event.ParticipantLeft{
		Document: docID, At: time.Now(),
	})
	req.NoError(err)
	req.EqualValues(1, atomic.LoadUint64(&monitoring.UpdatesApplied))
}
