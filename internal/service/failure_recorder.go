package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/astra-lms/astra-api/internal/models"
	"github.com/astra-lms/astra-api/internal/observability"
	"github.com/astra-lms/astra-api/internal/repository"
)

// FailureRecorder records exercise service failures so operators can act on
// them: the event is persisted, logged, counted and fanned out on NATS when a
// connection is configured. Recording never fails the request that hit the
// failure.
type FailureRecorder interface {
	Record(ctx context.Context, event models.ServiceFailureEvent)
}

type failureRecorder struct {
	events      repository.EventRepository
	nats        *nats.Conn
	natsSubject string
	logger      zerolog.Logger
}

// NewFailureRecorder constructs a failure recorder. The NATS connection is
// optional.
func NewFailureRecorder(events repository.EventRepository, natsConn *nats.Conn, natsSubject string, logger zerolog.Logger) FailureRecorder {
	if natsSubject == "" {
		natsSubject = "astra.events.service_failure"
	}

	return &failureRecorder{
		events:      events,
		nats:        natsConn,
		natsSubject: natsSubject,
		logger:      logger.With().Str("component", "failure_recorder").Logger(),
	}
}

func (r *failureRecorder) Record(ctx context.Context, event models.ServiceFailureEvent) {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	observability.ServiceFailures().WithLabelValues(event.Kind).Inc()

	r.logger.Error().
		Str("kind", event.Kind).
		Str("url", event.URL).
		Str("object_table", event.ObjectTable).
		Uint("object_id", event.ObjectID).
		Str("error", event.Error).
		Msg("exercise service failure")

	if r.events != nil {
		if err := r.events.Create(ctx, &event); err != nil {
			r.logger.Warn().Err(err).Msg("failed to persist service failure event")
		}
	}

	if r.nats != nil {
		payload, err := json.Marshal(event)
		if err == nil {
			if err := r.nats.Publish(r.natsSubject, payload); err != nil {
				r.logger.Warn().Err(err).Msg("failed to publish service failure event")
			}
		}
	}
}
