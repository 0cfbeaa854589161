package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/PortNumber53/trialgate/internal/metrics"
	"github.com/PortNumber53/trialgate/internal/models"
	"github.com/PortNumber53/trialgate/internal/webhook"
)

// EventInterpreter authenticates and decodes a raw webhook delivery.
type EventInterpreter interface {
	Interpret(body []byte, headers http.Header) (models.Event, error)
}

// EventApplier reconciles an interpreted event into the record store.
type EventApplier interface {
	ApplyEvent(ctx context.Context, ev models.Event) (models.Record, error)
}

// Webhook creates the handler for POST /api/webhook. Nothing is written to the
// store unless the signature verifies.
func Webhook(interp EventInterpreter, applier EventApplier, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			metrics.RecordWebhook(models.EventOther.String(), metrics.OutcomeRejected)
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		ev, err := interp.Interpret(body, r.Header)
		switch {
		case errors.Is(err, webhook.ErrMalformedEvent):
			metrics.RecordWebhook(ev.Kind.String(), metrics.OutcomeMalformed)
			logger.Warn().Str("event_id", ev.ID).Str("event_type", ev.Type).Msg("webhook event without customer email")
			writeJSON(w, http.StatusOK, map[string]string{"status": "success", "warning": "no email"})
			return
		case errors.Is(err, webhook.ErrAuth):
			metrics.RecordWebhook(models.EventOther.String(), metrics.OutcomeRejected)
			logger.Warn().Err(err).Msg("webhook rejected")
			writeError(w, http.StatusBadRequest, "invalid webhook signature")
			return
		case err != nil:
			metrics.RecordWebhook(models.EventOther.String(), metrics.OutcomeRejected)
			logger.Warn().Err(err).Msg("webhook payload rejected")
			writeError(w, http.StatusBadRequest, "invalid webhook payload")
			return
		}

		if _, err := applier.ApplyEvent(r.Context(), ev); err != nil {
			logger.Error().Err(err).Str("email", ev.Identity).Str("event_id", ev.ID).Msg("failed to apply webhook event")
			writeError(w, http.StatusInternalServerError, "failed to record event")
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "success", "email": ev.Email})
	}
}
