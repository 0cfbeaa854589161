package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/PortNumber53/trialgate/internal/models"
)

// AccessChecker evaluates an identity without side effects.
type AccessChecker interface {
	Check(ctx context.Context, identity string) (models.Decision, error)
}

type checkAccessRequest struct {
	Email string `json:"email"`
}

// CheckAccess creates the handler for POST /api/check-access. It never starts
// a trial.
func CheckAccess(checker AccessChecker, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req checkAccessRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON payload")
			return
		}

		email := strings.TrimSpace(req.Email)
		if email == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"hasAccess": false, "reason": "no_email"})
			return
		}

		decision, err := checker.Check(r.Context(), email)
		if err != nil {
			logger.Error().Err(err).Str("email", email).Msg("check access failed")
			writeError(w, http.StatusInternalServerError, "failed to check access")
			return
		}

		writeJSON(w, http.StatusOK, models.NewAccessResponse(decision))
	}
}
