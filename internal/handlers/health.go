package handlers

import (
	"net/http"
	"time"
)

// Health responds with status 200 to indicate the service is running. driver
// names the bound record store.
func Health(driver string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "ok",
			"store":     driver,
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	}
}
