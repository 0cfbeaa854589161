package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/PortNumber53/trialgate/internal/models"
)

type stubChecker struct {
	lastIdentity string
	decision     models.Decision
	err          error
}

func (s *stubChecker) Check(ctx context.Context, identity string) (models.Decision, error) {
	s.lastIdentity = identity
	return s.decision, s.err
}

func TestCheckAccessTrial(t *testing.T) {
	exp := time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)
	checker := &stubChecker{decision: models.Decision{Kind: models.AccessTrial, ExpiresAt: &exp}}

	req := httptest.NewRequest(http.MethodPost, "/api/check-access", strings.NewReader(`{"email":" a@x.com "}`))
	rr := httptest.NewRecorder()
	CheckAccess(checker, zerolog.Nop()).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	if checker.lastIdentity != "a@x.com" {
		t.Fatalf("expected trimmed identity, got %q", checker.lastIdentity)
	}
	body := decodeBody(t, rr)
	if body["hasAccess"] != true || body["type"] != "trial" || body["expiresAt"] != "2026-04-02T08:00:00Z" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestCheckAccessExpired(t *testing.T) {
	checker := &stubChecker{decision: models.Decision{Kind: models.AccessNone}}

	req := httptest.NewRequest(http.MethodPost, "/api/check-access", strings.NewReader(`{"email":"a@x.com"}`))
	rr := httptest.NewRecorder()
	CheckAccess(checker, zerolog.Nop()).ServeHTTP(rr, req)

	body := decodeBody(t, rr)
	if body["hasAccess"] != false || body["type"] != "expired" {
		t.Fatalf("unexpected body %v", body)
	}
	if _, ok := body["expiresAt"]; ok {
		t.Fatalf("expired decision must not carry expiresAt")
	}
}

func TestCheckAccessMissingEmail(t *testing.T) {
	checker := &stubChecker{}

	for _, payload := range []string{`{}`, `{"email":"   "}`} {
		req := httptest.NewRequest(http.MethodPost, "/api/check-access", strings.NewReader(payload))
		rr := httptest.NewRecorder()
		CheckAccess(checker, zerolog.Nop()).ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %s, got %d", payload, rr.Code)
		}
		body := decodeBody(t, rr)
		if body["hasAccess"] != false || body["reason"] != "no_email" {
			t.Fatalf("unexpected body %v", body)
		}
	}
	if checker.lastIdentity != "" {
		t.Fatal("checker must not be called without an email")
	}
}

func TestCheckAccessInvalidJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/check-access", strings.NewReader(`{"email":`))
	rr := httptest.NewRecorder()
	CheckAccess(&stubChecker{}, zerolog.Nop()).ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if _, ok := decodeBody(t, rr)["error"]; !ok {
		t.Fatal("expected error field")
	}
}

func TestCheckAccessStoreFailure(t *testing.T) {
	checker := &stubChecker{err: errors.New("connection refused")}

	req := httptest.NewRequest(http.MethodPost, "/api/check-access", strings.NewReader(`{"email":"a@x.com"}`))
	rr := httptest.NewRecorder()
	CheckAccess(checker, zerolog.Nop()).ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "connection refused") {
		t.Fatal("internal error leaked to client")
	}
}
