package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/PortNumber53/trialgate/internal/models"
	"github.com/PortNumber53/trialgate/internal/webhook"
)

type stubInterpreter struct {
	event models.Event
	err   error
	body  []byte
}

func (s *stubInterpreter) Interpret(body []byte, headers http.Header) (models.Event, error) {
	s.body = body
	return s.event, s.err
}

type stubApplier struct {
	calls  int
	last   models.Event
	record models.Record
	err    error
}

func (s *stubApplier) ApplyEvent(ctx context.Context, ev models.Event) (models.Record, error) {
	s.calls++
	s.last = ev
	return s.record, s.err
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("response is not JSON: %v (%s)", err, rr.Body.String())
	}
	return out
}

func TestWebhookAppliesEvent(t *testing.T) {
	interp := &stubInterpreter{event: models.Event{Kind: models.EventPaymentSucceeded, Email: "A@x.com", Identity: "a@x.com"}}
	applier := &stubApplier{}

	req := httptest.NewRequest(http.MethodPost, "/api/webhook", strings.NewReader(`{"type":"payment.succeeded"}`))
	rr := httptest.NewRecorder()
	Webhook(interp, applier, zerolog.Nop()).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	if applier.calls != 1 || applier.last.Identity != "a@x.com" {
		t.Fatalf("expected event to be applied once, got %d calls", applier.calls)
	}
	if string(interp.body) != `{"type":"payment.succeeded"}` {
		t.Fatalf("interpreter received %q", interp.body)
	}
	body := decodeBody(t, rr)
	if body["status"] != "success" || body["email"] != "A@x.com" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestWebhookRejectsAuthFailures(t *testing.T) {
	for _, err := range []error{
		fmt.Errorf("%w: bad signature", webhook.ErrAuth),
		fmt.Errorf("%w: unexpected EOF", webhook.ErrPayload),
	} {
		applier := &stubApplier{}
		req := httptest.NewRequest(http.MethodPost, "/api/webhook", strings.NewReader(`{}`))
		rr := httptest.NewRecorder()
		Webhook(&stubInterpreter{err: err}, applier, zerolog.Nop()).ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %v, got %d", err, rr.Code)
		}
		if applier.calls != 0 {
			t.Fatalf("store must not be touched for %v", err)
		}
		if _, ok := decodeBody(t, rr)["error"]; !ok {
			t.Fatalf("expected error field for %v", err)
		}
		if strings.Contains(rr.Body.String(), "bad signature") || strings.Contains(rr.Body.String(), "EOF") {
			t.Fatalf("internal detail leaked: %s", rr.Body.String())
		}
	}
}

func TestWebhookAcknowledgesMalformedEvent(t *testing.T) {
	applier := &stubApplier{}
	interp := &stubInterpreter{event: models.Event{Type: "payment.succeeded"}, err: webhook.ErrMalformedEvent}

	req := httptest.NewRequest(http.MethodPost, "/api/webhook", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	Webhook(interp, applier, zerolog.Nop()).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	if applier.calls != 0 {
		t.Fatal("malformed event must not be applied")
	}
	body := decodeBody(t, rr)
	if body["status"] != "success" || body["warning"] != "no email" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestWebhookStoreFailure(t *testing.T) {
	interp := &stubInterpreter{event: models.Event{Kind: models.EventSubscriptionActive, Identity: "a@x.com"}}
	applier := &stubApplier{err: errors.New("disk on fire")}

	req := httptest.NewRequest(http.MethodPost, "/api/webhook", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	Webhook(interp, applier, zerolog.Nop()).ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "disk on fire") {
		t.Fatal("internal error leaked to client")
	}
}

func TestWebhookBodyTooLarge(t *testing.T) {
	interp := &stubInterpreter{}
	applier := &stubApplier{}

	req := httptest.NewRequest(http.MethodPost, "/api/webhook", strings.NewReader(strings.Repeat("a", maxBodyBytes+1)))
	rr := httptest.NewRecorder()
	Webhook(interp, applier, zerolog.Nop()).ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if interp.body != nil || applier.calls != 0 {
		t.Fatal("oversized body must not reach the interpreter")
	}
}
