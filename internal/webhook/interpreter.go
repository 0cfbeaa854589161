package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PortNumber53/trialgate/internal/models"
)

var (
	// ErrAuth covers an unconfigured secret and failed signature checks.
	ErrAuth = errors.New("webhook authentication failed")

	// ErrPayload is returned when a verified body is not a decodable event.
	ErrPayload = errors.New("webhook payload invalid")

	// ErrMalformedEvent marks a verified event without a customer email. The
	// delivery is acknowledged so the provider does not retry it forever.
	ErrMalformedEvent = errors.New("webhook event has no customer email")
)

// envelope is decoded first. Data is decoded per event kind so a field
// belonging to one event type cannot fail the decode of another.
type envelope struct {
	Type      string          `json:"type"`
	Timestamp json.RawMessage `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

type customerData struct {
	Customer *struct {
		Email string `json:"email"`
	} `json:"customer"`
}

type subscriptionData struct {
	NextBillingDate flexTime `json:"next_billing_date"`
	ProductID       string   `json:"product_id"`
}

// flexTime decodes an RFC 3339 string. Empty strings and null leave it zero.
type flexTime struct{ time.Time }

func (t *flexTime) UnmarshalJSON(b []byte) error {
	var s *string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == nil || strings.TrimSpace(*s) == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(*s))
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// eventTime reads the envelope timestamp. Anything unparseable falls back to
// the signed time.
func eventTime(raw json.RawMessage, signedAt time.Time) time.Time {
	var t flexTime
	if len(raw) == 0 || json.Unmarshal(raw, &t) != nil || t.IsZero() {
		return signedAt.UTC()
	}
	return t.UTC()
}

// Interpreter authenticates and classifies inbound billing events.
type Interpreter struct {
	verifier  *Verifier
	configErr error
}

// NewInterpreter builds an Interpreter for secret. An empty or undecodable
// secret does not fail construction; every Interpret call then reports
// ErrAuth.
func NewInterpreter(secret string, tolerance time.Duration, now func() time.Time) *Interpreter {
	if strings.TrimSpace(secret) == "" {
		return &Interpreter{configErr: errors.New("webhook secret not configured")}
	}
	v, err := NewVerifier(secret, tolerance, now)
	if err != nil {
		return &Interpreter{configErr: err}
	}
	return &Interpreter{verifier: v}
}

// Configured reports whether a usable secret was supplied.
func (i *Interpreter) Configured() bool {
	return i.verifier != nil
}

// Interpret verifies body before decoding any of it. On ErrMalformedEvent the
// returned event still carries the id, type and kind for logging.
func (i *Interpreter) Interpret(body []byte, headers http.Header) (models.Event, error) {
	if i.verifier == nil {
		return models.Event{}, fmt.Errorf("%w: %v", ErrAuth, i.configErr)
	}

	signedAt, err := i.verifier.Verify(body, headers)
	if err != nil {
		return models.Event{}, fmt.Errorf("%w: %v", ErrAuth, err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return models.Event{}, fmt.Errorf("%w: %v", ErrPayload, err)
	}

	ev := models.Event{
		ID:        headers.Get(HeaderID),
		Kind:      models.ClassifyEventType(env.Type),
		Type:      env.Type,
		Timestamp: eventTime(env.Timestamp, signedAt),
	}

	var cust customerData
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &cust); err != nil {
			return ev, ErrMalformedEvent
		}
	}
	if cust.Customer == nil || strings.TrimSpace(cust.Customer.Email) == "" {
		return ev, ErrMalformedEvent
	}
	ev.Email = strings.TrimSpace(cust.Customer.Email)
	ev.Identity = models.NormalizeIdentity(ev.Email)

	switch ev.Kind {
	case models.EventSubscriptionActive, models.EventSubscriptionRenewed:
		var sub subscriptionData
		if err := json.Unmarshal(env.Data, &sub); err != nil {
			return ev, fmt.Errorf("%w: %v", ErrPayload, err)
		}
		ev.Subscription = &models.SubscriptionFields{
			NextBillingDate: sub.NextBillingDate.UTC(),
			ProductID:       sub.ProductID,
		}
	}

	return ev, nil
}
