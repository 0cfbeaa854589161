package webhook

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	standardwebhooks "github.com/standard-webhooks/standard-webhooks/libraries/go"
)

// Standard Webhooks header names.
const (
	HeaderID        = standardwebhooks.HeaderWebhookID
	HeaderTimestamp = standardwebhooks.HeaderWebhookTimestamp
	HeaderSignature = standardwebhooks.HeaderWebhookSignature

	// DefaultTolerance bounds the clock skew accepted on webhook-timestamp.
	DefaultTolerance = 5 * time.Minute
)

var (
	errInvalidTimestamp = errors.New("invalid timestamp")
	errTimestampSkew    = errors.New("message timestamp outside tolerance")
)

// Verifier checks Standard Webhooks signatures. The skew window is enforced
// here so it can differ from the library's fixed five minutes.
type Verifier struct {
	wh        *standardwebhooks.Webhook
	tolerance time.Duration
	now       func() time.Time
}

func newWebhook(secret string) (*standardwebhooks.Webhook, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("webhook secret is empty")
	}
	wh, err := standardwebhooks.NewWebhook(secret)
	if err != nil {
		return nil, fmt.Errorf("webhook secret is not usable: %w", err)
	}
	return wh, nil
}

// NewVerifier accepts secret with or without the whsec_ prefix. A zero
// tolerance selects DefaultTolerance.
func NewVerifier(secret string, tolerance time.Duration, now func() time.Time) (*Verifier, error) {
	wh, err := newWebhook(secret)
	if err != nil {
		return nil, err
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	if now == nil {
		now = time.Now
	}
	return &Verifier{wh: wh, tolerance: tolerance, now: now}, nil
}

// Verify authenticates body against the signature headers and returns the
// signed timestamp.
func (v *Verifier) Verify(body []byte, headers http.Header) (time.Time, error) {
	if err := v.wh.VerifyIgnoringTimestamp(body, headers); err != nil {
		return time.Time{}, err
	}

	seconds, err := strconv.ParseInt(headers.Get(HeaderTimestamp), 10, 64)
	if err != nil {
		return time.Time{}, errInvalidTimestamp
	}
	ts := time.Unix(seconds, 0)

	now := v.now()
	if now.Sub(ts) > v.tolerance || ts.Sub(now) > v.tolerance {
		return time.Time{}, errTimestampSkew
	}
	return ts, nil
}

// Signer produces Standard Webhooks headers. It backs the dbtool signing
// command and tests.
type Signer struct {
	wh *standardwebhooks.Webhook
}

// NewSigner decodes secret the same way NewVerifier does.
func NewSigner(secret string) (*Signer, error) {
	wh, err := newWebhook(secret)
	if err != nil {
		return nil, err
	}
	return &Signer{wh: wh}, nil
}

// Sign returns the headers for body signed at ts with a fresh message id.
func (s *Signer) Sign(body []byte, ts time.Time) (http.Header, error) {
	return s.SignWithID("msg_"+uuid.NewString(), body, ts)
}

// SignWithID is Sign with a caller-chosen message id.
func (s *Signer) SignWithID(msgID string, body []byte, ts time.Time) (http.Header, error) {
	sig, err := s.wh.Sign(msgID, ts, body)
	if err != nil {
		return nil, fmt.Errorf("webhook: sign: %w", err)
	}
	h := http.Header{}
	h.Set(HeaderID, msgID)
	h.Set(HeaderTimestamp, strconv.FormatInt(ts.Unix(), 10))
	h.Set(HeaderSignature, sig)
	return h, nil
}
