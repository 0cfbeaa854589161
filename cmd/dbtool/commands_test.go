package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PortNumber53/trialgate/internal/models"
	"github.com/PortNumber53/trialgate/internal/webhook"
)

func TestSamplePayloadSubscription(t *testing.T) {
	ts := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	body, err := samplePayload(models.TypeSubscriptionActive, "a@x.com", "pdt_1", ts, ts.Add(24*time.Hour))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	data := decoded["data"].(map[string]any)
	assert.Equal(t, "subscription.active", decoded["type"])
	assert.Equal(t, "2026-04-02T08:00:00Z", data["next_billing_date"])
	assert.Equal(t, "pdt_1", data["product_id"])
	assert.Equal(t, "a@x.com", data["customer"].(map[string]any)["email"])
}

func TestSamplePayloadPaymentOmitsSubscriptionFields(t *testing.T) {
	ts := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	body, err := samplePayload(models.TypePaymentSucceeded, "", "pdt_1", ts, ts)
	require.NoError(t, err)

	assert.JSONEq(t, `{"type":"payment.succeeded","timestamp":"2026-04-01T08:00:00Z","data":{}}`, string(body))
}

func TestSignedPayloadVerifies(t *testing.T) {
	secret := "whsec_" + base64.StdEncoding.EncodeToString([]byte("dbtool-test-key"))
	signer, err := webhook.NewSigner(secret)
	require.NoError(t, err)

	ts := time.Now().UTC().Truncate(time.Second)
	body, err := samplePayload(models.TypePaymentSucceeded, "a@x.com", "", ts, ts)
	require.NoError(t, err)

	headers, err := signer.Sign(body, ts)
	require.NoError(t, err)
	ev, err := webhook.NewInterpreter(secret, 0, time.Now).Interpret(body, headers)
	require.NoError(t, err)
	assert.Equal(t, models.EventPaymentSucceeded, ev.Kind)
	assert.Equal(t, "a@x.com", ev.Identity)
}

func TestWebhookSignCommand(t *testing.T) {
	secret := "whsec_" + base64.StdEncoding.EncodeToString([]byte("dbtool-test-key"))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"webhook", "sign", "--secret", secret, "--email", "o'brien@x.com", "--url", "http://gate.test/api/webhook"})
	defer rootCmd.SetArgs(nil)
	require.NoError(t, rootCmd.Execute())

	got := out.String()
	assert.Contains(t, got, "curl -sS -X POST 'http://gate.test/api/webhook'")
	assert.Contains(t, got, "-H 'webhook-id: msg_")
	assert.Contains(t, got, "-H 'webhook-signature: v1,")
	assert.Contains(t, got, "-H 'webhook-timestamp: ")
	assert.Contains(t, got, `o'\''brien@x.com`)
}

func TestShellQuote(t *testing.T) {
	assert.Equal(t, `'plain'`, shellQuote("plain"))
	assert.Equal(t, `'it'\''s'`, shellQuote("it's"))
}
