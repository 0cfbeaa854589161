package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/PortNumber53/trialgate/internal/models"
	"github.com/PortNumber53/trialgate/internal/webhook"
)

var (
	signType        string
	signEmail       string
	signSecret      string
	signProductID   string
	signNextBilling time.Duration
	signURL         string
)

var webhookCmd = &cobra.Command{
	Use:   "webhook",
	Short: "Webhook helpers for local testing",
}

var webhookSignCmd = &cobra.Command{
	Use:   "sign",
	Short: "Print a signed webhook delivery as a curl command",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		secret := signSecret
		if secret == "" {
			secret = os.Getenv("DODO_PAYMENTS_WEBHOOK_KEY")
		}
		if secret == "" {
			return errors.New("--secret or DODO_PAYMENTS_WEBHOOK_KEY is required")
		}

		signer, err := webhook.NewSigner(secret)
		if err != nil {
			return err
		}

		now := time.Now().UTC().Truncate(time.Second)
		body, err := samplePayload(signType, signEmail, signProductID, now, now.Add(signNextBilling))
		if err != nil {
			return err
		}

		headers, err := signer.Sign(body, now)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), curlCommand(signURL, body, headers))
		return nil
	},
}

func init() {
	webhookSignCmd.Flags().StringVar(&signType, "type", models.TypePaymentSucceeded, "event type")
	webhookSignCmd.Flags().StringVar(&signEmail, "email", "", "customer email")
	webhookSignCmd.Flags().StringVar(&signSecret, "secret", "", "signing secret (defaults to DODO_PAYMENTS_WEBHOOK_KEY)")
	webhookSignCmd.Flags().StringVar(&signProductID, "product", "", "product id for subscription events")
	webhookSignCmd.Flags().DurationVar(&signNextBilling, "next-billing", 30*24*time.Hour, "offset of next_billing_date for subscription events")
	webhookSignCmd.Flags().StringVar(&signURL, "url", "http://localhost:8787/api/webhook", "webhook endpoint")
	webhookCmd.AddCommand(webhookSignCmd)
}

type sampleCustomer struct {
	Email string `json:"email"`
}

type sampleData struct {
	Customer        *sampleCustomer `json:"customer,omitempty"`
	NextBillingDate *time.Time      `json:"next_billing_date,omitempty"`
	ProductID       string          `json:"product_id,omitempty"`
}

type sampleEvent struct {
	Type      string     `json:"type"`
	Timestamp time.Time  `json:"timestamp"`
	Data      sampleData `json:"data"`
}

// samplePayload builds an event body in the provider's envelope. An empty
// email produces a delivery without a customer.
func samplePayload(eventType, email, productID string, ts, nextBilling time.Time) ([]byte, error) {
	ev := sampleEvent{Type: eventType, Timestamp: ts}
	if email != "" {
		ev.Data.Customer = &sampleCustomer{Email: email}
	}
	switch models.ClassifyEventType(eventType) {
	case models.EventSubscriptionActive, models.EventSubscriptionRenewed:
		ev.Data.NextBillingDate = &nextBilling
		ev.Data.ProductID = productID
	}
	return json.Marshal(ev)
}

func curlCommand(url string, body []byte, headers map[string][]string) string {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, "curl -sS -X POST %s \\\n", shellQuote(url))
	b.WriteString("  -H 'Content-Type: application/json' \\\n")
	for _, name := range names {
		for _, v := range headers[name] {
			fmt.Fprintf(&b, "  -H %s \\\n", shellQuote(strings.ToLower(name)+": "+v))
		}
	}
	fmt.Fprintf(&b, "  --data-raw %s", shellQuote(string(body)))
	return b.String()
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
