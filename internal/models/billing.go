package models

import (
	"strings"
	"time"
)

// SubscriptionStatus is the lifecycle state of a recorded subscription.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// Subscription is the subscription snapshot carried on an entitlement record.
type Subscription struct {
	Status          SubscriptionStatus `json:"status"`
	NextBillingDate time.Time          `json:"nextBillingDate"`
	ProductID       string             `json:"productId"`
	StartedAt       time.Time          `json:"startedAt"`
	// UpdatedAt is the provider timestamp of the last event applied to the
	// subscription. Events older than this are ignored.
	UpdatedAt time.Time `json:"updatedAt"`
}

// Record is the durable per-identity entitlement state. Nil pointer fields
// are absent, not zero.
type Record struct {
	HasPaid      bool          `json:"hasPaid"`
	TrialStarted *time.Time    `json:"trialStarted,omitempty"`
	PaymentDate  *time.Time    `json:"paymentDate,omitempty"`
	Subscription *Subscription `json:"subscription,omitempty"`
}

// Clone returns a deep copy so callers never share optional fields with a
// stored value.
func (r Record) Clone() Record {
	out := Record{HasPaid: r.HasPaid}
	if r.TrialStarted != nil {
		t := *r.TrialStarted
		out.TrialStarted = &t
	}
	if r.PaymentDate != nil {
		t := *r.PaymentDate
		out.PaymentDate = &t
	}
	if r.Subscription != nil {
		s := *r.Subscription
		out.Subscription = &s
	}
	return out
}

// PaidActive reports whether the record carries paid access: a payment flag
// together with an active subscription. A cancelled subscription never
// counts, regardless of HasPaid.
func (r Record) PaidActive() bool {
	return r.HasPaid && r.Subscription != nil && r.Subscription.Status == SubscriptionActive
}

// TimePtr returns a pointer to a copy of t.
func TimePtr(t time.Time) *time.Time {
	return &t
}

// NormalizeIdentity canonicalizes an email address for use as a store key.
func NormalizeIdentity(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
