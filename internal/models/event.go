package models

import "time"

// EventKind is the closed set of billing event kinds the service acts on.
type EventKind int

const (
	EventOther EventKind = iota
	EventPaymentSucceeded
	EventSubscriptionActive
	EventSubscriptionRenewed
	EventSubscriptionCancelled
)

// Provider event type strings.
const (
	TypePaymentSucceeded      = "payment.succeeded"
	TypeSubscriptionActive    = "subscription.active"
	TypeSubscriptionRenewed   = "subscription.renewed"
	TypeSubscriptionCancelled = "subscription.cancelled"
)

// ClassifyEventType maps a provider type string onto an EventKind. Unknown
// types are EventOther so new provider events never fail the webhook.
func ClassifyEventType(eventType string) EventKind {
	switch eventType {
	case TypePaymentSucceeded:
		return EventPaymentSucceeded
	case TypeSubscriptionActive:
		return EventSubscriptionActive
	case TypeSubscriptionRenewed:
		return EventSubscriptionRenewed
	case TypeSubscriptionCancelled:
		return EventSubscriptionCancelled
	default:
		return EventOther
	}
}

func (k EventKind) String() string {
	switch k {
	case EventPaymentSucceeded:
		return "payment_succeeded"
	case EventSubscriptionActive:
		return "subscription_active"
	case EventSubscriptionRenewed:
		return "subscription_renewed"
	case EventSubscriptionCancelled:
		return "subscription_cancelled"
	default:
		return "other"
	}
}

// SubscriptionFields is the payload of the subscription.active and
// subscription.renewed variants.
type SubscriptionFields struct {
	NextBillingDate time.Time
	ProductID       string
}

// Event is one interpreted webhook delivery. It is built once by the
// interpreter, consumed once by reconciliation and then discarded.
type Event struct {
	ID        string
	Kind      EventKind
	Type      string
	Timestamp time.Time

	// Email is the address as received, trimmed. Identity is its
	// normalized form and is the only one used as a store key.
	Email    string
	Identity string

	// Subscription is set for EventSubscriptionActive and
	// EventSubscriptionRenewed only.
	Subscription *SubscriptionFields
}
