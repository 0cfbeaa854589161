package entitlement

import (
	"time"

	"github.com/PortNumber53/trialgate/internal/models"
)

// Reconcile merges ev into current (nil means no record yet) and returns the
// resulting record. It is a last-event-wins overlay with one guard: events
// older than the state they would overwrite are ignored, so late deliveries
// cannot resurrect a cancelled subscription or move dates backwards.
func Reconcile(current *models.Record, ev models.Event) models.Record {
	rec, _ := reconcile(current, ev)
	return rec
}

// reconcile also reports whether ev changed anything.
func reconcile(current *models.Record, ev models.Event) (models.Record, bool) {
	var rec models.Record
	if current != nil {
		rec = current.Clone()
	}

	switch ev.Kind {
	case models.EventPaymentSucceeded:
		if rec.PaymentDate != nil && ev.Timestamp.Before(*rec.PaymentDate) {
			return rec, false
		}
		if rec.Subscription != nil && rec.Subscription.Status == models.SubscriptionCancelled &&
			ev.Timestamp.Before(rec.Subscription.UpdatedAt) {
			return rec, false
		}
		rec.HasPaid = true
		rec.PaymentDate = models.TimePtr(ev.Timestamp)
		return rec, true

	case models.EventSubscriptionActive, models.EventSubscriptionRenewed:
		if subscriptionIsNewer(rec, ev.Timestamp) {
			return rec, false
		}
		var fields models.SubscriptionFields
		if ev.Subscription != nil {
			fields = *ev.Subscription
		}
		rec.HasPaid = true
		rec.Subscription = &models.Subscription{
			Status:          models.SubscriptionActive,
			NextBillingDate: fields.NextBillingDate,
			ProductID:       fields.ProductID,
			StartedAt:       ev.Timestamp,
			UpdatedAt:       ev.Timestamp,
		}
		return rec, true

	case models.EventSubscriptionCancelled:
		// Nothing recorded to cancel.
		if rec.Subscription == nil {
			return rec, false
		}
		if subscriptionIsNewer(rec, ev.Timestamp) {
			return rec, false
		}
		rec.Subscription.Status = models.SubscriptionCancelled
		rec.Subscription.UpdatedAt = ev.Timestamp
		rec.HasPaid = false
		return rec, true

	case models.EventOther:
		return rec, false

	default:
		return rec, false
	}
}

func subscriptionIsNewer(rec models.Record, ts time.Time) bool {
	return rec.Subscription != nil && ts.Before(rec.Subscription.UpdatedAt)
}
