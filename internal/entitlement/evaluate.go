package entitlement

import (
	"time"

	"github.com/PortNumber53/trialgate/internal/models"
)

// DefaultTrialDuration is the length of the free trial window.
const DefaultTrialDuration = 24 * time.Hour

// Evaluate derives the access decision for rec at now. The first matching
// rule wins: paid with an active subscription, then an unexpired trial,
// otherwise no access. A paid decision has no expiry when the provider sent
// no next billing date.
func Evaluate(rec models.Record, now time.Time, trial time.Duration) models.Decision {
	if rec.PaidActive() {
		d := models.Decision{Kind: models.AccessPaid}
		if next := rec.Subscription.NextBillingDate; !next.IsZero() {
			d.ExpiresAt = &next
		}
		return d
	}

	if rec.TrialStarted == nil {
		return models.Decision{Kind: models.AccessNone}
	}

	end := rec.TrialStarted.Add(trial)
	if now.Before(end) {
		return models.Decision{Kind: models.AccessTrial, ExpiresAt: &end}
	}

	return models.Decision{Kind: models.AccessNone}
}
