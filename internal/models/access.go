package models

import "time"

// DecisionKind is the derived access level for an identity at a point in time.
type DecisionKind string

const (
	AccessNone  DecisionKind = "none"
	AccessTrial DecisionKind = "trial"
	AccessPaid  DecisionKind = "paid"
)

// Decision is computed per request and never persisted.
type Decision struct {
	Kind      DecisionKind
	ExpiresAt *time.Time
}

// HasAccess reports whether the decision grants use of the feature.
func (d Decision) HasAccess() bool {
	return d.Kind == AccessTrial || d.Kind == AccessPaid
}

// APIType is the value reported in the check-access "type" field.
func (d Decision) APIType() string {
	if d.Kind == AccessNone {
		return "expired"
	}
	return string(d.Kind)
}

// AccessResponse is the JSON body of POST /api/check-access.
type AccessResponse struct {
	HasAccess bool       `json:"hasAccess"`
	Type      string     `json:"type"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// NewAccessResponse converts a decision into its wire form.
func NewAccessResponse(d Decision) AccessResponse {
	return AccessResponse{
		HasAccess: d.HasAccess(),
		Type:      d.APIType(),
		ExpiresAt: d.ExpiresAt,
	}
}
