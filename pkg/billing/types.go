package billing

import (
	"context"
)

// Account carries the subscription linkage the resolver needs for one user.
// Core functions take it as an explicit parameter; nothing is read from
// ambient request state.
type Account struct {
	UserID                 int64
	Provider               string
	ProviderCustomerID     string
	ProviderSubscriptionID string
	// BillingCycleDay anchors the fallback cycle. Fixed at registration and
	// immutable afterwards.
	BillingCycleDay int
}

// CycleSource identifies where a resolved cycle's boundaries came from.
type CycleSource string

const (
	// SourceProvider means the interval was returned verbatim by the
	// subscription provider.
	SourceProvider CycleSource = "provider"
	// SourceAnchor means the interval was derived from the user's anchor day.
	SourceAnchor CycleSource = "anchor"
)

// ResolvedCycle is the outcome of a billing cycle resolution.
type ResolvedCycle struct {
	Cycle  Cycle       `json:"cycle"`
	Source CycleSource `json:"source"`

	// Degraded is set when the provider should have been consulted but was
	// unreachable, so the anchor fallback is a guess rather than verified
	// truth. Callers must not present a degraded result as authoritative.
	Degraded bool `json:"degraded"`

	// Cause carries the typed reason an anchor fallback was taken:
	// ErrNoSubscriptionData for unlinked or lapsed users,
	// ErrProviderUnavailable (wrapped) for degraded results. Nil for
	// provider-sourced cycles.
	Cause error `json:"-"`
}

// AnomalyRecorder persists subscription data-integrity anomalies discovered
// during resolution. Implemented by pkg/audit.
type AnomalyRecorder interface {
	RecordSubscriptionAnomaly(ctx context.Context, userID int64, provider, customerID string, activeCount int, chosenSubscriptionID string) error
}
