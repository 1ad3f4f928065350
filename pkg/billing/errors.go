package billing

import (
	"errors"
	"fmt"
)

var (
	// ErrProviderUnavailable indicates the subscription provider could not be
	// consulted (network failure, timeout or 5xx). Callers fall back to the
	// anchor-derived cycle but must treat the result as degraded rather than
	// as verified provider truth.
	ErrProviderUnavailable = errors.New("subscription provider unavailable")

	// ErrNoSubscriptionData indicates the user has no provider linkage, or
	// the provider knows of no active subscription. The anchor-derived cycle
	// is authoritative in this case.
	ErrNoSubscriptionData = errors.New("no subscription data")

	// ErrInvalidAnchorDay indicates a billing cycle day outside 1-31. It is
	// rejected when the user is created, never during cycle computation.
	ErrInvalidAnchorDay = errors.New("billing cycle day must be between 1 and 31")
)

// AmbiguousSubscriptionError reports that a provider customer carries more
// than one active subscription. This points at upstream data corruption; the
// resolver picks the most recently created subscription deterministically and
// surfaces the anomaly instead of merging periods.
type AmbiguousSubscriptionError struct {
	Provider             string
	CustomerID           string
	ActiveCount          int
	ChosenSubscriptionID string
}

func (e *AmbiguousSubscriptionError) Error() string {
	return fmt.Sprintf("customer %s has %d active %s subscriptions, resolved to most recent %s",
		e.CustomerID, e.ActiveCount, e.Provider, e.ChosenSubscriptionID)
}
