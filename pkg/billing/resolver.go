package billing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/orato-app/orato/pkg/observability"
	"github.com/orato-app/orato/pkg/provider"
)

const defaultProviderTimeout = 5 * time.Second

// Resolver produces the authoritative current billing cycle for a user,
// preferring provider truth and falling back to the anchor-day formula.
type Resolver struct {
	providers *provider.Registry
	anomalies AnomalyRecorder
	timeout   time.Duration
	logger    *observability.Logger
	metrics   *observability.Metrics
}

// NewResolver creates a resolver. The anomaly recorder and metrics may be
// nil; the provider timeout defaults to 5s when zero.
func NewResolver(providers *provider.Registry, anomalies AnomalyRecorder, logger *observability.Logger, metrics *observability.Metrics, timeout time.Duration) *Resolver {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	if timeout <= 0 {
		timeout = defaultProviderTimeout
	}
	return &Resolver{
		providers: providers,
		anomalies: anomalies,
		timeout:   timeout,
		logger:    logger,
		metrics:   metrics,
	}
}

// ResolveCycle resolves the billing cycle containing the current instant.
func (r *Resolver) ResolveCycle(ctx context.Context, acct Account) (*ResolvedCycle, error) {
	return r.ResolveCycleAt(ctx, acct, time.Now())
}

// ResolveCycleAt resolves the billing cycle containing now. The result is
// never persisted: provider period boundaries shift on plan changes and
// renewals, so every call recomputes from source.
//
// Resolution is deterministic: the same account, instant and provider state
// always yield the same interval.
func (r *Resolver) ResolveCycleAt(ctx context.Context, acct Account, now time.Time) (*ResolvedCycle, error) {
	now = now.UTC()

	if err := ValidateAnchorDay(acct.BillingCycleDay); err != nil {
		return nil, fmt.Errorf("account %d has unusable billing cycle day %d: %w", acct.UserID, acct.BillingCycleDay, err)
	}

	if acct.Provider == "" || acct.ProviderCustomerID == "" || acct.ProviderSubscriptionID == "" {
		return r.anchorFallback(acct, now, false, ErrNoSubscriptionData), nil
	}

	client, ok := r.providers.Client(acct.Provider)
	if !ok {
		r.logger.WithFields(map[string]interface{}{
			"user_id":  acct.UserID,
			"provider": acct.Provider,
		}).Warn("Unknown subscription provider on user record, using anchor cycle")
		return r.anchorFallback(acct, now, false, ErrNoSubscriptionData), nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	lookupStart := time.Now()
	periods, err := client.SubscriptionPeriods(lookupCtx, acct.ProviderCustomerID)
	lookupDuration := time.Since(lookupStart)

	switch {
	case err == nil:
		r.observeProviderCall(acct.Provider, "ok", lookupDuration)

	case errors.Is(err, provider.ErrNotFound):
		r.observeProviderCall(acct.Provider, "not_found", lookupDuration)
		return r.anchorFallback(acct, now, false, ErrNoSubscriptionData), nil

	case ctx.Err() != nil:
		// The caller's own context ended; this is not a provider outage.
		r.observeProviderCall(acct.Provider, "canceled", lookupDuration)
		return nil, ctx.Err()

	default:
		r.observeProviderCall(acct.Provider, "unavailable", lookupDuration)
		r.logger.WithError(err).WithFields(map[string]interface{}{
			"user_id":  acct.UserID,
			"provider": acct.Provider,
		}).Warn("Provider lookup failed, falling back to anchor cycle (degraded)")
		cause := fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		return r.anchorFallback(acct, now, true, cause), nil
	}

	if len(periods) == 0 {
		return r.anchorFallback(acct, now, false, ErrNoSubscriptionData), nil
	}

	period := periods[0]
	if len(periods) > 1 {
		period = r.resolveAmbiguity(ctx, acct, periods)
	}

	if period.Start.IsZero() || !period.Start.Before(period.End) {
		r.logger.WithFields(map[string]interface{}{
			"user_id":      acct.UserID,
			"provider":     acct.Provider,
			"period_start": period.Start,
			"period_end":   period.End,
		}).Warn("Provider returned malformed period, falling back to anchor cycle (degraded)")
		cause := fmt.Errorf("%w: malformed period %v..%v", ErrProviderUnavailable, period.Start, period.End)
		return r.anchorFallback(acct, now, true, cause), nil
	}

	resolved := &ResolvedCycle{
		Cycle:  Cycle{Start: period.Start.UTC(), End: period.End.UTC()},
		Source: SourceProvider,
	}
	if r.metrics != nil {
		r.metrics.ObserveCycleResolution(string(SourceProvider), false)
	}
	return resolved, nil
}

// resolveAmbiguity picks the most recently created subscription when a
// customer anomalously carries several active ones. The tie-break is
// deterministic (creation time, then subscription ID); periods are never
// merged or averaged.
func (r *Resolver) resolveAmbiguity(ctx context.Context, acct Account, periods []provider.Period) provider.Period {
	sorted := make([]provider.Period, len(periods))
	copy(sorted, periods)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].Created.Equal(sorted[j].Created) {
			return sorted[i].Created.After(sorted[j].Created)
		}
		return sorted[i].SubscriptionID > sorted[j].SubscriptionID
	})
	chosen := sorted[0]

	ambiguity := &AmbiguousSubscriptionError{
		Provider:             acct.Provider,
		CustomerID:           acct.ProviderCustomerID,
		ActiveCount:          len(periods),
		ChosenSubscriptionID: chosen.SubscriptionID,
	}
	r.logger.WithField("user_id", acct.UserID).Warn(ambiguity.Error())

	if r.anomalies != nil {
		if err := r.anomalies.RecordSubscriptionAnomaly(ctx, acct.UserID, acct.Provider, acct.ProviderCustomerID, len(periods), chosen.SubscriptionID); err != nil {
			r.logger.WithError(err).Warn("Failed to record subscription anomaly")
		}
	}

	return chosen
}

func (r *Resolver) anchorFallback(acct Account, now time.Time, degraded bool, cause error) *ResolvedCycle {
	if r.metrics != nil {
		r.metrics.ObserveCycleResolution(string(SourceAnchor), degraded)
	}
	return &ResolvedCycle{
		Cycle:    CycleForAnchor(acct.BillingCycleDay, now),
		Source:   SourceAnchor,
		Degraded: degraded,
		Cause:    cause,
	}
}

func (r *Resolver) observeProviderCall(providerName, outcome string, duration time.Duration) {
	if r.metrics != nil {
		r.metrics.ObserveProviderCall(providerName, outcome, duration)
	}
}
