// Package billing resolves the billing cycle a user's word usage is measured
// against.
//
// # Overview
//
// Every usage check needs a half-open interval [start, end) to aggregate word
// usage events over. The authoritative source for that interval is the
// subscription provider (Stripe for web purchases, RevenueCat for mobile).
// When no provider data exists, or the provider cannot be reached, the cycle
// is derived from the user's anchor day: the day of month fixed at
// registration.
//
// # Cycle Derivation
//
// Anchor-based cycles are computed by CycleForAnchor, a pure function over
// (anchorDay, now) in UTC. The anchor day is clamped to the length of each
// month independently, so anchor 31 yields Feb 29 in a leap year and Mar 31
// the month after. Consecutive cycles are contiguous and never overlap.
//
// # Resolution
//
// The Resolver prefers provider truth and falls back to the anchor formula:
//
//	resolved, err := resolver.ResolveCycle(ctx, account)
//	if resolved.Degraded {
//		// provider was unreachable; interval is anchor-derived
//	}
//
// A resolved cycle is never persisted. Provider period boundaries move on
// plan changes, proration and renewal, so the interval is recomputed on every
// call and usage events are matched by timestamp range only.
//
// # Related Packages
//
//   - pkg/provider: Stripe and RevenueCat period lookups
//   - pkg/usage: word usage aggregation over the resolved interval
package billing
