// Package provider looks up active subscription periods at external billing
// providers.
//
// # Overview
//
// Two providers are supported: Stripe for web checkout and RevenueCat for
// mobile purchases. Both are exposed through the Client interface, which
// returns every active subscription period for a customer so the caller can
// detect customers that anomalously carry more than one.
//
// Lookups are read-only. Webhook ingestion is deliberately out of scope;
// period boundaries are pulled on demand and never cached or persisted.
//
// # Error Classification
//
// Clients distinguish two failure classes:
//
//   - ErrNotFound: the provider answered and knows of no active subscription
//   - ErrUnavailable: the provider could not be consulted (network error,
//     timeout, 5xx)
//
// The distinction matters upstream: not-found means the anchor-derived cycle
// is authoritative, while unavailable means the fallback is a degraded guess.
package provider
