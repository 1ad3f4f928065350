// Package users manages user identity and subscription linkage.
//
// # Overview
//
// A user carries an email, a plan code, an optional link to a subscription
// provider (Stripe or RevenueCat customer and subscription IDs), and a
// billing cycle day. The billing cycle day is fixed at registration,
// defaulting to the UTC day of month the account was created, and is
// immutable afterwards; there is deliberately no update path for it.
package users
