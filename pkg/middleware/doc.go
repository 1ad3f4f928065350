// Package middleware provides the HTTP middleware chain: request IDs,
// structured request logging with metrics, panic recovery, and an optional
// Redis-backed distributed rate limiter shared across instances.
package middleware
