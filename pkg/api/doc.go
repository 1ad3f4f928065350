// Package api exposes the HTTP surface: user registration and provider
// linking, billing cycle resolution, usage recording and reporting, and the
// plan catalog.
//
// # Overview
//
// Routes live under /api/v1. Each concern gets its own handler type with a
// RegisterRoutes method; the Server wires them together behind the shared
// middleware chain. Health and metrics endpoints are served from a separate
// ops port by cmd/orato, not from this router.
package api
