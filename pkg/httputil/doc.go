// Package httputil provides small helpers for JSON responses and request
// parsing shared by all API handlers.
package httputil
