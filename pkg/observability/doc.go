// Package observability provides structured logging, Prometheus metrics,
// health checks, graceful shutdown and optional OpenTelemetry tracing.
//
// # Logging
//
// Logger wraps stdlib slog with a JSON handler and field chaining:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("user_id", userID).Warn("cycle resolution degraded")
//
// Request-scoped values (request ID, user ID) travel on the context and are
// folded back into the logger with FromContext.
//
// # Metrics
//
// Metrics registers every Prometheus collector the service exposes: HTTP
// request counters and latencies, provider call outcomes, cycle resolution
// sources, usage event counters and database pool gauges.
//
// # Health
//
// HealthChecker serves liveness and readiness probes on the ops port,
// checking PostgreSQL and (when configured) Redis.
package observability
