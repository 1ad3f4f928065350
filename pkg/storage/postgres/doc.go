// Package postgres manages the PostgreSQL and Redis connections.
//
// # Overview
//
// The connection manager holds one primary handle for writes and an optional
// set of read replicas for usage aggregation queries, selected round-robin.
// Replicas that fail health checks are dropped at runtime. The schema
// bootstrap creates the tables on startup so a fresh database works without
// a separate migration step.
package postgres
