// Package audit records subscription data-integrity anomalies.
//
// # Overview
//
// When cycle resolution finds a provider customer with more than one active
// subscription, it picks one deterministically and files an anomaly here for
// a human to reconcile. Anomalies are also filed by the reconciler's nightly
// sweep. An anomaly stays open until an operator marks it resolved.
package audit
