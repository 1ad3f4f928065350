// Package usage accounts for word consumption against billing cycles.
//
// # Overview
//
// Every analyzed recording appends one immutable event to
// word_usage_events. Usage for a billing cycle is always an aggregation over
// the half-open cycle window; no running counter is maintained, so there is
// nothing to reset at cycle boundaries and nothing to drift. A user with no
// events in the window has used zero words, which is a valid answer, not an
// error. Failure to resolve the cycle is an error and is never reported as
// zero usage.
package usage
