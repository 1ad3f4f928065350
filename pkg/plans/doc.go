// Package plans holds the subscription plan catalog: the mapping from a plan
// code to its monthly word limit and feature entitlements.
//
// # Overview
//
// The catalog is static reference data. It ships with built-in defaults and
// can be overridden from a YAML file, optionally hot-reloaded when the file
// changes. Lookups never fail: an unknown plan code resolves to the starter
// plan so quota enforcement always has a defined ceiling.
package plans
