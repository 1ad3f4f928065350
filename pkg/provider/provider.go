package provider

import (
	"context"
	"errors"
	"sort"
	"time"
)

var (
	// ErrNotFound indicates the provider responded but has no active
	// subscription for the customer.
	ErrNotFound = errors.New("no active subscription at provider")

	// ErrUnavailable indicates the provider could not be consulted.
	ErrUnavailable = errors.New("provider unavailable")
)

// Period is one active subscription period as reported by a provider.
type Period struct {
	// SubscriptionID identifies the subscription at the provider (Stripe
	// subscription ID, RevenueCat product identifier).
	SubscriptionID string    `json:"subscription_id"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	// Created is when the subscription was created at the provider. Used as
	// the deterministic tie-break when a customer has multiple active
	// subscriptions.
	Created time.Time `json:"created"`
}

// Client fetches active subscription periods for a customer.
type Client interface {
	// Name returns the provider identifier stored on user records.
	Name() string

	// SubscriptionPeriods returns all active subscription periods for the
	// customer. A customer with no active subscription yields ErrNotFound;
	// transport-level failures yield an error wrapping ErrUnavailable.
	SubscriptionPeriods(ctx context.Context, customerID string) ([]Period, error)
}

// Registry holds the configured provider clients keyed by name.
type Registry struct {
	clients map[string]Client
}

// NewRegistry creates a registry from the given clients.
func NewRegistry(clients ...Client) *Registry {
	r := &Registry{clients: make(map[string]Client, len(clients))}
	for _, c := range clients {
		r.clients[c.Name()] = c
	}
	return r
}

// Client returns the client registered under name.
func (r *Registry) Client(name string) (Client, bool) {
	c, ok := r.clients[name]
	return c, ok
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
