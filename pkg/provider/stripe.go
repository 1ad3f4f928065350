package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

// StripeClient looks up subscription periods via the Stripe API.
type StripeClient struct {
	api *client.API
}

// NewStripeClient creates a Stripe-backed provider client.
func NewStripeClient(apiKey string) *StripeClient {
	api := &client.API{}
	api.Init(apiKey, nil)
	return &StripeClient{api: api}
}

// Name implements Client.
func (c *StripeClient) Name() string {
	return "stripe"
}

// SubscriptionPeriods lists the customer's active subscriptions and maps each
// to its current period. Stripe reports period boundaries as Unix epochs;
// they are converted to UTC instants.
func (c *StripeClient) SubscriptionPeriods(ctx context.Context, customerID string) ([]Period, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String(string(stripe.SubscriptionStatusActive)),
	}
	params.Context = ctx

	var periods []Period
	iter := c.api.Subscriptions.List(params)
	for iter.Next() {
		sub := iter.Subscription()
		periods = append(periods, Period{
			SubscriptionID: sub.ID,
			Start:          time.Unix(sub.CurrentPeriodStart, 0).UTC(),
			End:            time.Unix(sub.CurrentPeriodEnd, 0).UTC(),
			Created:        time.Unix(sub.Created, 0).UTC(),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, classifyStripeError(err)
	}

	if len(periods) == 0 {
		return nil, ErrNotFound
	}
	return periods, nil
}

// classifyStripeError maps Stripe SDK errors onto the package error classes.
func classifyStripeError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode == 404 || stripeErr.Code == stripe.ErrorCodeResourceMissing {
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		}
	}

	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
