package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultRevenueCatBaseURL = "https://api.revenuecat.com/v1"

// RevenueCatClient looks up subscription periods via the RevenueCat REST API.
// RevenueCat has no official Go SDK, so this is a thin HTTP client over the
// subscribers endpoint.
type RevenueCatClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

// NewRevenueCatClient creates a RevenueCat-backed provider client.
func NewRevenueCatClient(apiKey string) *RevenueCatClient {
	return &RevenueCatClient{
		apiKey:     apiKey,
		baseURL:    defaultRevenueCatBaseURL,
		httpClient: &http.Client{},
		now:        time.Now,
	}
}

// WithBaseURL overrides the API base URL, for proxied deployments and tests.
func (c *RevenueCatClient) WithBaseURL(baseURL string) *RevenueCatClient {
	if baseURL != "" {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
	return c
}

// Name implements Client.
func (c *RevenueCatClient) Name() string {
	return "revenuecat"
}

// subscriberResponse mirrors the subset of the RevenueCat subscriber payload
// this client consumes.
type subscriberResponse struct {
	Subscriber struct {
		Subscriptions map[string]struct {
			PurchaseDate          time.Time  `json:"purchase_date"`
			ExpiresDate           *time.Time `json:"expires_date"`
			OriginalPurchaseDate  time.Time  `json:"original_purchase_date"`
			UnsubscribeDetectedAt *time.Time `json:"unsubscribe_detected_at"`
		} `json:"subscriptions"`
	} `json:"subscriber"`
}

// SubscriptionPeriods fetches the subscriber and maps each unexpired
// subscription entry to a period. The latest purchase date opens the current
// period; the expiry date closes it.
func (c *RevenueCatClient) SubscriptionPeriods(ctx context.Context, customerID string) ([]Period, error) {
	endpoint := fmt.Sprintf("%s/subscribers/%s", c.baseURL, url.PathEscape(customerID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: revenuecat returned %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: revenuecat returned %d", ErrUnavailable, resp.StatusCode)
	}

	var payload subscriberResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: malformed subscriber payload: %v", ErrUnavailable, err)
	}

	now := c.now().UTC()
	var periods []Period
	for productID, sub := range payload.Subscriber.Subscriptions {
		if sub.ExpiresDate == nil || !sub.ExpiresDate.After(now) {
			continue
		}
		periods = append(periods, Period{
			SubscriptionID: productID,
			Start:          sub.PurchaseDate.UTC(),
			End:            sub.ExpiresDate.UTC(),
			Created:        sub.OriginalPurchaseDate.UTC(),
		})
	}

	if len(periods) == 0 {
		return nil, ErrNotFound
	}
	return periods, nil
}
