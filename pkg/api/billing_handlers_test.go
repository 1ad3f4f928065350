package api

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orato-app/orato/pkg/billing"
	"github.com/orato-app/orato/pkg/provider"
	"github.com/orato-app/orato/pkg/users"
)

func linkedUser() *users.User {
	return &users.User{
		ID:                     7,
		Email:                  "lena@example.com",
		Provider:               "stripe",
		ProviderCustomerID:     "cus_123",
		ProviderSubscriptionID: "sub_123",
		BillingCycleDay:        17,
		PlanCode:               "professional",
	}
}

func TestGetBillingCycleProviderSourced(t *testing.T) {
	start := time.Date(2025, time.June, 3, 8, 30, 0, 0, time.UTC)
	end := time.Date(2025, time.July, 3, 8, 30, 0, 0, time.UTC)
	client := &stubProviderClient{name: "stripe", periods: []provider.Period{{
		SubscriptionID: "sub_123",
		Start:          start,
		End:            end,
		Created:        time.Date(2025, time.January, 3, 0, 0, 0, 0, time.UTC),
	}}}
	server := newTestServer(t, newFakeUserService(linkedUser()), &fakeUsageService{}, client)

	rec := doJSON(t, server, http.MethodGet, "/api/v1/users/7/billing-cycle", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resolved billing.ResolvedCycle
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resolved))
	assert.Equal(t, billing.SourceProvider, resolved.Source)
	assert.False(t, resolved.Degraded)
	assert.True(t, resolved.Cycle.Start.Equal(start))
	assert.True(t, resolved.Cycle.End.Equal(end))
}

func TestGetBillingCycleAnchorFallback(t *testing.T) {
	user := linkedUser()
	user.Provider = ""
	user.ProviderCustomerID = ""
	user.ProviderSubscriptionID = ""
	server := newTestServer(t, newFakeUserService(user), &fakeUsageService{})

	rec := doJSON(t, server, http.MethodGet, "/api/v1/users/7/billing-cycle", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resolved billing.ResolvedCycle
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resolved))
	assert.Equal(t, billing.SourceAnchor, resolved.Source)
	assert.False(t, resolved.Degraded)
	assert.Equal(t, 17, resolved.Cycle.Start.Day())
}

func TestGetBillingCycleDegradedProvider(t *testing.T) {
	client := &stubProviderClient{name: "stripe", err: provider.ErrUnavailable}
	server := newTestServer(t, newFakeUserService(linkedUser()), &fakeUsageService{}, client)

	rec := doJSON(t, server, http.MethodGet, "/api/v1/users/7/billing-cycle", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resolved billing.ResolvedCycle
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resolved))
	assert.Equal(t, billing.SourceAnchor, resolved.Source)
	assert.True(t, resolved.Degraded, "callers must see that the cycle is a fallback guess")
}

func TestGetBillingCycleUserNotFound(t *testing.T) {
	server := newTestServer(t, newFakeUserService(), &fakeUsageService{})

	rec := doJSON(t, server, http.MethodGet, "/api/v1/users/404/billing-cycle", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
