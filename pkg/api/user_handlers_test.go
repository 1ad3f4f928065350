package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orato-app/orato/pkg/users"
)

func doJSON(t *testing.T, server *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	return rec
}

func TestCreateUserHandler(t *testing.T) {
	server := newTestServer(t, newFakeUserService(), &fakeUsageService{})

	rec := doJSON(t, server, http.MethodPost, "/api/v1/users", map[string]interface{}{
		"email":             "lena@example.com",
		"display_name":      "Lena",
		"billing_cycle_day": 17,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var user users.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.Equal(t, "lena@example.com", user.Email)
	assert.Equal(t, 17, user.BillingCycleDay)
	assert.Equal(t, "starter", user.PlanCode)
}

func TestCreateUserHandlerValidation(t *testing.T) {
	server := newTestServer(t, newFakeUserService(), &fakeUsageService{})

	t.Run("missing email", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodPost, "/api/v1/users", map[string]interface{}{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad anchor day", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodPost, "/api/v1/users", map[string]interface{}{
			"email":             "a@b.co",
			"billing_cycle_day": 40,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("duplicate email", func(t *testing.T) {
		svc := newFakeUserService()
		svc.createErr = users.ErrEmailTaken
		server := newTestServer(t, svc, &fakeUsageService{})

		rec := doJSON(t, server, http.MethodPost, "/api/v1/users", map[string]interface{}{
			"email": "a@b.co",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/users", bytes.NewBufferString("{"))
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetUserHandler(t *testing.T) {
	server := newTestServer(t, newFakeUserService(&users.User{
		ID: 7, Email: "lena@example.com", BillingCycleDay: 17, PlanCode: "professional",
	}), &fakeUsageService{})

	rec := doJSON(t, server, http.MethodGet, "/api/v1/users/7", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var user users.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.Equal(t, int64(7), user.ID)

	rec = doJSON(t, server, http.MethodGet, "/api/v1/users/404", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, server, http.MethodGet, "/api/v1/users/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLinkProviderHandler(t *testing.T) {
	server := newTestServer(t, newFakeUserService(&users.User{
		ID: 7, Email: "lena@example.com", BillingCycleDay: 17,
	}), &fakeUsageService{})

	rec := doJSON(t, server, http.MethodPost, "/api/v1/users/7/provider", map[string]string{
		"provider":                 "stripe",
		"provider_customer_id":     "cus_123",
		"provider_subscription_id": "sub_123",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var user users.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.Equal(t, "stripe", user.Provider)
	assert.Equal(t, "cus_123", user.ProviderCustomerID)

	t.Run("unknown provider", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodPost, "/api/v1/users/7/provider", map[string]string{
			"provider":                 "paddle",
			"provider_customer_id":     "c",
			"provider_subscription_id": "s",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing ids", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodPost, "/api/v1/users/7/provider", map[string]string{
			"provider": "stripe",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSetPlanHandler(t *testing.T) {
	server := newTestServer(t, newFakeUserService(&users.User{
		ID: 7, Email: "lena@example.com", BillingCycleDay: 17, PlanCode: "starter",
	}), &fakeUsageService{})

	rec := doJSON(t, server, http.MethodPut, "/api/v1/users/7/plan", map[string]string{
		"plan_code": "executive",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var user users.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.Equal(t, "executive", user.PlanCode)

	rec = doJSON(t, server, http.MethodPut, "/api/v1/users/7/plan", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
