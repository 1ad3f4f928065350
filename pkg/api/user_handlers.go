package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/orato-app/orato/pkg/billing"
	"github.com/orato-app/orato/pkg/httputil"
	"github.com/orato-app/orato/pkg/observability"
	"github.com/orato-app/orato/pkg/users"
)

// UserHandlers handles user registration and subscription linking.
type UserHandlers struct {
	users  users.Service
	logger *observability.Logger
}

// NewUserHandlers creates a new UserHandlers.
func NewUserHandlers(userSvc users.Service, logger *observability.Logger) *UserHandlers {
	return &UserHandlers{users: userSvc, logger: logger}
}

// RegisterRoutes registers user routes.
func (h *UserHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/users", h.CreateUser).Methods("POST")
	router.HandleFunc("/users/{id}", h.GetUser).Methods("GET")
	router.HandleFunc("/users/{id}/provider", h.LinkProvider).Methods("POST")
	router.HandleFunc("/users/{id}/plan", h.SetPlan).Methods("PUT")
}

// CreateUser registers a new user.
func (h *UserHandlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req users.CreateUserRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Email, "email") {
		return
	}

	user, err := h.users.CreateUser(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, users.ErrEmailTaken):
			httputil.WriteConflict(w, err.Error())
		case errors.Is(err, billing.ErrInvalidAnchorDay):
			httputil.WriteValidationError(w, err.Error())
		default:
			h.logger.WithError(err).Error("Failed to create user")
			httputil.WriteInternalError(w, err)
		}
		return
	}

	httputil.WriteCreated(w, user)
}

// GetUser returns a user by ID.
func (h *UserHandlers) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	user, err := h.users.GetUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			httputil.WriteNotFoundError(w, err.Error())
			return
		}
		h.logger.WithError(err).Error("Failed to get user")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, user)
}

// LinkProvider attaches provider billing identifiers to a user.
func (h *UserHandlers) LinkProvider(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req users.LinkProviderRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Provider, "provider") ||
		!httputil.RequireNonEmpty(w, req.ProviderCustomerID, "provider_customer_id") ||
		!httputil.RequireNonEmpty(w, req.ProviderSubscriptionID, "provider_subscription_id") {
		return
	}

	user, err := h.users.LinkProvider(r.Context(), userID, &req)
	if err != nil {
		switch {
		case errors.Is(err, users.ErrUserNotFound):
			httputil.WriteNotFoundError(w, err.Error())
		case errors.Is(err, users.ErrUnknownProvider):
			httputil.WriteValidationError(w, err.Error())
		default:
			h.logger.WithError(err).Error("Failed to link provider")
			httputil.WriteInternalError(w, err)
		}
		return
	}

	httputil.WriteSuccess(w, user)
}

// SetPlan updates a user's plan code.
func (h *UserHandlers) SetPlan(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		PlanCode string `json:"plan_code"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.PlanCode, "plan_code") {
		return
	}

	user, err := h.users.SetPlan(r.Context(), userID, req.PlanCode)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			httputil.WriteNotFoundError(w, err.Error())
			return
		}
		h.logger.WithError(err).Error("Failed to set plan")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, user)
}
