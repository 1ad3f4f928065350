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

// BillingHandlers exposes billing cycle resolution.
type BillingHandlers struct {
	users    users.Service
	resolver *billing.Resolver
	logger   *observability.Logger
}

// NewBillingHandlers creates a new BillingHandlers.
func NewBillingHandlers(userSvc users.Service, resolver *billing.Resolver, logger *observability.Logger) *BillingHandlers {
	return &BillingHandlers{users: userSvc, resolver: resolver, logger: logger}
}

// RegisterRoutes registers billing routes.
func (h *BillingHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/users/{id}/billing-cycle", h.GetBillingCycle).Methods("GET")
}

// GetBillingCycle resolves and returns the user's current billing cycle,
// including where the boundaries came from and whether the result is
// degraded. The cycle is recomputed on every call, never cached.
func (h *BillingHandlers) GetBillingCycle(w http.ResponseWriter, r *http.Request) {
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

	resolved, err := h.resolver.ResolveCycle(r.Context(), user.BillingAccount())
	if err != nil {
		h.logger.WithError(err).WithField("user_id", userID).Error("Billing cycle resolution failed")
		httputil.WriteBadGateway(w, "failed to resolve billing cycle")
		return
	}

	httputil.WriteSuccess(w, resolved)
}
