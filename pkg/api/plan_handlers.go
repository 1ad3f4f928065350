package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/orato-app/orato/pkg/httputil"
	"github.com/orato-app/orato/pkg/plans"
)

// PlanHandlers exposes the plan catalog.
type PlanHandlers struct {
	catalog *plans.Catalog
}

// NewPlanHandlers creates a new PlanHandlers.
func NewPlanHandlers(catalog *plans.Catalog) *PlanHandlers {
	return &PlanHandlers{catalog: catalog}
}

// RegisterRoutes registers plan routes.
func (h *PlanHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/plans", h.ListPlans).Methods("GET")
	router.HandleFunc("/plans/{code}", h.GetPlan).Methods("GET")
}

// ListPlans returns all plans ordered by word limit.
func (h *PlanHandlers) ListPlans(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, map[string]interface{}{
		"plans": h.catalog.List(),
	})
}

// GetPlan returns one plan by code. Unlike quota resolution, an unknown code
// here is a 404, not a starter fallback; callers asking about a specific
// plan deserve the truth.
func (h *PlanHandlers) GetPlan(w http.ResponseWriter, r *http.Request) {
	code, ok := httputil.ParsePathStringOrError(w, r, "code")
	if !ok {
		return
	}

	plan, found := h.catalog.Lookup(code)
	if !found {
		httputil.WriteNotFoundError(w, "plan not found: "+code)
		return
	}

	httputil.WriteSuccess(w, plan)
}
