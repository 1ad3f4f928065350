package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/orato-app/orato/pkg/httputil"
	"github.com/orato-app/orato/pkg/observability"
	"github.com/orato-app/orato/pkg/usage"
	"github.com/orato-app/orato/pkg/users"
)

// UsageHandlers exposes usage reporting and event recording.
type UsageHandlers struct {
	usage  usage.Service
	logger *observability.Logger
}

// NewUsageHandlers creates a new UsageHandlers.
func NewUsageHandlers(usageSvc usage.Service, logger *observability.Logger) *UsageHandlers {
	return &UsageHandlers{usage: usageSvc, logger: logger}
}

// RegisterRoutes registers usage routes.
func (h *UsageHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/users/{id}/usage", h.GetUsage).Methods("GET")
	router.HandleFunc("/users/{id}/usage/events", h.RecordUsage).Methods("POST")
}

// GetUsage returns the user's word consumption for their current billing
// cycle. A cycle resolution failure is reported as an upstream error, never
// as zero usage.
func (h *UsageHandlers) GetUsage(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	report, err := h.usage.CurrentUsage(r.Context(), userID)
	if err != nil {
		var resolutionErr *usage.CycleResolutionError
		switch {
		case errors.Is(err, users.ErrUserNotFound):
			httputil.WriteNotFoundError(w, err.Error())
		case errors.As(err, &resolutionErr):
			h.logger.WithError(err).WithField("user_id", userID).Error("Usage report unavailable")
			httputil.WriteBadGateway(w, "failed to resolve billing cycle")
		default:
			h.logger.WithError(err).Error("Failed to build usage report")
			httputil.WriteInternalError(w, err)
		}
		return
	}

	httputil.WriteSuccess(w, report)
}

// RecordUsage appends a word usage event. With ?enforce=true the event is
// rejected when it would push the user past their word quota.
func (h *UsageHandlers) RecordUsage(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Words int64 `json:"words"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Words < 0 {
		httputil.WriteValidationError(w, "words must not be negative")
		return
	}

	enforce, err := httputil.ParseQueryBool(r, "enforce", false)
	if err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	if enforce {
		if err := h.usage.CheckWordQuota(r.Context(), userID, req.Words); err != nil {
			var quotaErr *usage.QuotaExceededError
			var resolutionErr *usage.CycleResolutionError
			switch {
			case errors.As(err, &quotaErr):
				httputil.WriteJSON(w, http.StatusTooManyRequests, map[string]interface{}{
					"error":      quotaErr.Error(),
					"plan":       quotaErr.PlanCode,
					"words_used": quotaErr.WordsUsed,
					"word_limit": quotaErr.WordLimit,
				})
			case errors.Is(err, users.ErrUserNotFound):
				httputil.WriteNotFoundError(w, err.Error())
			case errors.As(err, &resolutionErr):
				httputil.WriteBadGateway(w, "failed to resolve billing cycle")
			default:
				h.logger.WithError(err).Error("Quota check failed")
				httputil.WriteInternalError(w, err)
			}
			return
		}
	}

	event, err := h.usage.RecordUsage(r.Context(), userID, req.Words)
	if err != nil {
		h.logger.WithError(err).Error("Failed to record usage event")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteCreated(w, event)
}
