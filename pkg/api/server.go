package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/orato-app/orato/pkg/billing"
	"github.com/orato-app/orato/pkg/middleware"
	"github.com/orato-app/orato/pkg/observability"
	"github.com/orato-app/orato/pkg/plans"
	"github.com/orato-app/orato/pkg/usage"
	"github.com/orato-app/orato/pkg/users"
)

// Server holds the API router and its handlers.
type Server struct {
	router  *mux.Router
	logger  *observability.Logger
	metrics *observability.Metrics
}

// ServerConfig carries the dependencies for the API surface.
type ServerConfig struct {
	Users    users.Service
	Usage    usage.Service
	Resolver *billing.Resolver
	Catalog  *plans.Catalog
	Logger   *observability.Logger
	Metrics  *observability.Metrics

	// RateLimiter is optional; requests are unthrottled without it.
	RateLimiter *middleware.DistributedRateLimiter
}

// NewServer builds the router with all routes and middleware registered.
func NewServer(cfg ServerConfig) *Server {
	if cfg.Logger == nil {
		cfg.Logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	s := &Server{
		router:  mux.NewRouter(),
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}

	chain := []mux.MiddlewareFunc{
		middleware.RequestID,
		middleware.Recovery(cfg.Logger),
		middleware.Logging(cfg.Logger, cfg.Metrics),
	}
	if cfg.RateLimiter != nil {
		chain = append(chain, middleware.RateLimit(cfg.RateLimiter, cfg.Logger))
	}
	s.router.Use(chain...)

	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	NewUserHandlers(cfg.Users, cfg.Logger).RegisterRoutes(v1)
	NewBillingHandlers(cfg.Users, cfg.Resolver, cfg.Logger).RegisterRoutes(v1)
	NewUsageHandlers(cfg.Usage, cfg.Logger).RegisterRoutes(v1)
	NewPlanHandlers(cfg.Catalog).RegisterRoutes(v1)

	return s
}

// Router returns the underlying mux router.
func (s *Server) Router() *mux.Router {
	return s.router
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
