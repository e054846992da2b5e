package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/daimoniac/pkgwatch/internal/api/docs" // swagger spec registration
	"github.com/daimoniac/pkgwatch/internal/config"
	"github.com/daimoniac/pkgwatch/internal/queue"
	"github.com/daimoniac/pkgwatch/internal/registry"
	"github.com/daimoniac/pkgwatch/internal/statestore"
	"github.com/daimoniac/pkgwatch/internal/types"
)

// @title pkgwatch API
// @version 1.0
// @description REST API for checking which packages a maintainer ships out of date, managing
// @description maintainer subscriptions and browsing the package registry.
// @description
// @description ## Features
// @description - Merged aggregator and registry package lists with source attribution
// @description - Per-maintainer statistics and manual refresh
// @description - Registry search, package details and maintainer lookup
// @description - Subscriptions and notification history

// @contact.name pkgwatch
// @license.name Apache 2.0
// @license.url https://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Enter your API key (with or without "Bearer " prefix)

// Checker is the package checker surface used by the API.
type Checker interface {
	GetPackages(ctx context.Context, identifier, repo string, forceRefresh bool) ([]types.PackageRecord, error)
	GetStats(ctx context.Context, identifier, repo string) (*types.Stats, error)
	Prune(ctx context.Context, retention time.Duration) (int64, error)
}

// ProjectLookup fetches aggregator project details.
type ProjectLookup interface {
	ProjectInfo(ctx context.Context, project string) (map[string][]types.RepoRecord, error)
}

// RegistryLookup covers the registry endpoints exposed by the API.
type RegistryLookup interface {
	SearchPackages(ctx context.Context, query string, limit int) ([]types.RegistrySummary, error)
	PackageDetails(ctx context.Context, name, branch string) (*types.RegistryDetails, error)
	MaintainerExists(ctx context.Context, nickname string) registry.Existence
}

// Store is the persistence surface used by the API.
type Store interface {
	statestore.SubscriptionStore
	statestore.NotificationStore
}

// Dependencies bundles the collaborators of the API server.
type Dependencies struct {
	Checker    Checker
	Aggregator ProjectLookup
	Registry   RegistryLookup
	Store      Store
	Queue      queue.TaskQueue
	Settings   *config.Settings
	Retention  time.Duration
	Health     http.Handler // optional, served on /health
}

// APIServer provides HTTP API for querying package state and triggering operations
type APIServer struct {
	config     *config.APIConfig
	checker    Checker
	aggregator ProjectLookup
	registry   RegistryLookup
	store      Store
	taskQueue  queue.TaskQueue
	settings   *config.Settings
	retention  time.Duration
	health     http.Handler
	router     *http.ServeMux
	server     *http.Server
	logger     *slog.Logger
}

// NewAPIServer creates a new API server instance
func NewAPIServer(cfg *config.APIConfig, deps Dependencies, logger *slog.Logger) *APIServer {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Settings == nil {
		deps.Settings = &config.Settings{}
	}
	if deps.Retention <= 0 {
		deps.Retention = 7 * 24 * time.Hour
	}

	api := &APIServer{
		config:     cfg,
		checker:    deps.Checker,
		aggregator: deps.Aggregator,
		registry:   deps.Registry,
		store:      deps.Store,
		taskQueue:  deps.Queue,
		settings:   deps.Settings,
		retention:  deps.Retention,
		health:     deps.Health,
		router:     http.NewServeMux(),
		logger:     logger,
	}

	api.setupRoutes()

	api.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      api.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // forced refreshes wait on both upstreams
		IdleTimeout:  60 * time.Second,
	}

	return api
}

// setupRoutes configures all API routes
func (s *APIServer) setupRoutes() {
	read := func(h http.HandlerFunc) http.HandlerFunc { return s.corsMiddleware(s.authMiddleware(h, false)) }
	write := func(h http.HandlerFunc) http.HandlerFunc { return s.corsMiddleware(s.authMiddleware(h, true)) }

	// Maintainer endpoints
	s.router.HandleFunc("GET /api/v1/maintainers/{identifier}/packages", read(s.handleListPackages))
	s.router.HandleFunc("GET /api/v1/maintainers/{identifier}/stats", read(s.handleGetStats))
	s.router.HandleFunc("POST /api/v1/maintainers/{identifier}/refresh", write(s.handleTriggerRefresh))

	// Upstream lookups
	s.router.HandleFunc("GET /api/v1/aggregator/projects/{name}", read(s.handleGetProject))
	s.router.HandleFunc("GET /api/v1/registry/search", read(s.handleSearchRegistry))
	s.router.HandleFunc("GET /api/v1/registry/packages/{name}", read(s.handleGetRegistryPackage))
	s.router.HandleFunc("GET /api/v1/registry/maintainers/{nickname}", read(s.handleGetRegistryMaintainer))

	// Subscriptions and history
	s.router.HandleFunc("GET /api/v1/subscriptions", read(s.handleListSubscriptions))
	s.router.HandleFunc("POST /api/v1/subscriptions", write(s.handleCreateSubscription))
	s.router.HandleFunc("DELETE /api/v1/subscriptions/{id}", write(s.handleDeleteSubscription))
	s.router.HandleFunc("GET /api/v1/notifications", read(s.handleListNotifications))

	// Maintenance
	s.router.HandleFunc("POST /api/v1/cache/prune", write(s.handlePruneCache))

	// Preflight requests for every API path
	s.router.HandleFunc("OPTIONS /api/v1/", s.corsMiddleware(func(w http.ResponseWriter, r *http.Request) {}))

	s.router.HandleFunc("GET /health", s.corsMiddleware(s.handleHealth))

	// Swagger documentation
	s.router.HandleFunc("/swagger/", httpSwagger.WrapHandler)

	// Redirect root to swagger
	s.router.HandleFunc("/", s.handleRootRedirect)
}

// corsMiddleware adds CORS headers to allow cross-origin requests
func (s *APIServer) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next(w, r)
	}
}

// authMiddleware provides optional API key authentication
// requireWrite indicates if this is a write operation that should be blocked in read-only mode
func (s *APIServer) authMiddleware(next http.HandlerFunc, requireWrite bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if requireWrite && s.config.ReadOnly {
			s.respondError(w, http.StatusForbidden, "API is in read-only mode")
			return
		}

		if s.config.APIKey != "" {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				s.respondError(w, http.StatusUnauthorized, "Authorization header required")
				return
			}

			// Accept both "Bearer <token>" and just "<token>"
			token := strings.TrimPrefix(authHeader, "Bearer ")
			if token != s.config.APIKey {
				s.respondError(w, http.StatusUnauthorized, "Invalid API key")
				return
			}
		}

		next(w, r)
	}
}

// Handler returns the router, for tests and embedding.
func (s *APIServer) Handler() http.Handler {
	return s.router
}

// Start starts the API server
func (s *APIServer) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.logger.Info("API server is disabled")
		return nil
	}

	s.logger.Info("starting API server",
		"port", s.config.Port,
		"read_only", s.config.ReadOnly,
		"auth", s.config.APIKey != "")

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("API server error",
				"error", err.Error())
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Info("shutting down API server")
	return s.server.Shutdown(shutdownCtx)
}

// Shutdown gracefully shuts down the API server
func (s *APIServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// respondJSON sends a JSON response
func (s *APIServer) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("error encoding JSON response",
			"error", err.Error())
	}
}

// respondError sends an error response
func (s *APIServer) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// parseQueryParam extracts a query parameter from the request
func parseQueryParam(r *http.Request, key string) string {
	return r.URL.Query().Get(key)
}

// parseQueryParamInt extracts an integer query parameter
func parseQueryParamInt(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}
	var intValue int
	if _, err := fmt.Sscanf(value, "%d", &intValue); err == nil {
		return intValue
	}
	return defaultValue
}

// parseQueryParamBool extracts a boolean query parameter
func parseQueryParamBool(r *http.Request, key string) bool {
	value := r.URL.Query().Get(key)
	return value == "true" || value == "1" || value == "yes"
}

// handleRootRedirect redirects / to /swagger/
func (s *APIServer) handleRootRedirect(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.respondError(w, http.StatusNotFound, "not found")
		return
	}
	http.Redirect(w, r, "/swagger/", http.StatusMovedPermanently)
}
