package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/daimoniac/pkgwatch/internal/config"
	"github.com/daimoniac/pkgwatch/internal/errors"
	"github.com/daimoniac/pkgwatch/internal/queue"
	"github.com/daimoniac/pkgwatch/internal/registry"
	"github.com/daimoniac/pkgwatch/internal/statestore"
	"github.com/daimoniac/pkgwatch/internal/types"
)

const (
	defaultPerPage = 50
	maxPerPage     = 500
)

// pathIdentifier returns the {identifier} path value, or "" if it is not a
// plausible maintainer identifier.
func pathIdentifier(r *http.Request) string {
	id := strings.TrimSpace(r.PathValue("identifier"))
	if id == "" || strings.ContainsAny(id, " /") {
		return ""
	}
	return id
}

// handleListPackages returns a maintainer's merged package list
// @Summary List maintainer packages
// @Description Merged aggregator and registry records for a maintainer, with source attribution.
// @Description Fresh cached data is served unless refresh is set.
// @Tags Maintainers
// @Produce json
// @Param identifier path string true "Maintainer identifier (e.g. alice@altlinux.org)"
// @Param repo query string false "Restrict to one repository"
// @Param refresh query boolean false "Bypass the cache"
// @Param outdated query boolean false "Only outdated packages"
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Page size" default(50)
// @Success 200 {object} PackageListResponse
// @Failure 400 {object} map[string]string "Invalid identifier"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Security BearerAuth
// @Router /maintainers/{identifier}/packages [get]
func (s *APIServer) handleListPackages(w http.ResponseWriter, r *http.Request) {
	identifier := pathIdentifier(r)
	if identifier == "" {
		s.respondError(w, http.StatusBadRequest, "Invalid maintainer identifier")
		return
	}

	repo := parseQueryParam(r, "repo")
	records, err := s.checker.GetPackages(r.Context(), identifier, repo, parseQueryParamBool(r, "refresh"))
	if err != nil {
		s.logger.Error("failed to get packages", "identifier", identifier, "error", err.Error())
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to get packages: %v", err))
		return
	}

	if parseQueryParamBool(r, "outdated") {
		filtered := make([]types.PackageRecord, 0, len(records))
		for _, rec := range records {
			if rec.IsOutdated() {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}

	page := parseQueryParamInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	perPage := parseQueryParamInt(r, "per_page", defaultPerPage)
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	start := (page - 1) * perPage
	if start > len(records) {
		start = len(records)
	}
	end := start + perPage
	if end > len(records) {
		end = len(records)
	}

	packages := make([]PackageResponse, 0, end-start)
	for _, rec := range records[start:end] {
		packages = append(packages, toPackageResponse(rec))
	}

	s.respondJSON(w, http.StatusOK, PackageListResponse{
		Identifier: identifier,
		Repo:       repo,
		Total:      len(records),
		Page:       page,
		PerPage:    perPage,
		Packages:   packages,
	})
}

// handleGetStats returns package counts by status
// @Summary Maintainer statistics
// @Description Counts of outdated, newest and other packages for a maintainer
// @Tags Maintainers
// @Produce json
// @Param identifier path string true "Maintainer identifier"
// @Param repo query string false "Restrict to one repository"
// @Success 200 {object} StatsResponse
// @Failure 400 {object} map[string]string "Invalid identifier"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Security BearerAuth
// @Router /maintainers/{identifier}/stats [get]
func (s *APIServer) handleGetStats(w http.ResponseWriter, r *http.Request) {
	identifier := pathIdentifier(r)
	if identifier == "" {
		s.respondError(w, http.StatusBadRequest, "Invalid maintainer identifier")
		return
	}

	repo := parseQueryParam(r, "repo")
	stats, err := s.checker.GetStats(r.Context(), identifier, repo)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to get stats: %v", err))
		return
	}

	s.respondJSON(w, http.StatusOK, toStatsResponse(stats, repo))
}

// handleTriggerRefresh enqueues a manual refresh for a maintainer
// @Summary Trigger refresh
// @Description Queue a manual refresh. The worker refreshes both upstreams and records a manual notification.
// @Tags Maintainers
// @Produce json
// @Param identifier path string true "Maintainer identifier"
// @Param repo query string false "Restrict the outdated report to one repository"
// @Success 202 {object} RefreshResponse
// @Failure 400 {object} map[string]string "Invalid identifier"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Read-only mode"
// @Failure 500 {object} map[string]string "Internal server error"
// @Security BearerAuth
// @Router /maintainers/{identifier}/refresh [post]
func (s *APIServer) handleTriggerRefresh(w http.ResponseWriter, r *http.Request) {
	identifier := pathIdentifier(r)
	if identifier == "" {
		s.respondError(w, http.StatusBadRequest, "Invalid maintainer identifier")
		return
	}

	repo := parseQueryParam(r, "repo")
	if repo == "" {
		if m := s.settings.GetMaintainer(identifier); m != nil {
			repo = m.Repo
		}
	}

	task := queue.NewRefreshTask(identifier, repo, types.NotificationManual)
	if p := s.settings.GetPolicyFor(identifier); p != nil {
		task.Policy = p.Expression
	}

	enqueued, err := s.taskQueue.Enqueue(r.Context(), task)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to enqueue refresh: %v", err))
		return
	}

	resp := RefreshResponse{Identifier: identifier, Enqueued: enqueued}
	if enqueued {
		resp.TaskID = task.ID
		resp.Message = "refresh queued"
		s.logger.Info("manual refresh queued", "identifier", identifier, "task_id", task.ID)
	} else {
		resp.Message = "refresh already pending"
	}
	s.respondJSON(w, http.StatusAccepted, resp)
}

// handleGetProject returns aggregator project details
// @Summary Aggregator project
// @Description All repository records the aggregator knows for a project
// @Tags Upstreams
// @Produce json
// @Param name path string true "Aggregator project name"
// @Success 200 {object} ProjectResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Project not found"
// @Failure 502 {object} map[string]string "Upstream error"
// @Security BearerAuth
// @Router /aggregator/projects/{name} [get]
func (s *APIServer) handleGetProject(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		s.respondError(w, http.StatusBadRequest, "Project name is required")
		return
	}

	byRepo, err := s.aggregator.ProjectInfo(r.Context(), name)
	if err != nil {
		s.respondError(w, http.StatusBadGateway, fmt.Sprintf("Failed to fetch project: %v", err))
		return
	}
	if len(byRepo) == 0 {
		s.respondError(w, http.StatusNotFound, "Project not found")
		return
	}

	s.respondJSON(w, http.StatusOK, ProjectResponse{Project: name, Repositories: byRepo})
}

// handleSearchRegistry searches registry packages
// @Summary Search registry
// @Description Search registry packages by full or partial name
// @Tags Upstreams
// @Produce json
// @Param q query string true "Search query"
// @Param limit query int false "Maximum number of results" default(50)
// @Success 200 {array} types.RegistrySummary
// @Failure 400 {object} map[string]string "Missing query"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 502 {object} map[string]string "Upstream error"
// @Security BearerAuth
// @Router /registry/search [get]
func (s *APIServer) handleSearchRegistry(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(parseQueryParam(r, "q"))
	if query == "" {
		s.respondError(w, http.StatusBadRequest, "Query parameter q is required")
		return
	}

	results, err := s.registry.SearchPackages(r.Context(), query, parseQueryParamInt(r, "limit", registry.DefaultSearchLimit))
	if err != nil {
		s.respondError(w, http.StatusBadGateway, fmt.Sprintf("Failed to search registry: %v", err))
		return
	}

	s.respondJSON(w, http.StatusOK, results)
}

// handleGetRegistryPackage returns registry package details
// @Summary Registry package
// @Description Details of a registry package on a branch
// @Tags Upstreams
// @Produce json
// @Param name path string true "Registry package name"
// @Param branch query string false "Branch (defaults to the configured branch)"
// @Success 200 {object} types.RegistryDetails
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Package not found"
// @Failure 502 {object} map[string]string "Upstream error"
// @Security BearerAuth
// @Router /registry/packages/{name} [get]
func (s *APIServer) handleGetRegistryPackage(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	details, err := s.registry.PackageDetails(r.Context(), name, parseQueryParam(r, "branch"))
	if err != nil {
		s.respondError(w, http.StatusBadGateway, fmt.Sprintf("Failed to fetch package: %v", err))
		return
	}
	if details == nil {
		s.respondError(w, http.StatusNotFound, "Package not found")
		return
	}

	s.respondJSON(w, http.StatusOK, details)
}

// handleGetRegistryMaintainer reports whether the registry knows a maintainer
// @Summary Registry maintainer lookup
// @Description Three-valued existence check. "unknown" means the registry could not answer.
// @Tags Upstreams
// @Produce json
// @Param nickname path string true "Registry nickname"
// @Success 200 {object} MaintainerExistenceResponse
// @Failure 400 {object} map[string]string "Invalid nickname"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Security BearerAuth
// @Router /registry/maintainers/{nickname} [get]
func (s *APIServer) handleGetRegistryMaintainer(w http.ResponseWriter, r *http.Request) {
	nickname := r.PathValue("nickname")
	if !types.ValidNickname(nickname) {
		s.respondError(w, http.StatusBadRequest, "Invalid maintainer nickname")
		return
	}

	existence := s.registry.MaintainerExists(r.Context(), nickname)
	s.respondJSON(w, http.StatusOK, MaintainerExistenceResponse{
		Nickname:  nickname,
		Email:     types.EmailForNickname(nickname),
		Existence: existence.String(),
		Allowed:   existence.Allowed(),
	})
}

// handleListSubscriptions lists a user's subscriptions
// @Summary List subscriptions
// @Description Subscriptions of one user, or all subscriptions when user_id is omitted
// @Tags Subscriptions
// @Produce json
// @Param user_id query int false "User ID"
// @Success 200 {array} SubscriptionResponse
// @Failure 400 {object} map[string]string "Invalid user ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Security BearerAuth
// @Router /subscriptions [get]
func (s *APIServer) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	var (
		subs []types.Subscription
		err  error
	)

	if raw := parseQueryParam(r, "user_id"); raw != "" {
		userID, parseErr := strconv.ParseInt(raw, 10, 64)
		if parseErr != nil {
			s.respondError(w, http.StatusBadRequest, "Invalid user_id")
			return
		}
		subs, err = s.store.ListSubscriptions(r.Context(), userID)
	} else {
		subs, err = s.store.ListAllSubscriptions(r.Context())
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to list subscriptions: %v", err))
		return
	}

	resp := make([]SubscriptionResponse, 0, len(subs))
	for _, sub := range subs {
		resp = append(resp, toSubscriptionResponse(sub))
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// handleCreateSubscription subscribes a user to a maintainer
// @Summary Create subscription
// @Description Subscribe a user to a registry maintainer. The nickname is checked against the registry;
// @Description when the registry cannot answer the subscription is accepted.
// @Tags Subscriptions
// @Accept json
// @Produce json
// @Param request body SubscriptionRequest true "Subscription"
// @Success 201 {object} SubscriptionResponse
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Read-only mode"
// @Failure 404 {object} map[string]string "Maintainer not found"
// @Failure 409 {object} map[string]string "Already subscribed"
// @Failure 500 {object} map[string]string "Internal server error"
// @Security BearerAuth
// @Router /subscriptions [post]
func (s *APIServer) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req SubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Nickname = strings.ToLower(strings.TrimSpace(req.Nickname))
	if req.UserID <= 0 {
		s.respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if !types.ValidNickname(req.Nickname) {
		s.respondError(w, http.StatusBadRequest, "Invalid maintainer nickname")
		return
	}

	switch existence := s.registry.MaintainerExists(r.Context(), req.Nickname); existence {
	case registry.NotFound:
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("Maintainer %s not found in registry", req.Nickname))
		return
	case registry.UnknownTreatedAsExists:
		s.logger.Warn("registry unavailable, accepting subscription without verification",
			"nickname", req.Nickname,
			"user_id", req.UserID)
	}

	sub, err := s.store.AddSubscription(r.Context(), req.UserID, req.Nickname)
	if err != nil {
		switch {
		case errors.Is(err, statestore.ErrSubscriptionExists):
			s.respondError(w, http.StatusConflict, "Already subscribed")
		case errors.Is(err, errors.ErrInvalidInput):
			s.respondError(w, http.StatusBadRequest, err.Error())
		default:
			s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to add subscription: %v", err))
		}
		return
	}

	s.logger.Info("subscription added", "user_id", sub.UserID, "nickname", sub.Nickname)
	s.respondJSON(w, http.StatusCreated, toSubscriptionResponse(*sub))
}

// handleDeleteSubscription removes a subscription
// @Summary Delete subscription
// @Tags Subscriptions
// @Produce json
// @Param id path int true "Subscription ID"
// @Param user_id query int true "Owner user ID"
// @Success 204 "Deleted"
// @Failure 400 {object} map[string]string "Invalid ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Read-only mode"
// @Failure 404 {object} map[string]string "Subscription not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Security BearerAuth
// @Router /subscriptions/{id} [delete]
func (s *APIServer) handleDeleteSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.respondError(w, http.StatusBadRequest, "Invalid subscription id")
		return
	}
	userID, err := strconv.ParseInt(parseQueryParam(r, "user_id"), 10, 64)
	if err != nil || userID <= 0 {
		s.respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	if err := s.store.RemoveSubscription(r.Context(), userID, id); err != nil {
		if errors.Is(err, statestore.ErrSubscriptionNotFound) {
			s.respondError(w, http.StatusNotFound, "Subscription not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to remove subscription: %v", err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleListNotifications returns the notification history
// @Summary Notification history
// @Tags Notifications
// @Produce json
// @Param identifier query string false "Filter by maintainer identifier"
// @Param limit query int false "Maximum number of results" default(100)
// @Success 200 {array} NotificationResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Security BearerAuth
// @Router /notifications [get]
func (s *APIServer) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	limit := parseQueryParamInt(r, "limit", 100)
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	rows, err := s.store.ListNotifications(r.Context(), parseQueryParam(r, "identifier"), limit)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to list notifications: %v", err))
		return
	}

	resp := make([]NotificationResponse, 0, len(rows))
	for _, n := range rows {
		resp = append(resp, toNotificationResponse(n))
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// handlePruneCache removes stale cache rows
// @Summary Prune cache
// @Description Remove cached records older than the retention window
// @Tags Maintenance
// @Produce json
// @Param retention query string false "Retention window, e.g. 7d or 12h (defaults to the configured retention)"
// @Success 200 {object} PruneResponse
// @Failure 400 {object} map[string]string "Invalid retention"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Read-only mode"
// @Failure 500 {object} map[string]string "Internal server error"
// @Security BearerAuth
// @Router /cache/prune [post]
func (s *APIServer) handlePruneCache(w http.ResponseWriter, r *http.Request) {
	retention := s.retention
	if raw := parseQueryParam(r, "retention"); raw != "" {
		d, err := config.ParseInterval(raw)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		retention = d
	}

	removed, err := s.checker.Prune(r.Context(), retention)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to prune cache: %v", err))
		return
	}

	s.respondJSON(w, http.StatusOK, PruneResponse{Removed: removed, Retention: retention.String()})
}

// handleHealth provides health check endpoint
// @Summary Health check
// @Description Component health of the service
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health [get]
func (s *APIServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		s.health.ServeHTTP(w, r)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
