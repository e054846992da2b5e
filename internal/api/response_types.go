package api

import (
	"time"

	"github.com/daimoniac/pkgwatch/internal/types"
)

// formatTime renders t as RFC 3339 in UTC.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// formatNullableTime converts a nullable time to RFC 3339 or nil.
func formatNullableTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := formatTime(*t)
	return &formatted
}

// PackageResponse is one merged package record with source attribution.
type PackageResponse struct {
	Name                    string   `json:"name"`
	Repository              string   `json:"repository"`
	InstalledVersion        string   `json:"installed_version"`
	Status                  string   `json:"status"`
	NewestVersion           string   `json:"newest_version,omitempty"`
	Source                  string   `json:"source"` // "registry" or "aggregator"
	AggregatorNewestVersion string   `json:"aggregator_newest_version,omitempty"`
	RegistryPackageName     string   `json:"registry_package_name,omitempty"`
	RegistryNewestVersion   string   `json:"registry_newest_version,omitempty"`
	RegistryUpdateURL       string   `json:"registry_update_url,omitempty"`
	RegistryUpdateDate      string   `json:"registry_update_date,omitempty"`
	PrefersRegistry         bool     `json:"prefers_registry"`
	Summary                 string   `json:"summary,omitempty"`
	Licenses                []string `json:"licenses,omitempty"`
	Categories              []string `json:"categories,omitempty"`
	SourceURL               string   `json:"source_url,omitempty"`
	AggregatorURL           string   `json:"aggregator_url"`
	PackageURL              string   `json:"purl,omitempty"`
}

// PackageListResponse is a page of a maintainer's merged package list.
type PackageListResponse struct {
	Identifier string            `json:"identifier"`
	Repo       string            `json:"repo,omitempty"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	PerPage    int               `json:"per_page"`
	Packages   []PackageResponse `json:"packages"`
}

// StatsResponse summarises a maintainer's package list.
type StatsResponse struct {
	Identifier         string  `json:"identifier"`
	Repo               string  `json:"repo,omitempty"`
	Total              int     `json:"total"`
	Outdated           int     `json:"outdated"`
	Newest             int     `json:"newest"`
	Other              int     `json:"other"`
	OutdatedPercentage float64 `json:"outdated_percentage"`
	LastCheck          *string `json:"last_check"` // RFC 3339 or null
}

// RefreshResponse reports the outcome of a manual refresh request.
type RefreshResponse struct {
	Identifier string `json:"identifier"`
	TaskID     string `json:"task_id,omitempty"`
	Enqueued   bool   `json:"enqueued"`
	Message    string `json:"message"`
}

// MaintainerExistenceResponse is the result of a registry maintainer lookup.
type MaintainerExistenceResponse struct {
	Nickname  string `json:"nickname"`
	Email     string `json:"email"`
	Existence string `json:"existence"` // exists, not_found or unknown
	Allowed   bool   `json:"allowed"`
}

// SubscriptionRequest creates a subscription.
type SubscriptionRequest struct {
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
}

// SubscriptionResponse is a stored subscription.
type SubscriptionResponse struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"user_id"`
	Nickname  string `json:"nickname"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
}

// NotificationResponse is one notification history row.
type NotificationResponse struct {
	ID            int64  `json:"id"`
	Identifier    string `json:"identifier"`
	OutdatedCount int    `json:"outdated_count"`
	NotifiedCount int    `json:"notified_count"`
	Kind          string `json:"kind"`
	SentAt        string `json:"sent_at"`
}

// PruneResponse reports how many cached rows were removed.
type PruneResponse struct {
	Removed   int64  `json:"removed"`
	Retention string `json:"retention"`
}

// ProjectResponse groups an aggregator project's records by repository.
type ProjectResponse struct {
	Project      string                        `json:"project"`
	Repositories map[string][]types.RepoRecord `json:"repositories"`
}

func toPackageResponse(r types.PackageRecord) PackageResponse {
	return PackageResponse{
		Name:                    r.Name,
		Repository:              r.Repository,
		InstalledVersion:        r.InstalledVersion,
		Status:                  string(r.Status),
		NewestVersion:           r.EffectiveNewestVersion(),
		Source:                  r.Source(),
		AggregatorNewestVersion: r.AggregatorNewestVersion,
		RegistryPackageName:     r.RegistryPackageName,
		RegistryNewestVersion:   r.RegistryNewestVersion,
		RegistryUpdateURL:       r.RegistryUpdateURL,
		RegistryUpdateDate:      r.RegistryUpdateDate,
		PrefersRegistry:         r.PrefersRegistry,
		Summary:                 r.Summary,
		Licenses:                r.Licenses,
		Categories:              r.Categories,
		SourceURL:               r.SourceURL,
		AggregatorURL:           r.AggregatorURL(),
		PackageURL:              r.PackageURL(),
	}
}

func toStatsResponse(s *types.Stats, repo string) StatsResponse {
	return StatsResponse{
		Identifier:         s.Identifier,
		Repo:               repo,
		Total:              s.Total,
		Outdated:           s.Outdated,
		Newest:             s.Newest,
		Other:              s.Other,
		OutdatedPercentage: s.OutdatedPercentage(),
		LastCheck:          formatNullableTime(s.LastCheck),
	}
}

func toSubscriptionResponse(s types.Subscription) SubscriptionResponse {
	return SubscriptionResponse{
		ID:        s.ID,
		UserID:    s.UserID,
		Nickname:  s.Nickname,
		Email:     s.Email,
		CreatedAt: formatTime(s.CreatedAt),
	}
}

func toNotificationResponse(n types.Notification) NotificationResponse {
	return NotificationResponse{
		ID:            n.ID,
		Identifier:    n.Identifier,
		OutdatedCount: n.OutdatedCount,
		NotifiedCount: n.NotifiedCount,
		Kind:          n.Kind,
		SentAt:        formatTime(n.SentAt),
	}
}
