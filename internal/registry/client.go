// Package registry is the client for the distribution package database
// (ALT Linux RDB site API).
package registry

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/daimoniac/pkgwatch/internal/errors"
	"github.com/daimoniac/pkgwatch/internal/fetch"
	"github.com/daimoniac/pkgwatch/internal/observability"
	"github.com/daimoniac/pkgwatch/internal/types"
)

const (
	// DefaultBaseURL is the public RDB site API.
	DefaultBaseURL = "https://rdb.altlinux.org/api/site"

	// DefaultBranch is the development branch used for name lookups.
	DefaultBranch = "sisyphus"

	// DefaultSearchLimit caps SearchPackages results.
	DefaultSearchLimit = 50
)

// Config holds registry client settings.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	Branch    string
	UserAgent string
}

type watchResponse struct {
	Packages []watchPackage `json:"packages"`
}

type watchPackage struct {
	PkgName      string `json:"pkg_name"`
	OldVersion   string `json:"old_version"`
	NewVersion   string `json:"new_version"`
	RepologyName string `json:"repology_name"`
	URL          string `json:"url"`
	DateUpdate   string `json:"date_update"`
}

type findResponse struct {
	Packages []foundPackage `json:"packages"`
}

type foundPackage struct {
	Name       string         `json:"name"`
	Versions   []foundVersion `json:"versions"`
	Maintainer string         `json:"maintainer"`
	Summary    string         `json:"summary"`
	URL        string         `json:"url"`
}

type foundVersion struct {
	Branch  string `json:"branch"`
	Version string `json:"version"`
	Release string `json:"release"`
}

type detailsResponse struct {
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Release     string          `json:"release"`
	Epoch       *int            `json:"epoch"`
	Arch        string          `json:"arch"`
	Branch      string          `json:"branch"`
	Maintainer  json.RawMessage `json:"maintainer"`
	Summary     string          `json:"summary"`
	Description string          `json:"description"`
	License     string          `json:"license"`
	URL         string          `json:"url"`
	SourceRPM   string          `json:"source_rpm"`
	BuildTime   string          `json:"build_time"`
	Packager    string          `json:"packager"`
}

// Client queries the registry.
type Client struct {
	baseURL string
	branch  string
	fetcher *fetch.Client
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithFetcher replaces the HTTP client.
func WithFetcher(f *fetch.Client) Option {
	return func(c *Client) {
		c.fetcher = f
	}
}

// NewClient creates a registry client.
func NewClient(cfg Config, logger *slog.Logger, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Branch == "" {
		cfg.Branch = DefaultBranch
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		branch:  cfg.Branch,
		logger:  logger.With("component", "registry"),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.fetcher == nil {
		c.fetcher = fetch.NewClient("registry",
			fetch.WithTimeout(cfg.Timeout),
			fetch.WithUserAgent(cfg.UserAgent),
			fetch.WithLogger(c.logger))
	}

	return c
}

// Branch returns the default branch for name lookups.
func (c *Client) Branch() string {
	return c.branch
}

// PackagesByMaintainer returns the registry's outdated-package report for nickname.
// Entries without a registry or aggregator name are skipped. Failures yield an empty result.
func (c *Client) PackagesByMaintainer(ctx context.Context, nickname string) []types.RegistryPackage {
	endpoint := c.watchURL(nickname)

	var payload watchResponse
	if err := c.fetcher.GetJSON(ctx, endpoint, &payload); err != nil {
		c.logger.Error("failed to fetch registry packages",
			"nickname", nickname,
			"error", err.Error())
		return []types.RegistryPackage{}
	}

	packages := make([]types.RegistryPackage, 0, len(payload.Packages))
	for _, p := range payload.Packages {
		if p.PkgName == "" || p.RepologyName == "" {
			c.logger.Warn("skipping malformed registry entry",
				"nickname", nickname,
				"pkg_name", p.PkgName,
				"repology_name", p.RepologyName)
			continue
		}
		packages = append(packages, types.RegistryPackage{
			RegistryName:   p.PkgName,
			OldVersion:     p.OldVersion,
			NewVersion:     p.NewVersion,
			AggregatorName: p.RepologyName,
			UpdateURL:      p.URL,
			UpdateDate:     p.DateUpdate,
		})
	}

	observability.GetMetrics().UpstreamRecords.WithLabelValues("registry").Add(float64(len(packages)))
	c.logger.Info("fetched registry packages",
		"nickname", nickname,
		"packages", len(packages))

	return packages
}

// FindEquivalentName maps an aggregator project name onto a registry package name.
// Candidates are tried in strategy order and the first non-empty lookup wins.
// An empty branch means the client's default branch.
func (c *Client) FindEquivalentName(ctx context.Context, aggregatorName, branch string) (string, bool) {
	if branch == "" {
		branch = c.branch
	}

	for _, candidate := range CandidateNames(aggregatorName) {
		query := url.Values{}
		query.Set("name", candidate)
		query.Set("branch", branch)

		var payload findResponse
		if err := c.fetcher.GetJSON(ctx, c.baseURL+"/find_packages?"+query.Encode(), &payload); err != nil {
			c.logger.Debug("registry name lookup failed",
				"aggregator_name", aggregatorName,
				"candidate", candidate,
				"error", err.Error())
			continue
		}

		if len(payload.Packages) > 0 && payload.Packages[0].Name != "" {
			c.logger.Debug("found registry name",
				"aggregator_name", aggregatorName,
				"candidate", candidate,
				"registry_name", payload.Packages[0].Name)
			return payload.Packages[0].Name, true
		}
	}

	return "", false
}

// MaintainerExists checks whether the registry knows nickname.
// Anything other than a definite 200 or 404 is reported as UnknownTreatedAsExists.
func (c *Client) MaintainerExists(ctx context.Context, nickname string) Existence {
	status, err := c.fetcher.Probe(ctx, c.watchURL(nickname))
	if err != nil {
		c.logger.Error("failed to validate maintainer",
			"nickname", nickname,
			"error", err.Error())
		return UnknownTreatedAsExists
	}

	existence := existenceFromStatus(status)
	if existence == UnknownTreatedAsExists {
		c.logger.Warn("unexpected status validating maintainer",
			"nickname", nickname,
			"status", status)
	}
	return existence
}

// SearchPackages searches registry packages by full or partial name.
// Results are deduplicated by name and carry their sisyphus version; packages
// absent from sisyphus are skipped. A limit <= 0 means DefaultSearchLimit.
func (c *Client) SearchPackages(ctx context.Context, query string, limit int) ([]types.RegistrySummary, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	params := url.Values{}
	params.Set("name", query)

	var payload findResponse
	if err := c.fetcher.GetJSON(ctx, c.baseURL+"/find_packages?"+params.Encode(), &payload); err != nil {
		if errors.IsNotFound(err) {
			return []types.RegistrySummary{}, nil
		}
		if errors.IsTransient(err) {
			c.logger.Error("registry search failed", "query", query, "error", err.Error())
			return []types.RegistrySummary{}, nil
		}
		return nil, err
	}

	results := make([]types.RegistrySummary, 0)
	seen := make(map[string]bool)
	for _, p := range payload.Packages {
		if p.Name == "" || seen[p.Name] {
			continue
		}
		seen[p.Name] = true

		v, ok := sisyphusVersion(p.Versions)
		if !ok {
			continue
		}

		results = append(results, types.RegistrySummary{
			Name:       p.Name,
			Version:    v.Version,
			Release:    v.Release,
			Branch:     v.Branch,
			Maintainer: p.Maintainer,
			Summary:    p.Summary,
			URL:        p.URL,
		})
		if len(results) >= limit {
			break
		}
	}

	c.logger.Info("registry search", "query", query, "results", len(results))
	return results, nil
}

// PackageDetails returns a package's details on branch, or nil if it is unknown
// or the registry is unreachable.
func (c *Client) PackageDetails(ctx context.Context, name, branch string) (*types.RegistryDetails, error) {
	if branch == "" {
		branch = c.branch
	}

	params := url.Values{}
	params.Set("branch", branch)
	endpoint := c.baseURL + "/package/" + url.PathEscape(name) + "?" + params.Encode()

	var payload detailsResponse
	if err := c.fetcher.GetJSON(ctx, endpoint, &payload); err != nil {
		if errors.IsNotFound(err) {
			c.logger.Debug("registry package not found", "name", name, "branch", branch)
			return nil, nil
		}
		if errors.IsTransient(err) {
			c.logger.Error("registry package details failed", "name", name, "error", err.Error())
			return nil, nil
		}
		return nil, err
	}

	details := &types.RegistryDetails{
		Name:        payload.Name,
		Version:     payload.Version,
		Release:     payload.Release,
		Arch:        payload.Arch,
		Branch:      payload.Branch,
		Maintainer:  maintainerName(payload.Maintainer),
		Summary:     payload.Summary,
		Description: payload.Description,
		License:     payload.License,
		URL:         payload.URL,
		SourceRPM:   payload.SourceRPM,
		BuildTime:   payload.BuildTime,
		Packager:    payload.Packager,
	}
	if details.Name == "" {
		details.Name = name
	}
	if details.Branch == "" {
		details.Branch = branch
	}
	if payload.Epoch != nil {
		details.Epoch = *payload.Epoch
	}

	return details, nil
}

// BreakerStates exposes the circuit breaker state per upstream host.
func (c *Client) BreakerStates() map[string]string {
	return c.fetcher.BreakerStates()
}

func (c *Client) watchURL(nickname string) string {
	query := url.Values{}
	query.Set("maintainer_nickname", nickname)
	query.Set("by_acl", "none")
	return c.baseURL + "/watch_by_maintainer?" + query.Encode()
}

// sisyphusVersion prefers the exact sisyphus branch, then any branch mentioning it.
func sisyphusVersion(versions []foundVersion) (foundVersion, bool) {
	for _, v := range versions {
		if v.Branch == DefaultBranch {
			return v, true
		}
	}
	for _, v := range versions {
		if strings.Contains(strings.ToLower(v.Branch), DefaultBranch) {
			return v, true
		}
	}
	return foundVersion{}, false
}

// maintainerName accepts either a plain string or an object with a nickname or name.
func maintainerName(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var obj struct {
		Nickname string `json:"nickname"`
		Name     string `json:"name"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.Nickname != "" {
			return obj.Nickname
		}
		return obj.Name
	}

	return ""
}
