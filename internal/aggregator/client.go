// Package aggregator is the client for the cross-distribution version tracker
// (Repology API v1).
package aggregator

import (
	"context"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/daimoniac/pkgwatch/internal/errors"
	"github.com/daimoniac/pkgwatch/internal/fetch"
	"github.com/daimoniac/pkgwatch/internal/observability"
	"github.com/daimoniac/pkgwatch/internal/types"
	"github.com/daimoniac/pkgwatch/internal/version"
)

// DefaultBaseURL is the public Repology API.
const DefaultBaseURL = "https://repology.org/api/v1"

// Config holds aggregator client settings.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit time.Duration
	UserAgent string
}

// apiPackage is one repository entry as returned by the aggregator.
type apiPackage struct {
	Repo        string   `json:"repo"`
	SubRepo     string   `json:"subrepo"`
	SrcName     string   `json:"srcname"`
	BinName     string   `json:"binname"`
	VisibleName string   `json:"visiblename"`
	Version     string   `json:"version"`
	OrigVersion string   `json:"origversion"`
	Status      string   `json:"status"`
	Summary     string   `json:"summary"`
	Maintainers []string `json:"maintainers"`
	Licenses    []string `json:"licenses"`
	Categories  []string `json:"categories"`
	SrcURL      string   `json:"srcurl"`
}

func (p apiPackage) toRepoRecord() types.RepoRecord {
	return types.RepoRecord{
		Repo:        p.Repo,
		Version:     p.Version,
		Status:      types.ParseStatus(p.Status),
		Maintainers: p.Maintainers,
		Summary:     p.Summary,
		Licenses:    p.Licenses,
		Categories:  p.Categories,
		SourceURL:   p.SrcURL,
	}
}

// Client queries the aggregator. Every request passes through the client's RateGate.
type Client struct {
	baseURL string
	fetcher *fetch.Client
	gate    *RateGate
	cmp     version.Comparator
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithComparator sets the version ordering used for NewestVersion.
func WithComparator(cmp version.Comparator) Option {
	return func(c *Client) {
		c.cmp = cmp
	}
}

// WithFetcher replaces the HTTP client.
func WithFetcher(f *fetch.Client) Option {
	return func(c *Client) {
		c.fetcher = f
	}
}

// WithRateGate replaces the rate gate, for sharing one gate between clients.
func WithRateGate(g *RateGate) Option {
	return func(c *Client) {
		c.gate = g
	}
}

// NewClient creates an aggregator client.
func NewClient(cfg Config, logger *slog.Logger, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = DefaultRateDelay
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		gate:    NewRateGate(cfg.RateLimit),
		cmp:     version.Default,
		logger:  logger.With("component", "aggregator"),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.fetcher == nil {
		// Retries would bypass the rate gate
		c.fetcher = fetch.NewClient("aggregator",
			fetch.WithMaxRetries(0),
			fetch.WithTimeout(cfg.Timeout),
			fetch.WithUserAgent(cfg.UserAgent),
			fetch.WithLogger(c.logger))
	}

	return c
}

// FetchByMaintainer returns the maintainer's projects, each carrying only the
// records listing identifier as maintainer (and matching repo when set).
// Failures are logged and yield an empty result.
func (c *Client) FetchByMaintainer(ctx context.Context, identifier, repo string) []types.ProjectGroup {
	query := url.Values{}
	query.Set("maintainer", identifier)
	if repo != "" {
		query.Set("inrepo", repo)
	}
	endpoint := c.baseURL + "/projects/?" + query.Encode()

	var payload map[string][]apiPackage
	if err := c.get(ctx, endpoint, &payload); err != nil {
		c.logger.Error("failed to fetch projects by maintainer",
			"identifier", identifier,
			"repo", repo,
			"error", err.Error())
		return []types.ProjectGroup{}
	}

	groups := make([]types.ProjectGroup, 0, len(payload))
	recordCount := 0
	for project, packages := range payload {
		all := make([]types.RepoRecord, 0, len(packages))
		for _, p := range packages {
			all = append(all, p.toRepoRecord())
		}

		// Newest is decided before filtering so other distributions count.
		newest := NewestVersion(all, c.cmp)

		var kept []types.RepoRecord
		for _, rec := range all {
			if !rec.HasMaintainer(identifier) {
				continue
			}
			if repo != "" && rec.Repo != repo {
				continue
			}
			kept = append(kept, rec)
		}
		if len(kept) == 0 {
			continue
		}

		recordCount += len(kept)
		groups = append(groups, types.ProjectGroup{
			ProjectName:   project,
			NewestVersion: newest,
			Records:       kept,
		})
	}

	sort.Slice(groups, func(i, j int) bool {
		return groups[i].ProjectName < groups[j].ProjectName
	})

	observability.GetMetrics().UpstreamRecords.WithLabelValues("aggregator").Add(float64(recordCount))
	c.logger.Info("fetched aggregator projects",
		"identifier", identifier,
		"repo", repo,
		"projects", len(groups),
		"records", recordCount)

	return groups
}

// ProjectInfo returns every repository's records for project, keyed by repository.
// An unknown project yields nil and no error.
func (c *Client) ProjectInfo(ctx context.Context, project string) (map[string][]types.RepoRecord, error) {
	endpoint := c.baseURL + "/project/" + url.PathEscape(project)

	var payload []apiPackage
	if err := c.get(ctx, endpoint, &payload); err != nil {
		if errors.IsNotFound(err) {
			c.logger.Debug("project not found", "project", project)
			return nil, nil
		}
		return nil, err
	}

	if len(payload) == 0 {
		return nil, nil
	}

	byRepo := make(map[string][]types.RepoRecord)
	for _, p := range payload {
		byRepo[p.Repo] = append(byRepo[p.Repo], p.toRepoRecord())
	}

	c.logger.Debug("fetched project info", "project", project, "repositories", len(byRepo))
	return byRepo, nil
}

// BreakerStates exposes the circuit breaker state per upstream host.
func (c *Client) BreakerStates() map[string]string {
	return c.fetcher.BreakerStates()
}

func (c *Client) get(ctx context.Context, endpoint string, out interface{}) error {
	if err := c.gate.Acquire(ctx); err != nil {
		return err
	}
	return c.fetcher.GetJSON(ctx, endpoint, out)
}
