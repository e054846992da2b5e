package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/daimoniac/pkgwatch/internal/config"
	"github.com/daimoniac/pkgwatch/internal/observability"
	"github.com/daimoniac/pkgwatch/internal/queue"
	"github.com/daimoniac/pkgwatch/internal/registry"
	"github.com/daimoniac/pkgwatch/internal/statestore"
	"github.com/daimoniac/pkgwatch/internal/types"
)

// mockChecker serves canned package lists
type mockChecker struct {
	records      []types.PackageRecord
	stats        *types.Stats
	err          error
	forced       bool
	pruned       time.Duration
	pruneRemoved int64
}

func (m *mockChecker) GetPackages(ctx context.Context, identifier, repo string, forceRefresh bool) ([]types.PackageRecord, error) {
	m.forced = forceRefresh
	if m.err != nil {
		return nil, m.err
	}
	if repo == "" {
		return m.records, nil
	}
	var out []types.PackageRecord
	for _, r := range m.records {
		if r.Repository == repo {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockChecker) GetStats(ctx context.Context, identifier, repo string) (*types.Stats, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.stats != nil {
		return m.stats, nil
	}
	return &types.Stats{Identifier: identifier}, nil
}

func (m *mockChecker) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	m.pruned = retention
	return m.pruneRemoved, m.err
}

type mockAggregator struct {
	projects map[string]map[string][]types.RepoRecord
	err      error
}

func (m *mockAggregator) ProjectInfo(ctx context.Context, project string) (map[string][]types.RepoRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.projects[project], nil
}

type mockRegistry struct {
	existence registry.Existence
	results   []types.RegistrySummary
	details   map[string]*types.RegistryDetails
	lastLimit int
	err       error
}

func (m *mockRegistry) SearchPackages(ctx context.Context, query string, limit int) ([]types.RegistrySummary, error) {
	m.lastLimit = limit
	return m.results, m.err
}

func (m *mockRegistry) PackageDetails(ctx context.Context, name, branch string) (*types.RegistryDetails, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.details[name], nil
}

func (m *mockRegistry) MaintainerExists(ctx context.Context, nickname string) registry.Existence {
	return m.existence
}

// mockStore keeps subscriptions and notifications in memory
type mockStore struct {
	mu            sync.Mutex
	nextID        int64
	subs          []types.Subscription
	notifications []types.Notification
	err           error
}

func (m *mockStore) AddSubscription(ctx context.Context, userID int64, nickname string) (*types.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, s := range m.subs {
		if s.UserID == userID && s.Nickname == nickname {
			return nil, statestore.ErrSubscriptionExists
		}
	}
	m.nextID++
	sub := types.Subscription{
		ID:        m.nextID,
		UserID:    userID,
		Nickname:  nickname,
		Email:     types.EmailForNickname(nickname),
		CreatedAt: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
	}
	m.subs = append(m.subs, sub)
	return &sub, nil
}

func (m *mockStore) RemoveSubscription(ctx context.Context, userID int64, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.subs {
		if s.ID == id && s.UserID == userID {
			m.subs = append(m.subs[:i], m.subs[i+1:]...)
			return nil
		}
	}
	return statestore.ErrSubscriptionNotFound
}

func (m *mockStore) ListSubscriptions(ctx context.Context, userID int64) ([]types.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Subscription
	for _, s := range m.subs {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, m.err
}

func (m *mockStore) ListAllSubscriptions(ctx context.Context) ([]types.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]types.Subscription(nil), m.subs...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, m.err
}

func (m *mockStore) RecordNotification(ctx context.Context, n *types.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, *n)
	return nil
}

func (m *mockStore) ListNotifications(ctx context.Context, identifier string, limit int) ([]types.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Notification
	for _, n := range m.notifications {
		if identifier != "" && n.Identifier != identifier {
			continue
		}
		out = append(out, n)
		if len(out) == limit {
			break
		}
	}
	return out, m.err
}

type testServer struct {
	*APIServer
	checker    *mockChecker
	aggregator *mockAggregator
	registry   *mockRegistry
	store      *mockStore
	queue      *queue.InMemoryQueue
}

func newTestServer(t *testing.T, cfg *config.APIConfig) *testServer {
	t.Helper()
	if cfg == nil {
		cfg = &config.APIConfig{Enabled: true, Port: 8080}
	}
	ts := &testServer{
		checker:    &mockChecker{},
		aggregator: &mockAggregator{},
		registry:   &mockRegistry{},
		store:      &mockStore{},
		queue:      queue.NewInMemoryQueue(100),
	}
	t.Cleanup(func() { ts.queue.Close() })

	ts.APIServer = NewAPIServer(cfg, Dependencies{
		Checker:    ts.checker,
		Aggregator: ts.aggregator,
		Registry:   ts.registry,
		Store:      ts.store,
		Queue:      ts.queue,
		Settings: &config.Settings{
			Defaults: config.Defaults{Policy: &config.PolicyConfig{Expression: "true"}},
			Maintainers: []config.MaintainerEntry{
				{Nickname: "alice", Repo: "altsisyphus", Policy: &config.PolicyConfig{Expression: "prefersRegistry"}},
			},
		},
	}, observability.NewLogger("error"))
	return ts
}

func TestNewAPIServer(t *testing.T) {
	cfg := &config.APIConfig{Enabled: true, Port: 9999}
	ts := newTestServer(t, cfg)

	if ts.config != cfg {
		t.Error("Expected config to be set")
	}
	if ts.taskQueue != ts.queue {
		t.Error("Expected task queue to be set")
	}
	if ts.retention != 7*24*time.Hour {
		t.Errorf("retention = %v, want default of 7 days", ts.retention)
	}
	if ts.router == nil || ts.server == nil {
		t.Fatal("Expected router and HTTP server to be initialized")
	}
	if ts.server.Addr != ":9999" {
		t.Errorf("server addr = %q, want :9999", ts.server.Addr)
	}
}

func TestNewAPIServer_NilSettings(t *testing.T) {
	s := NewAPIServer(&config.APIConfig{Port: 8080}, Dependencies{}, nil)
	if s.settings == nil {
		t.Fatal("settings must default to an empty value")
	}
	if s.logger == nil {
		t.Fatal("logger must default")
	}
}

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name         string
		apiKey       string
		readOnly     bool
		header       string
		requireWrite bool
		wantStatus   int
	}{
		{name: "no key configured", wantStatus: http.StatusOK},
		{name: "valid bearer", apiKey: "k", header: "Bearer k", wantStatus: http.StatusOK},
		{name: "valid bare token", apiKey: "k", header: "k", wantStatus: http.StatusOK},
		{name: "invalid key", apiKey: "k", header: "Bearer nope", wantStatus: http.StatusUnauthorized},
		{name: "missing header", apiKey: "k", wantStatus: http.StatusUnauthorized},
		{name: "read-only read", readOnly: true, wantStatus: http.StatusOK},
		{name: "read-only write", readOnly: true, requireWrite: true, wantStatus: http.StatusForbidden},
		{name: "read-only write before auth", apiKey: "k", readOnly: true, requireWrite: true, wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, &config.APIConfig{Enabled: true, Port: 8080, APIKey: tt.apiKey, ReadOnly: tt.readOnly})

			req := httptest.NewRequest(http.MethodGet, "/api/v1/subscriptions", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			handler := ts.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}, tt.requireWrite)
			handler(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestRoutes_ReadOnlyBlocksWrites(t *testing.T) {
	ts := newTestServer(t, &config.APIConfig{Enabled: true, Port: 8080, ReadOnly: true})

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/v1/maintainers/alice@altlinux.org/refresh"},
		{http.MethodPost, "/api/v1/subscriptions"},
		{http.MethodDelete, "/api/v1/subscriptions/1?user_id=1"},
		{http.MethodPost, "/api/v1/cache/prune"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			ts.Handler().ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			if w.Code != http.StatusForbidden {
				t.Errorf("status = %d, want 403", w.Code)
			}
		})
	}

	if depth, _ := ts.queue.GetQueueDepth(context.Background()); depth != 0 {
		t.Errorf("read-only server enqueued %d tasks", depth)
	}
}

func TestRoutes_ReadEndpoints(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name string
		path string
	}{
		{"Packages", "/api/v1/maintainers/alice@altlinux.org/packages"},
		{"Stats", "/api/v1/maintainers/alice@altlinux.org/stats"},
		{"Subscriptions", "/api/v1/subscriptions"},
		{"Notifications", "/api/v1/notifications"},
		{"RegistryMaintainer", "/api/v1/registry/maintainers/alice"},
		{"Health", "/health"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			ts.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if w.Code != http.StatusOK {
				t.Errorf("status = %d, want 200: %s", w.Code, w.Body.String())
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
		})
	}
}

func TestRoutes_WrongMethodFallsThrough(t *testing.T) {
	ts := newTestServer(t, nil)

	w := httptest.NewRecorder()
	ts.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/maintainers/alice@altlinux.org/refresh", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if depth, _ := ts.queue.GetQueueDepth(context.Background()); depth != 0 {
		t.Errorf("GET must not enqueue, depth = %d", depth)
	}
}

func TestCORSMiddleware(t *testing.T) {
	ts := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/subscriptions", nil)
	w := httptest.NewRecorder()
	ts.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}

	w = httptest.NewRecorder()
	ts.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil))
	if got := w.Header().Get("Access-Control-Allow-Methods"); got == "" {
		t.Error("CORS headers missing on regular request")
	}
}

func TestRootRedirect(t *testing.T) {
	ts := newTestServer(t, nil)

	w := httptest.NewRecorder()
	ts.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusMovedPermanently {
		t.Fatalf("status = %d, want 301", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/swagger/" {
		t.Errorf("Location = %q", loc)
	}

	w = httptest.NewRecorder()
	ts.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown path status = %d, want 404", w.Code)
	}
}

func TestStart_Disabled(t *testing.T) {
	ts := newTestServer(t, &config.APIConfig{Enabled: false, Port: 8080})
	if err := ts.Start(context.Background()); err != nil {
		t.Errorf("Start() on disabled server = %v", err)
	}
}

func TestParseQueryParams(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?page=3&bad=x&flag=1&off=false", nil)

	if got := parseQueryParamInt(req, "page", 1); got != 3 {
		t.Errorf("page = %d", got)
	}
	if got := parseQueryParamInt(req, "bad", 7); got != 7 {
		t.Errorf("bad = %d, want default", got)
	}
	if got := parseQueryParamInt(req, "missing", 5); got != 5 {
		t.Errorf("missing = %d, want default", got)
	}
	if !parseQueryParamBool(req, "flag") {
		t.Error("flag=1 should be true")
	}
	if parseQueryParamBool(req, "off") || parseQueryParamBool(req, "missing") {
		t.Error("false and missing flags should be false")
	}
}
