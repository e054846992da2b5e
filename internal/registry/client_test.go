package registry

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/daimoniac/pkgwatch/internal/fetch"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(server *httptest.Server) *Client {
	fetcher := fetch.NewClient("registry",
		fetch.WithHTTPClient(server.Client()),
		fetch.WithMaxRetries(0),
		fetch.WithRetryInterval(time.Millisecond, time.Millisecond))
	return NewClient(Config{BaseURL: server.URL}, testLogger(), WithFetcher(fetcher))
}

func TestPackagesByMaintainer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/watch_by_maintainer" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("maintainer_nickname") != "alice" || r.URL.Query().Get("by_acl") != "none" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"packages": [
			{"pkg_name": "foo", "old_version": "1.0", "new_version": "2.1", "repology_name": "foo", "url": "https://example.org/foo", "date_update": "2025-02-01"},
			{"pkg_name": "", "old_version": "1.0", "new_version": "1.1", "repology_name": "nameless"},
			{"pkg_name": "orphan", "old_version": "1.0", "new_version": "1.1"},
			{"pkg_name": "python3-module-bar", "old_version": "0.1", "new_version": "0.2", "repology_name": "python:bar"}
		]}`))
	}))
	defer server.Close()

	packages := newTestClient(server).PackagesByMaintainer(context.Background(), "alice")

	if len(packages) != 2 {
		t.Fatalf("len(packages) = %d, want 2 (malformed skipped)", len(packages))
	}
	foo := packages[0]
	if foo.RegistryName != "foo" || foo.NewVersion != "2.1" || foo.AggregatorName != "foo" ||
		foo.UpdateURL != "https://example.org/foo" || foo.UpdateDate != "2025-02-01" || foo.OldVersion != "1.0" {
		t.Errorf("unexpected package: %+v", foo)
	}
	if packages[1].AggregatorName != "python:bar" {
		t.Errorf("unexpected second package: %+v", packages[1])
	}
}

func TestPackagesByMaintainer_FailureYieldsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	packages := newTestClient(server).PackagesByMaintainer(context.Background(), "alice")
	if packages == nil || len(packages) != 0 {
		t.Errorf("expected empty non-nil result, got %#v", packages)
	}
}

func TestFindEquivalentName(t *testing.T) {
	tests := []struct {
		name          string
		aggregator    string
		known         map[string]string
		failing       map[string]bool
		wantName      string
		wantFound     bool
		wantRequested []string
	}{
		{
			name:          "python prefix hits first candidate",
			aggregator:    "python:xdoctest",
			known:         map[string]string{"python3-module-xdoctest": "python3-module-xdoctest"},
			wantName:      "python3-module-xdoctest",
			wantFound:     true,
			wantRequested: []string{"python3-module-xdoctest"},
		},
		{
			name:          "python prefix falls back to base",
			aggregator:    "python:xdoctest",
			known:         map[string]string{"xdoctest": "xdoctest"},
			wantName:      "xdoctest",
			wantFound:     true,
			wantRequested: []string{"python3-module-xdoctest", "xdoctest"},
		},
		{
			name:          "perl prefix",
			aggregator:    "perl:json-xs",
			known:         map[string]string{"perl-json-xs": "perl-JSON-XS"},
			wantName:      "perl-JSON-XS",
			wantFound:     true,
			wantRequested: []string{"perl-json-xs"},
		},
		{
			name:          "plain name",
			aggregator:    "curl",
			known:         map[string]string{"curl": "curl"},
			wantName:      "curl",
			wantFound:     true,
			wantRequested: []string{"curl"},
		},
		{
			name:          "error on first candidate is skipped",
			aggregator:    "python:requests",
			known:         map[string]string{"requests": "requests"},
			failing:       map[string]bool{"python3-module-requests": true},
			wantName:      "requests",
			wantFound:     true,
			wantRequested: []string{"python3-module-requests", "requests"},
		},
		{
			name:          "nothing found",
			aggregator:    "python:nothing",
			wantFound:     false,
			wantRequested: []string{"python3-module-nothing", "nothing"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var mu sync.Mutex
			var requested []string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				name := r.URL.Query().Get("name")
				if r.URL.Query().Get("branch") != "sisyphus" {
					t.Errorf("branch = %q, want sisyphus", r.URL.Query().Get("branch"))
				}
				mu.Lock()
				requested = append(requested, name)
				mu.Unlock()

				if tt.failing[name] {
					w.WriteHeader(http.StatusInternalServerError)
					return
				}
				if found, ok := tt.known[name]; ok {
					_, _ = w.Write([]byte(`{"packages": [{"name": "` + found + `"}]}`))
					return
				}
				_, _ = w.Write([]byte(`{"packages": []}`))
			}))
			defer server.Close()

			got, found := newTestClient(server).FindEquivalentName(context.Background(), tt.aggregator, "")
			if got != tt.wantName || found != tt.wantFound {
				t.Errorf("FindEquivalentName() = %q, %v; want %q, %v", got, found, tt.wantName, tt.wantFound)
			}
			if len(requested) != len(tt.wantRequested) {
				t.Fatalf("requested %v, want %v", requested, tt.wantRequested)
			}
			for i := range requested {
				if requested[i] != tt.wantRequested[i] {
					t.Errorf("request %d = %q, want %q", i, requested[i], tt.wantRequested[i])
				}
			}
		})
	}
}

func TestMaintainerExists(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		want        Existence
		wantAllowed bool
	}{
		{name: "ok", status: http.StatusOK, want: Exists, wantAllowed: true},
		{name: "not found", status: http.StatusNotFound, want: NotFound, wantAllowed: false},
		{name: "server error", status: http.StatusInternalServerError, want: UnknownTreatedAsExists, wantAllowed: true},
		{name: "forbidden", status: http.StatusForbidden, want: UnknownTreatedAsExists, wantAllowed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"packages": []}`))
			}))
			defer server.Close()

			got := newTestClient(server).MaintainerExists(context.Background(), "alice")
			if got != tt.want {
				t.Errorf("MaintainerExists() = %v, want %v", got, tt.want)
			}
			if got.Allowed() != tt.wantAllowed {
				t.Errorf("Allowed() = %v, want %v", got.Allowed(), tt.wantAllowed)
			}
		})
	}
}

func TestMaintainerExists_TransportErrorFailsOpen(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL
	server.Close()

	fetcher := fetch.NewClient("registry", fetch.WithHTTPClient(&http.Client{Timeout: time.Second}))
	client := NewClient(Config{BaseURL: baseURL}, testLogger(), WithFetcher(fetcher))

	if got := client.MaintainerExists(context.Background(), "alice"); got != UnknownTreatedAsExists {
		t.Errorf("MaintainerExists() = %v, want UnknownTreatedAsExists", got)
	}
}

func TestSearchPackages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("name") {
		case "missing":
			w.WriteHeader(http.StatusNotFound)
		case "down":
			w.WriteHeader(http.StatusBadGateway)
		default:
			_, _ = w.Write([]byte(`{"packages": [
				{"name": "foo", "maintainer": "alice", "summary": "Foo", "url": "https://foo", "versions": [
					{"branch": "p10", "version": "1.0", "release": "alt1"},
					{"branch": "sisyphus", "version": "2.0", "release": "alt1"}
				]},
				{"name": "foo", "versions": [{"branch": "sisyphus", "version": "9.9"}]},
				{"name": "", "versions": [{"branch": "sisyphus", "version": "1"}]},
				{"name": "foo-e2k", "versions": [{"branch": "Sisyphus_E2K", "version": "1.5", "release": "alt2"}]},
				{"name": "foo-old", "versions": [{"branch": "p9", "version": "0.1"}]},
				{"name": "foo-extra", "versions": [{"branch": "sisyphus", "version": "3.0"}]}
			]}`))
		}
	}))
	defer server.Close()

	client := newTestClient(server)
	ctx := context.Background()

	results, err := client.SearchPackages(ctx, "foo", 0)
	if err != nil {
		t.Fatalf("SearchPackages() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3: %+v", len(results), results)
	}
	if results[0].Name != "foo" || results[0].Version != "2.0" || results[0].Branch != "sisyphus" || results[0].Maintainer != "alice" {
		t.Errorf("unexpected first result: %+v", results[0])
	}
	if results[1].Name != "foo-e2k" || results[1].Branch != "Sisyphus_E2K" {
		t.Errorf("expected sisyphus variant fallback, got %+v", results[1])
	}

	limited, err := client.SearchPackages(ctx, "foo", 1)
	if err != nil || len(limited) != 1 {
		t.Errorf("limit not applied: %d, %v", len(limited), err)
	}

	for _, q := range []string{"missing", "down"} {
		results, err := client.SearchPackages(ctx, q, 0)
		if err != nil || results == nil || len(results) != 0 {
			t.Errorf("SearchPackages(%q) = %v, %v; want empty, nil", q, results, err)
		}
	}
}

func TestPackageDetails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/package/foo":
			if r.URL.Query().Get("branch") != "p10" {
				t.Errorf("branch = %q, want p10", r.URL.Query().Get("branch"))
			}
			_, _ = w.Write([]byte(`{"version": "1.0", "release": "alt1", "epoch": 2, "arch": "x86_64",
				"maintainer": {"nickname": "alice", "name": "Alice"}, "license": "MIT", "source_rpm": "foo-1.0-alt1.src.rpm"}`))
		case "/package/bar":
			_, _ = w.Write([]byte(`{"name": "bar", "version": "3.0", "maintainer": "bob", "branch": "sisyphus"}`))
		case "/package/garbage":
			_, _ = w.Write([]byte(`<html>`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := newTestClient(server)
	ctx := context.Background()

	details, err := client.PackageDetails(ctx, "foo", "p10")
	if err != nil || details == nil {
		t.Fatalf("PackageDetails() = %v, %v", details, err)
	}
	if details.Name != "foo" || details.Branch != "p10" || details.Epoch != 2 || details.Maintainer != "alice" || details.SourceRPM != "foo-1.0-alt1.src.rpm" {
		t.Errorf("unexpected details: %+v", details)
	}

	bar, err := client.PackageDetails(ctx, "bar", "")
	if err != nil || bar == nil || bar.Maintainer != "bob" || bar.Epoch != 0 {
		t.Errorf("unexpected bar details: %+v, %v", bar, err)
	}

	missing, err := client.PackageDetails(ctx, "missing", "")
	if err != nil || missing != nil {
		t.Errorf("PackageDetails(missing) = %v, %v; want nil, nil", missing, err)
	}

	if _, err := client.PackageDetails(ctx, "garbage", ""); err == nil {
		t.Error("expected decode error")
	}
}
