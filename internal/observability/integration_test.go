package observability

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestObservabilityServerIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	logger := NewLogger("error")
	healthChecker := NewHealthChecker(logger)
	healthChecker.UpdateComponentHealth("test", StatusHealthy, "")

	GetMetrics().CacheHits.Inc()

	metricsPort := 19190
	healthPort := 18181
	server := NewServer(metricsPort, healthPort, logger, healthChecker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_ = server.Start(ctx)
	}()

	time.Sleep(100 * time.Millisecond)

	t.Run("metrics endpoint", func(t *testing.T) {
		resp, err := http.Get(fmt.Sprintf("http://localhost:%d/metrics", metricsPort))
		if err != nil {
			t.Fatalf("failed to get metrics: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected status 200, got %d", resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatalf("failed to read response: %v", err)
		}
		if !strings.Contains(string(body), "pkgwatch_cache_hits_total") {
			t.Error("expected pkgwatch metrics in response")
		}
	})

	for _, path := range []string{"/health", "/ready"} {
		t.Run(path, func(t *testing.T) {
			resp, err := http.Get(fmt.Sprintf("http://localhost:%d%s", healthPort, path))
			if err != nil {
				t.Fatalf("failed to get %s: %v", path, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				t.Errorf("expected status 200, got %d", resp.StatusCode)
			}
		})
	}

	cancel()
	time.Sleep(100 * time.Millisecond)
}

func TestObservabilityServerSharedPort(t *testing.T) {
	hc := NewHealthChecker(NewLogger("error"))
	s := NewServer(19191, 19191, NewLogger("error"), hc)

	if len(s.servers) != 1 {
		t.Errorf("expected a single listener, got %d", len(s.servers))
	}
}
