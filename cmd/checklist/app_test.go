package main

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/c360studio/checklist/client"
	"github.com/c360studio/checklist/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// freeAddr reserves a loopback port and releases it for the test to bind.
func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.StoragePath = t.TempDir()
	cfg.Platforms[0]["http_addr"] = freeAddr(t)
	return cfg
}

func TestNewApp(t *testing.T) {
	app, err := NewApp(testConfig(t), discardLogger(), false)
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}

	if app.runtime == nil {
		t.Error("runtime not initialized")
	}
	if got := app.registry.ListPlatforms(); len(got) != 1 || got[0] != config.DefaultPlatform {
		t.Errorf("unexpected platforms %v", got)
	}
}

func TestNewAppWithBridge(t *testing.T) {
	if _, err := NewApp(testConfig(t), discardLogger(), true); err != nil {
		t.Fatalf("failed to create app with bridge: %v", err)
	}

	cfg := testConfig(t)
	cfg.Bridge.Pin = "123"
	if _, err := NewApp(cfg, discardLogger(), true); err == nil {
		t.Error("expected error for invalid pin")
	}
}

func TestPlatformConfigs(t *testing.T) {
	cfg := testConfig(t)
	cfg.Platforms[0]["watch"] = true

	app, err := NewApp(cfg, discardLogger(), false)
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}

	pcs, err := app.PlatformConfigs()
	if err != nil {
		t.Fatalf("PlatformConfigs: %v", err)
	}
	if len(pcs) != 1 {
		t.Fatalf("expected 1 platform, got %d", len(pcs))
	}
	if pcs[0].Platform != config.DefaultPlatform {
		t.Errorf("platform = %q", pcs[0].Platform)
	}
	if !strings.Contains(string(pcs[0].Raw), `"watch":true`) {
		t.Errorf("raw config missing watch: %s", pcs[0].Raw)
	}
}

func TestAppRunServesChecklist(t *testing.T) {
	cfg := testConfig(t)
	addr := cfg.Platforms[0]["http_addr"].(string)

	app, err := NewApp(cfg, discardLogger(), false)
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- app.Run(ctx)
	}()

	c := client.New("http://" + addr)
	var lastErr error
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		got, err := c.Get(ctx)
		if err == nil {
			if len(got) != 0 {
				t.Errorf("expected empty checklist, got %v", got)
			}
			lastErr = nil
			break
		}
		lastErr = err
		time.Sleep(20 * time.Millisecond)
	}
	if lastErr != nil {
		t.Fatalf("checklist API never came up: %v", lastErr)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned error: %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("app did not stop")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	cfg := testConfig(t)
	cfg.MetricsAddr = "127.0.0.1:0"

	app, err := NewApp(cfg, discardLogger(), false)
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}
	if err := app.startMetrics(); err != nil {
		t.Fatalf("start metrics: %v", err)
	}
	defer app.stopMetrics()

	resp, err := http.Get("http://" + app.metricsAddr + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Error("expected Go runtime metrics")
	}
}
