package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-galaxie/internal/galaxie/coordinator"
	"github.com/nerrad567/gray-logic-galaxie/internal/galaxie/feed"
	"github.com/nerrad567/gray-logic-galaxie/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-galaxie/internal/infrastructure/logging"
)

// TestRun_InvalidConfig verifies run fails with a malformed config file.
func TestRun_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "galaxie.yaml")
	if err := os.WriteFile(path, []byte("site: [unterminated"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("GALAXIE_CONFIG", path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with invalid config")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("error = %v, want loading config", err)
	}
}

// TestRun_InvalidDatabasePath verifies run fails before connecting to MQTT
// when the database cannot be opened.
func TestRun_InvalidDatabasePath(t *testing.T) {
	tmpDir := t.TempDir()
	blocker := filepath.Join(tmpDir, "file")
	if err := os.WriteFile(blocker, nil, 0600); err != nil {
		t.Fatalf("failed to write blocker file: %v", err)
	}

	path := filepath.Join(tmpDir, "galaxie.yaml")
	content := `
site:
  id: test-site
database:
  path: "` + filepath.Join(blocker, "sub", "galaxie.db") + `"
logging:
  level: error
  format: text
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("GALAXIE_CONFIG", path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with an unusable database path")
	}
	if !strings.Contains(err.Error(), "database") {
		t.Errorf("error = %v, want a database error", err)
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("GALAXIE_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv("GALAXIE_CONFIG", "/etc/galaxie.yaml")
	if got := getConfigPath(); got != "/etc/galaxie.yaml" {
		t.Errorf("getConfigPath() = %q, want env value", got)
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"), logging.Discard())
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Galaxie.BaseURL != "https://galaxie.app" {
		t.Errorf("BaseURL = %q, want default", cfg.Galaxie.BaseURL)
	}
}

func TestStreamerFactory(t *testing.T) {
	fc, err := feed.New(feed.Options{BaseURL: "https://galaxie.app"})
	if err != nil {
		t.Fatalf("feed.New() error = %v", err)
	}
	defer fc.Close()

	factory := streamerFactory(fc, config.GalaxieConfig{UserAgent: "test"}, logging.Discard())
	s, err := factory(coordinator.StreamHandlers{})
	if err != nil {
		t.Fatalf("factory() error = %v", err)
	}
	if s.Connected() {
		t.Error("new streamer reports connected")
	}
	s.Stop()
}
