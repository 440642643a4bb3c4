package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != "38870" || cfg.CellSize != 10 || cfg.Roster != 5 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file to be written: %v", err)
	}
}

func TestLoadReadsFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"port":"9000","roster":3,"interval_ms":100}`), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CRUMBWAY_PORT", "9100")
	t.Setenv("CRUMBWAY_INTERVAL", "50ms")
	t.Setenv("CRUMBWAY_CORS_ORIGINS", "http://a.test, http://b.test")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != "9100" {
		t.Fatalf("env must override file port, got %s", cfg.Port)
	}
	if cfg.Roster != 3 {
		t.Fatalf("expected roster from file, got %d", cfg.Roster)
	}
	if cfg.Interval() != 50*time.Millisecond {
		t.Fatalf("expected 50ms interval, got %v", cfg.Interval())
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "http://b.test" {
		t.Fatalf("unexpected origins %v", cfg.CORSOrigins)
	}
	// 文件未设置的字段保留默认值
	if cfg.Width != 800 {
		t.Fatalf("expected default width, got %v", cfg.Width)
	}
}

func TestLoadRejectsBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte("{not json"), 0o644)
	if _, err := Load(path); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestBadIntervalKeepsFileValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte(`{"interval_ms":300}`), 0o644)
	t.Setenv("CRUMBWAY_INTERVAL", "soon")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.IntervalMs != 300 {
		t.Fatalf("expected 300ms, got %d", cfg.IntervalMs)
	}
}
