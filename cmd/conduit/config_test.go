package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.BasePath != "/conduit" {
		t.Errorf("BasePath = %q", cfg.BasePath)
	}
	if cfg.Concurrency != 10 || cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("conduit defaults not applied: %+v", cfg.Config.Config)
	}
}

func TestLoadConfigEnvAndFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "conduit.yaml")
	content := "addr: \":9000\"\nconcurrency: 3\ncall_timeout: 2s\nbase_path: /int\n"
	if err := os.WriteFile(file, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CONDUIT_CONCURRENCY", "7")

	cfg, err := loadConfig(file)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Addr != ":9000" || cfg.BasePath != "/int" {
		t.Errorf("file values not applied: addr=%q base=%q", cfg.Addr, cfg.BasePath)
	}
	if cfg.CallTimeout != 2*time.Second {
		t.Errorf("CallTimeout = %v", cfg.CallTimeout)
	}
	if cfg.Concurrency != 7 {
		t.Errorf("env should win over file: Concurrency = %d", cfg.Concurrency)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
