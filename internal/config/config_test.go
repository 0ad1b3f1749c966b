package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.properties")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "storage.data.dir=./mydata\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.MaxRetries != 3 {
		t.Errorf("HTTP.MaxRetries = %d, want default 3", cfg.HTTP.MaxRetries)
	}
	if cfg.ThreadPool.CoreSize != 4 {
		t.Errorf("ThreadPool.CoreSize = %d, want default 4", cfg.ThreadPool.CoreSize)
	}
	if cfg.Storage.DataDir != "./mydata" {
		t.Errorf("Storage.DataDir = %q, want %q", cfg.Storage.DataDir, "./mydata")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, "http.max.retries=7\nthread.pool.max.size=32\napprise_urls=http://a,http://b\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.MaxRetries != 7 {
		t.Errorf("HTTP.MaxRetries = %d, want 7", cfg.HTTP.MaxRetries)
	}
	if cfg.ThreadPool.MaxSize != 32 {
		t.Errorf("ThreadPool.MaxSize = %d, want 32", cfg.ThreadPool.MaxSize)
	}
	if len(cfg.AppriseURLs) != 2 || cfg.AppriseURLs[0] != "http://a" || cfg.AppriseURLs[1] != "http://b" {
		t.Errorf("AppriseURLs = %v, want [http://a http://b]", cfg.AppriseURLs)
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.properties")); err == nil {
		t.Error("Load on missing file: want error")
	}
}
