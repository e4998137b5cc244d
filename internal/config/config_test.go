package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.HTTPAddr != ":8081" {
		t.Fatalf("expected default http addr, got %s", cfg.App.HTTPAddr)
	}
	if cfg.App.PageSize != 10 {
		t.Fatalf("expected default page size 10, got %d", cfg.App.PageSize)
	}
}

func TestLoad_FileWithPartialFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{"app": {"http_addr": ":9090"}}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.HTTPAddr != ":9090" {
		t.Fatalf("expected file value, got %s", cfg.App.HTTPAddr)
	}
	if cfg.App.LogLevel != "info" {
		t.Fatalf("expected default log level, got %s", cfg.App.LogLevel)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("APP_HTTP_ADDR", ":7070")
	t.Setenv("JWT_SECRET", "env_secret")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.HTTPAddr != ":7070" {
		t.Fatalf("expected env override, got %s", cfg.App.HTTPAddr)
	}
	if cfg.Security.JWTSecret != "env_secret" {
		t.Fatalf("expected env jwt secret, got %s", cfg.Security.JWTSecret)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}
