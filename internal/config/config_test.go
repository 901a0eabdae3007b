package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServiceName != "whitelist-api" || cfg.HTTP.Port != 8080 || cfg.HTTP.ReadTimeout != 5*time.Second {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Storage.Driver != "memory" || cfg.RegistryBackend() != "memory" {
		t.Errorf("storage defaults: driver=%q backend=%q", cfg.Storage.Driver, cfg.RegistryBackend())
	}
	if cfg.Grant.Cost != 100 || cfg.Grant.MinDuration != time.Hour || cfg.Grant.MaxDuration != 720*time.Hour {
		t.Errorf("grant defaults: %+v", cfg.Grant)
	}
	if cfg.Grant.ExtensionPolicy != "replace" {
		t.Errorf("extension policy: got %q", cfg.Grant.ExtensionPolicy)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 {
		t.Errorf("cors origins: %v", cfg.CORS.AllowedOrigins)
	}
}

func TestLoad_EnvOverridesAndAliases(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("WHITELIST_GRANT_COST", "250")
	t.Setenv("WHITELIST_GRANT_EXTENSION_POLICY", "Extend")
	t.Setenv("WHITELIST_REGISTRY_BACKEND", "redis")
	t.Setenv("PORT", "9090")
	t.Setenv("JWT_SECRET", "from-paas")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Grant.Cost != 250 {
		t.Errorf("grant.cost: got %d", cfg.Grant.Cost)
	}
	if cfg.Grant.ExtensionPolicy != "extend" {
		t.Errorf("extension policy: got %q", cfg.Grant.ExtensionPolicy)
	}
	if cfg.RegistryBackend() != "redis" {
		t.Errorf("registry backend: got %q", cfg.RegistryBackend())
	}
	if cfg.HTTP.Port != 9090 || cfg.HTTP.Addr() != "0.0.0.0:9090" {
		t.Errorf("port alias: got %d", cfg.HTTP.Port)
	}
	if cfg.Auth.JWTSecret != "from-paas" {
		t.Errorf("jwt secret alias: got %q", cfg.Auth.JWTSecret)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "whitelist.yaml")
	yaml := []byte("storage:\n  driver: postgres\ngrant:\n  max_duration: 48h\nhistory:\n  default_limit: 20\n")
	if err := os.WriteFile(path, yaml, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Driver != "postgres" || cfg.RegistryBackend() != "postgres" {
		t.Errorf("storage: %+v", cfg.Storage)
	}
	if cfg.Grant.MaxDuration != 48*time.Hour || cfg.History.DefaultLimit != 20 {
		t.Errorf("file values not applied: %+v %+v", cfg.Grant, cfg.History)
	}
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for a missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())
	base, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cases := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"unknown driver", func(c *AppConfig) { c.Storage.Driver = "sqlite" }},
		{"unknown backend", func(c *AppConfig) { c.Registry.Backend = "etcd" }},
		{"zero cost", func(c *AppConfig) { c.Grant.Cost = 0 }},
		{"min above max", func(c *AppConfig) { c.Grant.MinDuration = 800 * time.Hour }},
		{"unknown policy", func(c *AppConfig) { c.Grant.ExtensionPolicy = "add" }},
		{"zero max credit", func(c *AppConfig) { c.Coins.MaxCredit = 0 }},
		{"negative history limit", func(c *AppConfig) { c.History.DefaultLimit = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := *base
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
