package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func resetEnv(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	for _, k := range append(keys, "PORT") {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	resetEnv(t)

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.ServerPort)
	}
	if cfg.StoreDriver != StoreMongo || cfg.CacheDriver != CacheLocal {
		t.Fatalf("unexpected drivers %q/%q", cfg.StoreDriver, cfg.CacheDriver)
	}
	if cfg.CacheTTL() != 5*time.Minute {
		t.Fatalf("expected 5 minute cache ttl, got %v", cfg.CacheTTL())
	}
	if cfg.TokenScheme != "beneficios" {
		t.Fatalf("unexpected token scheme %q", cfg.TokenScheme)
	}
}

func TestLoadConfigPortOverride(t *testing.T) {
	resetEnv(t)
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("PORT", "9100")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "9100" {
		t.Fatalf("expected PORT to take precedence, got %q", cfg.ServerPort)
	}
}

func TestLoadConfigReadsEnvFile(t *testing.T) {
	resetEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("STORE_DRIVER=Memory\nTOKEN_SCHEME=clubapp\n"), 0o600); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}
	t.Cleanup(func() {
		os.Unsetenv("STORE_DRIVER")
		os.Unsetenv("TOKEN_SCHEME")
	})

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.StoreDriver != StoreMemory {
		t.Fatalf("expected memory store from env file, got %q", cfg.StoreDriver)
	}
	if cfg.TokenScheme != "clubapp" {
		t.Fatalf("expected token scheme from env file, got %q", cfg.TokenScheme)
	}
}

func TestLoadConfigRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{name: "unknown store", env: map[string]string{"STORE_DRIVER": "sqlite"}, wantErr: "STORE_DRIVER"},
		{name: "unknown cache", env: map[string]string{"CACHE_DRIVER": "memcached"}, wantErr: "CACHE_DRIVER"},
		{name: "redis without url", env: map[string]string{"CACHE_DRIVER": "redis"}, wantErr: "REDIS_URL"},
		{name: "zero ttl", env: map[string]string{"CACHE_TTL_SECONDS": "0"}, wantErr: "CACHE_TTL_SECONDS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadConfig("")
			if err == nil {
				t.Fatalf("expected error mentioning %s", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error to mention %s, got %v", tt.wantErr, err)
			}
		})
	}
}
