package config

import (
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: "8080",
		},
		Auth: AuthConfig{
			JWTSecret: "test-secret",
			TokenTTL:  time.Hour,
		},
		Storage: StorageConfig{
			PostgresURL: "postgres://localhost:5432/coursehub?sslmode=disable",
		},
	}
}

func TestValidate(t *testing.T) {
	t.Run("valid config passes", func(t *testing.T) {
		if err := validConfig().Validate(); err != nil {
			t.Fatalf("expected valid config, got %v", err)
		}
	})

	t.Run("empty JWT secret fails", func(t *testing.T) {
		cfg := validConfig()
		cfg.Auth.JWTSecret = ""
		if err := cfg.Validate(); err == nil {
			t.Fatal("expected error for empty JWT secret")
		}
	})

	t.Run("non-positive token TTL fails", func(t *testing.T) {
		cfg := validConfig()
		cfg.Auth.TokenTTL = 0
		if err := cfg.Validate(); err == nil {
			t.Fatal("expected error for zero token TTL")
		}
	})

	t.Run("bad postgres URL scheme fails", func(t *testing.T) {
		cfg := validConfig()
		cfg.Storage.PostgresURL = "mysql://localhost:3306/coursehub"
		if err := cfg.Validate(); err == nil {
			t.Fatal("expected error for non-postgres URL")
		}
	})

	t.Run("invalid port fails", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.Port = "not-a-port"
		if err := cfg.Validate(); err == nil {
			t.Fatal("expected error for invalid port")
		}
	})
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("COURSEHUB_JWT_SECRET", "test-secret")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Auth.TokenTTL != 24*time.Hour {
		t.Errorf("expected default token TTL 24h, got %v", cfg.Auth.TokenTTL)
	}
	if cfg.Storage.RedisURL != "" {
		t.Errorf("expected redis disabled by default, got %s", cfg.Storage.RedisURL)
	}
}

func TestLoadConfigRequiresSecret(t *testing.T) {
	t.Setenv("COURSEHUB_JWT_SECRET", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected LoadConfig to fail without COURSEHUB_JWT_SECRET")
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("COURSEHUB_TEST_INT", "42")
	t.Setenv("COURSEHUB_TEST_DUR", "90s")
	t.Setenv("COURSEHUB_TEST_BOOL", "true")

	if got := getEnvInt("COURSEHUB_TEST_INT", 0); got != 42 {
		t.Errorf("getEnvInt = %d, want 42", got)
	}
	if got := getEnvDuration("COURSEHUB_TEST_DUR", 0); got != 90*time.Second {
		t.Errorf("getEnvDuration = %v, want 90s", got)
	}
	if got := getEnvBool("COURSEHUB_TEST_BOOL", false); !got {
		t.Error("getEnvBool = false, want true")
	}
	if got := getEnvInt("COURSEHUB_TEST_MISSING", 7); got != 7 {
		t.Errorf("getEnvInt default = %d, want 7", got)
	}
}
