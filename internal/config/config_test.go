package config

import (
	"context"
	"errors"
	"testing"
)

func TestNormalizeServiceURL(t *testing.T) {
	cases := map[string]string{
		"https://novorender.com/api":      "https://novorender.com/api",
		"https://Novorender.com/api/":     "https://novorender.com/api",
		"  HTTPS://example.com//  ":       "https://example.com",
		"https://café.example/api":        "https://xn--caf-dma.example/api",
		"http://127.0.0.1:8080/api/":      "http://127.0.0.1:8080/api",
		"http://[::1]:9000/":              "http://[::1]:9000",
		"https://example.com/api#section": "https://example.com/api",
	}
	for in, want := range cases {
		got, err := NormalizeServiceURL(in)
		if err != nil {
			t.Fatalf("NormalizeServiceURL(%q): unexpected error: %v", in, err)
		}
		if got != want {
			t.Fatalf("NormalizeServiceURL(%q)=%q; want %q", in, got, want)
		}
	}

	for _, bad := range []string{"", "ftp://example.com", "novorender.com/api", "https://", "https://exa mple.com"} {
		if _, err := NormalizeServiceURL(bad); !errors.Is(err, ErrInvalidServiceURL) {
			t.Fatalf("NormalizeServiceURL(%q) err=%v; want ErrInvalidServiceURL", bad, err)
		}
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ServiceURL != DefaultServiceURL || cfg.AuthHeader != DefaultAuthHeader {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.UploadConcurrency != 16 || cfg.BlockSize != 1048576 || cfg.Timeout != DefaultTimeout {
		t.Fatalf("numeric defaults not applied: %+v", cfg)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("SCENE_DATA_SERVICE_URL", "https://Scenes.Example.com/api/")
	t.Setenv("SCENE_DATA_AUTH_TOKEN", "Bearer abc")
	t.Setenv("SCENE_DATA_TIMEOUT", "30s")
	t.Setenv("SCENE_DATA_UPLOAD_CONCURRENCY", "4")
	t.Setenv("SCENE_DATA_METRICS_ADDR", ":9090")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ServiceURL != "https://scenes.example.com/api" {
		t.Fatalf("service url=%q", cfg.ServiceURL)
	}
	if cfg.Timeout.String() != "30s" || cfg.UploadConcurrency != 4 || cfg.MetricsAddr != ":9090" {
		t.Fatalf("env not applied: %+v", cfg)
	}
	name, value, err := cfg.AuthProvider()(context.Background())
	if err != nil || name != "Authorization" || value != "Bearer abc" {
		t.Fatalf("auth provider = %q %q %v", name, value, err)
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("SCENE_DATA_UPLOAD_CONCURRENCY", "0")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error for zero concurrency")
	}
	t.Setenv("SCENE_DATA_UPLOAD_CONCURRENCY", "2")
	t.Setenv("SCENE_DATA_SERVICE_URL", "not a url")
	if _, err := LoadConfig(); !errors.Is(err, ErrInvalidServiceURL) {
		t.Fatalf("err=%v; want ErrInvalidServiceURL", err)
	}
}
