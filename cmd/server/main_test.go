package main

import (
	"testing"
	"time"
)

func TestResolveStorageDriverDefaultsToPostgresWithDSN(t *testing.T) {
	driver, err := resolveStorageDriver("", "", "postgres://example")
	if err != nil {
		t.Fatalf("resolveStorageDriver returned error: %v", err)
	}
	if driver != "postgres" {
		t.Fatalf("expected postgres driver, got %q", driver)
	}
}

func TestResolveStorageDriverFallsBackToJSON(t *testing.T) {
	driver, err := resolveStorageDriver("", "", "")
	if err != nil {
		t.Fatalf("resolveStorageDriver returned error: %v", err)
	}
	if driver != "json" {
		t.Fatalf("expected json driver, got %q", driver)
	}
}

func TestResolveStorageDriverHonoursExplicitFlag(t *testing.T) {
	driver, err := resolveStorageDriver("JSON", "postgres", "postgres://example")
	if err != nil {
		t.Fatalf("resolveStorageDriver returned error: %v", err)
	}
	if driver != "json" {
		t.Fatalf("expected flag to win, got %q", driver)
	}
}

func TestValidateProductionDatastore(t *testing.T) {
	if err := validateProductionDatastore("json", ""); err == nil {
		t.Fatal("expected json driver to be rejected in production")
	}
	if err := validateProductionDatastore("postgres", ""); err == nil {
		t.Fatal("expected missing DSN to be rejected in production")
	}
	if err := validateProductionDatastore("postgres", "postgres://example"); err != nil {
		t.Fatalf("expected valid production config, got %v", err)
	}
}

func TestModeValueAndListenAddr(t *testing.T) {
	if mode := modeValue("", ""); mode != "development" {
		t.Fatalf("expected development default, got %q", mode)
	}
	if mode := modeValue(" Production ", ""); mode != "production" {
		t.Fatalf("expected trimmed lowercase mode, got %q", mode)
	}
	if addr := resolveListenAddr("", "production", ""); addr != ":80" {
		t.Fatalf("expected :80 for production, got %q", addr)
	}
	if addr := resolveListenAddr("", "development", ""); addr != ":8080" {
		t.Fatalf("expected :8080 for development, got %q", addr)
	}
	if addr := resolveListenAddr(":9999", "production", ":7777"); addr != ":9999" {
		t.Fatalf("expected the flag to win, got %q", addr)
	}
}

func TestResolveDataPathDefault(t *testing.T) {
	if path := resolveDataPath("", ""); path != "data/store.json" {
		t.Fatalf("unexpected default data path %q", path)
	}
	if path := resolveDataPath("custom.json", "env.json"); path != "custom.json" {
		t.Fatalf("expected the flag to win, got %q", path)
	}
}

func TestResolveDurationFallback(t *testing.T) {
	if d := resolveDuration(0, "VIEWTUBE_TEST_UNSET_DURATION", time.Minute); d != time.Minute {
		t.Fatalf("expected fallback, got %v", d)
	}
	if d := resolveDuration(2*time.Second, "VIEWTUBE_TEST_UNSET_DURATION", time.Minute); d != 2*time.Second {
		t.Fatalf("expected flag value, got %v", d)
	}
}

func TestSplitAndTrim(t *testing.T) {
	got := splitAndTrim(" https://a.example , ,https://b.example ")
	if len(got) != 2 || got[0] != "https://a.example" || got[1] != "https://b.example" {
		t.Fatalf("unexpected result: %v", got)
	}
	if splitAndTrim("  ") != nil {
		t.Fatal("expected nil for blank input")
	}
}
