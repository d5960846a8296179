package main

import (
	"context"
	"path/filepath"
	"testing"

	"viewtube/internal/storage"
)

func TestSlug(t *testing.T) {
	if got := slug("Late night synth session"); got != "late-night-synth-session" {
		t.Fatalf("unexpected slug %q", got)
	}
	if got := slug("Uploading your first video!"); got != "uploading-your-first-video" {
		t.Fatalf("unexpected slug %q", got)
	}
}

func TestPlantIsIdempotent(t *testing.T) {
	store, err := storage.NewStorage(filepath.Join(t.TempDir(), "store.json"))
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	ctx := context.Background()

	fixture := fixtures[0]
	planted := 0
	if err := plant(ctx, store, fixture, "test-seed", &planted); err != nil {
		t.Fatalf("first plant: %v", err)
	}
	if planted != len(fixture.videos) {
		t.Fatalf("expected %d planted videos, got %d", len(fixture.videos), planted)
	}

	planted = 0
	if err := plant(ctx, store, fixture, "test-seed", &planted); err != nil {
		t.Fatalf("second plant: %v", err)
	}
	if planted != 0 {
		t.Fatalf("second run should plant nothing, got %d", planted)
	}

	removed, err := store.DeleteVideosBySeedTag(ctx, "test-seed")
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if len(removed) != len(fixture.videos) {
		t.Fatalf("expected %d purged videos, got %d", len(fixture.videos), len(removed))
	}
}
