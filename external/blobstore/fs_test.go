package blobstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/carewire/consultscribe/internal/blobstore"
)

func TestFSStore_PutWritesChunkUnderSessionDir(t *testing.T) {
	root := t.TempDir()
	store, err := NewFSStore(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	locator, err := store.Put(context.Background(), "session-1", 7, []byte("audio-bytes"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if filepath.Dir(locator) != filepath.Join(root, "session-1") {
		t.Fatalf("locator outside session dir: %s", locator)
	}
	if ok, _ := regexp.MatchString(`^chunk-000007-[0-9a-f]{8}\.bin$`, filepath.Base(locator)); !ok {
		t.Fatalf("unexpected locator name: %s", filepath.Base(locator))
	}

	data, err := os.ReadFile(locator)
	if err != nil {
		t.Fatalf("failed to read written chunk: %v", err)
	}
	if string(data) != "audio-bytes" {
		t.Fatalf("unexpected chunk content: %q", data)
	}
}

func TestFSStore_RetriedPutGetsDistinctLocator(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first, err := store.Put(context.Background(), "session-1", 0, []byte("a"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := store.Put(context.Background(), "session-1", 0, []byte("b"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct locators, got %s twice", first)
	}
}

func TestFSStore_CanceledContext(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Put(ctx, "session-1", 0, []byte("a")); !errors.Is(err, blobstore.ErrStorageUnavailable) {
		t.Fatalf("expected storage unavailable, got %v", err)
	}
}
