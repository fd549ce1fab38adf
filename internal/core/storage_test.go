package core

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"trekcore/pkg/domain"
)

func TestOpenPersistentStoreDefaultsToJSONFiles(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TREKCORE_STORAGE_DRIVER", "")
	t.Setenv("TREKCORE_DATA_DIR", dir)

	store, err := OpenPersistentStore(domain.DefaultRulesEngine(), zerolog.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := store.AddAttraction(context.Background(), domain.Attraction{Name: "x"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	// Data lands in the configured directory.
	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil || len(matches) == 0 {
		t.Fatalf("entity files = %v (err %v)", matches, err)
	}
}

func TestOpenPersistentStoreMemoryDriver(t *testing.T) {
	t.Setenv("TREKCORE_STORAGE_DRIVER", "memory")
	store, err := OpenPersistentStore(nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := store.AddUser(context.Background(), domain.User{Email: "a@b.c"}); err != nil {
		t.Fatalf("add: %v", err)
	}
}

func TestOpenPersistentStoreSQLiteDriver(t *testing.T) {
	t.Setenv("TREKCORE_STORAGE_DRIVER", "sqlite")
	t.Setenv("TREKCORE_SQLITE_PATH", filepath.Join(t.TempDir(), "trekcore.db"))
	store, err := OpenPersistentStore(nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := store.AddUser(context.Background(), domain.User{Email: "a@b.c"}); err != nil {
		t.Fatalf("add: %v", err)
	}
}

func TestOpenPersistentStoreUnknownDriver(t *testing.T) {
	t.Setenv("TREKCORE_STORAGE_DRIVER", "cassandra")
	if _, err := OpenPersistentStore(nil, zerolog.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
