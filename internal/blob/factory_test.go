package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
)

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()
	fsStore, err := Open(ctx, Config{Root: t.TempDir()})
	if err != nil {
		t.Fatalf("open fs: %v", err)
	}
	if fsStore.Driver() != DriverFilesystem {
		t.Fatalf("expected fs driver, got %s", fsStore.Driver())
	}
	memStore, err := Open(ctx, Config{Driver: DriverMemory})
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	if memStore.Driver() != DriverMemory {
		t.Fatalf("expected memory driver, got %s", memStore.Driver())
	}
	if _, err := Open(ctx, Config{Driver: "tape"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
	if _, err := Open(ctx, Config{Driver: DriverS3}); err == nil {
		t.Fatalf("expected missing bucket error")
	}
}

// Every driver must satisfy the same replace-on-put contract.
func TestDriversShareContract(t *testing.T) {
	ctx := context.Background()
	fsStore, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("fs: %v", err)
	}
	stores := map[string]Store{
		"fs":     fsStore,
		"memory": NewMemory(),
		"s3":     NewMockS3ForTests(),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			if _, _, err := store.Get(ctx, "items.csv"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected not found before put, got %v", err)
			}
			if _, err := store.Put(ctx, "items.csv", bytes.NewReader([]byte("v1\n"))); err != nil {
				t.Fatalf("put v1: %v", err)
			}
			info, err := store.Put(ctx, "items.csv", bytes.NewReader([]byte("version2\n")))
			if err != nil {
				t.Fatalf("put v2: %v", err)
			}
			if info.Size != int64(len("version2\n")) {
				t.Fatalf("unexpected size %d", info.Size)
			}
			_, rc, err := store.Get(ctx, "items.csv")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			data, _ := io.ReadAll(rc)
			_ = rc.Close()
			if string(data) != "version2\n" {
				t.Fatalf("expected replaced content, got %q", data)
			}
			if _, err := store.Put(ctx, "history.csv", bytes.NewReader(nil)); err != nil {
				t.Fatalf("put history: %v", err)
			}
			infos, err := store.List(ctx, "")
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(infos) != 2 || infos[0].Key != "history.csv" || infos[1].Key != "items.csv" {
				t.Fatalf("unexpected listing %+v", infos)
			}
			ok, err := store.Delete(ctx, "items.csv")
			if err != nil || !ok {
				t.Fatalf("delete: ok=%v err=%v", ok, err)
			}
			if _, _, err := store.Get(ctx, "items.csv"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected not found after delete, got %v", err)
			}
		})
	}
}
