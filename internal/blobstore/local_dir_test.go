package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
)

func TestLocalDirPutOpenStat(t *testing.T) {
	dir, err := NewLocalDir(t.TempDir())
	if err != nil {
		t.Fatalf("new local dir: %v", err)
	}
	ctx := context.Background()

	exists, err := dir.Stat(ctx, "ab/cd/abcd")
	if err != nil {
		t.Fatalf("stat missing: %v", err)
	}
	if exists {
		t.Fatal("expected missing blob")
	}
	if _, err := dir.Open(ctx, "ab/cd/abcd"); !errors.Is(err, ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}

	if err := dir.Put(ctx, "ab/cd/abcd", bytes.NewBufferString("hello"), 5); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := dir.Put(ctx, "ab/cd/abcd", bytes.NewBufferString("world!"), -1); err != nil {
		t.Fatalf("put replace: %v", err)
	}

	rc, err := dir.Open(ctx, "ab/cd/abcd")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "world!" {
		t.Fatalf("expected replaced blob, got %q", string(data))
	}

	exists, err = dir.Stat(ctx, "ab/cd/abcd")
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if !exists {
		t.Fatal("expected blob to exist")
	}
}

func TestLocalDirRejectsBadKeys(t *testing.T) {
	dir, err := NewLocalDir(t.TempDir())
	if err != nil {
		t.Fatalf("new local dir: %v", err)
	}
	ctx := context.Background()
	for _, key := range []string{"", "/etc/passwd", "../escape", "a/../../b", "tmp/put-1"} {
		if err := dir.Put(ctx, key, bytes.NewBufferString("x"), 1); err == nil {
			t.Fatalf("expected error for key %q", key)
		}
	}
}

func TestLocalDirShortWrite(t *testing.T) {
	dir, err := NewLocalDir(t.TempDir())
	if err != nil {
		t.Fatalf("new local dir: %v", err)
	}
	ctx := context.Background()
	if err := dir.Put(ctx, "k", bytes.NewBufferString("abc"), 10); err == nil {
		t.Fatal("expected size mismatch error")
	}
	if exists, _ := dir.Stat(ctx, "k"); exists {
		t.Fatal("failed put must not leave a blob")
	}
}
