// HerpAtlas - Wildlife Observation Records API
// Copyright 2026 HerpAtlas Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/herpatlas/herpatlas

package blob

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/herpatlas/herpatlas/internal/config"
)

// storeUnderTest exercises the Store contract shared by every driver.
func storeUnderTest(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	info, err := store.Put(ctx, "vouchers/42-1.jpg", strings.NewReader("jpeg-bytes"), PutOptions{
		ContentType: "image/jpeg",
		Metadata:    map[string]string{"record_id": "42"},
	})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if info.Size != int64(len("jpeg-bytes")) {
		t.Errorf("Size = %d, want %d", info.Size, len("jpeg-bytes"))
	}
	if info.URL == "" {
		t.Error("Put returned no URL")
	}

	// Put is create-only.
	if _, err := store.Put(ctx, "vouchers/42-1.jpg", strings.NewReader("other"), PutOptions{}); !errors.Is(err, ErrExists) {
		t.Errorf("second Put = %v, want ErrExists", err)
	}

	head, err := store.Head(ctx, "vouchers/42-1.jpg")
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if head.ContentType != "image/jpeg" || head.Metadata["record_id"] != "42" {
		t.Errorf("Head = %+v, want content type and metadata preserved", head)
	}

	got, rc, err := store.Get(ctx, "vouchers/42-1.jpg")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	data, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		t.Fatalf("reading blob: %v", err)
	}
	if string(data) != "jpeg-bytes" {
		t.Errorf("data = %q", data)
	}
	if got.Size != info.Size {
		t.Errorf("Get size = %d, want %d", got.Size, info.Size)
	}

	u, err := store.URL(ctx, "vouchers/42-1.jpg")
	if err != nil || u == "" {
		t.Errorf("URL = (%q, %v)", u, err)
	}

	if _, err := store.Head(ctx, "vouchers/missing.jpg"); !errors.Is(err, ErrNotExist) {
		t.Errorf("Head(missing) = %v, want ErrNotExist", err)
	}
	if _, _, err := store.Get(ctx, "vouchers/missing.jpg"); !errors.Is(err, ErrNotExist) {
		t.Errorf("Get(missing) = %v, want ErrNotExist", err)
	}

	ok, err := store.Delete(ctx, "vouchers/42-1.jpg")
	if err != nil || !ok {
		t.Fatalf("Delete = (%v, %v), want (true, nil)", ok, err)
	}
	ok, err = store.Delete(ctx, "vouchers/42-1.jpg")
	if err != nil || ok {
		t.Errorf("second Delete = (%v, %v), want (false, nil)", ok, err)
	}
	if _, err := store.Head(ctx, "vouchers/42-1.jpg"); !errors.Is(err, ErrNotExist) {
		t.Errorf("Head after delete = %v, want ErrNotExist", err)
	}
}

func TestMemoryStore(t *testing.T) {
	storeUnderTest(t, NewMemory())
}

func TestFilesystemStore(t *testing.T) {
	store, err := NewFilesystem(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewFilesystem: %v", err)
	}
	storeUnderTest(t, store)
}

func TestFilesystem_BaseURL(t *testing.T) {
	store, err := NewFilesystem(t.TempDir(), "https://media.herpatlas.org/")
	if err != nil {
		t.Fatalf("NewFilesystem: %v", err)
	}
	u, err := store.URL(context.Background(), "vouchers/42-1.jpg")
	if err != nil {
		t.Fatalf("URL: %v", err)
	}
	if u != "https://media.herpatlas.org/vouchers/42-1.jpg" {
		t.Errorf("URL = %q", u)
	}
}

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		key  string
		fail bool
	}{
		{"vouchers/42-1.jpg", false},
		{"42-1.jpg", false},
		{"", true},
		{"  ", true},
		{"../outside.jpg", true},
		{"vouchers/../../etc/passwd", true},
		{"/etc/passwd", true},
	}
	for _, tt := range tests {
		_, err := sanitizeKey(tt.key)
		if tt.fail && err == nil {
			t.Errorf("sanitizeKey(%q) accepted, want rejection", tt.key)
		}
		if !tt.fail && err != nil {
			t.Errorf("sanitizeKey(%q) = %v, want nil", tt.key, err)
		}
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	store, err := Open(ctx, &config.MediaConfig{Driver: "memory"})
	if err != nil {
		t.Fatalf("Open(memory): %v", err)
	}
	if store.Driver() != DriverMemory {
		t.Errorf("driver = %q, want memory", store.Driver())
	}

	store, err = Open(ctx, &config.MediaConfig{Driver: "fs", Root: t.TempDir()})
	if err != nil {
		t.Fatalf("Open(fs): %v", err)
	}
	if store.Driver() != DriverFilesystem {
		t.Errorf("driver = %q, want fs", store.Driver())
	}

	if _, err := Open(ctx, &config.MediaConfig{Driver: "carrier-pigeon"}); err == nil {
		t.Error("unknown driver should be rejected")
	}
}
