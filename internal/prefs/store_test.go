package prefs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestTypedHelpers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := NewMemStore(map[string]string{"broken": "maybe"})

	b, err := Bool(ctx, s, KeyHasUsedVoiceInput, false)
	if err != nil || b {
		t.Fatalf("Bool(missing) = %v, %v", b, err)
	}
	if err := SetBool(ctx, s, KeyHasUsedVoiceInput, true); err != nil {
		t.Fatalf("SetBool: %v", err)
	}
	b, err = Bool(ctx, s, KeyHasUsedVoiceInput, false)
	if err != nil || !b {
		t.Fatalf("Bool = %v, %v", b, err)
	}

	if _, err := Bool(ctx, s, "broken", true); err == nil {
		t.Error("expected parse error for non-boolean value")
	}

	mode, err := String(ctx, s, KeyVoiceMode, "main")
	if err != nil || mode != "main" {
		t.Fatalf("String(missing) = %q, %v", mode, err)
	}

	if err := SetInt(ctx, s, KeyPunctuationHintCount, 3); err != nil {
		t.Fatalf("SetInt: %v", err)
	}
	n, err := Int(ctx, s, KeyPunctuationHintCount, 0)
	if err != nil || n != 3 {
		t.Fatalf("Int = %d, %v", n, err)
	}
}

func TestMemStore_GetMissing(t *testing.T) {
	t.Parallel()

	var s MemStore
	if _, err := s.Get(context.Background(), "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if err := s.Set(context.Background(), "x", "1"); err != nil {
		t.Fatalf("Set on zero MemStore: %v", err)
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "nested", "prefs.yaml")
	s, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("OpenFileStore: %v", err)
	}
	if _, err := s.Get(ctx, KeyVoiceMode); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get on fresh store: %v", err)
	}
	if err := SetBool(ctx, s, KeyHasUsedVoiceInput, true); err != nil {
		t.Fatalf("SetBool: %v", err)
	}
	if err := s.Set(ctx, KeyVoiceMode, "secondary"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	reopened, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	b, err := Bool(ctx, reopened, KeyHasUsedVoiceInput, false)
	if err != nil || !b {
		t.Errorf("reopened bool = %v, %v", b, err)
	}
	mode, _ := String(ctx, reopened, KeyVoiceMode, "")
	if mode != "secondary" {
		t.Errorf("reopened mode = %q", mode)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestFileStore_InvalidYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "prefs.yaml")
	if err := os.WriteFile(path, []byte("- a\n- b\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenFileStore(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestFileStore_CancelledContext(t *testing.T) {
	t.Parallel()

	s, err := OpenFileStore(filepath.Join(t.TempDir(), "prefs.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Set(ctx, "k", "v"); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if _, err := s.Get(context.Background(), "k"); !errors.Is(err, ErrNotFound) {
		t.Error("value stored despite failed Set")
	}
}
