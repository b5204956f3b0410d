package apikey_test

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/CMC-Global-Team/RiverFlow-SMTP-Server/internal/apikey"
)

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

func openTestStore(t *testing.T) (*apikey.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "api-keys.json")
	s, err := apikey.Open(path, newTestLogger())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return s, path
}

func TestCreateAndValidate(t *testing.T) {
	s, _ := openTestStore(t)

	key, err := s.Create("ci", "pipeline key")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !strings.HasPrefix(key.Key, "rfsk_") {
		t.Errorf("key should carry the rfsk_ prefix, got %q", key.Key)
	}
	if len(key.Key) != len("rfsk_")+48 {
		t.Errorf("unexpected key length %d", len(key.Key))
	}
	if !key.Active {
		t.Error("new keys should be active")
	}

	if !s.Validate(key.Key) {
		t.Fatal("freshly created key should validate")
	}
	if s.Validate("rfsk_bogus") {
		t.Error("unknown key must not validate")
	}

	got, ok := s.Get(key.ID)
	if !ok {
		t.Fatal("Get should find the key")
	}
	if got.UsageCount != 1 || got.LastUsedAt == nil {
		t.Errorf("validation should bump usage stats, got count=%d lastUsed=%v", got.UsageCount, got.LastUsedAt)
	}
}

func TestMaskedViewsHideSecret(t *testing.T) {
	s, _ := openTestStore(t)
	key, _ := s.Create("web", "")

	for _, m := range s.List() {
		if m.Key == key.Key {
			t.Fatal("List must not expose the full key")
		}
		if !strings.HasPrefix(m.Key, key.Key[:15]) || !strings.HasSuffix(m.Key, key.Key[len(key.Key)-4:]) {
			t.Errorf("masked key should keep head and tail, got %q", m.Key)
		}
	}
}

func TestRevokeReactivateDelete(t *testing.T) {
	s, _ := openTestStore(t)
	key, _ := s.Create("ops", "")

	if err := s.Revoke(key.ID); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if s.Validate(key.Key) {
		t.Error("revoked key must not validate")
	}

	if err := s.Reactivate(key.ID); err != nil {
		t.Fatalf("Reactivate failed: %v", err)
	}
	if !s.Validate(key.Key) {
		t.Error("reactivated key should validate again")
	}

	if err := s.Delete(key.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok := s.Get(key.ID); ok {
		t.Error("deleted key should be gone")
	}

	for _, err := range []error{s.Revoke("nope"), s.Reactivate("nope"), s.Delete("nope")} {
		if !errors.Is(err, apikey.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	s, path := openTestStore(t)
	key, _ := s.Create("persisted", "survives restarts")
	s.Revoke(key.ID)

	reopened, err := apikey.Open(path, newTestLogger())
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	got, ok := reopened.Get(key.ID)
	if !ok {
		t.Fatal("key should survive a reopen")
	}
	if got.Active {
		t.Error("revoked state should persist")
	}
	if got.Name != "persisted" || got.Description != "survives restarts" {
		t.Errorf("metadata lost across reopen: %+v", got)
	}
}

func TestOpenRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api-keys.json")
	if err := os.WriteFile(path, []byte("{{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := apikey.Open(path, newTestLogger()); err == nil {
		t.Error("corrupt store file should be an error")
	}
}
