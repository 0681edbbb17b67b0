package auth

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
)

func newTestKeystore(t *testing.T) *Keystore {
	t.Helper()
	ks, err := NewKeystore(filepath.Join(t.TempDir(), "keys.json"))
	if err != nil {
		t.Fatalf("NewKeystore: %v", err)
	}
	return ks
}

func TestGenerateAndVerify(t *testing.T) {
	t.Parallel()
	ks := newTestKeystore(t)

	secret, key, err := ks.Generate("cli")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.HasPrefix(secret, "sk-") {
		t.Errorf("secret = %q, want sk- prefix", secret)
	}
	if key.Name != "cli" || !key.Enabled || key.Hash == "" {
		t.Errorf("key = %+v", key)
	}
	if key.Hash == secret {
		t.Error("plaintext secret stored as hash")
	}

	verified := ks.Verify(secret)
	if verified == nil || verified.ID != key.ID {
		t.Fatalf("Verify = %+v", verified)
	}
	if verified.LastUsedAt == "" {
		t.Error("Verify did not record last use")
	}

	if ks.Verify("sk-wrong") != nil {
		t.Error("Verify accepted an unknown secret")
	}
	if ks.Verify("") != nil {
		t.Error("Verify accepted an empty secret")
	}
}

func TestKeystorePersistence(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "keys.json")

	ks, err := NewKeystore(path)
	if err != nil {
		t.Fatalf("NewKeystore: %v", err)
	}
	secret, _, err := ks.Generate("persisted")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	reloaded, err := NewKeystore(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Count() != 1 {
		t.Fatalf("reloaded count = %d, want 1", reloaded.Count())
	}
	if reloaded.Verify(secret) == nil {
		t.Error("reloaded keystore rejected valid secret")
	}
}

func TestToggleDisablesVerify(t *testing.T) {
	t.Parallel()
	ks := newTestKeystore(t)

	secret, key, err := ks.Generate("toggle-me")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	enabled, ok, err := ks.Toggle(key.ID)
	if err != nil || !ok || enabled {
		t.Fatalf("Toggle = %v, %v, %v", enabled, ok, err)
	}
	if ks.Verify(secret) != nil {
		t.Error("disabled key still verifies")
	}

	enabled, ok, err = ks.Toggle(key.ID)
	if err != nil || !ok || !enabled {
		t.Fatalf("second Toggle = %v, %v, %v", enabled, ok, err)
	}
	if ks.Verify(secret) == nil {
		t.Error("re-enabled key does not verify")
	}

	if _, ok, _ := ks.Toggle("missing"); ok {
		t.Error("Toggle reported success for missing key")
	}
}

func TestDeleteKey(t *testing.T) {
	t.Parallel()
	ks := newTestKeystore(t)

	secret, key, err := ks.Generate("doomed")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	deleted, err := ks.Delete(key.ID)
	if err != nil || !deleted {
		t.Fatalf("Delete = %v, %v", deleted, err)
	}
	if ks.Verify(secret) != nil {
		t.Error("deleted key still verifies")
	}
	if deleted, _ := ks.Delete(key.ID); deleted {
		t.Error("Delete reported success twice")
	}
}

func TestMiddlewareRequired(t *testing.T) {
	t.Parallel()
	ks := newTestKeystore(t)
	secret, _, err := ks.Generate("m")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if FromContext(r.Context()) == nil {
			t.Error("authenticated request missing key in context")
		}
		w.WriteHeader(http.StatusOK)
	})
	handler := Middleware(ks, true)(next)

	// No credentials.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/chat", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", rec.Code)
	}

	// X-API-Key header.
	req := httptest.NewRequest(http.MethodGet, "/api/chat", nil)
	req.Header.Set("X-API-Key", secret)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("X-API-Key status = %d, want 200", rec.Code)
	}

	// Authorization bearer token.
	req = httptest.NewRequest(http.MethodGet, "/api/chat", nil)
	req.Header.Set("Authorization", "Bearer "+secret)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("bearer status = %d, want 200", rec.Code)
	}
}

func TestMiddlewareOptional(t *testing.T) {
	t.Parallel()
	ks := newTestKeystore(t)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := Middleware(ks, false)(next)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/chat", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("optional-auth status = %d, want 200", rec.Code)
	}
}
