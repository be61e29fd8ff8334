package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"matchbook/internal/searchindex"
	"matchbook/internal/storage"
)

func newHealthFixture(t *testing.T) *HealthHandler {
	t.Helper()

	db, err := storage.New(filepath.Join(t.TempDir(), "health.db"))
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	idx, err := searchindex.NewKeywordIndex("", nil)
	if err != nil {
		t.Fatalf("NewKeywordIndex() error = %v", err)
	}
	t.Cleanup(func() {
		_ = idx.Close()
	})

	return NewHealthHandler(db, idx)
}

func TestHealthHandler_Healthy(t *testing.T) {
	handler := newHealthFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("ServeHTTP() status = %d, want 200", w.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("status = %q, want healthy", resp.Status)
	}
	if resp.Checks["database"] != "ok" || resp.Checks["search_index"] != "ok" {
		t.Errorf("checks = %v, want all ok", resp.Checks)
	}
}

func TestHealthHandler_MethodNotAllowed(t *testing.T) {
	handler := newHealthFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("ServeHTTP() status = %d, want 405", w.Code)
	}
}
