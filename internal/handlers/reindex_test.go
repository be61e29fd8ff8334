package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/mock/gomock"

	"matchbook/internal/profile"
	"matchbook/internal/reindex"
	indexmocks "matchbook/internal/searchindex/mocks"
	"matchbook/internal/storage"
	storagemocks "matchbook/internal/storage/mocks"
)

func TestReindexHandler_ServeHTTP(t *testing.T) {
	ctrl := gomock.NewController(t)
	profiles := storagemocks.NewMockProfileStore(ctrl)
	index := indexmocks.NewMockIndex(ctrl)

	profiles.EXPECT().Query(gomock.Any(), storage.Filter{}, 100, 0).Return([]*profile.Profile{
		{ID: "a", Name: "Wang Min"},
	}, nil)
	index.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(nil)
	profiles.EXPECT().ListDeletedIDs(gomock.Any()).Return([]string{"gone"}, nil)
	index.EXPECT().Delete(gomock.Any(), "gone").Return(nil)

	handler := NewReindexHandler(reindex.NewSweeper(profiles, index, 0))

	req := httptest.NewRequest(http.MethodPost, "/api/reindex", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("ServeHTTP() status = %d, want 200", w.Code)
	}

	var resp ReindexResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.Stats.Indexed != 1 || resp.Stats.Removed != 1 {
		t.Errorf("stats = %+v, want indexed=1 removed=1", resp.Stats)
	}
}

func TestReindexHandler_StoreFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	profiles := storagemocks.NewMockProfileStore(ctrl)
	index := indexmocks.NewMockIndex(ctrl)

	profiles.EXPECT().Query(gomock.Any(), storage.Filter{}, 100, 0).Return(nil, errors.New("disk full"))

	handler := NewReindexHandler(reindex.NewSweeper(profiles, index, 0))

	req := httptest.NewRequest(http.MethodPost, "/api/reindex", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("ServeHTTP() status = %d, want 500", w.Code)
	}
}
