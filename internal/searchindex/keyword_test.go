package searchindex

import (
	"context"
	"errors"
	"testing"
)

func newTestIndex(t *testing.T) *KeywordIndex {
	t.Helper()

	idx, err := NewKeywordIndex("", []string{"owner_id", "gender", "marital_status"})
	if err != nil {
		t.Fatalf("NewKeywordIndex() error = %v", err)
	}
	t.Cleanup(func() {
		_ = idx.Close()
	})
	return idx
}

func TestKeywordIndex_UpsertAndQuery(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	entries := []Entry{
		{ID: "a", Text: "name: Wang Min; background: piano teacher in Hangzhou", Facets: map[string]string{"gender": "female"}},
		{ID: "b", Text: "name: Li Hua; background: software engineer who likes hiking", Facets: map[string]string{"gender": "male"}},
		{ID: "c", Text: "name: Zhao Lei; background: piano tuner and part-time hiker", Facets: map[string]string{"gender": "male"}},
	}
	for _, e := range entries {
		if err := idx.Upsert(ctx, e); err != nil {
			t.Fatalf("Upsert(%s) error = %v", e.ID, err)
		}
	}

	ranked, err := idx.Query(ctx, "piano", nil, 10)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(ranked) != 2 {
		t.Fatalf("Query() hits = %d, want 2", len(ranked))
	}
	for i := 1; i < len(ranked); i++ {
		if ranked[i].Score > ranked[i-1].Score {
			t.Errorf("Query() results not sorted best-first: %v", ranked)
		}
	}
	for _, hit := range ranked {
		if hit.ID == "b" {
			t.Errorf("Query() returned non-matching id b")
		}
	}
}

func TestKeywordIndex_FacetFilter(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	seed := []Entry{
		{ID: "a", Text: "enjoys hiking and photography", Facets: map[string]string{"gender": "female", "owner_id": "o1"}},
		{ID: "b", Text: "enjoys hiking and cooking", Facets: map[string]string{"gender": "male", "owner_id": "o1"}},
		{ID: "c", Text: "enjoys hiking and chess", Facets: map[string]string{"gender": "male", "owner_id": "o2"}},
	}
	for _, e := range seed {
		if err := idx.Upsert(ctx, e); err != nil {
			t.Fatalf("Upsert(%s) error = %v", e.ID, err)
		}
	}

	tests := []struct {
		name    string
		facets  map[string]string
		wantIDs map[string]bool
	}{
		{
			name:    "single facet",
			facets:  map[string]string{"gender": "male"},
			wantIDs: map[string]bool{"b": true, "c": true},
		},
		{
			name:    "two facets ANDed",
			facets:  map[string]string{"gender": "male", "owner_id": "o1"},
			wantIDs: map[string]bool{"b": true},
		},
		{
			name:    "no match",
			facets:  map[string]string{"gender": "female", "owner_id": "o2"},
			wantIDs: map[string]bool{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ranked, err := idx.Query(ctx, "hiking", tt.facets, 10)
			if err != nil {
				t.Fatalf("Query() error = %v", err)
			}
			if len(ranked) != len(tt.wantIDs) {
				t.Fatalf("Query() hits = %d, want %d", len(ranked), len(tt.wantIDs))
			}
			for _, hit := range ranked {
				if !tt.wantIDs[hit.ID] {
					t.Errorf("Query() unexpected hit %q", hit.ID)
				}
			}
		})
	}
}

func TestKeywordIndex_UpsertReplacesEntirely(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	if err := idx.Upsert(ctx, Entry{ID: "a", Text: "loves sailing"}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := idx.Upsert(ctx, Entry{ID: "a", Text: "loves painting"}); err != nil {
		t.Fatalf("Upsert() replace error = %v", err)
	}

	// The old projection must be gone, not merged.
	old, err := idx.Query(ctx, "sailing", nil, 10)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(old) != 0 {
		t.Errorf("Query(sailing) hits = %v, want none after replacement", old)
	}

	current, err := idx.Query(ctx, "painting", nil, 10)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(current) != 1 || current[0].ID != "a" {
		t.Errorf("Query(painting) = %v, want single hit a", current)
	}
}

func TestKeywordIndex_Delete_Idempotent(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	if err := idx.Upsert(ctx, Entry{ID: "a", Text: "something"}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if err := idx.Delete(ctx, "a"); err != nil {
		t.Errorf("Delete() error = %v", err)
	}
	if err := idx.Delete(ctx, "a"); err != nil {
		t.Errorf("Delete() second call error = %v", err)
	}
	if err := idx.Delete(ctx, "never-existed"); err != nil {
		t.Errorf("Delete() absent id error = %v", err)
	}

	ranked, err := idx.Query(ctx, "something", nil, 10)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(ranked) != 0 {
		t.Errorf("Query() after delete = %v, want empty", ranked)
	}
}

func TestKeywordIndex_Get(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	want := Entry{
		ID:     "a",
		Text:   "name: Wang Min",
		Facets: map[string]string{"gender": "female", "owner_id": "o1"},
	}
	if err := idx.Upsert(ctx, want); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	got, err := idx.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Text != want.Text {
		t.Errorf("Get() text = %q, want %q", got.Text, want.Text)
	}
	if got.Facets["gender"] != "female" || got.Facets["owner_id"] != "o1" {
		t.Errorf("Get() facets = %v", got.Facets)
	}

	if _, err := idx.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() missing error = %v, want ErrNotFound", err)
	}
}

func TestKeywordIndex_Query_EmptyTextMatchesAll(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		if err := idx.Upsert(ctx, Entry{ID: id, Text: "text " + id, Facets: map[string]string{"gender": "female"}}); err != nil {
			t.Fatalf("Upsert(%s) error = %v", id, err)
		}
	}

	ranked, err := idx.Query(ctx, "", map[string]string{"gender": "female"}, 10)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(ranked) != 2 {
		t.Errorf("Query() hits = %d, want 2", len(ranked))
	}
}

func TestKeywordIndex_Query_InvalidLimit(t *testing.T) {
	idx := newTestIndex(t)

	if _, err := idx.Query(context.Background(), "anything", nil, 0); err == nil {
		t.Error("Query() with limit 0 should fail")
	}
}

func TestKeywordIndex_Persistent(t *testing.T) {
	dir := t.TempDir() + "/kw.bleve"

	idx, err := NewKeywordIndex(dir, []string{"gender"})
	if err != nil {
		t.Fatalf("NewKeywordIndex() error = %v", err)
	}
	ctx := context.Background()
	if err := idx.Upsert(ctx, Entry{ID: "a", Text: "persistent entry"}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Reopening the same path must find the existing index.
	reopened, err := NewKeywordIndex(dir, []string{"gender"})
	if err != nil {
		t.Fatalf("NewKeywordIndex() reopen error = %v", err)
	}
	defer func() {
		_ = reopened.Close()
	}()

	ranked, err := reopened.Query(ctx, "persistent", nil, 10)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(ranked) != 1 || ranked[0].ID != "a" {
		t.Errorf("Query() after reopen = %v, want hit a", ranked)
	}
}
