package recordstore_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchbook/internal/archive"
	"matchbook/internal/profile"
	"matchbook/internal/recordstore"
	"matchbook/internal/searchindex"
	"matchbook/internal/storage"
)

// newLiveCoordinator wires a real SQLite store, an in-memory keyword index
// and a filesystem archive, exercising the full save/search/delete path
// without any external service.
func newLiveCoordinator(t *testing.T) (*recordstore.Coordinator, *storage.ProfileRepo, *searchindex.KeywordIndex, *archive.FSArchive) {
	t.Helper()

	db, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	require.NoError(t, storage.Migrate(db))
	repo := storage.NewProfileRepo(db)

	idx, err := searchindex.NewKeywordIndex("", []string{"owner_id", "gender", "marital_status"})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = idx.Close()
	})

	blobs, err := archive.NewFSArchive(t.TempDir())
	require.NoError(t, err)

	return recordstore.NewCoordinator(repo, idx, blobs, 0), repo, idx, blobs
}

func TestCoordinator_SaveFindDeleteRoundTrip(t *testing.T) {
	coord, _, _, blobs := newLiveCoordinator(t)
	ctx := context.Background()

	// Save with an empty id assigns one.
	first, err := coord.Save(ctx, &profile.Profile{Name: "A", Gender: "female"})
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	assert.Empty(t, first.Degraded)

	// Saving again under the same id overwrites fields in place.
	second, err := coord.Save(ctx, &profile.Profile{ID: first.ID, Name: "B", Gender: "female"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	found, err := coord.Find(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "B", found.Name)

	// The snapshot tracks the latest save.
	raw, err := blobs.Get(ctx, recordstore.SnapshotPath(first.ID))
	require.NoError(t, err)
	var snap profile.Profile
	require.NoError(t, json.Unmarshal(raw, &snap))
	assert.Equal(t, "B", snap.Name)

	require.NoError(t, coord.Delete(ctx, first.ID))

	_, err = coord.Find(ctx, first.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	listed, err := coord.List(ctx, storage.Filter{}, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, listed)

	_, err = blobs.Get(ctx, recordstore.SnapshotPath(first.ID))
	assert.ErrorIs(t, err, archive.ErrNotFound)
}

func TestCoordinator_SearchEndToEnd(t *testing.T) {
	coord, _, _, _ := newLiveCoordinator(t)
	ctx := context.Background()

	seed := []*profile.Profile{
		{Name: "Wang Min", Gender: "female", Introduction: profile.Notes{"background": "piano teacher in Hangzhou"}},
		{Name: "Li Hua", Gender: "male", Introduction: profile.Notes{"background": "software engineer who hikes"}},
		{Name: "Zhao Lei", Gender: "male", Introduction: profile.Notes{"background": "piano tuner"}},
	}
	for _, p := range seed {
		result, err := coord.Save(ctx, p)
		require.NoError(t, err)
		require.Empty(t, result.Degraded)
	}

	results, err := coord.Search(ctx, "piano", nil, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.NotEqual(t, "Li Hua", r.Name)
		// Results carry live relational fields, not index projections.
		assert.False(t, r.CreatedAt.IsZero())
	}

	// Facet filtering narrows within the ranked set.
	males, err := coord.Search(ctx, "piano", map[string]string{"gender": "male"}, 10)
	require.NoError(t, err)
	require.Len(t, males, 1)
	assert.Equal(t, "Zhao Lei", males[0].Name)
}

func TestCoordinator_SearchSelfHealsAfterDelete(t *testing.T) {
	coord, repo, idx, _ := newLiveCoordinator(t)
	ctx := context.Background()

	var ids []string
	for _, name := range []string{"First Match", "Second Match", "Third Match"} {
		result, err := coord.Save(ctx, &profile.Profile{
			Name:         name,
			Introduction: profile.Notes{"background": "fond of calligraphy"},
		})
		require.NoError(t, err)
		ids = append(ids, result.ID)
	}

	// Delete the middle record in the relational store only; the index
	// still holds its entry, as after a partially failed delete.
	require.NoError(t, repo.SoftDelete(ctx, ids[1]))

	stale, err := idx.Get(ctx, ids[1])
	require.NoError(t, err)
	require.NotNil(t, stale)

	results, err := coord.Search(ctx, "calligraphy", nil, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.NotEqual(t, ids[1], r.ID)
	}
}

func TestCoordinator_DeletedNeverListed(t *testing.T) {
	coord, _, _, _ := newLiveCoordinator(t)
	ctx := context.Background()

	kept, err := coord.Save(ctx, &profile.Profile{Name: "Kept", Gender: "female"})
	require.NoError(t, err)
	dropped, err := coord.Save(ctx, &profile.Profile{Name: "Dropped", Gender: "female"})
	require.NoError(t, err)

	require.NoError(t, coord.Delete(ctx, dropped.ID))
	require.NoError(t, coord.Delete(ctx, dropped.ID)) // idempotent

	listed, err := coord.List(ctx, storage.Filter{Gender: "female"}, 10, 0)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, kept.ID, listed[0].ID)

	results, err := coord.Search(ctx, "Dropped", nil, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}
