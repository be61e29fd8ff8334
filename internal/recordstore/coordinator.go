// Package recordstore coordinates profile writes and reads across the three
// backends: the relational system of record, the search index and the blob
// archive. There is no distributed transaction; the relational store is the
// gate for correctness and the other two are best-effort derived stores.
package recordstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_store.go -package=mocks matchbook/internal/recordstore Store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"matchbook/internal/archive"
	"matchbook/internal/contextutil"
	"matchbook/internal/profile"
	"matchbook/internal/searchindex"
	"matchbook/internal/storage"
)

// defaultBackendTimeout bounds each derived-store call during Save/Delete.
// A timed-out index or archive write is treated like any other failure:
// logged and non-fatal.
const defaultBackendTimeout = 10 * time.Second

// Degraded-backend names reported in SaveResult.
const (
	BackendSearchIndex = "search_index"
	BackendBlobArchive = "blob_archive"
)

// SaveResult reports the outcome of a Save. Degraded lists the derived
// backends whose write failed; the profile is durable in the system of
// record either way.
type SaveResult struct {
	ID       string
	Degraded []string
}

// Store is the coordinator contract the web layer depends on.
type Store interface {
	// Save persists the profile, generating an id when absent, and fans
	// the write out to the search index and blob archive best-effort.
	Save(ctx context.Context, p *profile.Profile) (*SaveResult, error)

	// Delete soft-deletes the profile and cleans up derived state.
	// Deleting an absent id is not an error.
	Delete(ctx context.Context, id string) error

	// Find returns the live profile with the given id.
	Find(ctx context.Context, id string) (*profile.Profile, error)

	// List returns live profiles matching the filter, newest first.
	List(ctx context.Context, f storage.Filter, limit, offset int) ([]*profile.Profile, error)

	// Search ranks profiles in the index and rehydrates them from the
	// system of record, preserving rank order.
	Search(ctx context.Context, text string, facets map[string]string, limit int) ([]*profile.Profile, error)
}

// Coordinator implements Store. It holds no state of its own beyond the
// injected backends and is safe for concurrent use.
type Coordinator struct {
	profiles storage.ProfileStore
	index    searchindex.Index
	archive  archive.Archive
	timeout  time.Duration
}

// NewCoordinator wires the three backends together. timeout bounds each
// derived-store call; zero means the default.
func NewCoordinator(profiles storage.ProfileStore, index searchindex.Index, blobs archive.Archive, timeout time.Duration) *Coordinator {
	if timeout <= 0 {
		timeout = defaultBackendTimeout
	}
	return &Coordinator{
		profiles: profiles,
		index:    index,
		archive:  blobs,
		timeout:  timeout,
	}
}

// SnapshotPath is the canonical archive location of a profile's snapshot.
func SnapshotPath(id string) string {
	return fmt.Sprintf("profiles/%s/detail.json", id)
}

// ArchivePrefix is the archive subtree holding everything for a profile.
func ArchivePrefix(id string) string {
	return fmt.Sprintf("profiles/%s", id)
}

// Save persists the profile. The relational write is the gate: if it fails
// nothing else is attempted and the error propagates. Index and archive
// writes are best-effort; failures are logged and reported in
// SaveResult.Degraded but never fail the save.
func (c *Coordinator) Save(ctx context.Context, p *profile.Profile) (*SaveResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	id, err := c.profiles.Upsert(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}

	result := &SaveResult{ID: id}

	entry := searchindex.Entry{
		ID:     id,
		Text:   p.SearchText(),
		Facets: p.FacetMeta(),
	}
	if err := c.withTimeout(ctx, func(tctx context.Context) error {
		return c.index.Upsert(tctx, entry)
	}); err != nil {
		logger.WarnContext(ctx, "profile saved but not indexed",
			"id", id, "backend", BackendSearchIndex, "error", err)
		result.Degraded = append(result.Degraded, BackendSearchIndex)
	}

	snapshot, err := json.Marshal(p)
	if err != nil {
		logger.WarnContext(ctx, "profile saved but snapshot not serializable",
			"id", id, "backend", BackendBlobArchive, "error", err)
		result.Degraded = append(result.Degraded, BackendBlobArchive)
		return result, nil
	}
	if err := c.withTimeout(ctx, func(tctx context.Context) error {
		_, putErr := c.archive.Put(tctx, SnapshotPath(id), snapshot)
		return putErr
	}); err != nil {
		logger.WarnContext(ctx, "profile saved but not archived",
			"id", id, "backend", BackendBlobArchive, "error", err)
		result.Degraded = append(result.Degraded, BackendBlobArchive)
	}

	return result, nil
}

// Delete soft-deletes the profile and then cleans up index and archive
// state best-effort. Cleanup runs even when no live row existed, so
// orphans left by earlier partial saves get removed.
func (c *Coordinator) Delete(ctx context.Context, id string) error {
	logger := contextutil.LoggerFromContext(ctx)

	if err := c.profiles.SoftDelete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}

	if err := c.withTimeout(ctx, func(tctx context.Context) error {
		return c.index.Delete(tctx, id)
	}); err != nil {
		logger.WarnContext(ctx, "profile deleted but index entry remains",
			"id", id, "backend", BackendSearchIndex, "error", err)
	}
	if err := c.withTimeout(ctx, func(tctx context.Context) error {
		return c.archive.DeletePrefix(tctx, ArchivePrefix(id))
	}); err != nil {
		logger.WarnContext(ctx, "profile deleted but archive objects remain",
			"id", id, "backend", BackendBlobArchive, "error", err)
	}
	return nil
}

// Find delegates to the system of record.
func (c *Coordinator) Find(ctx context.Context, id string) (*profile.Profile, error) {
	return c.profiles.Get(ctx, id)
}

// List delegates to the system of record.
func (c *Coordinator) List(ctx context.Context, f storage.Filter, limit, offset int) ([]*profile.Profile, error) {
	return c.profiles.Query(ctx, f, limit, offset)
}

// Search is two-phase: the index ranks ids, the system of record supplies
// the field values. Results keep the index's rank order. Ranked ids with no
// live row are dropped silently; the index is allowed to lag behind the
// system of record and results self-correct without waiting for it.
func (c *Coordinator) Search(ctx context.Context, text string, facets map[string]string, limit int) ([]*profile.Profile, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if limit <= 0 {
		limit = 10
	}

	ranked, err := c.index.Query(ctx, text, facets, limit)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	if len(ranked) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(ranked))
	for _, hit := range ranked {
		ids = append(ids, hit.ID)
	}

	loaded, err := c.profiles.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load search results: %w", err)
	}

	byID := make(map[string]*profile.Profile, len(loaded))
	for _, p := range loaded {
		byID[p.ID] = p
	}

	results := make([]*profile.Profile, 0, len(ranked))
	for _, hit := range ranked {
		if p, ok := byID[hit.ID]; ok {
			results = append(results, p)
		}
	}
	if dropped := len(ranked) - len(results); dropped > 0 {
		logger.DebugContext(ctx, "dropped stale index hits", "dropped", dropped, "returned", len(results))
	}
	return results, nil
}

func (c *Coordinator) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	tctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return fn(tctx)
}
