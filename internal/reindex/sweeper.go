// Package reindex rebuilds the search index from the system of record. The
// coordinator's fan-out writes are best-effort, so index entries can be
// missing after a degraded save or linger after a failed delete; a sweep
// repairs both directions.
package reindex

import (
	"context"
	"fmt"

	"matchbook/internal/contextutil"
	"matchbook/internal/searchindex"
	"matchbook/internal/storage"
)

// defaultBatchSize is how many profiles one sweep page loads.
const defaultBatchSize = 100

// Stats summarizes a sweep.
type Stats struct {
	// Indexed is the number of live profiles re-projected into the index.
	Indexed int `json:"indexed"`
	// Removed is the number of soft-deleted profiles whose index entries
	// were deleted.
	Removed int `json:"removed"`
	// Failed is the number of profiles whose index write failed.
	Failed int `json:"failed"`
}

// Sweeper reconciles index membership against the system of record.
type Sweeper struct {
	profiles storage.ProfileStore
	index    searchindex.Index
	batch    int
}

// NewSweeper creates a sweeper. batch <= 0 uses the default page size.
func NewSweeper(profiles storage.ProfileStore, index searchindex.Index, batch int) *Sweeper {
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &Sweeper{
		profiles: profiles,
		index:    index,
		batch:    batch,
	}
}

// Sweep re-upserts every live profile's projection and deletes index entries
// for every soft-deleted profile. Per-profile index failures are counted and
// logged but do not stop the sweep; relational errors abort it.
func (s *Sweeper) Sweep(ctx context.Context) (*Stats, error) {
	logger := contextutil.LoggerFromContext(ctx)
	stats := &Stats{}

	for offset := 0; ; offset += s.batch {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		page, err := s.profiles.Query(ctx, storage.Filter{}, s.batch, offset)
		if err != nil {
			return stats, fmt.Errorf("failed to load profiles for sweep: %w", err)
		}
		if len(page) == 0 {
			break
		}

		for _, p := range page {
			entry := searchindex.Entry{
				ID:     p.ID,
				Text:   p.SearchText(),
				Facets: p.FacetMeta(),
			}
			if err := s.index.Upsert(ctx, entry); err != nil {
				stats.Failed++
				logger.ErrorContext(ctx, "failed to reindex profile", "id", p.ID, "error", err)
				continue
			}
			stats.Indexed++
		}

		if len(page) < s.batch {
			break
		}
	}

	deletedIDs, err := s.profiles.ListDeletedIDs(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to list deleted profiles: %w", err)
	}
	for _, id := range deletedIDs {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		if err := s.index.Delete(ctx, id); err != nil {
			stats.Failed++
			logger.ErrorContext(ctx, "failed to remove deleted profile from index", "id", id, "error", err)
			continue
		}
		stats.Removed++
	}

	logger.InfoContext(ctx, "sweep completed",
		"indexed", stats.Indexed, "removed", stats.Removed, "failed", stats.Failed)
	return stats, nil
}
