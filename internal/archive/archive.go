package archive

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_archive.go -package=mocks matchbook/internal/archive Archive

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no object exists at the path.
var ErrNotFound = errors.New("archive object not found")

// Archive stores durable point-in-time snapshots keyed by slash-separated
// paths. Objects are opaque byte blobs; the archive never interprets them.
type Archive interface {
	// Put writes content at path, replacing any existing object, and
	// returns a reference URL for the stored object.
	Put(ctx context.Context, path string, content []byte) (string, error)

	// Get reads the object at path.
	Get(ctx context.Context, path string) ([]byte, error)

	// List returns the paths of all objects under prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the object at path. Absent paths are not an error.
	Delete(ctx context.Context, path string) error

	// DeletePrefix removes every object under prefix.
	DeletePrefix(ctx context.Context, prefix string) error

	// Link returns the reference URL for path without touching the object.
	Link(path string) string
}
