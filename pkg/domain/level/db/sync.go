package db

import (
	"context"

	"github.com/spinvfx/spinfab/pkg/domain/level"
)

// Interface is the snapshot-catalog store of the level tree.
type Interface interface {
	// NewSyncRequest records an unfulfilled request for a fresh snapshot.
	NewSyncRequest(ctx context.Context, comment string) (level.SyncRequest, error)

	// UnfulfilledSyncRequests lists requests with no snapshot yet,
	// oldest first.
	UnfulfilledSyncRequests(ctx context.Context) ([]level.SyncRequest, error)

	// LastFulfilledRequest returns the youngest request carrying a
	// snapshot filename. ok is false when none exists.
	LastFulfilledRequest(ctx context.Context) (req level.SyncRequest, ok bool, err error)

	// UpdateRequestFilename fulfills a request with the given snapshot.
	UpdateRequestFilename(ctx context.Context, id int64, filename string) error
}
