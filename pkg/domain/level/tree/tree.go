package tree

import (
	"time"

	"github.com/spinvfx/spinfab/pkg/domain/level"
)

// Tree is one snapshot in service, paired with the request it fulfilled.
type Tree struct {
	root        *Root
	syncRequest level.SyncRequest
	since       time.Time
}

// New publishes a prepared root under the sync request it came from.
func New(root *Root, syncRequest level.SyncRequest) *Tree {
	return &Tree{
		root:        root,
		syncRequest: syncRequest,
		since:       time.Now(),
	}
}

func (t *Tree) Root() *Root { return t.root }

func (t *Tree) SyncRequest() level.SyncRequest { return t.syncRequest }

func (t *Tree) Filename() string { return t.syncRequest.Filename }

// Since is the wall time this snapshot entered service.
func (t *Tree) Since() time.Time { return t.since }

// Uptime is how long this snapshot has been in service.
func (t *Tree) Uptime() time.Duration { return time.Since(t.since) }

// IsOlderThan tests whether a fulfilled request supersedes this snapshot.
func (t *Tree) IsOlderThan(requestID int64) bool {
	return t.syncRequest.ID < requestID
}
