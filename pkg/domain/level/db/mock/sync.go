package mock

import (
	"context"
	"errors"

	"github.com/spinvfx/spinfab/pkg/domain/level"
	leveldb "github.com/spinvfx/spinfab/pkg/domain/level/db"
)

// Sync is a hand-written test double for the snapshot catalog.
type Sync struct {
	Impl struct {
		NewSyncRequest          func(ctx context.Context, comment string) (level.SyncRequest, error)
		UnfulfilledSyncRequests func(ctx context.Context) ([]level.SyncRequest, error)
		LastFulfilledRequest    func(ctx context.Context) (level.SyncRequest, bool, error)
		UpdateRequestFilename   func(ctx context.Context, id int64, filename string) error
	}
}

var _ leveldb.Interface = &Sync{}

func New() *Sync {
	return &Sync{}
}

func (m *Sync) NewSyncRequest(ctx context.Context, comment string) (level.SyncRequest, error) {
	if m.Impl.NewSyncRequest == nil {
		return level.SyncRequest{}, errors.New("mock: NewSyncRequest is not set")
	}
	return m.Impl.NewSyncRequest(ctx, comment)
}

func (m *Sync) UnfulfilledSyncRequests(ctx context.Context) ([]level.SyncRequest, error) {
	if m.Impl.UnfulfilledSyncRequests == nil {
		return nil, errors.New("mock: UnfulfilledSyncRequests is not set")
	}
	return m.Impl.UnfulfilledSyncRequests(ctx)
}

func (m *Sync) LastFulfilledRequest(ctx context.Context) (level.SyncRequest, bool, error) {
	if m.Impl.LastFulfilledRequest == nil {
		return level.SyncRequest{}, false, errors.New("mock: LastFulfilledRequest is not set")
	}
	return m.Impl.LastFulfilledRequest(ctx)
}

func (m *Sync) UpdateRequestFilename(ctx context.Context, id int64, filename string) error {
	if m.Impl.UpdateRequestFilename == nil {
		return errors.New("mock: UpdateRequestFilename is not set")
	}
	return m.Impl.UpdateRequestFilename(ctx, id, filename)
}
