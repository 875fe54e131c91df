package db

import (
	"context"

	"github.com/spinvfx/spinfab/pkg/domain"
	"github.com/spinvfx/spinfab/pkg/domain/config"
)

// Interface is the metadata store for configs.
//
// Rows returned here never carry a Configuration body; bodies live in
// their own store keyed by id.
type Interface interface {
	// Create persists a fresh row with active=0 and a generated id.
	Create(ctx context.Context, path domain.LevelPath, name string, description string, inherits bool, createdBy string) (config.Config, error)

	// Get fetches a row by id. ok is false when the id is unknown.
	Get(ctx context.Context, id string) (config.Config, bool, error)

	// Find lists rows matching the optional filters, ordered by path
	// then name. A nil filter matches everything; the name filter is a
	// case-insensitive substring.
	Find(ctx context.Context, name *string, path *domain.LevelPath) ([]config.Config, error)

	// Update rewrites the mutable columns of a row. ok is false when
	// the id is unknown.
	Update(ctx context.Context, id string, path domain.LevelPath, name string, description string, inherits bool, active int64) (config.Config, bool, error)

	// Delete removes a row. ok is false when the id is unknown.
	Delete(ctx context.Context, id string) (bool, error)

	// SetActiveStamp writes the activation timestamp of a row,
	// 0 to deactivate. ok is false when the id is unknown.
	SetActiveStamp(ctx context.Context, id string, active int64) (config.Config, bool, error)

	// ActiveByName lists every active row carrying the name,
	// ordered by path.
	ActiveByName(ctx context.Context, name string) ([]config.Config, error)

	// ActiveByPathAndName lists active rows at exactly (path, name),
	// newest activation first.
	ActiveByPathAndName(ctx context.Context, path domain.LevelPath, name string) ([]config.Config, error)

	// CurrentByPathAndName picks the row with the largest activation
	// timestamp at (path, name). ok is false when none is active.
	CurrentByPathAndName(ctx context.Context, path domain.LevelPath, name string) (config.Config, bool, error)
}
