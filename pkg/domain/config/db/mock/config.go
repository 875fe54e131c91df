package mock

import (
	"context"
	"errors"

	"github.com/spinvfx/spinfab/pkg/domain"
	"github.com/spinvfx/spinfab/pkg/domain/config"
	configdb "github.com/spinvfx/spinfab/pkg/domain/config/db"
)

// Configs is a hand-written test double for the config metadata store.
type Configs struct {
	Impl struct {
		Create               func(ctx context.Context, path domain.LevelPath, name string, description string, inherits bool, createdBy string) (config.Config, error)
		Get                  func(ctx context.Context, id string) (config.Config, bool, error)
		Find                 func(ctx context.Context, name *string, path *domain.LevelPath) ([]config.Config, error)
		Update               func(ctx context.Context, id string, path domain.LevelPath, name string, description string, inherits bool, active int64) (config.Config, bool, error)
		Delete               func(ctx context.Context, id string) (bool, error)
		SetActiveStamp       func(ctx context.Context, id string, active int64) (config.Config, bool, error)
		ActiveByName         func(ctx context.Context, name string) ([]config.Config, error)
		ActiveByPathAndName  func(ctx context.Context, path domain.LevelPath, name string) ([]config.Config, error)
		CurrentByPathAndName func(ctx context.Context, path domain.LevelPath, name string) (config.Config, bool, error)
	}
}

var _ configdb.Interface = &Configs{}

func New() *Configs {
	return &Configs{}
}

func (m *Configs) Create(ctx context.Context, path domain.LevelPath, name string, description string, inherits bool, createdBy string) (config.Config, error) {
	if m.Impl.Create == nil {
		return config.Config{}, errors.New("mock: Create is not set")
	}
	return m.Impl.Create(ctx, path, name, description, inherits, createdBy)
}

func (m *Configs) Get(ctx context.Context, id string) (config.Config, bool, error) {
	if m.Impl.Get == nil {
		return config.Config{}, false, errors.New("mock: Get is not set")
	}
	return m.Impl.Get(ctx, id)
}

func (m *Configs) Find(ctx context.Context, name *string, path *domain.LevelPath) ([]config.Config, error) {
	if m.Impl.Find == nil {
		return nil, errors.New("mock: Find is not set")
	}
	return m.Impl.Find(ctx, name, path)
}

func (m *Configs) Update(ctx context.Context, id string, path domain.LevelPath, name string, description string, inherits bool, active int64) (config.Config, bool, error) {
	if m.Impl.Update == nil {
		return config.Config{}, false, errors.New("mock: Update is not set")
	}
	return m.Impl.Update(ctx, id, path, name, description, inherits, active)
}

func (m *Configs) Delete(ctx context.Context, id string) (bool, error) {
	if m.Impl.Delete == nil {
		return false, errors.New("mock: Delete is not set")
	}
	return m.Impl.Delete(ctx, id)
}

func (m *Configs) SetActiveStamp(ctx context.Context, id string, active int64) (config.Config, bool, error) {
	if m.Impl.SetActiveStamp == nil {
		return config.Config{}, false, errors.New("mock: SetActiveStamp is not set")
	}
	return m.Impl.SetActiveStamp(ctx, id, active)
}

func (m *Configs) ActiveByName(ctx context.Context, name string) ([]config.Config, error) {
	if m.Impl.ActiveByName == nil {
		return nil, errors.New("mock: ActiveByName is not set")
	}
	return m.Impl.ActiveByName(ctx, name)
}

func (m *Configs) ActiveByPathAndName(ctx context.Context, path domain.LevelPath, name string) ([]config.Config, error) {
	if m.Impl.ActiveByPathAndName == nil {
		return nil, errors.New("mock: ActiveByPathAndName is not set")
	}
	return m.Impl.ActiveByPathAndName(ctx, path, name)
}

func (m *Configs) CurrentByPathAndName(ctx context.Context, path domain.LevelPath, name string) (config.Config, bool, error) {
	if m.Impl.CurrentByPathAndName == nil {
		return config.Config{}, false, errors.New("mock: CurrentByPathAndName is not set")
	}
	return m.Impl.CurrentByPathAndName(ctx, path, name)
}
