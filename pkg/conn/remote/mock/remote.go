package mock

import (
	"context"
	"errors"

	"github.com/spinvfx/spinfab/pkg/conn/remote"
	"github.com/spinvfx/spinfab/pkg/domain"
)

// Configs is a hand-written test double for the config service client.
type Configs struct {
	Impl struct {
		EffectiveConfig func(ctx context.Context, name string, path domain.LevelPath) (map[string]any, bool, error)
	}
}

var _ remote.Configs = &Configs{}

func NewConfigs() *Configs {
	return &Configs{}
}

func (m *Configs) EffectiveConfig(ctx context.Context, name string, path domain.LevelPath) (map[string]any, bool, error) {
	if m.Impl.EffectiveConfig == nil {
		return nil, false, errors.New("mock: EffectiveConfig is not set")
	}
	return m.Impl.EffectiveConfig(ctx, name, path)
}

// Deps is a hand-written test double for the dependency service client.
type Deps struct {
	Impl struct {
		ProfilePackages func(ctx context.Context, profileID string) ([]string, bool, error)
		PackagesAtPath  func(ctx context.Context, path domain.LevelPath) ([]string, bool, error)
	}
}

var _ remote.Deps = &Deps{}

func NewDeps() *Deps {
	return &Deps{}
}

func (m *Deps) ProfilePackages(ctx context.Context, profileID string) ([]string, bool, error) {
	if m.Impl.ProfilePackages == nil {
		return nil, false, errors.New("mock: ProfilePackages is not set")
	}
	return m.Impl.ProfilePackages(ctx, profileID)
}

func (m *Deps) PackagesAtPath(ctx context.Context, path domain.LevelPath) ([]string, bool, error) {
	if m.Impl.PackagesAtPath == nil {
		return nil, false, errors.New("mock: PackagesAtPath is not set")
	}
	return m.Impl.PackagesAtPath(ctx, path)
}
