package mock

import (
	"context"
	"errors"

	"github.com/spinvfx/spinfab/pkg/domain"
	"github.com/spinvfx/spinfab/pkg/domain/dependency"
	depdb "github.com/spinvfx/spinfab/pkg/domain/dependency/db"
)

// Dependency is a hand-written test double for the profile and
// bundle store.
type Dependency struct {
	Impl struct {
		CreateProfile       func(ctx context.Context, path domain.LevelPath, name string, description string, packages []dependency.PackageRef, bundles []dependency.Bundle, createdBy string) (dependency.Profile, error)
		GetProfile          func(ctx context.Context, id string) (dependency.Profile, bool, error)
		GetProfileByPath    func(ctx context.Context, path domain.LevelPath) (dependency.Profile, bool, error)
		ListProfiles        func(ctx context.Context, query string) ([]dependency.Profile, error)
		ProfilesUnderPath   func(ctx context.Context, path domain.LevelPath) ([]dependency.Profile, error)
		PatchProfile        func(ctx context.Context, id string, name string, description string) (dependency.Profile, bool, error)
		DeleteProfile       func(ctx context.Context, id string) (bool, error)
		SetProfilePackages  func(ctx context.Context, id string, refs []dependency.PackageRef) error
		SetProfileBundles   func(ctx context.Context, id string, bundles []dependency.Bundle) error
		SetProfileStatus    func(ctx context.Context, id string, status string, rxt string) (bool, error)
		AddProfileComment   func(ctx context.Context, profileID string, comment string, createdBy string) (dependency.Comment, bool, error)
		ListProfileComments func(ctx context.Context, profileID string) ([]dependency.Comment, error)
		CreateBundle        func(ctx context.Context, bundle dependency.Bundle) (dependency.Bundle, error)
		GetBundle           func(ctx context.Context, name string) (dependency.Bundle, bool, error)
		ListBundles         func(ctx context.Context, query string) ([]dependency.Bundle, error)
		SetBundlePackages   func(ctx context.Context, name string, refs []dependency.PackageRef) (dependency.Bundle, bool, error)
		DeleteBundle        func(ctx context.Context, name string) (bool, error)
	}
}

var _ depdb.Interface = &Dependency{}

func New() *Dependency {
	return &Dependency{}
}

func (m *Dependency) CreateProfile(ctx context.Context, path domain.LevelPath, name string, description string, packages []dependency.PackageRef, bundles []dependency.Bundle, createdBy string) (dependency.Profile, error) {
	if m.Impl.CreateProfile == nil {
		return dependency.Profile{}, errors.New("mock: CreateProfile is not set")
	}
	return m.Impl.CreateProfile(ctx, path, name, description, packages, bundles, createdBy)
}

func (m *Dependency) GetProfile(ctx context.Context, id string) (dependency.Profile, bool, error) {
	if m.Impl.GetProfile == nil {
		return dependency.Profile{}, false, errors.New("mock: GetProfile is not set")
	}
	return m.Impl.GetProfile(ctx, id)
}

func (m *Dependency) GetProfileByPath(ctx context.Context, path domain.LevelPath) (dependency.Profile, bool, error) {
	if m.Impl.GetProfileByPath == nil {
		return dependency.Profile{}, false, errors.New("mock: GetProfileByPath is not set")
	}
	return m.Impl.GetProfileByPath(ctx, path)
}

func (m *Dependency) ListProfiles(ctx context.Context, query string) ([]dependency.Profile, error) {
	if m.Impl.ListProfiles == nil {
		return nil, errors.New("mock: ListProfiles is not set")
	}
	return m.Impl.ListProfiles(ctx, query)
}

func (m *Dependency) ProfilesUnderPath(ctx context.Context, path domain.LevelPath) ([]dependency.Profile, error) {
	if m.Impl.ProfilesUnderPath == nil {
		return nil, errors.New("mock: ProfilesUnderPath is not set")
	}
	return m.Impl.ProfilesUnderPath(ctx, path)
}

func (m *Dependency) PatchProfile(ctx context.Context, id string, name string, description string) (dependency.Profile, bool, error) {
	if m.Impl.PatchProfile == nil {
		return dependency.Profile{}, false, errors.New("mock: PatchProfile is not set")
	}
	return m.Impl.PatchProfile(ctx, id, name, description)
}

func (m *Dependency) DeleteProfile(ctx context.Context, id string) (bool, error) {
	if m.Impl.DeleteProfile == nil {
		return false, errors.New("mock: DeleteProfile is not set")
	}
	return m.Impl.DeleteProfile(ctx, id)
}

func (m *Dependency) SetProfilePackages(ctx context.Context, id string, refs []dependency.PackageRef) error {
	if m.Impl.SetProfilePackages == nil {
		return errors.New("mock: SetProfilePackages is not set")
	}
	return m.Impl.SetProfilePackages(ctx, id, refs)
}

func (m *Dependency) SetProfileBundles(ctx context.Context, id string, bundles []dependency.Bundle) error {
	if m.Impl.SetProfileBundles == nil {
		return errors.New("mock: SetProfileBundles is not set")
	}
	return m.Impl.SetProfileBundles(ctx, id, bundles)
}

func (m *Dependency) SetProfileStatus(ctx context.Context, id string, status string, rxt string) (bool, error) {
	if m.Impl.SetProfileStatus == nil {
		return false, errors.New("mock: SetProfileStatus is not set")
	}
	return m.Impl.SetProfileStatus(ctx, id, status, rxt)
}

func (m *Dependency) AddProfileComment(ctx context.Context, profileID string, comment string, createdBy string) (dependency.Comment, bool, error) {
	if m.Impl.AddProfileComment == nil {
		return dependency.Comment{}, false, errors.New("mock: AddProfileComment is not set")
	}
	return m.Impl.AddProfileComment(ctx, profileID, comment, createdBy)
}

func (m *Dependency) ListProfileComments(ctx context.Context, profileID string) ([]dependency.Comment, error) {
	if m.Impl.ListProfileComments == nil {
		return nil, errors.New("mock: ListProfileComments is not set")
	}
	return m.Impl.ListProfileComments(ctx, profileID)
}

func (m *Dependency) CreateBundle(ctx context.Context, bundle dependency.Bundle) (dependency.Bundle, error) {
	if m.Impl.CreateBundle == nil {
		return dependency.Bundle{}, errors.New("mock: CreateBundle is not set")
	}
	return m.Impl.CreateBundle(ctx, bundle)
}

func (m *Dependency) GetBundle(ctx context.Context, name string) (dependency.Bundle, bool, error) {
	if m.Impl.GetBundle == nil {
		return dependency.Bundle{}, false, errors.New("mock: GetBundle is not set")
	}
	return m.Impl.GetBundle(ctx, name)
}

func (m *Dependency) ListBundles(ctx context.Context, query string) ([]dependency.Bundle, error) {
	if m.Impl.ListBundles == nil {
		return nil, errors.New("mock: ListBundles is not set")
	}
	return m.Impl.ListBundles(ctx, query)
}

func (m *Dependency) SetBundlePackages(ctx context.Context, name string, refs []dependency.PackageRef) (dependency.Bundle, bool, error) {
	if m.Impl.SetBundlePackages == nil {
		return dependency.Bundle{}, false, errors.New("mock: SetBundlePackages is not set")
	}
	return m.Impl.SetBundlePackages(ctx, name, refs)
}

func (m *Dependency) DeleteBundle(ctx context.Context, name string) (bool, error) {
	if m.Impl.DeleteBundle == nil {
		return false, errors.New("mock: DeleteBundle is not set")
	}
	return m.Impl.DeleteBundle(ctx, name)
}
