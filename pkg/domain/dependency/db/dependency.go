package db

import (
	"context"

	"github.com/spinvfx/spinfab/pkg/domain"
	"github.com/spinvfx/spinfab/pkg/domain/dependency"
)

// Interface is the store for profiles, their comments, and the bundle
// library.
type Interface interface {
	// CreateProfile persists a profile with its deterministic id.
	// Creating a second profile at the same path fails with a
	// 409 StatusError from the conditional write.
	CreateProfile(ctx context.Context, path domain.LevelPath, name string, description string, packages []dependency.PackageRef, bundles []dependency.Bundle, createdBy string) (dependency.Profile, error)

	GetProfile(ctx context.Context, id string) (dependency.Profile, bool, error)
	GetProfileByPath(ctx context.Context, path domain.LevelPath) (dependency.Profile, bool, error)

	// ListProfiles lists profiles whose name contains query,
	// case-insensitive, ordered by path.
	ListProfiles(ctx context.Context, query string) ([]dependency.Profile, error)

	// ProfilesUnderPath lists profiles strictly below a path.
	ProfilesUnderPath(ctx context.Context, path domain.LevelPath) ([]dependency.Profile, error)

	// PatchProfile rewrites name and description in place.
	PatchProfile(ctx context.Context, id string, name string, description string) (dependency.Profile, bool, error)

	DeleteProfile(ctx context.Context, id string) (bool, error)

	SetProfilePackages(ctx context.Context, id string, refs []dependency.PackageRef) error
	SetProfileBundles(ctx context.Context, id string, bundles []dependency.Bundle) error

	// SetProfileStatus writes the validation status. rxt is kept only
	// for valid profiles.
	SetProfileStatus(ctx context.Context, id string, status string, rxt string) (bool, error)

	AddProfileComment(ctx context.Context, profileID string, comment string, createdBy string) (dependency.Comment, bool, error)
	ListProfileComments(ctx context.Context, profileID string) ([]dependency.Comment, error)

	// Bundle library.
	CreateBundle(ctx context.Context, bundle dependency.Bundle) (dependency.Bundle, error)
	GetBundle(ctx context.Context, name string) (dependency.Bundle, bool, error)
	ListBundles(ctx context.Context, query string) ([]dependency.Bundle, error)
	SetBundlePackages(ctx context.Context, name string, refs []dependency.PackageRef) (dependency.Bundle, bool, error)
	DeleteBundle(ctx context.Context, name string) (bool, error)
}
