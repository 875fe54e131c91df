package service

import (
	"context"

	"github.com/spinvfx/spinfab/pkg/domain/dependency"
	depdb "github.com/spinvfx/spinfab/pkg/domain/dependency/db"
)

// BundlesService maintains the bundle library.
//
// Library bundles are attached to profiles by name, so the library is
// the source of truth for what a bundle's package list should be.
type BundlesService struct {
	store depdb.Interface
}

func NewBundles(store depdb.Interface) *BundlesService {
	return &BundlesService{store: store}
}

func (s *BundlesService) Get(ctx context.Context, name string) (dependency.Bundle, error) {
	bundle, found, err := s.store.GetBundle(ctx, name)
	if err != nil {
		return dependency.Bundle{}, err
	}
	if !found {
		return dependency.Bundle{}, dependency.Reject(404, "Bundle not found")
	}
	return bundle, nil
}

// List pages through library bundles whose name contains query.
func (s *BundlesService) List(ctx context.Context, query string, page int, pageSize int) ([]dependency.Bundle, int, error) {
	bundles, err := s.store.ListBundles(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	total := len(bundles)
	if pageSize <= 0 {
		return bundles, total, nil
	}
	if page < 1 {
		page = 1
	}
	from := (page - 1) * pageSize
	if from >= total {
		return []dependency.Bundle{}, total, nil
	}
	to := from + pageSize
	if to > total {
		to = total
	}
	return bundles[from:to], total, nil
}

func (s *BundlesService) Create(ctx context.Context, bundle dependency.Bundle) (dependency.Bundle, error) {
	if bundle.Name == "" {
		return dependency.Bundle{}, dependency.Reject(422, "Bundle name cannot be null.")
	}
	if !dependency.IsRefNameValid(bundle.Name) {
		return dependency.Bundle{}, dependency.Reject(422, "bundle name '"+bundle.Name+"' is not acceptable")
	}
	if err := dependency.ValidatePackageRefs(bundle.Packages); err != nil {
		return dependency.Bundle{}, err
	}

	if _, found, err := s.store.GetBundle(ctx, bundle.Name); err != nil {
		return dependency.Bundle{}, err
	} else if found {
		return dependency.Bundle{}, dependency.Reject(409, "There is already a bundle using the same name")
	}

	return s.store.CreateBundle(ctx, bundle)
}

// SetPackages replaces the package list of a library bundle.
//
// Profiles holding the bundle keep their attached copy. They pick up
// the new list the next time the bundle is attached.
func (s *BundlesService) SetPackages(ctx context.Context, name string, refs []dependency.PackageRef) (dependency.Bundle, error) {
	if _, found, err := s.store.GetBundle(ctx, name); err != nil {
		return dependency.Bundle{}, err
	} else if !found {
		return dependency.Bundle{}, dependency.Reject(404, "Bundle not found")
	}

	if err := dependency.ValidatePackageRefs(refs); err != nil {
		return dependency.Bundle{}, err
	}

	bundle, found, err := s.store.SetBundlePackages(ctx, name, refs)
	if err != nil {
		return dependency.Bundle{}, err
	}
	if !found {
		return dependency.Bundle{}, dependency.Reject(404, "Bundle not found")
	}
	return bundle, nil
}

func (s *BundlesService) Delete(ctx context.Context, name string) error {
	found, err := s.store.DeleteBundle(ctx, name)
	if err != nil {
		return err
	}
	if !found {
		return dependency.Reject(404, "Bundle not found")
	}
	return nil
}
