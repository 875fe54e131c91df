package service

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/spinvfx/spinfab/pkg/conn/bus"
	"github.com/spinvfx/spinfab/pkg/domain"
	"github.com/spinvfx/spinfab/pkg/domain/dependency"
	depdb "github.com/spinvfx/spinfab/pkg/domain/dependency/db"
	xerrors "github.com/spinvfx/spinfab/pkg/errors"
)

// LevelVisibility answers whether an operator may see a level.
//
// With checkExistence the level must also exist in the tree in
// service, not merely parse.
type LevelVisibility interface {
	IsVisible(ctx context.Context, path domain.LevelPath, operator domain.User, checkExistence bool) (bool, error)
}

// CreatedByName renders the operator for created_by fields.
func CreatedByName(operator domain.User) string {
	if operator.FullName != "" {
		return operator.FullName
	}
	return "system"
}

// ProfileService resolves effective profiles along the level hierarchy
// and keeps validation state in sync when profiles change.
type ProfileService struct {
	store    depdb.Interface
	levels   LevelVisibility
	packages *dependency.PackageIndex
	events   bus.Publisher

	skipDescendantUpdates bool
	logger                *log.Logger

	background sync.WaitGroup
}

func New(
	store depdb.Interface,
	levels LevelVisibility,
	packages *dependency.PackageIndex,
	events bus.Publisher,
	skipDescendantUpdates bool,
	logger *log.Logger,
) *ProfileService {
	if logger == nil {
		logger = log.Default()
	}
	return &ProfileService{
		store:                 store,
		levels:                levels,
		packages:              packages,
		events:                events,
		skipDescendantUpdates: skipDescendantUpdates,
		logger:                logger,
	}
}

// Quiesce blocks until background descendant revalidations finish.
//
// Daemons call this on shutdown. Tests call it before asserting on
// published events.
func (s *ProfileService) Quiesce() {
	s.background.Wait()
}

// Get fetches one profile as stored, without inheritance.
func (s *ProfileService) Get(ctx context.Context, id string) (dependency.Profile, error) {
	profile, found, err := s.store.GetProfile(ctx, id)
	if err != nil {
		return dependency.Profile{}, err
	}
	if !found {
		return dependency.Profile{}, dependency.Reject(404, "Profile not found")
	}
	return profile, nil
}

// GetByPath fetches the profile attached exactly at a path.
func (s *ProfileService) GetByPath(ctx context.Context, path domain.LevelPath) (dependency.Profile, bool, error) {
	return s.store.GetProfileByPath(ctx, domain.CanonizePath(string(path)))
}

// List pages through profiles whose name contains query.
func (s *ProfileService) List(ctx context.Context, query string, page int, pageSize int) ([]dependency.Profile, int, error) {
	profiles, err := s.store.ListProfiles(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	total := len(profiles)
	if pageSize <= 0 {
		return profiles, total, nil
	}
	if page < 1 {
		page = 1
	}
	from := (page - 1) * pageSize
	if from >= total {
		return []dependency.Profile{}, total, nil
	}
	to := from + pageSize
	if to > total {
		to = total
	}
	return profiles[from:to], total, nil
}

// GetEffective resolves the effective profile of a stored profile.
//
// The resolution runs at the profile's own path, so the result carries
// the profile's identity with packages and bundles inherited from
// ancestors merged in. With excludeDeletions, deletion overrides and
// emptied bundles are dropped from the result.
func (s *ProfileService) GetEffective(ctx context.Context, id string, excludeDeletions bool) (dependency.Profile, error) {
	profile, found, err := s.store.GetProfile(ctx, id)
	if err != nil {
		return dependency.Profile{}, err
	}
	if !found {
		return dependency.Profile{}, dependency.Reject(404, "Profile not found")
	}

	effective, found, err := s.effectiveAt(ctx, profile.Path)
	if err != nil {
		return dependency.Profile{}, err
	}
	if !found || effective.ID != id {
		return dependency.Profile{}, dependency.Reject(404, "Profile not found at expected path")
	}

	if excludeDeletions {
		effective = withoutDeletions(effective)
	}
	return effective, nil
}

// GetEffectiveByPath resolves the effective profile governing a path,
// whether or not a profile is attached exactly there.
func (s *ProfileService) GetEffectiveByPath(ctx context.Context, path domain.LevelPath, excludeDeletions bool) (dependency.Profile, error) {
	effective, found, err := s.effectiveAt(ctx, domain.CanonizePath(string(path)))
	if err != nil {
		return dependency.Profile{}, err
	}
	if !found {
		return dependency.Profile{}, dependency.Reject(404, "Profile not found at path: "+string(path))
	}

	if excludeDeletions {
		effective = withoutDeletions(effective)
	}
	return effective, nil
}

func withoutDeletions(p dependency.Profile) dependency.Profile {
	packages := []dependency.PackageRef{}
	for _, ref := range p.Packages {
		if !ref.IsDeleted() {
			packages = append(packages, ref)
		}
	}
	bundles := []dependency.Bundle{}
	for _, b := range p.Bundles {
		if !b.IsEmpty() {
			bundles = append(bundles, b)
		}
	}
	p.Packages = packages
	p.Bundles = bundles
	return p
}

// effectiveAt walks from the root down to path, merging each attached
// profile over its parent's effective profile.
//
// The identity of the result is that of the deepest attached profile.
// Package overrides replace versions, deletion marks exclude, and
// bundle lists keep the parent's order with child bundles overriding
// same-named entries and new ones appended.
func (s *ProfileService) effectiveAt(ctx context.Context, path domain.LevelPath) (dependency.Profile, bool, error) {
	if path == "" {
		path = domain.RootPath
	}

	local, foundLocal, err := s.store.GetProfileByPath(ctx, path)
	if err != nil {
		return dependency.Profile{}, false, err
	}

	if path.IsRoot() {
		return local, foundLocal, nil
	}

	parentPath := string(path)[:strings.LastIndex(string(path), "/")]
	parent, foundParent, err := s.effectiveAt(ctx, domain.LevelPath(parentPath))
	if err != nil {
		return dependency.Profile{}, false, err
	}

	if !foundLocal {
		return parent, foundParent, nil
	}

	effective := dependency.Profile{
		ID:          local.ID,
		Path:        path,
		Name:        local.Name,
		Description: local.Description,
		CreatedAt:   local.CreatedAt,
		CreatedBy:   local.CreatedBy,
		Status:      local.Status,
		Rxt:         local.Rxt,
	}

	effective.Packages = []dependency.PackageRef{}
	if foundParent {
		effective.Packages = append(effective.Packages, parent.Packages...)
	}

	exclude := map[string]bool{}
	for _, p := range local.Packages {
		inherited := effective.FindPackage(p.Name)
		if inherited == nil {
			effective.Packages = append(effective.Packages, p)
			continue
		}
		version := strings.TrimSpace(p.Version)
		if version == dependency.DeletedVersion {
			exclude[p.Name] = true
		} else if version != "" {
			inherited.Version = p.Version
		}
	}
	if len(exclude) > 0 {
		kept := []dependency.PackageRef{}
		for _, p := range effective.Packages {
			if !exclude[p.Name] {
				kept = append(kept, p)
			}
		}
		effective.Packages = kept
	}

	effective.Bundles = []dependency.Bundle{}
	if foundParent {
		for _, b := range parent.Bundles {
			if override := local.FindBundle(b.Name); override != nil {
				effective.Bundles = append(effective.Bundles, *override)
			} else {
				effective.Bundles = append(effective.Bundles, b)
			}
		}
	}
	for _, b := range local.Bundles {
		if effective.FindBundle(b.Name) == nil {
			effective.Bundles = append(effective.Bundles, b)
		}
	}

	return effective, true, nil
}

// Create attaches a new profile to a level.
//
// A level may carry at most one profile. The profile id is derived from
// the path, so moving a profile means creating it anew at the target.
func (s *ProfileService) Create(
	ctx context.Context, operator domain.User, path domain.LevelPath, name string, description string,
) (dependency.Profile, error) {
	path = domain.CanonizePath(string(path))

	if ok, err := s.levels.IsVisible(ctx, path, operator, true); err != nil {
		return dependency.Profile{}, xerrors.WrapWithNote("creating profile: level lookup failed", err)
	} else if !ok {
		return dependency.Profile{}, dependency.Reject(400, "Level not found at path")
	}

	if _, found, err := s.store.GetProfileByPath(ctx, path); err != nil {
		return dependency.Profile{}, err
	} else if found {
		return dependency.Profile{}, dependency.Reject(409, "There is already a profile attached to path "+string(path))
	}

	if _, found, err := s.store.GetProfile(ctx, dependency.ProfileIDFromPath(path)); err != nil {
		return dependency.Profile{}, err
	} else if found {
		return dependency.Profile{}, dependency.Reject(409, "A profile with the same id already exist")
	}

	profile, err := s.store.CreateProfile(ctx, path, name, description, nil, nil, CreatedByName(operator))
	if err != nil {
		return dependency.Profile{}, err
	}

	s.onPathChanged(path, false)
	return profile, nil
}

// PatchSpec carries the fields to rewrite. Empty fields keep the
// stored value.
type PatchSpec struct {
	Path        domain.LevelPath
	Name        string
	Description string
}

// Patch renames a profile or moves it to another level.
//
// A move recreates the profile at the target path, carrying over its
// packages and bundles, then deletes the original. Both affected
// branches are scheduled for revalidation unless one contains the
// other.
func (s *ProfileService) Patch(ctx context.Context, operator domain.User, id string, patch PatchSpec) (dependency.Profile, error) {
	profile, found, err := s.store.GetProfile(ctx, id)
	if err != nil {
		return dependency.Profile{}, err
	}
	if !found {
		return dependency.Profile{}, dependency.Reject(404, "Profile not found")
	}

	if patch.Name == "" {
		patch.Name = profile.Name
	}
	if patch.Description == "" {
		patch.Description = profile.Description
	}
	if patch.Path == "" {
		patch.Path = profile.Path
	}

	oldPath := domain.CanonizePath(string(profile.Path))
	newPath := domain.CanonizePath(string(patch.Path))

	if oldPath == newPath {
		patched, found, err := s.store.PatchProfile(ctx, id, patch.Name, patch.Description)
		if err != nil {
			return dependency.Profile{}, err
		}
		if !found {
			return dependency.Profile{}, dependency.Reject(404, "Profile not found")
		}
		return patched, nil
	}

	if ok, err := s.levels.IsVisible(ctx, newPath, operator, true); err != nil {
		return dependency.Profile{}, xerrors.WrapWithNote("moving profile: level lookup failed", err)
	} else if !ok {
		return dependency.Profile{}, dependency.Reject(409, "Target path not found: "+string(newPath))
	}

	moved, err := s.store.CreateProfile(
		ctx, newPath, patch.Name, patch.Description, profile.Packages, profile.Bundles, CreatedByName(operator),
	)
	if err != nil {
		return dependency.Profile{}, err
	}

	if _, err := s.store.DeleteProfile(ctx, id); err != nil {
		s.logger.Printf("unable to delete profile %s at previous path %s: %v", id, oldPath, err)
	}

	switch {
	case oldPath.IsAncestorOf(newPath):
		s.onPathChanged(oldPath, true)
	case newPath.IsAncestorOf(oldPath):
		s.onPathChanged(newPath, false)
	default:
		s.onPathChanged(oldPath, true)
		s.onPathChanged(newPath, false)
	}

	return moved, nil
}

// Delete removes a profile. The root profile cannot be deleted.
func (s *ProfileService) Delete(ctx context.Context, id string) error {
	profile, found, err := s.store.GetProfile(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return dependency.Reject(404, "Profile not found")
	}

	if strings.TrimSpace(string(profile.Path)) == "" || profile.Path.IsRoot() {
		return dependency.Reject(400, "Unable to delete the root profile")
	}

	if _, err := s.store.DeleteProfile(ctx, id); err != nil {
		return err
	}

	s.onPathChanged(profile.Path, true)
	return nil
}

// DetachFromPath removes the profile attached at a path, if any.
//
// The root profile is protected unless force is set. Level deletions
// use this to drop orphaned profiles.
func (s *ProfileService) DetachFromPath(ctx context.Context, path domain.LevelPath, force bool) error {
	path = domain.CanonizePath(string(path))

	if !force && path.IsRoot() {
		return dependency.Reject(400, "Unable to delete the root profile")
	}

	profile, found, err := s.store.GetProfileByPath(ctx, path)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	if _, err := s.store.DeleteProfile(ctx, profile.ID); err != nil {
		return err
	}

	s.onPathChanged(path, true)
	return nil
}

// SetPackages replaces the whole local package list of a profile.
func (s *ProfileService) SetPackages(ctx context.Context, id string, refs []dependency.PackageRef) error {
	profile, found, err := s.store.GetProfile(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return dependency.Reject(404, "Profile not found")
	}

	if err := dependency.ValidatePackageRefs(refs); err != nil {
		return err
	}

	if err := s.store.SetProfilePackages(ctx, id, refs); err != nil {
		return err
	}

	s.onPathChanged(profile.Path, false)
	return nil
}

// DeletePackage removes a package from the profile's effective view.
//
// An inherited package is shadowed with a deletion override. A local
// reference is rewritten in place to the deletion mark. Deleting an
// already deleted package is a no-op.
func (s *ProfileService) DeletePackage(ctx context.Context, id string, packageName string) error {
	profile, found, err := s.store.GetProfile(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return dependency.Reject(404, "Profile not found")
	}

	effective, found, err := s.effectiveAt(ctx, profile.Path)
	if err != nil {
		return err
	}
	if !found || effective.ID != id {
		return dependency.Reject(404, "Profile not found at expected path")
	}

	inEffective := effective.FindPackage(packageName)
	if inEffective == nil {
		return dependency.Reject(404, "Package not found")
	}
	if inEffective.IsDeleted() {
		return nil
	}

	if local := profile.FindPackage(packageName); local == nil {
		profile.Packages = append(profile.Packages, dependency.PackageRef{
			Name:    packageName,
			Version: dependency.DeletedVersion,
		})
	} else {
		local.Version = dependency.DeletedVersion
	}

	if err := s.store.SetProfilePackages(ctx, id, profile.Packages); err != nil {
		return err
	}

	s.onPathChanged(profile.Path, false)
	return nil
}

// AddBundle attaches a bundle to a profile.
//
// A bundle new to the effective view must exist in the library with the
// same package list, unless assumeInLibrary vouches for it. A deleted
// bundle is revived with the given packages. A bundle already present
// with a different package set is only replaced with replaceAllowed.
func (s *ProfileService) AddBundle(
	ctx context.Context,
	id string,
	bundleName string,
	bundleDescription string,
	refs []dependency.PackageRef,
	assumeInLibrary bool,
	replaceAllowed bool,
) (dependency.Bundle, error) {
	profile, found, err := s.store.GetProfile(ctx, id)
	if err != nil {
		return dependency.Bundle{}, err
	}
	if !found {
		return dependency.Bundle{}, dependency.Reject(404, "Profile not found")
	}

	if strings.TrimSpace(bundleName) == "" {
		return dependency.Bundle{}, dependency.Reject(422, "Bundle name empty or missing")
	}

	effective, found, err := s.effectiveAt(ctx, profile.Path)
	if err != nil {
		return dependency.Bundle{}, err
	}
	if !found || effective.ID != id {
		return dependency.Bundle{}, dependency.Reject(404, "Profile not found at expected path")
	}

	if err := dependency.ValidatePackageRefs(refs); err != nil {
		return dependency.Bundle{}, err
	}

	var libraryBundle *dependency.Bundle
	if assumeInLibrary {
		libraryBundle = &dependency.Bundle{Name: bundleName, Description: bundleDescription, Packages: refs}
	} else if b, found, err := s.store.GetBundle(ctx, bundleName); err != nil {
		return dependency.Bundle{}, err
	} else if found {
		libraryBundle = &b
	}

	local := profile.FindBundle(bundleName)
	inEffective := effective.FindBundle(bundleName)

	switch {
	case inEffective == nil:
		if libraryBundle == nil {
			return dependency.Bundle{}, dependency.Reject(404, "Bundle '"+bundleName+"' missing from library")
		}
		if !libraryBundle.PackagesMatch(refs) {
			return dependency.Bundle{}, dependency.Reject(
				409,
				"Attempting to re-attach bundle '"+bundleName+"' to profile with a package set not matching the one on library",
			)
		}
		profile.Bundles = append(profile.Bundles, dependency.Bundle{
			Name:        libraryBundle.Name,
			Description: libraryBundle.Description,
			Packages:    libraryBundle.Packages,
		})

	case inEffective.IsEmpty():
		// Previously attached then deleted. Revive with the given list.
		if local == nil {
			profile.Bundles = append(profile.Bundles, dependency.Bundle{
				Name:        bundleName,
				Description: bundleDescription,
				Packages:    refs,
			})
		} else {
			local.Packages = refs
		}

	case inEffective.PackagesMatch(refs):
		return dependency.Bundle{}, dependency.Reject(409, "Bundle already in profile")

	case replaceAllowed:
		if local == nil {
			profile.Bundles = append(profile.Bundles, dependency.Bundle{
				Name:        bundleName,
				Description: bundleDescription,
				Packages:    refs,
			})
		} else {
			local.Packages = refs
		}

	default:
		return dependency.Bundle{}, dependency.Reject(409, "Bundle with the same name and different package set already in profile")
	}

	if err := s.store.SetProfileBundles(ctx, id, profile.Bundles); err != nil {
		return dependency.Bundle{}, err
	}

	s.onPathChanged(profile.Path, false)

	if attached := profile.FindBundle(bundleName); attached != nil {
		return *attached, nil
	}
	return dependency.Bundle{}, nil
}

// DeleteBundle detaches a bundle from the profile's effective view.
//
// An inherited bundle is shadowed by an empty local entry. A local one
// has its package list emptied in place.
func (s *ProfileService) DeleteBundle(ctx context.Context, id string, bundleName string) error {
	profile, found, err := s.store.GetProfile(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return dependency.Reject(404, "Profile not found")
	}

	effective, found, err := s.effectiveAt(ctx, profile.Path)
	if err != nil {
		return err
	}
	if !found || effective.ID != id {
		return dependency.Reject(404, "Profile not found at expected path")
	}

	inEffective := effective.FindBundle(bundleName)
	if inEffective == nil {
		return dependency.Reject(404, "Bundle not found")
	}
	if inEffective.IsEmpty() {
		return nil
	}

	if local := profile.FindBundle(bundleName); local == nil {
		profile.Bundles = append(profile.Bundles, dependency.Bundle{Name: bundleName, Packages: []dependency.PackageRef{}})
	} else {
		local.Packages = []dependency.PackageRef{}
	}

	if err := s.store.SetProfileBundles(ctx, id, profile.Bundles); err != nil {
		return err
	}

	s.onPathChanged(profile.Path, false)
	return nil
}

// AddComment appends a comment to a profile.
func (s *ProfileService) AddComment(ctx context.Context, operator domain.User, id string, comment string) (dependency.Comment, error) {
	added, found, err := s.store.AddProfileComment(ctx, id, comment, CreatedByName(operator))
	if err != nil {
		return dependency.Comment{}, err
	}
	if !found {
		return dependency.Comment{}, dependency.Reject(404, "Profile not found")
	}
	return added, nil
}

// ListComments pages through a profile's comments, oldest first.
func (s *ProfileService) ListComments(ctx context.Context, id string, page int, pageSize int) ([]dependency.Comment, int, error) {
	if _, found, err := s.store.GetProfile(ctx, id); err != nil {
		return nil, 0, err
	} else if !found {
		return nil, 0, dependency.Reject(404, "Profile not found")
	}

	comments, err := s.store.ListProfileComments(ctx, id)
	if err != nil {
		return nil, 0, err
	}

	total := len(comments)
	if pageSize <= 0 {
		return comments, total, nil
	}
	if page < 1 {
		page = 1
	}
	from := (page - 1) * pageSize
	if from >= total {
		return []dependency.Comment{}, total, nil
	}
	to := from + pageSize
	if to > total {
		to = total
	}
	return comments[from:to], total, nil
}

// ChangeStatus records a validation verdict on a profile.
//
// The reason is kept as an auto-generated comment. The rxt payload is
// only retained for valid profiles.
func (s *ProfileService) ChangeStatus(ctx context.Context, id string, status string, reason string, rxt string) error {
	if status == "" {
		return nil
	}

	if _, found, err := s.store.GetProfile(ctx, id); err != nil {
		return err
	} else if !found {
		return dependency.Reject(404, "Profile not found")
	}

	if _, err := s.store.SetProfileStatus(ctx, id, status, rxt); err != nil {
		return err
	}

	if _, _, err := s.store.AddProfileComment(ctx, id, "validation detail: "+reason, "system"); err != nil {
		s.logger.Printf("recording validation detail on profile %s: %v", id, err)
	}
	return nil
}

// RequestValidation puts a profile back to pending and publishes its
// effective form for revalidation.
func (s *ProfileService) RequestValidation(ctx context.Context, id string) error {
	profile, found, err := s.store.GetProfile(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return dependency.Reject(404, "Profile not found")
	}

	if _, err := s.store.SetProfileStatus(ctx, id, dependency.StatusPending, ""); err != nil {
		return err
	}
	return s.requestValidationAt(ctx, profile.Path)
}

// onPathChanged publishes a validation request for the effective
// profile at path, then schedules revalidation of every descendant
// profile in the background.
func (s *ProfileService) onPathChanged(path domain.LevelPath, profileDeleted bool) {
	ctx := context.Background()

	if !profileDeleted {
		if err := s.requestValidationAt(ctx, path); err != nil {
			s.logger.Printf("requesting validation at %s: %v", path, err)
		}
	}

	if s.skipDescendantUpdates {
		return
	}

	s.background.Add(1)
	go func() {
		defer s.background.Done()
		if err := s.revalidateDescendants(ctx, path); err != nil {
			s.logger.Printf("revalidating profiles under %s: %v", path, err)
		}
	}()
}

func (s *ProfileService) requestValidationAt(ctx context.Context, path domain.LevelPath) error {
	effective, found, err := s.effectiveAt(ctx, domain.CanonizePath(string(path)))
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	return s.events.Publish(ctx, domain.EventTypeValidationRequest, effective)
}

func (s *ProfileService) revalidateDescendants(ctx context.Context, path domain.LevelPath) error {
	descendants, err := s.store.ProfilesUnderPath(ctx, domain.CanonizePath(string(path)))
	if err != nil {
		return err
	}

	for _, p := range descendants {
		found, err := s.store.SetProfileStatus(ctx, p.ID, dependency.StatusPending, "")
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		if err := s.requestValidationAt(ctx, p.Path); err != nil {
			return err
		}
	}
	return nil
}
