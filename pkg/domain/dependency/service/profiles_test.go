package service_test

import (
	"context"
	"log"
	"os"
	"reflect"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	busmock "github.com/spinvfx/spinfab/pkg/conn/bus/mock"
	"github.com/spinvfx/spinfab/pkg/domain"
	"github.com/spinvfx/spinfab/pkg/domain/dependency"
	depdb "github.com/spinvfx/spinfab/pkg/domain/dependency/db"
	"github.com/spinvfx/spinfab/pkg/domain/dependency/service"
	"github.com/spinvfx/spinfab/pkg/utils/try"
)

// memStore is an in-memory depdb.Interface for service tests.
type memStore struct {
	mu       sync.Mutex
	profiles map[string]dependency.Profile
	comments map[string][]dependency.Comment
	bundles  map[string]dependency.Bundle
}

var _ depdb.Interface = &memStore{}

func newMemStore() *memStore {
	return &memStore{
		profiles: map[string]dependency.Profile{},
		comments: map[string][]dependency.Comment{},
		bundles:  map[string]dependency.Bundle{},
	}
}

func cloneRefs(refs []dependency.PackageRef) []dependency.PackageRef {
	return append([]dependency.PackageRef{}, refs...)
}

func cloneBundles(bundles []dependency.Bundle) []dependency.Bundle {
	cloned := make([]dependency.Bundle, 0, len(bundles))
	for _, b := range bundles {
		b.Packages = cloneRefs(b.Packages)
		cloned = append(cloned, b)
	}
	return cloned
}

func cloneProfile(p dependency.Profile) dependency.Profile {
	p.Packages = cloneRefs(p.Packages)
	p.Bundles = cloneBundles(p.Bundles)
	return p
}

func (m *memStore) CreateProfile(
	_ context.Context, path domain.LevelPath, name string, description string,
	packages []dependency.PackageRef, bundles []dependency.Bundle, createdBy string,
) (dependency.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := dependency.ProfileIDFromPath(path)
	if _, occupied := m.profiles[id]; occupied {
		return dependency.Profile{}, dependency.Reject(409, "attempted creation of profile at same path (same id)")
	}
	profile := dependency.Profile{
		ID:          id,
		Path:        path,
		Name:        name,
		Description: description,
		CreatedAt:   time.Now().Format(dependency.CreatedAtLayout),
		CreatedBy:   createdBy,
		Status:      dependency.StatusPending,
		Packages:    cloneRefs(packages),
		Bundles:     cloneBundles(bundles),
	}
	m.profiles[id] = profile
	return cloneProfile(profile), nil
}

func (m *memStore) GetProfile(_ context.Context, id string) (dependency.Profile, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, found := m.profiles[id]
	return cloneProfile(p), found, nil
}

func (m *memStore) GetProfileByPath(_ context.Context, path domain.LevelPath) (dependency.Profile, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.profiles {
		if p.Path == path {
			return cloneProfile(p), true, nil
		}
	}
	return dependency.Profile{}, false, nil
}

func (m *memStore) ListProfiles(_ context.Context, query string) ([]dependency.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	found := []dependency.Profile{}
	for _, p := range m.profiles {
		if query == "" || strings.Contains(strings.ToLower(p.Name), strings.ToLower(query)) {
			found = append(found, cloneProfile(p))
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Path < found[j].Path })
	return found, nil
}

func (m *memStore) ProfilesUnderPath(_ context.Context, path domain.LevelPath) ([]dependency.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	found := []dependency.Profile{}
	for _, p := range m.profiles {
		if path.IsAncestorOf(p.Path) {
			found = append(found, cloneProfile(p))
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Path < found[j].Path })
	return found, nil
}

func (m *memStore) PatchProfile(_ context.Context, id string, name string, description string) (dependency.Profile, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, found := m.profiles[id]
	if !found {
		return dependency.Profile{}, false, nil
	}
	p.Name = name
	p.Description = description
	m.profiles[id] = p
	return cloneProfile(p), true, nil
}

func (m *memStore) DeleteProfile(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, found := m.profiles[id]
	delete(m.profiles, id)
	delete(m.comments, id)
	return found, nil
}

func (m *memStore) SetProfilePackages(_ context.Context, id string, refs []dependency.PackageRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, found := m.profiles[id]
	if !found {
		return dependency.Reject(404, "Profile not found")
	}
	p.Packages = cloneRefs(refs)
	m.profiles[id] = p
	return nil
}

func (m *memStore) SetProfileBundles(_ context.Context, id string, bundles []dependency.Bundle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, found := m.profiles[id]
	if !found {
		return dependency.Reject(404, "Profile not found")
	}
	p.Bundles = cloneBundles(bundles)
	m.profiles[id] = p
	return nil
}

func (m *memStore) SetProfileStatus(_ context.Context, id string, status string, rxt string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, found := m.profiles[id]
	if !found {
		return false, nil
	}
	p.Status = status
	if status == dependency.StatusValid {
		p.Rxt = rxt
	} else {
		p.Rxt = ""
	}
	m.profiles[id] = p
	return true, nil
}

func (m *memStore) AddProfileComment(_ context.Context, profileID string, comment string, createdBy string) (dependency.Comment, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, found := m.profiles[profileID]; !found {
		return dependency.Comment{}, false, nil
	}
	added := dependency.Comment{
		Comment:   comment,
		CreatedBy: createdBy,
		CreatedAt: time.Now().Format(dependency.CreatedAtLayout),
	}
	m.comments[profileID] = append(m.comments[profileID], added)
	return added, true, nil
}

func (m *memStore) ListProfileComments(_ context.Context, profileID string) ([]dependency.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]dependency.Comment{}, m.comments[profileID]...), nil
}

func (m *memStore) CreateBundle(_ context.Context, bundle dependency.Bundle) (dependency.Bundle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, occupied := m.bundles[bundle.Name]; occupied {
		return dependency.Bundle{}, dependency.Reject(409, "there is already a bundle using the same name")
	}
	bundle.Packages = cloneRefs(bundle.Packages)
	m.bundles[bundle.Name] = bundle
	return bundle, nil
}

func (m *memStore) GetBundle(_ context.Context, name string) (dependency.Bundle, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, found := m.bundles[name]
	b.Packages = cloneRefs(b.Packages)
	return b, found, nil
}

func (m *memStore) ListBundles(_ context.Context, query string) ([]dependency.Bundle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	found := []dependency.Bundle{}
	for _, b := range m.bundles {
		if query == "" || strings.Contains(strings.ToLower(b.Name), strings.ToLower(query)) {
			b.Packages = cloneRefs(b.Packages)
			found = append(found, b)
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Name < found[j].Name })
	return found, nil
}

func (m *memStore) SetBundlePackages(_ context.Context, name string, refs []dependency.PackageRef) (dependency.Bundle, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, found := m.bundles[name]
	if !found {
		return dependency.Bundle{}, false, nil
	}
	b.Packages = cloneRefs(refs)
	m.bundles[name] = b
	return b, true, nil
}

func (m *memStore) DeleteBundle(_ context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, found := m.bundles[name]
	delete(m.bundles, name)
	return found, nil
}

// allVisible accepts every path for every operator.
type allVisible struct{}

func (allVisible) IsVisible(context.Context, domain.LevelPath, domain.User, bool) (bool, error) {
	return true, nil
}

var quietLogger = log.New(os.Stderr, "", 0)

var operator = domain.User{Username: "jo", FullName: "Jo Doe"}

func testIndex() *dependency.PackageIndex {
	return dependency.NewPackageIndex([]dependency.Package{
		{Name: "fastapi", Category: "python", Versions: []string{"0.73", "0.75.1"}},
		{Name: "anyio", Category: "python", Versions: []string{"3.5.0"}},
		{Name: "sphinx", Category: "python", Versions: []string{"4.3.2"}},
		{Name: "alabaster", Category: "python", Versions: []string{"0.7.12"}},
	})
}

func newService(store depdb.Interface, events *busmock.Publisher) *service.ProfileService {
	return service.New(store, allVisible{}, testIndex(), events, true, quietLogger)
}

func statusCodeOf(t *testing.T, err error) int {
	t.Helper()
	se, ok := err.(*dependency.StatusError)
	if !ok {
		t.Fatalf("expected StatusError, got %v", err)
	}
	return se.Code
}

func refNames(refs []dependency.PackageRef) []string {
	names := []string{}
	for _, r := range refs {
		names = append(names, r.Name+" "+r.Version)
	}
	return names
}

func TestProfileService_DeletionOverride(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := newService(store, busmock.New())

	root := try.To(svc.Create(ctx, operator, "/", "studio", "")).OrFatal(t)
	if err := svc.SetPackages(ctx, root.ID, []dependency.PackageRef{
		{Name: "fastapi", Version: "0.73"},
		{Name: "anyio", Version: "3.5.0"},
		{Name: "sphinx", Version: "4.3.2"},
	}); err != nil {
		t.Fatal(err)
	}

	branch := try.To(svc.Create(ctx, operator, "/mumbai/a/b", "branch", "")).OrFatal(t)
	if err := svc.SetPackages(ctx, branch.ID, []dependency.PackageRef{
		{Name: "fastapi", Version: "0.75.1"},
	}); err != nil {
		t.Fatal(err)
	}
	if err := svc.DeletePackage(ctx, branch.ID, "sphinx"); err != nil {
		t.Fatal(err)
	}

	t.Run("the local version override and deletion win over inherited packages", func(t *testing.T) {
		effective := try.To(svc.GetEffective(ctx, branch.ID, true)).OrFatal(t)

		want := []string{"fastapi 0.75.1", "anyio 3.5.0"}
		if got := refNames(effective.Packages); !reflect.DeepEqual(got, want) {
			t.Errorf("effective packages: got %v, want %v", got, want)
		}
		if effective.ID != branch.ID || effective.Name != "branch" {
			t.Errorf("effective identity is not the branch profile: %+v", effective)
		}
	})

	t.Run("a path below the deepest profile resolves to the same effective", func(t *testing.T) {
		effective := try.To(svc.GetEffectiveByPath(ctx, "/mumbai/a/b/x", true)).OrFatal(t)

		want := []string{"fastapi 0.75.1", "anyio 3.5.0"}
		if got := refNames(effective.Packages); !reflect.DeepEqual(got, want) {
			t.Errorf("effective packages: got %v, want %v", got, want)
		}
		if effective.ID != branch.ID {
			t.Errorf("effective id: got %s, want %s", effective.ID, branch.ID)
		}
	})

	t.Run("without exclusion the deletion override stays visible", func(t *testing.T) {
		effective := try.To(svc.GetEffective(ctx, branch.ID, false)).OrFatal(t)

		sphinx := effective.FindPackage("sphinx")
		if sphinx != nil {
			// Inherited sphinx is removed outright, not marked.
			t.Errorf("sphinx should be excluded from the effective set: %+v", sphinx)
		}
	})

	t.Run("deleting an already deleted package is a no-op", func(t *testing.T) {
		if err := svc.DeletePackage(ctx, branch.ID, "sphinx"); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("deleting a package absent from the effective set is a 404", func(t *testing.T) {
		err := svc.DeletePackage(ctx, branch.ID, "numpy")
		if code := statusCodeOf(t, err); code != 404 {
			t.Errorf("status: got %d, want 404", code)
		}
	})
}

func TestProfileService_BundleAttachConflict(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	events := busmock.New()
	svc := newService(store, events)
	bundles := service.NewBundles(store)

	anyio := []dependency.PackageRef{{Name: "anyio", Version: "3.5.0"}}
	alabaster := []dependency.PackageRef{{Name: "alabaster", Version: "0.7.12"}}

	if _, err := bundles.Create(ctx, dependency.Bundle{Name: "B", Packages: anyio}); err != nil {
		t.Fatal(err)
	}

	profile := try.To(svc.Create(ctx, operator, "/mumbai/a", "a", "")).OrFatal(t)

	t.Run("attaching a library bundle with matching packages succeeds", func(t *testing.T) {
		attached := try.To(svc.AddBundle(ctx, profile.ID, "B", "", anyio, false, false)).OrFatal(t)
		if !attached.PackagesMatch(anyio) {
			t.Errorf("attached bundle packages: got %v", attached.Packages)
		}
	})

	if _, err := bundles.SetPackages(ctx, "B", alabaster); err != nil {
		t.Fatal(err)
	}

	t.Run("re-attaching with a different package set is a conflict", func(t *testing.T) {
		_, err := svc.AddBundle(ctx, profile.ID, "B", "", alabaster, false, false)
		if code := statusCodeOf(t, err); code != 409 {
			t.Errorf("status: got %d, want 409", code)
		}
	})

	t.Run("re-attaching the identical package set is also a conflict", func(t *testing.T) {
		_, err := svc.AddBundle(ctx, profile.ID, "B", "", anyio, false, false)
		if code := statusCodeOf(t, err); code != 409 {
			t.Errorf("status: got %d, want 409", code)
		}
	})

	t.Run("replace_allowed overrides the attached package set", func(t *testing.T) {
		attached := try.To(svc.AddBundle(ctx, profile.ID, "B", "", alabaster, false, true)).OrFatal(t)
		if !attached.PackagesMatch(alabaster) {
			t.Errorf("replaced bundle packages: got %v", attached.Packages)
		}
	})

	t.Run("attaching a bundle unknown to the library is a 404", func(t *testing.T) {
		_, err := svc.AddBundle(ctx, profile.ID, "nope", "", anyio, false, false)
		if code := statusCodeOf(t, err); code != 404 {
			t.Errorf("status: got %d, want 404", code)
		}
	})

	t.Run("attaching with packages not matching the library copy is a conflict", func(t *testing.T) {
		if _, err := bundles.Create(ctx, dependency.Bundle{Name: "C", Packages: anyio}); err != nil {
			t.Fatal(err)
		}
		_, err := svc.AddBundle(ctx, profile.ID, "C", "", alabaster, false, false)
		if code := statusCodeOf(t, err); code != 409 {
			t.Errorf("status: got %d, want 409", code)
		}
	})
}

func TestProfileService_DeleteBundle(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := newService(store, busmock.New())

	anyio := []dependency.PackageRef{{Name: "anyio", Version: "3.5.0"}}

	root := try.To(svc.Create(ctx, operator, "/", "studio", "")).OrFatal(t)
	if _, err := svc.AddBundle(ctx, root.ID, "B", "", anyio, true, false); err != nil {
		t.Fatal(err)
	}

	child := try.To(svc.Create(ctx, operator, "/mumbai", "mumbai", "")).OrFatal(t)

	if err := svc.DeleteBundle(ctx, child.ID, "B"); err != nil {
		t.Fatal(err)
	}

	t.Run("an inherited bundle is shadowed by an empty local entry", func(t *testing.T) {
		stored := try.To(svc.Get(ctx, child.ID)).OrFatal(t)
		shadow := stored.FindBundle("B")
		if shadow == nil || !shadow.IsEmpty() {
			t.Fatalf("expected empty local shadow for B, got %+v", stored.Bundles)
		}
	})

	t.Run("exclusion drops emptied bundles from the effective view", func(t *testing.T) {
		effective := try.To(svc.GetEffective(ctx, child.ID, true)).OrFatal(t)
		if len(effective.Bundles) != 0 {
			t.Errorf("effective bundles: got %v, want none", effective.Bundles)
		}
	})

	t.Run("deleting an already deleted bundle is a no-op", func(t *testing.T) {
		if err := svc.DeleteBundle(ctx, child.ID, "B"); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("re-attaching revives the bundle with the given packages", func(t *testing.T) {
		revived := try.To(svc.AddBundle(ctx, child.ID, "B", "", anyio, true, false)).OrFatal(t)
		if !revived.PackagesMatch(anyio) {
			t.Errorf("revived bundle packages: got %v", revived.Packages)
		}
	})
}

func TestProfileService_MoveAndDelete(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := newService(store, busmock.New())

	root := try.To(svc.Create(ctx, operator, "/", "studio", "")).OrFatal(t)
	moved := try.To(svc.Create(ctx, operator, "/mumbai/a", "a", "before move")).OrFatal(t)
	if err := svc.SetPackages(ctx, moved.ID, []dependency.PackageRef{{Name: "anyio", Version: "3.5.0"}}); err != nil {
		t.Fatal(err)
	}

	t.Run("creating a second profile at the same path is a conflict", func(t *testing.T) {
		_, err := svc.Create(ctx, operator, "/mumbai/a", "again", "")
		if code := statusCodeOf(t, err); code != 409 {
			t.Errorf("status: got %d, want 409", code)
		}
	})

	t.Run("a move recreates the profile at the target path", func(t *testing.T) {
		relocated := try.To(svc.Patch(ctx, operator, moved.ID, service.PatchSpec{Path: "/mumbai/b"})).OrFatal(t)

		if relocated.Path != "/mumbai/b" {
			t.Errorf("path: got %s", relocated.Path)
		}
		if relocated.ID == moved.ID {
			t.Errorf("a moved profile must take the id of its new path")
		}
		if got := refNames(relocated.Packages); !reflect.DeepEqual(got, []string{"anyio 3.5.0"}) {
			t.Errorf("moved packages: got %v", got)
		}

		if _, err := svc.Get(ctx, moved.ID); statusCodeOf(t, err) != 404 {
			t.Errorf("the profile at the old path should be gone")
		}
	})

	t.Run("renaming in place keeps the id", func(t *testing.T) {
		id := dependency.ProfileIDFromPath("/mumbai/b")
		renamed := try.To(svc.Patch(ctx, operator, id, service.PatchSpec{Name: "b2"})).OrFatal(t)
		if renamed.ID != id || renamed.Name != "b2" {
			t.Errorf("renamed: %+v", renamed)
		}
		if renamed.Description != "before move" {
			t.Errorf("empty patch fields must keep stored values, got %q", renamed.Description)
		}
	})

	t.Run("the root profile cannot be deleted", func(t *testing.T) {
		err := svc.Delete(ctx, root.ID)
		if code := statusCodeOf(t, err); code != 400 {
			t.Errorf("status: got %d, want 400", code)
		}
	})

	t.Run("detach from path removes the attached profile", func(t *testing.T) {
		if err := svc.DetachFromPath(ctx, "/mumbai/b", false); err != nil {
			t.Fatal(err)
		}
		_, found, err := svc.GetByPath(ctx, "/mumbai/b")
		if err != nil {
			t.Fatal(err)
		}
		if found {
			t.Error("the profile should be detached from the path")
		}
	})
}

func TestProfileService_DescendantRevalidation(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	// Seed quietly, then mutate with fan-out enabled.
	seeder := newService(store, busmock.New())
	root := try.To(seeder.Create(ctx, operator, "/", "studio", "")).OrFatal(t)
	child := try.To(seeder.Create(ctx, operator, "/mumbai", "mumbai", "")).OrFatal(t)
	if err := seeder.ChangeStatus(ctx, child.ID, dependency.StatusValid, "all good", "rxt-payload"); err != nil {
		t.Fatal(err)
	}

	events := busmock.New()
	svc := service.New(store, allVisible{}, testIndex(), events, false, quietLogger)

	if err := svc.SetPackages(ctx, root.ID, []dependency.PackageRef{{Name: "anyio", Version: "3.5.0"}}); err != nil {
		t.Fatal(err)
	}
	svc.Quiesce()

	t.Run("the changed branch and each descendant get a validation request", func(t *testing.T) {
		requests := events.EventsOf(domain.EventTypeValidationRequest)
		if len(requests) != 2 {
			t.Fatalf("validation requests: got %d, want 2", len(requests))
		}
	})

	t.Run("descendant profiles fall back to pending", func(t *testing.T) {
		reloaded := try.To(svc.Get(ctx, child.ID)).OrFatal(t)
		if reloaded.Status != dependency.StatusPending {
			t.Errorf("status: got %s, want %s", reloaded.Status, dependency.StatusPending)
		}
		if reloaded.Rxt != "" {
			t.Errorf("rxt must be dropped with the valid status, got %q", reloaded.Rxt)
		}
	})
}

func TestProfileService_DescendantRevalidationScope(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	seeder := newService(store, busmock.New())
	branch := try.To(seeder.Create(ctx, operator, "/mumbai/show_a", "show-a", "")).OrFatal(t)
	lookalike := try.To(seeder.Create(ctx, operator, "/mumbai/showxa/seq", "lookalike", "")).OrFatal(t)
	if err := seeder.ChangeStatus(ctx, lookalike.ID, dependency.StatusValid, "all good", "rxt-payload"); err != nil {
		t.Fatal(err)
	}

	events := busmock.New()
	svc := service.New(store, allVisible{}, testIndex(), events, false, quietLogger)
	if err := svc.SetPackages(ctx, branch.ID, []dependency.PackageRef{{Name: "anyio", Version: "3.5.0"}}); err != nil {
		t.Fatal(err)
	}
	svc.Quiesce()

	// "_" in a path segment is a literal, not a wildcard over siblings
	if got := len(events.EventsOf(domain.EventTypeValidationRequest)); got != 1 {
		t.Errorf("validation requests: got %d, want 1", got)
	}
	reloaded := try.To(svc.Get(ctx, lookalike.ID)).OrFatal(t)
	if reloaded.Status != dependency.StatusValid {
		t.Errorf("the lookalike sibling must keep its status, got %s", reloaded.Status)
	}
}

func TestProfileService_ChangeStatus(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := newService(store, busmock.New())

	profile := try.To(svc.Create(ctx, operator, "/", "studio", "")).OrFatal(t)

	if err := svc.ChangeStatus(ctx, profile.ID, dependency.StatusValid, "resolved 3 packages", "rxt-body"); err != nil {
		t.Fatal(err)
	}

	reloaded := try.To(svc.Get(ctx, profile.ID)).OrFatal(t)
	if reloaded.Status != dependency.StatusValid || reloaded.Rxt != "rxt-body" {
		t.Errorf("status/rxt: got %s/%q", reloaded.Status, reloaded.Rxt)
	}

	comments, total, err := svc.ListComments(ctx, profile.ID, 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || comments[0].Comment != "validation detail: resolved 3 packages" {
		t.Errorf("comments: got %d, %+v", total, comments)
	}

	t.Run("an invalid verdict clears the rxt", func(t *testing.T) {
		if err := svc.ChangeStatus(ctx, profile.ID, dependency.StatusInvalid, "missing package", "unused"); err != nil {
			t.Fatal(err)
		}
		reloaded := try.To(svc.Get(ctx, profile.ID)).OrFatal(t)
		if reloaded.Status != dependency.StatusInvalid || reloaded.Rxt != "" {
			t.Errorf("status/rxt: got %s/%q", reloaded.Status, reloaded.Rxt)
		}
	})

	t.Run("an unknown profile is a 404", func(t *testing.T) {
		err := svc.ChangeStatus(ctx, "profile_missing", dependency.StatusValid, "", "")
		if code := statusCodeOf(t, err); code != 404 {
			t.Errorf("status: got %d, want 404", code)
		}
	})
}

func TestProfileService_ListAndComments(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := newService(store, busmock.New())

	for _, fixture := range []struct {
		path domain.LevelPath
		name string
	}{
		{"/", "studio"},
		{"/mumbai", "mumbai-defaults"},
		{"/mumbai/television", "tv-defaults"},
	} {
		if _, err := svc.Create(ctx, operator, fixture.path, fixture.name, ""); err != nil {
			t.Fatal(err)
		}
	}

	t.Run("query filters by name substring", func(t *testing.T) {
		profiles, total, err := svc.List(ctx, "defaults", 1, 10)
		if err != nil {
			t.Fatal(err)
		}
		if total != 2 || len(profiles) != 2 {
			t.Fatalf("got %d/%d profiles", len(profiles), total)
		}
	})

	t.Run("pagination slices the filtered set", func(t *testing.T) {
		profiles, total, err := svc.List(ctx, "", 2, 2)
		if err != nil {
			t.Fatal(err)
		}
		if total != 3 || len(profiles) != 1 {
			t.Fatalf("got %d of %d profiles on page 2", len(profiles), total)
		}
	})

	t.Run("comments are listed oldest first", func(t *testing.T) {
		id := dependency.ProfileIDFromPath("/mumbai")
		for _, text := range []string{"first", "second"} {
			if _, err := svc.AddComment(ctx, operator, id, text); err != nil {
				t.Fatal(err)
			}
		}
		comments, total, err := svc.ListComments(ctx, id, 1, 10)
		if err != nil {
			t.Fatal(err)
		}
		if total != 2 || comments[0].Comment != "first" || comments[1].Comment != "second" {
			t.Errorf("comments: %+v", comments)
		}
		if comments[0].CreatedBy != "Jo Doe" {
			t.Errorf("created_by: got %q", comments[0].CreatedBy)
		}
	})
}
