package dependency

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/spinvfx/spinfab/pkg/domain"
)

// Profile validation statuses.
const (
	StatusPending = "pending"
	StatusValid   = "valid"
	StatusInvalid = "invalid"
)

// DeletedVersion marks a package reference as a deletion override of
// an inherited package.
const DeletedVersion = "!"

// CreatedAtLayout is the timestamp format of profile and comment
// creation times.
const CreatedAtLayout = "2006-Jan-02T15:04:05"

// ProfileIDFromPath derives the deterministic profile id of a level.
func ProfileIDFromPath(path domain.LevelPath) string {
	sum := sha1.Sum([]byte(domain.CanonizePath(string(path))))
	return "profile_" + hex.EncodeToString(sum[:])
}

var refNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][-\w]{1,64}$`)

// IsRefNameValid accepts package and bundle names.
func IsRefNameValid(name string) bool {
	return refNamePattern.MatchString(name)
}

// PackageRef points at one version of a package.
type PackageRef struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	UseLegacy bool   `json:"use_legacy,omitempty"`
}

// IsDeleted reports whether the reference is a deletion override.
func (p PackageRef) IsDeleted() bool {
	return p.Version == DeletedVersion
}

// Bundle is a named list of package references, either in the library
// or attached to a profile.
type Bundle struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Packages    []PackageRef `json:"packages"`
}

// IsEmpty reports whether the bundle is a deletion sentinel.
func (b Bundle) IsEmpty() bool {
	return len(b.Packages) == 0
}

// PackagesMatch compares the bundle's package list to another,
// position by position. Empty lists never match.
func (b Bundle) PackagesMatch(refs []PackageRef) bool {
	if len(b.Packages) == 0 || len(refs) == 0 {
		return false
	}
	if len(b.Packages) != len(refs) {
		return false
	}
	for i, p := range b.Packages {
		if p.Name != refs[i].Name || p.Version != refs[i].Version {
			return false
		}
	}
	return true
}

// Comment is one entry of a profile's append-only comment list.
type Comment struct {
	Comment   string `json:"comment"`
	CreatedBy string `json:"created_by"`
	CreatedAt string `json:"created_at"`
}

// Profile is a package and bundle set attached to a level.
type Profile struct {
	ID          string           `json:"id"`
	Path        domain.LevelPath `json:"path"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	CreatedAt   string           `json:"created_at"`
	CreatedBy   string           `json:"created_by"`
	Status      string           `json:"profile_status"`
	Rxt         string           `json:"profile_rxt,omitempty"`

	Packages []PackageRef `json:"packages"`
	Bundles  []Bundle     `json:"bundles"`
}

// FindPackage locates a package reference by name.
func (p *Profile) FindPackage(name string) *PackageRef {
	for i := range p.Packages {
		if p.Packages[i].Name == name {
			return &p.Packages[i]
		}
	}
	return nil
}

// AllPackages flattens the standalone and bundled package references
// into "name-version" strings, the form the environment resolver takes.
func (p *Profile) AllPackages() []string {
	flat := []string{}
	for _, ref := range p.Packages {
		flat = append(flat, ref.Name+"-"+ref.Version)
	}
	for _, b := range p.Bundles {
		for _, ref := range b.Packages {
			flat = append(flat, ref.Name+"-"+ref.Version)
		}
	}
	return flat
}

// FindBundle locates an attached bundle by name.
func (p *Profile) FindBundle(name string) *Bundle {
	for i := range p.Bundles {
		if p.Bundles[i].Name == name {
			return &p.Bundles[i]
		}
	}
	return nil
}

// StatusError is a rejection with an HTTP-aligned status code, raised
// by domain services and translated at the API boundary.
type StatusError struct {
	Code   int
	Reason string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Reason)
}

func Reject(code int, reason string) error {
	return &StatusError{Code: code, Reason: reason}
}

// ValidatePackageRefs enforces the package-reference rules for flat
// lists supplied by clients: no missing or empty names or versions,
// no deletion sentinels, no duplicate names.
func ValidatePackageRefs(refs []PackageRef) error {
	if len(refs) == 0 {
		return Reject(422, "the package list is missing or empty")
	}

	seen := map[string]int{}
	for _, p := range refs {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return Reject(422, "a referenced package has empty package name attribute")
		}
		if !IsRefNameValid(name) {
			return Reject(422, "package name '"+name+"' is not acceptable")
		}
		version := strings.TrimSpace(p.Version)
		if version == "" {
			return Reject(422, "a referenced package has empty package version attribute")
		}
		if version == DeletedVersion {
			return Reject(422, "a referenced package version can't be '"+DeletedVersion+"'")
		}
		seen[name] += 1
	}

	dups := []string{}
	for name, count := range seen {
		if count > 1 {
			dups = append(dups, name)
		}
	}
	if len(dups) > 0 {
		return Reject(422, "there are multiple references to a same package name for "+strings.Join(dups, ", "))
	}
	return nil
}
