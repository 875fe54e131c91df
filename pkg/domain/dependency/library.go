package dependency

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	xerrors "github.com/spinvfx/spinfab/pkg/errors"
)

// Package is an installable tool known to the studio, with the
// versions present on the shared filesystem.
type Package struct {
	Name     string   `json:"name"`
	Category string   `json:"category"`
	Path     string   `json:"path"`
	Versions []string `json:"versions"`
}

// PackageIndex is a read-only view of the package repository,
// loaded once from the directory layout <root>/<category>/<name>/<version>.
type PackageIndex struct {
	packages []Package
}

// LoadPackageIndex scans the package repository directory.
func LoadPackageIndex(root string) (*PackageIndex, error) {
	categories, err := os.ReadDir(root)
	if err != nil {
		return nil, xerrors.WrapWithNote("package repository is unreadable", err)
	}

	packages := []Package{}
	for _, category := range categories {
		if !category.IsDir() {
			continue
		}
		names, err := os.ReadDir(filepath.Join(root, category.Name()))
		if err != nil {
			return nil, xerrors.Wrap(err)
		}
		for _, name := range names {
			if !name.IsDir() {
				continue
			}
			packagePath := filepath.Join(root, category.Name(), name.Name())
			versionDirs, err := os.ReadDir(packagePath)
			if err != nil {
				return nil, xerrors.Wrap(err)
			}
			versions := []string{}
			for _, v := range versionDirs {
				if v.IsDir() {
					versions = append(versions, v.Name())
				}
			}
			packages = append(packages, Package{
				Name:     strings.ToLower(name.Name()),
				Category: strings.ToLower(category.Name()),
				Path:     packagePath,
				Versions: versions,
			})
		}
	}

	sort.Slice(packages, func(i, j int) bool { return packages[i].Name < packages[j].Name })
	return &PackageIndex{packages: packages}, nil
}

// NewPackageIndex builds an index from an explicit package list,
// used by tests and fixtures.
func NewPackageIndex(packages []Package) *PackageIndex {
	return &PackageIndex{packages: packages}
}

// Get fetches one package by name.
func (ix *PackageIndex) Get(name string) (Package, bool) {
	for _, p := range ix.packages {
		if p.Name == name {
			return p, true
		}
	}
	return Package{}, false
}

// Exists tests that a package with the exact version is available.
func (ix *PackageIndex) Exists(name string, version string) bool {
	if name == "" || strings.TrimSpace(version) == "" {
		return false
	}
	p, found := ix.Get(name)
	if !found {
		return false
	}
	for _, v := range p.Versions {
		if v == version {
			return true
		}
	}
	return false
}

// List filters packages by exact name and category, both optional.
func (ix *PackageIndex) List(name string, category string) []Package {
	found := []Package{}
	for _, p := range ix.packages {
		if category != "" && p.Category != strings.ToLower(category) {
			continue
		}
		if name != "" && p.Name != strings.ToLower(name) {
			continue
		}
		found = append(found, p)
	}
	return found
}
