package service

import (
	"context"
	"encoding/xml"
	"strings"

	"github.com/spinvfx/spinfab/pkg/domain"
	"github.com/spinvfx/spinfab/pkg/domain/dependency"
	xerrors "github.com/spinvfx/spinfab/pkg/errors"
)

// Wire shape of the <package_configuration> interchange document.
type xmlPackageRef struct {
	Name    string `xml:"name,attr"`
	Version string `xml:"version,attr"`
}

type xmlBundle struct {
	Name     string          `xml:"name,attr"`
	Packages []xmlPackageRef `xml:"package"`
}

type xmlProfile struct {
	Name     string          `xml:"name,attr"`
	Packages []xmlPackageRef `xml:"package"`
	Bundles  []xmlBundle     `xml:"bundle"`
}

type xmlPackageConfiguration struct {
	XMLName  xml.Name     `xml:"package_configuration"`
	Version  string       `xml:"version,attr"`
	Profiles []xmlProfile `xml:"profile"`
}

// InvalidPackageRef describes a package reference that could not be
// imported.
type InvalidPackageRef struct {
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
	Issue   string `json:"issue,omitempty"`
}

// InvalidBundle describes a bundle that could not be imported.
type InvalidBundle struct {
	Name     string              `json:"name,omitempty"`
	Packages []InvalidPackageRef `json:"packages,omitempty"`
	Issue    string              `json:"issue"`
}

// PackagesImportReport buckets the package references of one import.
type PackagesImportReport struct {
	Previous []dependency.PackageRef `json:"previous"`
	Included []dependency.PackageRef `json:"included"`
	Missed   []InvalidPackageRef     `json:"missed"`
	Ignored  []string                `json:"ignored"`
}

// BundlesImportReport buckets the bundles of one import.
type BundlesImportReport struct {
	Imported []dependency.Bundle `json:"imported"`
	Previous []dependency.Bundle `json:"previous"`
	Included []dependency.Bundle `json:"included"`
	Missed   []InvalidBundle     `json:"missed"`
	Ignored  []string            `json:"ignored"`
}

// ImportSummary carries the bucket counts of an import.
type ImportSummary struct {
	ProfileName      string `json:"profileName"`
	PreviousPackages int    `json:"previousPackages"`
	IncludedPackages int    `json:"includedPackages"`
	MissedPackages   int    `json:"missedPackages"`
	IgnoredPackages  int    `json:"ignoredPackages"`
	ImportedBundles  int    `json:"importedBundles"`
	PreviousBundles  int    `json:"previousBundles"`
	IncludedBundles  int    `json:"includedBundles"`
	MissedBundles    int    `json:"missedBundles"`
	IgnoredBundles   int    `json:"ignoredBundles"`
	Errors           int    `json:"errors"`
}

// ImportReport summarizes one xml import, item by item and in counts.
type ImportReport struct {
	Packages PackagesImportReport `json:"packages"`
	Bundles  BundlesImportReport  `json:"bundles"`
	Summary  ImportSummary        `json:"summary"`
	Errors   []string             `json:"errors"`
}

// HasIssues reports whether anything was skipped or failed.
func (r *ImportReport) HasIssues() bool {
	return len(r.Errors) > 0 ||
		len(r.Packages.Ignored) > 0 ||
		len(r.Packages.Missed) > 0 ||
		len(r.Bundles.Ignored) > 0 ||
		len(r.Bundles.Missed) > 0
}

func (r *ImportReport) count() {
	r.Summary.Errors = len(r.Errors)
	r.Summary.PreviousPackages = len(r.Packages.Previous)
	r.Summary.IncludedPackages = len(r.Packages.Included)
	r.Summary.MissedPackages = len(r.Packages.Missed)
	r.Summary.IgnoredPackages = len(r.Packages.Ignored)
	r.Summary.ImportedBundles = len(r.Bundles.Imported)
	r.Summary.PreviousBundles = len(r.Bundles.Previous)
	r.Summary.IncludedBundles = len(r.Bundles.Included)
	r.Summary.MissedBundles = len(r.Bundles.Missed)
	r.Summary.IgnoredBundles = len(r.Bundles.Ignored)
}

// ImportXML creates a profile at path from a <package_configuration>
// document.
//
// Package references already satisfied by the effective profile are
// reported but not written locally. Bundles are imported into the
// library when absent, and attached unless an inherited bundle already
// matches. With replace, the existing profile at path is swapped out.
// With strict, any issue aborts before anything is written.
func (s *ProfileService) ImportXML(
	ctx context.Context, operator domain.User, path domain.LevelPath, doc []byte, replace bool, strict bool,
) (*ImportReport, error) {
	path = domain.CanonizePath(string(path))

	if ok, err := s.levels.IsVisible(ctx, path, operator, true); err != nil {
		return nil, xerrors.WrapWithNote("importing profile: level lookup failed", err)
	} else if !ok {
		return nil, dependency.Reject(409, "Level not found at path "+string(path))
	}

	existing, existingFound, err := s.store.GetProfileByPath(ctx, path)
	if err != nil {
		return nil, err
	}

	var effective dependency.Profile
	effectiveFound := false
	if !path.IsRoot() {
		effective, effectiveFound, err = s.effectiveAt(ctx, path)
		if err != nil {
			return nil, err
		}
	}

	if !replace && existingFound {
		return nil, dependency.Reject(409, "There is already a profile attached to path "+string(path))
	}
	if replace && !existingFound {
		return nil, dependency.Reject(409, "There is no profile currently attached to path "+string(path))
	}

	var pc xmlPackageConfiguration
	if err := xml.Unmarshal(doc, &pc); err != nil {
		return nil, dependency.Reject(422, "xml document contains no <package_configuration> node")
	}
	if strings.TrimSpace(pc.Version) == "" {
		return nil, dependency.Reject(422, "xml document contains <package_configuration> node with a missing/empty version attribute")
	}
	if strings.TrimSpace(pc.Version) != "1" {
		return nil, dependency.Reject(422, "xml document <package_configuration> node refers to an unknown version in its version attribute")
	}
	if len(pc.Profiles) == 0 {
		return nil, dependency.Reject(422, "xml document contains no <profile> node")
	}

	imported := pc.Profiles[0]
	profileName := strings.TrimSpace(imported.Name)
	if profileName == "" {
		return nil, dependency.Reject(422, "xml document contains a profile <profile> node with a missing or empty attribute 'name'")
	}

	report := &ImportReport{
		Packages: PackagesImportReport{
			Previous: []dependency.PackageRef{},
			Included: []dependency.PackageRef{},
			Missed:   []InvalidPackageRef{},
			Ignored:  []string{},
		},
		Bundles: BundlesImportReport{
			Imported: []dependency.Bundle{},
			Previous: []dependency.Bundle{},
			Included: []dependency.Bundle{},
			Missed:   []InvalidBundle{},
			Ignored:  []string{},
		},
		Errors: []string{},
	}
	report.Summary.ProfileName = profileName

	if len(pc.Profiles) > 1 {
		report.Errors = append(report.Errors, "doc has more than one <profile> node, ignoring others")
	}

	// Packages. fullRefs keeps every acceptable reference, including
	// the ones satisfied by inheritance, for bundle version resolution.
	localRefs := []dependency.PackageRef{}
	fullRefs := []dependency.PackageRef{}

	for _, pk := range imported.Packages {
		name := strings.TrimSpace(pk.Name)
		if name == "" {
			report.Packages.Ignored = append(report.Packages.Ignored, "package ref has no name")
			continue
		}
		version := strings.TrimSpace(pk.Version)
		if version == "" {
			report.Packages.Ignored = append(report.Packages.Ignored, "package ref to '"+name+"' has no version set")
			continue
		}

		var inheritedRef *dependency.PackageRef
		if effectiveFound {
			inheritedRef = effective.FindPackage(name)
		}

		skipOverride := false
		if inheritedRef != nil && inheritedRef.Version == version {
			report.Packages.Previous = append(report.Packages.Previous, *inheritedRef)
			skipOverride = true
		} else if !s.packages.Exists(name, version) {
			report.Packages.Missed = append(report.Packages.Missed, InvalidPackageRef{
				Name:    name,
				Version: version,
				Issue:   "missing package, name: '" + name + "', version: '" + version + "'",
			})
			continue
		}

		ref := dependency.PackageRef{Name: name, Version: version}
		fullRefs = append(fullRefs, ref)
		report.Packages.Included = append(report.Packages.Included, ref)
		if !skipOverride {
			localRefs = append(localRefs, ref)
		}
	}

	// Bundles.
	localBundles := []dependency.Bundle{}
	seenBundleNames := map[string]bool{}
	includedBundles := 0

	for _, xb := range imported.Bundles {
		name := strings.TrimSpace(xb.Name)
		if name == "" {
			report.Bundles.Ignored = append(report.Bundles.Ignored, "profile has bundle with no name")
			continue
		}

		candidates := []InvalidPackageRef{}
		for _, bp := range xb.Packages {
			candidates = append(candidates, InvalidPackageRef{Name: bp.Name, Version: bp.Version})
		}

		if seenBundleNames[name] {
			report.Bundles.Missed = append(report.Bundles.Missed, InvalidBundle{
				Name:     name,
				Packages: candidates,
				Issue:    "found a previous bundle using same name '" + name + "'",
			})
			continue
		}

		if len(xb.Packages) == 0 {
			report.Bundles.Ignored = append(report.Bundles.Ignored, "bundle '"+name+"' has missing or empty package ref list")
			continue
		}

		refs, invalid := s.resolveBundleRefs(name, xb.Packages, fullRefs, candidates, report)
		if invalid {
			continue
		}

		bundle := dependency.Bundle{Name: name, Packages: refs}

		libraryBundle, libraryFound, err := s.store.GetBundle(ctx, name)
		if err != nil {
			return nil, err
		}
		if !libraryFound {
			created, err := s.store.CreateBundle(ctx, bundle)
			if err != nil {
				report.Bundles.Missed = append(report.Bundles.Missed, InvalidBundle{
					Name:     name,
					Packages: candidates,
					Issue:    "failed to be imported into library",
				})
				continue
			}
			libraryBundle = created
			report.Bundles.Imported = append(report.Bundles.Imported, bundle)
		}

		if !libraryBundle.PackagesMatch(bundle.Packages) {
			report.Bundles.Missed = append(report.Bundles.Missed, InvalidBundle{
				Name:     name,
				Packages: candidates,
				Issue:    "package ref list differs from the one in the library",
			})
			continue
		}

		var inheritedBundle *dependency.Bundle
		if effectiveFound {
			inheritedBundle = effective.FindBundle(name)
		}
		var localBundle *dependency.Bundle
		if existingFound {
			localBundle = existing.FindBundle(name)
		}

		if inheritedBundle != nil && localBundle == nil {
			if inheritedBundle.PackagesMatch(bundle.Packages) {
				report.Bundles.Previous = append(report.Bundles.Previous, bundle)
			} else {
				localBundles = append(localBundles, bundle)
			}
		} else {
			localBundles = append(localBundles, bundle)
		}

		report.Bundles.Included = append(report.Bundles.Included, bundle)
		seenBundleNames[name] = true
		includedBundles += 1
	}

	if len(fullRefs) == 0 && includedBundles == 0 {
		report.Errors = append(report.Errors, "profile is empty")
	}

	if strict && report.HasIssues() {
		report.Errors = append(report.Errors, "profile["+profileName+"]: has issues, not importing as strict mode was requested")
		report.count()
		return report, nil
	}

	description := "imported from xml without issues"
	if report.HasIssues() {
		description = "imported from xml, but had issues"
	}

	if existingFound && replace {
		// The old profile occupies the path-derived id, so it has to
		// go before the import can take its place.
		if _, err := s.store.DeleteProfile(ctx, existing.ID); err != nil {
			return nil, err
		}
	}

	if _, err := s.store.CreateProfile(
		ctx, path, profileName, description, localRefs, localBundles, CreatedByName(operator),
	); err != nil {
		return nil, err
	}

	s.onPathChanged(path, false)

	report.count()
	return report, nil
}

// resolveBundleRefs validates one bundle's package references,
// resolving versionless references through the import's package list.
// It reports true when the bundle has to be skipped.
func (s *ProfileService) resolveBundleRefs(
	bundleName string,
	packages []xmlPackageRef,
	fullRefs []dependency.PackageRef,
	candidates []InvalidPackageRef,
	report *ImportReport,
) ([]dependency.PackageRef, bool) {
	refs := []dependency.PackageRef{}
	for _, bp := range packages {
		name := strings.TrimSpace(bp.Name)
		if name == "" {
			report.Bundles.Ignored = append(report.Bundles.Ignored, "bundle '"+bundleName+"' has a package ref with no name")
			return nil, true
		}

		version := strings.TrimSpace(bp.Version)
		if version == "" {
			resolved := false
			for _, listed := range fullRefs {
				if listed.Name == name {
					version = listed.Version
					resolved = true
					break
				}
			}
			if !resolved {
				report.Bundles.Missed = append(report.Bundles.Missed, InvalidBundle{
					Name:     bundleName,
					Packages: candidates,
					Issue:    "package ref to '" + name + "' with no usable version",
				})
				return nil, true
			}
		}

		if !s.packages.Exists(name, version) {
			report.Bundles.Missed = append(report.Bundles.Missed, InvalidBundle{
				Name:     bundleName,
				Packages: candidates,
				Issue:    "missing package ref to name: '" + name + "', version: '" + version + "'",
			})
			return nil, true
		}

		refs = append(refs, dependency.PackageRef{Name: name, Version: version})
	}
	return refs, false
}

// ExportXML renders the effective profile governing a path as a
// <package_configuration> document, deletions excluded.
func (s *ProfileService) ExportXML(ctx context.Context, path domain.LevelPath) ([]byte, error) {
	effective, err := s.GetEffectiveByPath(ctx, path, true)
	if err != nil {
		return nil, err
	}

	doc := xmlPackageConfiguration{
		Version: "1",
		Profiles: []xmlProfile{{
			Name: effective.Name,
		}},
	}
	for _, p := range effective.Packages {
		doc.Profiles[0].Packages = append(doc.Profiles[0].Packages, xmlPackageRef{Name: p.Name, Version: p.Version})
	}
	for _, b := range effective.Bundles {
		xb := xmlBundle{Name: b.Name}
		for _, p := range b.Packages {
			xb.Packages = append(xb.Packages, xmlPackageRef{Name: p.Name, Version: p.Version})
		}
		doc.Profiles[0].Bundles = append(doc.Profiles[0].Bundles, xb)
	}

	rendered, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, xerrors.Wrap(err)
	}
	return append([]byte(xml.Header), rendered...), nil
}
