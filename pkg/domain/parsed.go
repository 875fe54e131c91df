package domain

import (
	"fmt"
	"strings"
)

// Site is one of the known studio sites appearing as the first path segment.
type Site string

const (
	SiteGlobal  Site = "Global"
	SiteMumbai  Site = "Mumbai"
	SiteToronto Site = "Toronto"
)

// KnownSites lists every site in canonical order.
func KnownSites() []Site {
	return []Site{SiteGlobal, SiteMumbai, SiteToronto}
}

// SiteFromText recognizes a site name in free text.
//
// "global" may appear anywhere in the text. Other sites match whole words only.
func SiteFromText(text string) (Site, bool) {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return "", false
	}
	if strings.Contains(text, "global") {
		return SiteGlobal, true
	}
	switch text {
	case "mumbai":
		return SiteMumbai, true
	case "toronto":
		return SiteToronto, true
	}
	return "", false
}

// Division is one of the known production divisions.
type Division string

const (
	DivisionTelevision Division = "television"
	DivisionFilm       Division = "film"
)

// DivisionFromText recognizes a division name in free text.
//
// With exactMatch, "film" must be the whole text; otherwise it may appear
// anywhere in it. "television" always matches exactly.
func DivisionFromText(text string, exactMatch bool) (Division, bool) {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return "", false
	}
	if exactMatch {
		if text == "film" {
			return DivisionFilm, true
		}
	} else if strings.Contains(text, "film") {
		return DivisionFilm, true
	}
	if text == "television" {
		return DivisionTelevision, true
	}
	return "", false
}

// PathType distinguishes sequence paths from asset paths.
type PathType string

const (
	PathTypeSequence PathType = "sequence"
	PathTypeAsset    PathType = "asset"
)

// PathTypeFromText recognizes a path type name.
func PathTypeFromText(text string) (PathType, bool) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "sequence":
		return PathTypeSequence, true
	case "asset":
		return PathTypeAsset, true
	}
	return "", false
}

// ParsedLevelPath is a level path broken into verified segments.
//
// Parsing checks each segment's syntax, not whether the level exists.
// Fields below the deepest present segment stay empty.
type ParsedLevelPath struct {
	Site     Site
	Division Division
	Show     string

	Type PathType

	// when Type is asset:
	AssetType string
	AssetCode string

	// when Type is sequence:
	SequenceName string
	ShotName     string
}

// ParseLevelPath breaks a canonized path into segments,
// verifying site, division and path type on the way.
//
// It returns false when any of those segments is not recognized.
func ParseLevelPath(lp LevelPath) (ParsedLevelPath, bool) {
	parsed := ParsedLevelPath{}

	segments := lp.Segments()
	count := len(segments)
	if count == 0 {
		return parsed, true
	}

	if count >= 1 {
		site, ok := SiteFromText(segments[0])
		if !ok {
			return ParsedLevelPath{}, false
		}
		parsed.Site = site
	}

	if count >= 2 {
		division, ok := DivisionFromText(segments[1], true)
		if !ok {
			return ParsedLevelPath{}, false
		}
		parsed.Division = division
	}

	if count >= 3 {
		parsed.Show = segments[2]
	}

	if count >= 4 {
		ptype, ok := PathTypeFromText(segments[3])
		if !ok {
			return ParsedLevelPath{}, false
		}
		parsed.Type = ptype
	}

	if count >= 5 {
		switch parsed.Type {
		case PathTypeAsset:
			parsed.AssetType = segments[4]
			if count >= 6 {
				parsed.AssetCode = segments[5]
			}
		case PathTypeSequence:
			parsed.SequenceName = segments[4]
			if count >= 6 {
				parsed.ShotName = segments[5]
			}
		}
	}

	return parsed, true
}

// IsPathAcceptable tests whether a raw path canonizes and parses cleanly.
func IsPathAcceptable(path string) bool {
	_, ok := ParseLevelPath(CanonizePath(path))
	return ok
}

// ToLevelPath rebuilds the canonized path from the parsed segments.
func (p ParsedLevelPath) ToLevelPath() LevelPath {
	switch p.Type {
	case PathTypeAsset:
		return CanonizePath(fmt.Sprintf(
			"/%s/%s/%s/%s/%s/%s",
			p.Site, p.Division, p.Show, PathTypeAsset, p.AssetType, p.AssetCode,
		))
	case PathTypeSequence:
		return CanonizePath(fmt.Sprintf(
			"/%s/%s/%s/%s/%s/%s",
			p.Site, p.Division, p.Show, PathTypeSequence, p.SequenceName, p.ShotName,
		))
	default:
		return CanonizePath(fmt.Sprintf("/%s/%s/%s", p.Site, p.Division, p.Show))
	}
}

// Tokens derives the implicit substitution values carried by the path.
//
// Only non-empty segments contribute a token.
func (p ParsedLevelPath) Tokens() map[string]string {
	tokens := map[string]string{}
	if p.Site != "" {
		tokens["site"] = string(p.Site)
	}
	if p.Division != "" {
		tokens["division"] = string(p.Division)
	}
	if p.Show != "" {
		tokens["show"] = p.Show
	}
	switch p.Type {
	case PathTypeAsset:
		tokens["sequence_type"] = string(PathTypeAsset)
		if p.AssetType != "" {
			tokens["sequence"] = p.AssetType
		}
		if p.AssetCode != "" {
			tokens["shot"] = p.AssetCode
		}
	case PathTypeSequence:
		tokens["sequence_type"] = string(PathTypeSequence)
		if p.SequenceName != "" {
			tokens["sequence"] = p.SequenceName
		}
		if p.ShotName != "" {
			tokens["shot"] = p.ShotName
		}
	}
	return tokens
}
