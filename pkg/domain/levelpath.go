package domain

import "strings"

// LevelPath is a canonized path pointing at a node in the level hierarchy.
//
// The path may not exist. Only its textual shape is normalized.
type LevelPath string

// RootPath is the canonized path of the hierarchy root.
const RootPath LevelPath = "/"

// CanonizePath normalizes a raw path string.
//
// Whitespace is trimmed, repeated slashes are collapsed and the trailing
// slash is dropped. Empty input canonizes to the root path "/".
func CanonizePath(path string) LevelPath {
	path = strings.TrimSpace(path)

	if path == "" || path == "/" {
		return RootPath
	}

	for strings.Contains(path, "//") {
		path = strings.ReplaceAll(path, "//", "/")
	}

	path = strings.TrimSuffix(path, "/")

	if path == "" {
		return RootPath
	}

	return LevelPath(path)
}

func (lp LevelPath) String() string {
	return string(lp)
}

// IsRoot tests whether lp is the hierarchy root.
func (lp LevelPath) IsRoot() bool {
	return lp == RootPath
}

// IsAncestorOf tests whether lp is a strict ancestor of other.
//
// Both paths are expected to be canonized already.
func (lp LevelPath) IsAncestorOf(other LevelPath) bool {
	if lp == other {
		return false
	}
	if lp.IsRoot() {
		return true
	}
	return strings.HasPrefix(string(other)+"/", string(lp)+"/")
}

// Segments splits lp into its path segments. The root path has none.
func (lp LevelPath) Segments() []string {
	if lp.IsRoot() {
		return []string{}
	}
	return strings.Split(strings.TrimPrefix(string(lp), "/"), "/")
}
