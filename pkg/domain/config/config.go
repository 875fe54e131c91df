package config

import (
	"math/rand/v2"
	"regexp"
	"strings"

	"github.com/spinvfx/spinfab/pkg/domain"
)

// IDPrefix marks generated config ids, so user-chosen names can be
// told apart from ids at the API surface.
const IDPrefix = "cid_"

const idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// NewID generates a fresh config id, IDPrefix followed by 24 random
// lowercase alphanumerics.
func NewID() string {
	buf := make([]byte, 24)
	for i := range buf {
		buf[i] = idAlphabet[rand.IntN(len(idAlphabet))]
	}
	return IDPrefix + string(buf)
}

var namePattern = regexp.MustCompile(`^\w[\w-]*$`)

// IsNameValid accepts word-char-and-dash names that cannot be
// mistaken for a generated id.
func IsNameValid(name string) bool {
	if strings.HasPrefix(name, IDPrefix) {
		return false
	}
	return namePattern.MatchString(name)
}

// Config is a named configuration attached to a level.
//
// Active is an activation timestamp in nanoseconds, 0 when inactive.
// Among rows sharing (Path, Name), the one with the largest positive
// Active is the current one.
//
// Configuration is the JSON body, stored apart from the metadata row.
// It is nil when not loaded.
type Config struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	Path          domain.LevelPath `json:"path"`
	Description   string           `json:"description"`
	Inherits      bool             `json:"inherits"`
	Active        int64            `json:"active"`
	Created       int64            `json:"created"`
	Updated       int64            `json:"updated"`
	CreatedBy     string           `json:"created_by"`
	Configuration map[string]any   `json:"configuration,omitempty"`
}
