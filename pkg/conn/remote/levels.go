package remote

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/spinvfx/spinfab/pkg/domain"
)

// Levels answers level visibility questions via the level service.
//
// It satisfies the LevelVisibility dependency of the config and
// dependency services, which run without a tree of their own.
type Levels struct {
	*client
}

// NewLevels builds a Levels over the level service REST surface.
func NewLevels(baseURL string, token string, timeout time.Duration) *Levels {
	return &Levels{client: newClient(baseURL, token, timeout)}
}

// IsVisible reports whether the operator may work with the level at
// path.
//
// Project access is decided locally from the operator's restrictions.
// Existence, when asked for, is a lookup against the level service.
func (l *Levels) IsVisible(
	ctx context.Context, path domain.LevelPath, operator domain.User, checkExistence bool,
) (bool, error) {
	parsed, ok := domain.ParseLevelPath(domain.CanonizePath(string(path)))
	if !ok {
		return false, nil
	}
	if parsed.Show != "" && !operator.MayAccessProject(parsed.Show) {
		return false, nil
	}
	if !checkExistence {
		return true, nil
	}

	query := url.Values{}
	query.Set("path", string(path))
	query.Set("depth", strconv.Itoa(0))

	level := map[string]any{}
	return l.get(ctx, "/levels", query, &level)
}
