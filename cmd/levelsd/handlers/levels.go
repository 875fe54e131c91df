package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	apierr "github.com/spinvfx/spinfab/pkg/api/errors"
	"github.com/spinvfx/spinfab/pkg/auth"
	"github.com/spinvfx/spinfab/pkg/domain"
	leveldb "github.com/spinvfx/spinfab/pkg/domain/level/db"
	"github.com/spinvfx/spinfab/pkg/domain/level/service"
)

// GetTreeHandler renders the whole tree in service, depth limited, with
// the catalog object counts.
func GetTreeHandler(levels *service.LevelsService) echo.HandlerFunc {
	return func(c echo.Context) error {
		depth := intQuery(c, "depth", 2)

		t, err := levels.GetTree(c.Request().Context())
		if err != nil {
			return asAPIError(err)
		}

		root := t.Root()
		return c.JSON(http.StatusOK, map[string]any{
			"tree":     root.AsLevel(depth),
			"snapshot": t.Filename(),
			"counts": map[string]int{
				"projects":    root.ProjectsCount(),
				"asset_types": root.AssetTypesCount(),
				"assets":      root.AssetsCount(),
				"sequences":   root.SequencesCount(),
				"shots":       root.ShotsCount(),
			},
		})
	}
}

// GetLevelHandler resolves one level path against the tree in service.
func GetLevelHandler(levels *service.LevelsService) echo.HandlerFunc {
	return func(c echo.Context) error {
		path := c.QueryParam("path")
		if path == "" {
			return apierr.NewErrorMessage(http.StatusBadRequest, "the path query parameter is required")
		}
		parsed, ok := domain.ParseLevelPath(domain.CanonizePath(path))
		if !ok {
			return apierr.NewErrorMessage(http.StatusBadRequest, "not a level path: "+path)
		}

		lv, found, err := levels.GetLevel(
			c.Request().Context(), parsed, intQuery(c, "depth", 0), auth.Operator(c),
		)
		if err != nil {
			return asAPIError(err)
		}
		if !found {
			return apierr.NewErrorMessage(http.StatusNotFound, "no level at path "+path)
		}
		return c.JSON(http.StatusOK, lv)
	}
}

// SitesHandler enumerates the known sites.
func SitesHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{"sites": domain.KnownSites()})
	}
}

// RequestSyncHandler enqueues a request for a fresh tree snapshot,
// fulfilled by the background refresher.
func RequestSyncHandler(store leveldb.Interface) echo.HandlerFunc {
	return func(c echo.Context) error {
		request, err := store.NewSyncRequest(c.Request().Context(), c.QueryParam("comment"))
		if err != nil {
			return err
		}
		return c.JSON(http.StatusAccepted, request)
	}
}

func intQuery(c echo.Context, name string, fallback int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func asAPIError(err error) error {
	if errors.Is(err, service.ErrNoTree) {
		return apierr.NewErrorMessage(
			http.StatusServiceUnavailable, "no tree snapshot is in service yet", apierr.WithError(err),
		)
	}
	return err
}
