package handlers

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	apierr "github.com/spinvfx/spinfab/pkg/api/errors"
	"github.com/spinvfx/spinfab/pkg/auth"
	"github.com/spinvfx/spinfab/pkg/domain"
	"github.com/spinvfx/spinfab/pkg/domain/dependency"
	"github.com/spinvfx/spinfab/pkg/domain/dependency/service"
)

// effectivePart selects which slice of the effective profile a handler
// responds with.
type effectivePart func(dependency.Profile) any

// WholeProfile responds with the full effective profile.
func WholeProfile(p dependency.Profile) any { return p }

// PackagesOnly responds with the effective package references.
func PackagesOnly(p dependency.Profile) any { return p.Packages }

// BundlesOnly responds with the effective bundles.
func BundlesOnly(p dependency.Profile) any { return p.Bundles }

// FlatPackages responds with resolver request strings.
func FlatPackages(p dependency.Profile) any { return p.AllPackages() }

// GetEffectiveProfileHandler resolves the effective profile governing
// the path query parameter.
func GetEffectiveProfileHandler(s *service.ProfileService, part effectivePart) echo.HandlerFunc {
	return func(c echo.Context) error {
		path := c.QueryParam("path")
		if path == "" {
			return apierr.NewErrorMessage(http.StatusBadRequest, "the path query parameter is required")
		}

		effective, err := s.GetEffectiveByPath(
			c.Request().Context(), domain.LevelPath(path), boolQuery(c, "exclude_deletions", true),
		)
		if err != nil {
			return asAPIError(err)
		}
		return c.JSON(http.StatusOK, part(effective))
	}
}

// ExportXMLHandler renders the effective profile at a path as a
// package document.
func ExportXMLHandler(s *service.ProfileService) echo.HandlerFunc {
	return func(c echo.Context) error {
		path := c.QueryParam("path")
		if path == "" {
			return apierr.NewErrorMessage(http.StatusBadRequest, "the path query parameter is required")
		}

		doc, err := s.ExportXML(c.Request().Context(), domain.LevelPath(path))
		if err != nil {
			return asAPIError(err)
		}
		return c.Blob(http.StatusOK, "application/xml", doc)
	}
}

// ImportXMLHandler ingests a package document at a path. With replace,
// an existing profile at the path is swapped out.
func ImportXMLHandler(s *service.ProfileService, replace bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		path := c.QueryParam("path")
		if path == "" {
			return apierr.NewErrorMessage(http.StatusBadRequest, "the path query parameter is required")
		}

		doc, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return apierr.NewErrorMessage(http.StatusBadRequest, "unreadable request body", apierr.WithError(err))
		}

		report, err := s.ImportXML(
			c.Request().Context(), auth.Operator(c), domain.LevelPath(path),
			doc, replace, boolQuery(c, "strict", false),
		)
		if err != nil {
			return asAPIError(err)
		}
		return c.JSON(http.StatusOK, report)
	}
}

func boolQuery(c echo.Context, name string, fallback bool) bool {
	switch c.QueryParam(name) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return fallback
	}
}
