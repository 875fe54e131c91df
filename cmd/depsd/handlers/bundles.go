package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	apierr "github.com/spinvfx/spinfab/pkg/api/errors"
	"github.com/spinvfx/spinfab/pkg/domain/dependency"
	"github.com/spinvfx/spinfab/pkg/domain/dependency/service"
)

// ListBundlesHandler lists library bundles by name substring.
func ListBundlesHandler(s *service.BundlesService) echo.HandlerFunc {
	return func(c echo.Context) error {
		bundles, total, err := s.List(
			c.Request().Context(), c.QueryParam("query"),
			intQuery(c, "page", 1), intQuery(c, "per_page", 50),
		)
		if err != nil {
			return asAPIError(err)
		}
		return c.JSON(http.StatusOK, map[string]any{"items": bundles, "total": total})
	}
}

// GetBundleHandler reads one library bundle by name.
func GetBundleHandler(s *service.BundlesService, paramName string) echo.HandlerFunc {
	return func(c echo.Context) error {
		bundle, err := s.Get(c.Request().Context(), c.Param(paramName))
		if err != nil {
			return asAPIError(err)
		}
		return c.JSON(http.StatusOK, bundle)
	}
}

// CreateBundleHandler adds a bundle to the library.
func CreateBundleHandler(s *service.BundlesService) echo.HandlerFunc {
	return func(c echo.Context) error {
		bundle := dependency.Bundle{}
		if err := c.Bind(&bundle); err != nil {
			return apierr.NewErrorMessage(http.StatusBadRequest, "can not understand the requested json", apierr.WithError(err))
		}

		created, err := s.Create(c.Request().Context(), bundle)
		if err != nil {
			return asAPIError(err)
		}
		return c.JSON(http.StatusCreated, created)
	}
}

// SetBundlePackagesHandler replaces a library bundle's package list
// whole.
func SetBundlePackagesHandler(s *service.BundlesService, paramName string) echo.HandlerFunc {
	return func(c echo.Context) error {
		refs := []dependency.PackageRef{}
		if err := c.Bind(&refs); err != nil {
			return apierr.NewErrorMessage(http.StatusBadRequest, "can not understand the requested json", apierr.WithError(err))
		}

		bundle, err := s.SetPackages(c.Request().Context(), c.Param(paramName), refs)
		if err != nil {
			return asAPIError(err)
		}
		return c.JSON(http.StatusOK, bundle)
	}
}

// DeleteBundleHandler removes a bundle from the library.
func DeleteBundleHandler(s *service.BundlesService, paramName string) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := s.Delete(c.Request().Context(), c.Param(paramName)); err != nil {
			return asAPIError(err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}
