package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	apierr "github.com/spinvfx/spinfab/pkg/api/errors"
	"github.com/spinvfx/spinfab/pkg/auth"
	"github.com/spinvfx/spinfab/pkg/conn/bus"
	"github.com/spinvfx/spinfab/pkg/domain"
	"github.com/spinvfx/spinfab/pkg/domain/dependency"
	"github.com/spinvfx/spinfab/pkg/domain/dependency/service"
)

// CreateProfileHandler attaches a new profile to the level named by the
// path query parameter.
func CreateProfileHandler(s *service.ProfileService) echo.HandlerFunc {
	return func(c echo.Context) error {
		path := c.QueryParam("path")
		if path == "" {
			return apierr.NewErrorMessage(http.StatusBadRequest, "the path query parameter is required")
		}

		body := struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		}{}
		if err := c.Bind(&body); err != nil {
			return apierr.NewErrorMessage(http.StatusBadRequest, "can not understand the requested json", apierr.WithError(err))
		}

		profile, err := s.Create(
			c.Request().Context(), auth.Operator(c), domain.LevelPath(path), body.Name, body.Description,
		)
		if err != nil {
			return asAPIError(err)
		}
		return c.JSON(http.StatusCreated, profile)
	}
}

// ListProfilesHandler lists profiles matching a name or path substring.
func ListProfilesHandler(s *service.ProfileService) echo.HandlerFunc {
	return func(c echo.Context) error {
		profiles, total, err := s.List(
			c.Request().Context(), c.QueryParam("query"),
			intQuery(c, "page", 1), intQuery(c, "per_page", 50),
		)
		if err != nil {
			return asAPIError(err)
		}
		return c.JSON(http.StatusOK, map[string]any{"items": profiles, "total": total})
	}
}

// GetProfileHandler reads one profile by id.
func GetProfileHandler(s *service.ProfileService, paramID string) echo.HandlerFunc {
	return func(c echo.Context) error {
		profile, err := s.Get(c.Request().Context(), c.Param(paramID))
		if err != nil {
			return asAPIError(err)
		}
		return c.JSON(http.StatusOK, profile)
	}
}

// PatchProfileHandler renames a profile or moves it to another level.
func PatchProfileHandler(s *service.ProfileService, paramID string) echo.HandlerFunc {
	return func(c echo.Context) error {
		body := struct {
			Path        string `json:"path"`
			Name        string `json:"name"`
			Description string `json:"description"`
		}{}
		if err := c.Bind(&body); err != nil {
			return apierr.NewErrorMessage(http.StatusBadRequest, "can not understand the requested json", apierr.WithError(err))
		}

		profile, err := s.Patch(
			c.Request().Context(), auth.Operator(c), c.Param(paramID),
			service.PatchSpec{
				Path:        domain.LevelPath(body.Path),
				Name:        body.Name,
				Description: body.Description,
			},
		)
		if err != nil {
			return asAPIError(err)
		}
		return c.JSON(http.StatusOK, profile)
	}
}

// DeleteProfileHandler detaches a profile from its level.
func DeleteProfileHandler(s *service.ProfileService, paramID string) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := s.Delete(c.Request().Context(), c.Param(paramID)); err != nil {
			return asAPIError(err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

// GetProfilePackagesHandler lists the packages referenced locally by a
// profile.
func GetProfilePackagesHandler(s *service.ProfileService, paramID string) echo.HandlerFunc {
	return func(c echo.Context) error {
		profile, err := s.Get(c.Request().Context(), c.Param(paramID))
		if err != nil {
			return asAPIError(err)
		}
		return c.JSON(http.StatusOK, profile.Packages)
	}
}

// SetProfilePackagesHandler replaces a profile's package list whole.
func SetProfilePackagesHandler(s *service.ProfileService, paramID string) echo.HandlerFunc {
	return func(c echo.Context) error {
		refs := []dependency.PackageRef{}
		if err := c.Bind(&refs); err != nil {
			return apierr.NewErrorMessage(http.StatusBadRequest, "can not understand the requested json", apierr.WithError(err))
		}

		if err := s.SetPackages(c.Request().Context(), c.Param(paramID), refs); err != nil {
			return asAPIError(err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

// DeleteProfilePackageHandler removes one package reference.
func DeleteProfilePackageHandler(s *service.ProfileService, paramID string, paramName string) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := s.DeletePackage(c.Request().Context(), c.Param(paramID), c.Param(paramName)); err != nil {
			return asAPIError(err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

// GetProfileBundlesHandler lists the bundles attached to a profile.
func GetProfileBundlesHandler(s *service.ProfileService, paramID string) echo.HandlerFunc {
	return func(c echo.Context) error {
		profile, err := s.Get(c.Request().Context(), c.Param(paramID))
		if err != nil {
			return asAPIError(err)
		}
		return c.JSON(http.StatusOK, profile.Bundles)
	}
}

// AddProfileBundleHandler attaches a library bundle to a profile.
func AddProfileBundleHandler(s *service.ProfileService, paramID string, paramName string) echo.HandlerFunc {
	return func(c echo.Context) error {
		body := struct {
			Description     string                  `json:"description"`
			Packages        []dependency.PackageRef `json:"packages"`
			AssumeInLibrary bool                    `json:"assume_in_library"`
			Replace         bool                    `json:"replace"`
		}{}
		if err := c.Bind(&body); err != nil {
			return apierr.NewErrorMessage(http.StatusBadRequest, "can not understand the requested json", apierr.WithError(err))
		}

		bundle, err := s.AddBundle(
			c.Request().Context(), c.Param(paramID), c.Param(paramName),
			body.Description, body.Packages, body.AssumeInLibrary, body.Replace,
		)
		if err != nil {
			return asAPIError(err)
		}
		return c.JSON(http.StatusCreated, bundle)
	}
}

// DeleteProfileBundleHandler detaches one bundle from a profile.
func DeleteProfileBundleHandler(s *service.ProfileService, paramID string, paramName string) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := s.DeleteBundle(c.Request().Context(), c.Param(paramID), c.Param(paramName)); err != nil {
			return asAPIError(err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

// AllPackagesHandler flattens the effective profile of a profile id
// into resolver requests. This is what the scheduler consumes.
func AllPackagesHandler(s *service.ProfileService, paramID string) echo.HandlerFunc {
	return func(c echo.Context) error {
		effective, err := s.GetEffective(c.Request().Context(), c.Param(paramID), true)
		if err != nil {
			return asAPIError(err)
		}
		return c.JSON(http.StatusOK, effective.AllPackages())
	}
}

// ValidateProfileHandler puts a profile back to pending and requests
// its revalidation over the bus.
func ValidateProfileHandler(s *service.ProfileService, paramID string) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := s.RequestValidation(c.Request().Context(), c.Param(paramID)); err != nil {
			return asAPIError(err)
		}
		return c.NoContent(http.StatusAccepted)
	}
}

// OnValidityChangeHandler applies a validation verdict arriving from
// the bus.
func OnValidityChangeHandler(s *service.ProfileService) echo.HandlerFunc {
	return func(c echo.Context) error {
		envelope := bus.Envelope{}
		if err := c.Bind(&envelope); err != nil {
			return apierr.NewErrorMessage(http.StatusBadRequest, "the request body is not a bus envelope", apierr.WithError(err))
		}
		if envelope.DetailType != domain.EventTypeValidationCompleted {
			return apierr.NewErrorMessage(http.StatusUnprocessableEntity, "not a validation verdict: "+envelope.DetailType)
		}

		verdict := struct {
			ID           string `json:"id"`
			Result       string `json:"validation_result"`
			ResultReason string `json:"result_reason"`
			Rxt          string `json:"rxt"`
		}{}
		if err := envelope.DecodeDetail(&verdict); err != nil || verdict.ID == "" {
			return apierr.NewErrorMessage(http.StatusUnprocessableEntity, "unreadable validation verdict", apierr.WithError(err))
		}

		if err := s.ChangeStatus(
			c.Request().Context(), verdict.ID, verdict.Result, verdict.ResultReason, verdict.Rxt,
		); err != nil {
			return asAPIError(err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

// AddCommentHandler records a free-form comment on a profile.
func AddCommentHandler(s *service.ProfileService, paramID string) echo.HandlerFunc {
	return func(c echo.Context) error {
		body := struct {
			Comment string `json:"comment"`
		}{}
		if err := c.Bind(&body); err != nil || body.Comment == "" {
			return apierr.NewErrorMessage(http.StatusBadRequest, "the body must carry a non-empty 'comment'", apierr.WithError(err))
		}

		comment, err := s.AddComment(c.Request().Context(), auth.Operator(c), c.Param(paramID), body.Comment)
		if err != nil {
			return asAPIError(err)
		}
		return c.JSON(http.StatusCreated, comment)
	}
}

// ListCommentsHandler pages through a profile's comments, newest first.
func ListCommentsHandler(s *service.ProfileService, paramID string) echo.HandlerFunc {
	return func(c echo.Context) error {
		comments, total, err := s.ListComments(
			c.Request().Context(), c.Param(paramID),
			intQuery(c, "page", 1), intQuery(c, "per_page", 50),
		)
		if err != nil {
			return asAPIError(err)
		}
		return c.JSON(http.StatusOK, map[string]any{"items": comments, "total": total})
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
	se := new(dependency.StatusError)
	if errors.As(err, &se) {
		return apierr.NewErrorMessage(se.Code, se.Reason, apierr.WithError(err))
	}
	return err
}
