package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	apierr "github.com/spinvfx/spinfab/pkg/api/errors"
	"github.com/spinvfx/spinfab/pkg/auth"
	"github.com/spinvfx/spinfab/pkg/domain"
	"github.com/spinvfx/spinfab/pkg/domain/config/service"
	"github.com/spinvfx/spinfab/pkg/utils/pointer"
)

// configSpec is the request body of config creation and patching.
//
// For PATCH, nil fields keep the stored value and a non-nil
// configuration is the full desired state of the node.
type configSpec struct {
	Name          *string        `json:"name"`
	Path          *string        `json:"path"`
	Description   *string        `json:"description"`
	Inherits      *bool          `json:"inherits"`
	Configuration map[string]any `json:"configuration"`
}

// CreateConfigHandler attaches a new inactive config to a level.
func CreateConfigHandler(s *service.ConfigsService) echo.HandlerFunc {
	return func(c echo.Context) error {
		spec := configSpec{}
		if err := c.Bind(&spec); err != nil {
			return apierr.NewErrorMessage(http.StatusBadRequest, "can not understand the requested json", apierr.WithError(err))
		}
		if spec.Name == nil || spec.Path == nil {
			return apierr.NewErrorMessage(http.StatusBadRequest, "name and path are required")
		}

		item, ok, err := s.Create(
			c.Request().Context(), auth.Operator(c),
			service.CreateSpec{
				Name:          *spec.Name,
				Level:         domain.LevelPath(*spec.Path),
				Description:   pointer.SafeDeref(spec.Description),
				Inherits:      spec.Inherits == nil || *spec.Inherits,
				Configuration: spec.Configuration,
			},
			boolQuery(c, "inherit", true),
		)
		if err != nil {
			return asAPIError(err)
		}
		if !ok {
			return apierr.NewErrorMessage(http.StatusBadRequest, "no level at path "+*spec.Path)
		}
		return c.JSON(http.StatusCreated, item)
	}
}

// FindConfigsHandler lists configs by name substring and path.
func FindConfigsHandler(s *service.ConfigsService) echo.HandlerFunc {
	return func(c echo.Context) error {
		var name, path *string
		if v := c.QueryParam("name"); v != "" {
			name = &v
		}
		if v := c.QueryParam("path"); v != "" {
			path = &v
		}

		items, total, err := s.Find(
			c.Request().Context(), auth.Operator(c), name, path,
			intQuery(c, "page", 1), intQuery(c, "per_page", 50),
		)
		if err != nil {
			return asAPIError(err)
		}
		return c.JSON(http.StatusOK, map[string]any{"items": items, "total": total})
	}
}

// GetConfigHandler reads one config, with optional token substitution.
func GetConfigHandler(s *service.ConfigsService, paramID string) echo.HandlerFunc {
	return func(c echo.Context) error {
		item, found, err := s.Get(
			c.Request().Context(), auth.Operator(c), c.Param(paramID), tokensFromQuery(c),
		)
		if err != nil {
			return asAPIError(err)
		}
		if !found {
			return apierr.NewErrorMessage(http.StatusNotFound, "config not found")
		}
		return c.JSON(http.StatusOK, item)
	}
}

// GetEffectiveHandler resolves the named config at a path, merged down
// the level tree.
func GetEffectiveHandler(s *service.ConfigsService, paramName string) echo.HandlerFunc {
	return func(c echo.Context) error {
		path := c.QueryParam("path")
		if path == "" {
			return apierr.NewErrorMessage(http.StatusBadRequest, "the path query parameter is required")
		}

		var tokens map[string]string
		if boolQuery(c, "resolve", true) {
			tokens = tokensFromQuery(c)
			if tokens == nil {
				tokens = map[string]string{}
			}
		}

		item, found, err := s.GetEffective(
			c.Request().Context(), auth.Operator(c),
			c.Param(paramName), domain.LevelPath(path),
			tokens, boolQuery(c, "inherit", true),
		)
		if err != nil {
			return asAPIError(err)
		}
		if !found {
			return apierr.NewErrorMessage(http.StatusNotFound, "no current config applies")
		}
		return c.JSON(http.StatusOK, item)
	}
}

// EffectiveConfigHandler is the service-to-service flavour of
// effective resolution, addressing the config by query parameters.
func EffectiveConfigHandler(s *service.ConfigsService) echo.HandlerFunc {
	return func(c echo.Context) error {
		name := c.QueryParam("name")
		path := c.QueryParam("path")
		if name == "" || path == "" {
			return apierr.NewErrorMessage(http.StatusBadRequest, "the name and path query parameters are required")
		}

		item, found, err := s.GetEffective(
			c.Request().Context(), auth.Operator(c), name, domain.LevelPath(path), nil, true,
		)
		if err != nil {
			return asAPIError(err)
		}
		if !found {
			return apierr.NewErrorMessage(http.StatusNotFound, "no current config applies")
		}
		return c.JSON(http.StatusOK, item)
	}
}

// GetEffectivePreviewHandler resolves the effective configuration as
// if the addressed config were the current deepest node.
func GetEffectivePreviewHandler(s *service.ConfigsService, paramID string) echo.HandlerFunc {
	return func(c echo.Context) error {
		var inherit *bool
		if v := c.QueryParam("inherit"); v != "" {
			inherit = pointer.Ref(v == "true")
		}

		item, found, err := s.GetEffectivePreview(
			c.Request().Context(), auth.Operator(c), c.Param(paramID), tokensFromQuery(c), inherit,
		)
		if err != nil {
			return asAPIError(err)
		}
		if !found {
			return apierr.NewErrorMessage(http.StatusNotFound, "config not found")
		}
		return c.JSON(http.StatusOK, item)
	}
}

// PatchConfigHandler rewrites an inactive config.
func PatchConfigHandler(s *service.ConfigsService, paramID string) echo.HandlerFunc {
	return func(c echo.Context) error {
		spec := configSpec{}
		if err := c.Bind(&spec); err != nil {
			return apierr.NewErrorMessage(http.StatusBadRequest, "can not understand the requested json", apierr.WithError(err))
		}

		patch := service.PatchSpec{
			Name:          spec.Name,
			Description:   spec.Description,
			Inherits:      spec.Inherits,
			Configuration: spec.Configuration,
		}
		if spec.Path != nil {
			patch.Level = pointer.Ref(domain.LevelPath(*spec.Path))
		}

		item, found, err := s.Patch(
			c.Request().Context(), auth.Operator(c), c.Param(paramID), patch,
			boolQuery(c, "inherit", true),
		)
		if err != nil {
			return asAPIError(err)
		}
		if !found {
			return apierr.NewErrorMessage(http.StatusNotFound, "config not found")
		}
		return c.JSON(http.StatusOK, item)
	}
}

// DeleteConfigHandler removes an inactive config.
func DeleteConfigHandler(s *service.ConfigsService, paramID string) echo.HandlerFunc {
	return func(c echo.Context) error {
		found, err := s.Delete(c.Request().Context(), auth.Operator(c), c.Param(paramID))
		if err != nil {
			return asAPIError(err)
		}
		if !found {
			return apierr.NewErrorMessage(http.StatusNotFound, "config not found")
		}
		return c.NoContent(http.StatusNoContent)
	}
}

// SetStatusHandler activates or deactivates a config. Activation
// supersedes any sibling sharing (path, name).
func SetStatusHandler(s *service.ConfigsService, paramID string) echo.HandlerFunc {
	return func(c echo.Context) error {
		body := struct {
			Current *bool `json:"current"`
		}{}
		if err := c.Bind(&body); err != nil || body.Current == nil {
			return apierr.NewErrorMessage(http.StatusBadRequest, "the body must carry a boolean 'current'", apierr.WithError(err))
		}

		found, err := s.SetStatus(c.Request().Context(), auth.Operator(c), c.Param(paramID), *body.Current)
		if err != nil {
			return asAPIError(err)
		}
		if !found {
			return apierr.NewErrorMessage(http.StatusNotFound, "config not found")
		}
		return c.JSON(http.StatusOK, map[string]bool{"current": *body.Current})
	}
}

// GetStatusHandler reads whether a config is current.
func GetStatusHandler(s *service.ConfigsService, paramID string) echo.HandlerFunc {
	return func(c echo.Context) error {
		current, found, err := s.GetStatus(c.Request().Context(), auth.Operator(c), c.Param(paramID))
		if err != nil {
			return asAPIError(err)
		}
		if !found {
			return apierr.NewErrorMessage(http.StatusNotFound, "config not found")
		}
		return c.JSON(http.StatusOK, map[string]bool{"current": current})
	}
}

// tokensFromQuery collects t_-prefixed query parameters into the token
// dictionary applied during substitution.
func tokensFromQuery(c echo.Context) map[string]string {
	var tokens map[string]string
	for key, values := range c.QueryParams() {
		name, ok := strings.CutPrefix(key, "t_")
		if !ok || name == "" || len(values) == 0 {
			continue
		}
		if tokens == nil {
			tokens = map[string]string{}
		}
		tokens[name] = values[0]
	}
	return tokens
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

func asAPIError(err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidName):
		return apierr.NewErrorMessage(http.StatusUnprocessableEntity, err.Error(), apierr.WithError(err))
	case errors.Is(err, service.ErrActive):
		return apierr.NewErrorMessage(http.StatusConflict, err.Error(), apierr.WithError(err))
	}
	return err
}
