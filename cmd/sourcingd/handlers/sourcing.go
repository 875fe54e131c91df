package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	apierr "github.com/spinvfx/spinfab/pkg/api/errors"
	"github.com/spinvfx/spinfab/pkg/domain/sourcing"
	"github.com/spinvfx/spinfab/pkg/domain/sourcing/service"
)

// SignatureHeader carries the webhook's HMAC signature.
const SignatureHeader = "X-SG-SIGNATURE"

// OnEventHandler ingests one catalog webhook delivery.
//
// The signature is computed over the raw body, so the body is read
// before any decoding.
func OnEventHandler(s *service.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()

		body, err := io.ReadAll(req.Body)
		if err != nil {
			return apierr.NewErrorMessage(
				http.StatusBadRequest, "unreadable request body", apierr.WithError(err),
			)
		}

		event := map[string]any{}
		if len(body) != 0 {
			if err := json.Unmarshal(body, &event); err != nil {
				return apierr.NewErrorMessage(
					http.StatusBadRequest, "the request body is not a JSON object", apierr.WithError(err),
				)
			}
		}

		if err := s.OnEvent(req.Context(), body, req.Header.Get(SignatureHeader), event); err != nil {
			return asAPIError(err)
		}
		return c.NoContent(http.StatusAccepted)
	}
}

// StatsHandler reports the trailing-hour ingestion counters.
func StatsHandler(s *service.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		total, byType := s.Stats()
		return c.JSON(http.StatusOK, map[string]any{
			"events_last_hour": total,
			"types_last_hour":  byType,
		})
	}
}

func asAPIError(err error) error {
	se := new(sourcing.StatusError)
	if errors.As(err, &se) {
		return apierr.NewErrorMessage(se.Code, se.Reason, apierr.WithError(err))
	}
	return err
}
