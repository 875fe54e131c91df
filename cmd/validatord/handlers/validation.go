package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	apierr "github.com/spinvfx/spinfab/pkg/api/errors"
	"github.com/spinvfx/spinfab/pkg/conn/bus"
	"github.com/spinvfx/spinfab/pkg/domain/validation"
	"github.com/spinvfx/spinfab/pkg/domain/validation/service"
)

// OnEventHandler receives one validation request from the bus.
func OnEventHandler(s *service.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		envelope := bus.Envelope{}
		if err := c.Bind(&envelope); err != nil {
			return apierr.NewErrorMessage(
				http.StatusBadRequest, "the request body is not a bus envelope", apierr.WithError(err),
			)
		}

		if err := s.OnEvent(c.Request().Context(), envelope); err != nil {
			return asAPIError(err)
		}
		return c.NoContent(http.StatusAccepted)
	}
}

func asAPIError(err error) error {
	se := new(validation.StatusError)
	if errors.As(err, &se) {
		return apierr.NewErrorMessage(se.Code, se.Reason, apierr.WithError(err))
	}
	return err
}
