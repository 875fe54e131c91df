package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	apierr "github.com/spinvfx/spinfab/pkg/api/errors"
	"github.com/spinvfx/spinfab/pkg/conn/bus"
	"github.com/spinvfx/spinfab/pkg/domain/scheduler"
	"github.com/spinvfx/spinfab/pkg/domain/scheduler/service"
)

// OnEventHandler registers a job request for one augmented catalog
// event arriving from the bus.
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

// OnJobEventHandler applies one runner lifecycle event to its job
// request.
func OnJobEventHandler(s *service.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		envelope := bus.Envelope{}
		if err := c.Bind(&envelope); err != nil {
			return apierr.NewErrorMessage(
				http.StatusBadRequest, "the request body is not a bus envelope", apierr.WithError(err),
			)
		}

		if err := s.OnJobEvent(c.Request().Context(), envelope); err != nil {
			return asAPIError(err)
		}
		return c.NoContent(http.StatusAccepted)
	}
}

// GetJobHandler reads one job request by id.
func GetJobHandler(s *service.Service, paramJobID string) echo.HandlerFunc {
	return func(c echo.Context) error {
		job, err := s.GetJob(c.Request().Context(), c.Param(paramJobID))
		if err != nil {
			return asAPIError(err)
		}
		return c.JSON(http.StatusOK, job)
	}
}

// ResetJobHandler puts a job request back into the due set.
//
// A development convenience for replaying a preparation.
func ResetJobHandler(s *service.Service, paramJobID string) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := s.ResetJob(c.Request().Context(), c.Param(paramJobID)); err != nil {
			return asAPIError(err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func asAPIError(err error) error {
	se := new(scheduler.StatusError)
	if errors.As(err, &se) {
		return apierr.NewErrorMessage(se.Code, se.Reason, apierr.WithError(err))
	}
	return err
}
