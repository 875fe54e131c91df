package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/spinvfx/spinfab/cmd/configsd/handlers"
	"github.com/spinvfx/spinfab/pkg/domain"
	"github.com/spinvfx/spinfab/pkg/domain/config"
	configmock "github.com/spinvfx/spinfab/pkg/domain/config/db/mock"
	"github.com/spinvfx/spinfab/pkg/domain/config/service"
	"github.com/spinvfx/spinfab/pkg/utils/try"
)

type allVisible struct{}

func (allVisible) IsVisible(context.Context, domain.LevelPath, domain.User, bool) (bool, error) {
	return true, nil
}

func newService(t *testing.T, store *configmock.Configs) (*service.ConfigsService, service.BodyStore) {
	t.Helper()
	bodies := service.NewFileBodyStore(t.TempDir())
	logger := log.New(&strings.Builder{}, "", 0)
	return service.New(store, bodies, allVisible{}, false, logger), bodies
}

func get(t *testing.T, handler echo.HandlerFunc, target string, params map[string]string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	for name, value := range params {
		c.SetParamNames(name)
		c.SetParamValues(value)
	}
	return rec, handler(c)
}

func TestGetConfigHandler(t *testing.T) {
	t.Run("tokens from the query are substituted into the body", func(t *testing.T) {
		store := configmock.New()
		store.Impl.Get = func(_ context.Context, id string) (config.Config, bool, error) {
			return config.Config{
				ID:   id,
				Name: "render_settings",
				Path: "/Mumbai/television/abcshow",
			}, true, nil
		}

		svc, bodies := newService(t, store)
		try.To(0, bodies.Save("cfg-1", map[string]any{
			"s": "<show>",
			"e": "x_<bling>",
			"u": "an <<thing>> thing",
		})).OrFatal(t)

		rec, err := get(
			t, handlers.GetConfigHandler(svc, "id"),
			"/configs/cfg-1/?t_bling=tiger", map[string]string{"id": "cfg-1"},
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		item := config.Config{}
		try.To(0, json.Unmarshal(rec.Body.Bytes(), &item)).OrFatal(t)
		want := map[string]any{
			"s": "abcshow",
			"e": "x_tiger",
			"u": "an <<thing>> thing",
		}
		if !reflect.DeepEqual(item.Configuration, want) {
			t.Errorf("unexpected body: %#v", item.Configuration)
		}
	})

	t.Run("an unknown id is a 404", func(t *testing.T) {
		store := configmock.New()
		store.Impl.Get = func(context.Context, string) (config.Config, bool, error) {
			return config.Config{}, false, nil
		}
		svc, _ := newService(t, store)

		_, err := get(
			t, handlers.GetConfigHandler(svc, "id"),
			"/configs/cfg-nope/", map[string]string{"id": "cfg-nope"},
		)
		herr := new(echo.HTTPError)
		if !errors.As(err, &herr) || herr.Code != http.StatusNotFound {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestSetStatusHandler(t *testing.T) {
	t.Run("a body without 'current' is a 400", func(t *testing.T) {
		svc, _ := newService(t, configmock.New())

		e := echo.New()
		req := httptest.NewRequest(http.MethodPut, "/configs/cfg-1/status/", strings.NewReader(`{}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("cfg-1")

		err := handlers.SetStatusHandler(svc, "id")(c)
		herr := new(echo.HTTPError)
		if !errors.As(err, &herr) || herr.Code != http.StatusBadRequest {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
