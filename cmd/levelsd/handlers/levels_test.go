package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/spinvfx/spinfab/cmd/levelsd/handlers"
	"github.com/spinvfx/spinfab/pkg/domain/level"
	levelmock "github.com/spinvfx/spinfab/pkg/domain/level/db/mock"
	"github.com/spinvfx/spinfab/pkg/utils/try"
)

func TestSitesHandler(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/sites/", nil)
	rec := httptest.NewRecorder()

	if err := handlers.SitesHandler()(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	body := struct {
		Sites []string `json:"sites"`
	}{}
	try.To(0, json.Unmarshal(rec.Body.Bytes(), &body)).OrFatal(t)
	if len(body.Sites) == 0 {
		t.Errorf("no sites listed")
	}
}

func TestRequestSyncHandler(t *testing.T) {
	store := levelmock.New()
	store.Impl.NewSyncRequest = func(_ context.Context, comment string) (level.SyncRequest, error) {
		return level.SyncRequest{Catalog: level.GlobalCatalog, ID: 1710756000000000000, Comment: comment}, nil
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/sync/?comment=new+show+onboarded", nil)
	rec := httptest.NewRecorder()

	if err := handlers.RequestSyncHandler(store)(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusAccepted {
		t.Errorf("unexpected status: %d", rec.Code)
	}

	request := level.SyncRequest{}
	try.To(0, json.Unmarshal(rec.Body.Bytes(), &request)).OrFatal(t)
	if request.Comment != "new show onboarded" || request.ID == 0 {
		t.Errorf("unexpected request: %+v", request)
	}
}
