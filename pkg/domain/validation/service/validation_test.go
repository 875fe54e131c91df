package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/spinvfx/spinfab/pkg/conn/bus"
	busmock "github.com/spinvfx/spinfab/pkg/conn/bus/mock"
	"github.com/spinvfx/spinfab/pkg/domain"
	"github.com/spinvfx/spinfab/pkg/domain/dependency"
	"github.com/spinvfx/spinfab/pkg/domain/validation"
)

var quietLogger = log.New(io.Discard, "", 0)

type fakeResolver struct {
	requests []string
	rxtPath  string

	resolution validation.Resolution
	err        error
}

func (r *fakeResolver) Resolve(_ context.Context, requests []string, rxtPath string) (validation.Resolution, error) {
	r.requests = requests
	r.rxtPath = rxtPath
	if r.err != nil {
		return validation.Resolution{}, r.err
	}
	return r.resolution, nil
}

func requestEnvelope(t *testing.T, profile dependency.Profile) bus.Envelope {
	t.Helper()
	detail, err := json.Marshal(profile)
	if err != nil {
		t.Fatal(err)
	}
	return bus.Envelope{
		ID:         "eb-0003",
		Source:     domain.SourceDependencyService,
		DetailType: domain.EventTypeValidationRequest,
		Detail:     detail,
	}
}

func effectiveProfile() dependency.Profile {
	return dependency.Profile{
		ID:   "profile_abc",
		Path: "/Mumbai/film/alpha",
		Packages: []dependency.PackageRef{
			{Name: "fastapi", Version: "0.75.1"},
			{Name: "anyio", Version: "3.5.0"},
		},
		Bundles: []dependency.Bundle{
			{Name: "docs", Packages: []dependency.PackageRef{
				{Name: "sphinx", Version: "4.3.2"},
				{Name: "houdini", Version: "19.0", UseLegacy: true},
			}},
		},
	}
}

func completedOf(t *testing.T, events *busmock.Publisher) validation.CompletedDetail {
	t.Helper()
	published := events.EventsOf(domain.EventTypeValidationCompleted)
	if len(published) != 1 {
		t.Fatalf("published %d completed events, wanted 1", len(published))
	}
	completed := validation.CompletedDetail{}
	if err := json.Unmarshal(published[0].Detail, &completed); err != nil {
		t.Fatal(err)
	}
	return completed
}

func TestService_OnEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("a resolvable profile is reported valid with its context", func(t *testing.T) {
		events := busmock.New()
		resolver := &fakeResolver{resolution: validation.Resolution{
			Success: true, Detail: "resolved 3 packages",
		}}
		svc := New(events, resolver, Config{RxtDir: "/var/rxt"}, quietLogger)

		if err := svc.OnEvent(ctx, requestEnvelope(t, effectiveProfile())); err != nil {
			t.Fatal(err)
		}

		want := []string{"fastapi-0.75.1", "anyio-3.5.0", "sphinx-4.3.2"}
		if len(resolver.requests) != len(want) {
			t.Fatalf("resolved %v, wanted %v", resolver.requests, want)
		}
		for i, request := range want {
			if resolver.requests[i] != request {
				t.Errorf("request %d is %s, wanted %s", i, resolver.requests[i], request)
			}
		}

		completed := completedOf(t, events)
		if completed.ID != "profile_abc" || completed.Result != validation.ResultValid {
			t.Errorf("unexpected verdict: %+v", completed)
		}
		if completed.InResponseTo != "eb-0003" {
			t.Errorf("not linked to the triggering event: %q", completed.InResponseTo)
		}
		if completed.Reason != "resolved 3 packages" {
			t.Errorf("unexpected reason: %q", completed.Reason)
		}
		if !strings.HasPrefix(completed.Rxt, "/var/rxt/profile-profile_abc.") || !strings.HasSuffix(completed.Rxt, ".rxt") {
			t.Errorf("unexpected rxt path: %q", completed.Rxt)
		}
		if completed.Rxt != resolver.rxtPath {
			t.Error("the reported rxt path is not the one the resolver wrote")
		}
	})

	t.Run("a failing resolution is reported invalid without a context", func(t *testing.T) {
		events := busmock.New()
		resolver := &fakeResolver{resolution: validation.Resolution{
			Success: false, Detail: "package family not found: sphinx",
		}}
		svc := New(events, resolver, Config{RxtDir: "/var/rxt"}, quietLogger)

		if err := svc.OnEvent(ctx, requestEnvelope(t, effectiveProfile())); err != nil {
			t.Fatal(err)
		}

		completed := completedOf(t, events)
		if completed.Result != validation.ResultInvalid {
			t.Errorf("verdict %q, wanted invalid", completed.Result)
		}
		if completed.Rxt != "" {
			t.Errorf("an invalid profile got an rxt path: %q", completed.Rxt)
		}
		if completed.Reason != "package family not found: sphinx" {
			t.Errorf("unexpected reason: %q", completed.Reason)
		}
	})

	t.Run("a profile without resolvable packages is dropped", func(t *testing.T) {
		events := busmock.New()
		resolver := &fakeResolver{}
		svc := New(events, resolver, Config{}, quietLogger)

		empty := dependency.Profile{
			ID: "profile_empty",
			Bundles: []dependency.Bundle{
				{Name: "legacy", Packages: []dependency.PackageRef{
					{Name: "houdini", Version: "19.0", UseLegacy: true},
				}},
			},
		}
		if err := svc.OnEvent(ctx, requestEnvelope(t, empty)); err != nil {
			t.Fatal(err)
		}
		if resolver.requests != nil {
			t.Errorf("the resolver ran for an empty profile: %v", resolver.requests)
		}
		if len(events.Events()) != 0 {
			t.Error("a verdict was published for an empty profile")
		}
	})

	t.Run("malformed requests are rejected", func(t *testing.T) {
		svc := New(busmock.New(), &fakeResolver{}, Config{}, quietLogger)

		for name, envelope := range map[string]bus.Envelope{
			"wrong detail type": {
				DetailType: "something-else",
				Detail:     []byte(`{"id": "profile_abc"}`),
			},
			"detail is not a profile": {
				DetailType: domain.EventTypeValidationRequest,
				Detail:     []byte(`{"id": ""}`),
			},
		} {
			t.Run(name, func(t *testing.T) {
				err := svc.OnEvent(ctx, envelope)
				rejection := &validation.StatusError{}
				if !errors.As(err, &rejection) || rejection.Code != 422 {
					t.Errorf("unexpected error: %v", err)
				}
			})
		}
	})

	t.Run("a resolver breakdown is an error, not a verdict", func(t *testing.T) {
		events := busmock.New()
		resolver := &fakeResolver{err: errors.New("resolver binary missing")}
		svc := New(events, resolver, Config{}, quietLogger)

		if err := svc.OnEvent(ctx, requestEnvelope(t, effectiveProfile())); err == nil {
			t.Fatal("expected an error")
		}
		if len(events.Events()) != 0 {
			t.Error("a verdict was published although the resolver broke")
		}
	})
}
