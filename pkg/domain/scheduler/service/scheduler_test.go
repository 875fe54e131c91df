package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spinvfx/spinfab/pkg/conn/bus"
	busmock "github.com/spinvfx/spinfab/pkg/conn/bus/mock"
	"github.com/spinvfx/spinfab/pkg/conn/catalog"
	catalogmock "github.com/spinvfx/spinfab/pkg/conn/catalog/mock"
	remotemock "github.com/spinvfx/spinfab/pkg/conn/remote/mock"
	"github.com/spinvfx/spinfab/pkg/domain"
	"github.com/spinvfx/spinfab/pkg/domain/scheduler"
)

type memStore struct {
	mu       sync.Mutex
	requests map[string]scheduler.JobRequest
}

func newMemStore() *memStore {
	return &memStore{requests: map[string]scheduler.JobRequest{}}
}

func (s *memStore) Create(_ context.Context, req scheduler.JobRequest) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[req.JobID]; ok {
		return false, nil
	}
	s.requests[req.JobID] = req
	return true, nil
}

func (s *memStore) Get(_ context.Context, jobID string) (scheduler.JobRequest, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[jobID]
	return req, ok, nil
}

func (s *memStore) Due(_ context.Context, nowNS int64, limit int) ([]scheduler.JobRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	due := []scheduler.JobRequest{}
	for _, req := range s.requests {
		if req.Catalog == scheduler.CatalogGlobal && req.DueNS < nowNS && req.PreparedNS == 0 {
			due = append(due, req)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].DueNS < due[j].DueNS })
	if limit < len(due) {
		due = due[:limit]
	}
	return due, nil
}

func (s *memStore) update(jobID string, mutate func(*scheduler.JobRequest)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[jobID]
	if !ok {
		return false, nil
	}
	mutate(&req)
	s.requests[jobID] = req
	return true, nil
}

func (s *memStore) MarkPrepared(_ context.Context, jobID string, stampNS int64) (bool, error) {
	return s.update(jobID, func(req *scheduler.JobRequest) { req.PreparedNS = stampNS })
}

func (s *memStore) MarkUnprepared(_ context.Context, jobID string) (bool, error) {
	return s.update(jobID, func(req *scheduler.JobRequest) {
		req.PreparedNS = 0
		req.StartedNS = 0
		req.FinishedNS = 0
		req.ExitCode = -1
	})
}

func (s *memStore) MarkUnrecoverable(_ context.Context, jobID string, stampNS int64) (bool, error) {
	if stampNS > 0 {
		stampNS = -stampNS
	}
	return s.update(jobID, func(req *scheduler.JobRequest) { req.PreparedNS = stampNS })
}

func (s *memStore) MarkStarted(_ context.Context, jobID string, stampNS int64) (bool, error) {
	return s.update(jobID, func(req *scheduler.JobRequest) { req.StartedNS = stampNS })
}

func (s *memStore) MarkFinished(_ context.Context, jobID string, stampNS int64, exitCode int) (bool, error) {
	return s.update(jobID, func(req *scheduler.JobRequest) {
		req.FinishedNS = stampNS
		req.ExitCode = exitCode
	})
}

type fakeLauncher struct {
	mu       sync.Mutex
	launched map[string]string
	err      error
}

func newFakeLauncher() *fakeLauncher {
	return &fakeLauncher{launched: map[string]string{}}
}

func (l *fakeLauncher) Launch(_ context.Context, jobID string, jobFile string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.launched[jobID] = jobFile
	return nil
}

var quietLogger = log.New(io.Discard, "", 0)

var frozenNow = time.Date(2024, 3, 18, 10, 0, 0, 0, time.UTC)

type fixture struct {
	store    *memStore
	configs  *remotemock.Configs
	deps     *remotemock.Deps
	catalog  *catalogmock.Catalog
	events   *busmock.Publisher
	launcher *fakeLauncher
	service  *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:    newMemStore(),
		configs:  remotemock.NewConfigs(),
		deps:     remotemock.NewDeps(),
		catalog:  catalogmock.New(),
		events:   busmock.New(),
		launcher: newFakeLauncher(),
	}
	f.service = New(
		f.store, f.configs, f.deps, f.catalog, f.events, f.launcher,
		Config{
			EventToolsConfigName: "event_tools",
			JobconfBaseDir:       t.TempDir(),
			MaxDueJobs:           10,
			ScheduleAfter:        30 * time.Second,
		},
		quietLogger,
	)
	f.service.now = func() time.Time { return frozenNow }
	return f
}

func (f *fixture) bindTool(binding map[string]any) {
	f.configs.Impl.EffectiveConfig = func(_ context.Context, name string, _ domain.LevelPath) (map[string]any, bool, error) {
		if name != "event_tools" {
			return nil, false, nil
		}
		return map[string]any{
			"configuration": map[string]any{
				"event_types": map[string]any{
					"shotgun_version_new": binding,
				},
			},
		}, true, nil
	}
}

func (f *fixture) serveProject() {
	f.catalog.Impl.FindProject = func(_ context.Context, projectID int) (catalog.Project, error) {
		if projectID != 70 {
			return catalog.Project{}, catalog.ErrNotFound
		}
		return catalog.Project{ID: 70, Name: "alpha", Division: "film", Site: "Mumbai"}, nil
	}
}

func sourcingEnvelope(t *testing.T, augmented domain.AugmentedEvent) bus.Envelope {
	t.Helper()
	detail, err := json.Marshal(augmented)
	if err != nil {
		t.Fatal(err)
	}
	return bus.Envelope{
		ID:         "eb-0001",
		Source:     domain.SourceSourcingService,
		DetailType: domain.EventTypeCatalogEvent,
		Detail:     detail,
	}
}

func versionEvent(id string) domain.AugmentedEvent {
	return domain.AugmentedEvent{
		ID:     id,
		Source: domain.SourceCatalogWebhook,
		Site:   "Mumbai",
		Event: map[string]any{
			"event_type": "Shotgun_Version_New",
			"project":    map[string]any{"id": float64(70)},
		},
	}
}

func statusCodeOf(t *testing.T, err error) int {
	t.Helper()
	rejection := &scheduler.StatusError{}
	if !errors.As(err, &rejection) {
		t.Fatalf("not a status error: %v", err)
	}
	return rejection.Code
}

func TestService_OnEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("an event registers one job request, repeated delivery none", func(t *testing.T) {
		f := newFixture(t)
		f.serveProject()
		f.bindTool(map[string]any{"tool_to_run": "version-ingest"})

		envelope := sourcingEnvelope(t, versionEvent("123"))
		if err := f.service.OnEvent(ctx, envelope); err != nil {
			t.Fatal(err)
		}

		req, found, _ := f.store.Get(ctx, "job-sg-123")
		if !found {
			t.Fatal("no job request registered")
		}
		if req.TriggeringEventType != "Shotgun_Version_New" {
			t.Errorf("unexpected triggering event type: %s", req.TriggeringEventType)
		}
		if want := frozenNow.Add(30 * time.Second).UnixNano(); req.DueNS != want {
			t.Errorf("due at %d, wanted %d", req.DueNS, want)
		}
		if path, _ := req.ToolConfig["profile_path"].(string); path != "/Mumbai/film/alpha" {
			t.Errorf("profile path not defaulted to the event level: %q", path)
		}

		// same event, delivered again
		if err := f.service.OnEvent(ctx, envelope); err != nil {
			t.Fatal(err)
		}
		f.store.mu.Lock()
		count := len(f.store.requests)
		f.store.mu.Unlock()
		if count != 1 {
			t.Errorf("redelivery registered extra requests: %d", count)
		}
	})

	t.Run("a binding naming a profile is kept as it is", func(t *testing.T) {
		f := newFixture(t)
		f.serveProject()
		f.bindTool(map[string]any{"tool_to_run": "version-ingest", "profile_id": "profile_abc"})

		if err := f.service.OnEvent(ctx, sourcingEnvelope(t, versionEvent("124"))); err != nil {
			t.Fatal(err)
		}
		req, _, _ := f.store.Get(ctx, "job-sg-124")
		if _, defaulted := req.ToolConfig["profile_path"]; defaulted {
			t.Error("profile path defaulted although a profile id is bound")
		}
	})

	t.Run("malformed envelopes are rejected", func(t *testing.T) {
		f := newFixture(t)

		for name, testcase := range map[string]struct {
			envelope bus.Envelope
			code     int
		}{
			"no envelope id": {
				envelope: bus.Envelope{Source: domain.SourceSourcingService},
				code:     422,
			},
			"wrong envelope source": {
				envelope: bus.Envelope{ID: "eb-1", Source: "somewhere-else", Detail: []byte(`{}`)},
				code:     422,
			},
			"detail is not an augmented event": {
				envelope: bus.Envelope{ID: "eb-1", Source: domain.SourceSourcingService, Detail: []byte(`{"id": ""}`)},
				code:     422,
			},
			"wrong augmented source": {
				envelope: sourcingEnvelope(t, domain.AugmentedEvent{ID: "9", Source: "elsewhere"}),
				code:     422,
			},
		} {
			t.Run(name, func(t *testing.T) {
				err := f.service.OnEvent(ctx, testcase.envelope)
				if code := statusCodeOf(t, err); code != testcase.code {
					t.Errorf("status %d, wanted %d", code, testcase.code)
				}
			})
		}
	})

	t.Run("events without a usable tool binding are dropped silently", func(t *testing.T) {
		f := newFixture(t)
		f.serveProject()
		f.bindTool(map[string]any{"tool_to_run": ""})

		for name, augmented := range map[string]domain.AugmentedEvent{
			"no event type": {
				ID: "1", Source: domain.SourceCatalogWebhook, Site: "Mumbai",
				Event: map[string]any{"project": map[string]any{"id": float64(70)}},
			},
			"no site": {
				ID: "2", Source: domain.SourceCatalogWebhook,
				Event: map[string]any{"event_type": "Shotgun_Version_New"},
			},
			"no project": {
				ID: "3", Source: domain.SourceCatalogWebhook, Site: "Mumbai",
				Event: map[string]any{"event_type": "Shotgun_Version_New"},
			},
			"unknown project": {
				ID: "4", Source: domain.SourceCatalogWebhook, Site: "Mumbai",
				Event: map[string]any{
					"event_type": "Shotgun_Version_New",
					"project":    map[string]any{"id": float64(99)},
				},
			},
			"tool binding without a tool": versionEvent("5"),
		} {
			t.Run(name, func(t *testing.T) {
				if err := f.service.OnEvent(ctx, sourcingEnvelope(t, augmented)); err != nil {
					t.Fatal(err)
				}
			})
		}

		f.store.mu.Lock()
		defer f.store.mu.Unlock()
		if len(f.store.requests) != 0 {
			t.Errorf("dropped events registered requests: %v", f.store.requests)
		}
	})

	t.Run("a missing event tools configuration is a service failure", func(t *testing.T) {
		f := newFixture(t)
		f.serveProject()
		f.configs.Impl.EffectiveConfig = func(context.Context, string, domain.LevelPath) (map[string]any, bool, error) {
			return nil, false, nil
		}

		err := f.service.OnEvent(ctx, sourcingEnvelope(t, versionEvent("123")))
		if code := statusCodeOf(t, err); code != 503 {
			t.Errorf("status %d, wanted 503", code)
		}
	})
}

func dueRequest(jobID string, toolConfig map[string]any) scheduler.JobRequest {
	return scheduler.JobRequest{
		JobID:               jobID,
		Catalog:             scheduler.CatalogGlobal,
		TriggeringEventType: "Shotgun_Version_New",
		DueNS:               frozenNow.Add(-time.Minute).UnixNano(),
		ToolConfig:          toolConfig,
		Event:               versionEvent(strings.TrimPrefix(jobID, "job-sg-")),
		RegisteredNS:        frozenNow.Add(-2 * time.Minute).UnixNano(),
		ExitCode:            -1,
	}
}

func TestService_ProcessDue(t *testing.T) {
	ctx := context.Background()

	t.Run("a due request is prepared and launched", func(t *testing.T) {
		f := newFixture(t)
		f.deps.Impl.ProfilePackages = func(_ context.Context, profileID string) ([]string, bool, error) {
			if profileID != "profile_abc" {
				return nil, false, nil
			}
			return []string{"fastapi-0.75.1", "anyio-3.5.0"}, true, nil
		}
		f.store.Create(ctx, dueRequest("job-sg-123", map[string]any{
			"tool_to_run": "version-ingest", "profile_id": "profile_abc",
		}))

		processed, err := f.service.ProcessDue(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if processed != 1 {
			t.Fatalf("processed %d requests, wanted 1", processed)
		}

		jobFile, launched := f.launcher.launched["job-sg-123"]
		if !launched {
			t.Fatal("the job was not launched")
		}
		if want := filepath.Join(f.service.config.JobconfBaseDir, "job-sg-123.json"); jobFile != want {
			t.Errorf("job file at %s, wanted %s", jobFile, want)
		}

		payload, err := os.ReadFile(jobFile)
		if err != nil {
			t.Fatal(err)
		}
		jobConf := scheduler.JobConf{}
		if err := json.Unmarshal(payload, &jobConf); err != nil {
			t.Fatal(err)
		}
		if jobConf.ToolConfig.ToolToRun != "version-ingest" {
			t.Errorf("unexpected tool: %s", jobConf.ToolConfig.ToolToRun)
		}
		if len(jobConf.ProfilePackages) != 2 || jobConf.ProfilePackages[0] != "fastapi-0.75.1" {
			t.Errorf("unexpected packages: %v", jobConf.ProfilePackages)
		}
		if jobConf.Event.ID != "123" {
			t.Errorf("unexpected event in the job conf: %s", jobConf.Event.ID)
		}

		req, _, _ := f.store.Get(ctx, "job-sg-123")
		if req.PreparedNS != frozenNow.UnixNano() {
			t.Errorf("prepared stamp %d, wanted %d", req.PreparedNS, frozenNow.UnixNano())
		}
		if events := f.events.EventsOf(domain.EventTypeJobPrepared); len(events) != 1 {
			t.Errorf("published %d prepared events, wanted 1", len(events))
		}
	})

	t.Run("a request resolving by path uses the path lookup", func(t *testing.T) {
		f := newFixture(t)
		f.deps.Impl.PackagesAtPath = func(_ context.Context, path domain.LevelPath) ([]string, bool, error) {
			if path != "/Mumbai/film/alpha" {
				return nil, false, nil
			}
			return []string{"fastapi-0.75.1"}, true, nil
		}
		f.store.Create(ctx, dueRequest("job-sg-124", map[string]any{
			"tool_to_run": "version-ingest", "profile_path": "/Mumbai/film/alpha/",
		}))

		if _, err := f.service.ProcessDue(ctx); err != nil {
			t.Fatal(err)
		}
		if _, launched := f.launcher.launched["job-sg-124"]; !launched {
			t.Error("the job was not launched")
		}
	})

	t.Run("unusable requests become unrecoverable", func(t *testing.T) {
		for name, toolConfig := range map[string]map[string]any{
			"no tool":    {"profile_id": "profile_abc"},
			"no profile": {"tool_to_run": "version-ingest"},
			"unknown profile": {
				"tool_to_run": "version-ingest", "profile_id": "profile_gone",
			},
		} {
			t.Run(name, func(t *testing.T) {
				f := newFixture(t)
				f.deps.Impl.ProfilePackages = func(context.Context, string) ([]string, bool, error) {
					return nil, false, nil
				}
				f.store.Create(ctx, dueRequest("job-sg-125", toolConfig))

				if _, err := f.service.ProcessDue(ctx); err != nil {
					t.Fatal(err)
				}

				req, _, _ := f.store.Get(ctx, "job-sg-125")
				if !req.IsUnrecoverable() {
					t.Errorf("request not marked unrecoverable: prepared at %d", req.PreparedNS)
				}
				if events := f.events.EventsOf(domain.EventTypeJobUnrecoverable); len(events) != 1 {
					t.Errorf("published %d unrecoverable events, wanted 1", len(events))
				}
				if len(f.launcher.launched) != 0 {
					t.Error("an unrecoverable request was launched")
				}

				// out of the due scan now
				if processed, _ := f.service.ProcessDue(ctx); processed != 0 {
					t.Errorf("unrecoverable request scanned again: %d", processed)
				}
			})
		}
	})

	t.Run("a failed launch leaves the request due for retry", func(t *testing.T) {
		f := newFixture(t)
		f.deps.Impl.ProfilePackages = func(context.Context, string) ([]string, bool, error) {
			return []string{"fastapi-0.75.1"}, true, nil
		}
		f.launcher.err = errors.New("the cluster is on fire")
		f.store.Create(ctx, dueRequest("job-sg-126", map[string]any{
			"tool_to_run": "version-ingest", "profile_id": "profile_abc",
		}))

		if _, err := f.service.ProcessDue(ctx); err != nil {
			t.Fatal(err)
		}

		req, _, _ := f.store.Get(ctx, "job-sg-126")
		if req.PreparedNS != 0 {
			t.Errorf("prepared stamp %d after a failed launch", req.PreparedNS)
		}
		if events := f.events.EventsOf(domain.EventTypeJobUnprepared); len(events) != 1 {
			t.Errorf("published %d unprepared events, wanted 1", len(events))
		}
	})

	t.Run("one scan prepares at most the configured number of requests", func(t *testing.T) {
		f := newFixture(t)
		f.service.config.MaxDueJobs = 2
		f.deps.Impl.ProfilePackages = func(context.Context, string) ([]string, bool, error) {
			return []string{"fastapi-0.75.1"}, true, nil
		}
		for i := 0; i < 5; i++ {
			f.store.Create(ctx, dueRequest(fmt.Sprintf("job-sg-%d", i), map[string]any{
				"tool_to_run": "version-ingest", "profile_id": "profile_abc",
			}))
		}

		if processed, _ := f.service.ProcessDue(ctx); processed != 2 {
			t.Errorf("processed %d requests, wanted 2", processed)
		}
	})
}

func jobEventEnvelope(t *testing.T, jobEvent scheduler.JobEvent) bus.Envelope {
	t.Helper()
	detail, err := json.Marshal(jobEvent)
	if err != nil {
		t.Fatal(err)
	}
	return bus.Envelope{
		ID:     "eb-0002",
		Source: domain.SourceSchedulerJob,
		Detail: detail,
	}
}

func TestService_OnJobEvent(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T, f *fixture) {
		t.Helper()
		f.store.Create(ctx, dueRequest("job-sg-123", map[string]any{"tool_to_run": "version-ingest"}))
	}

	t.Run("a started report stamps the request", func(t *testing.T) {
		f := newFixture(t)
		seed(t, f)

		stamp := frozenNow.Add(time.Second).UnixNano()
		err := f.service.OnJobEvent(ctx, jobEventEnvelope(t, scheduler.JobEvent{
			JobID:     "job-sg-123",
			StartedAt: fmt.Sprintf("%d", stamp),
		}))
		if err != nil {
			t.Fatal(err)
		}

		req, _, _ := f.store.Get(ctx, "job-sg-123")
		if req.StartedNS != stamp {
			t.Errorf("started stamp %d, wanted %d", req.StartedNS, stamp)
		}
		if events := f.events.EventsOf(domain.EventTypeJobStarted); len(events) != 1 {
			t.Errorf("published %d started events, wanted 1", len(events))
		}
	})

	t.Run("a finished report stamps the request and its exit code", func(t *testing.T) {
		f := newFixture(t)
		seed(t, f)

		stamp := frozenNow.Add(time.Minute).UnixNano()
		err := f.service.OnJobEvent(ctx, jobEventEnvelope(t, scheduler.JobEvent{
			JobID:      "job-sg-123",
			FinishedAt: fmt.Sprintf("%d", stamp),
			ExitCode:   "0",
		}))
		if err != nil {
			t.Fatal(err)
		}

		req, _, _ := f.store.Get(ctx, "job-sg-123")
		if req.FinishedNS != stamp || req.ExitCode != 0 {
			t.Errorf("finished at %d with exit code %d", req.FinishedNS, req.ExitCode)
		}
		if events := f.events.EventsOf(domain.EventTypeJobFinished); len(events) != 1 {
			t.Errorf("published %d finished events, wanted 1", len(events))
		}
	})

	t.Run("malformed reports are rejected", func(t *testing.T) {
		f := newFixture(t)
		seed(t, f)

		for name, envelope := range map[string]bus.Envelope{
			"wrong source": {
				Source: "elsewhere",
				Detail: []byte(`{"job_id": "job-sg-123"}`),
			},
			"no job id": jobEventEnvelope(t, scheduler.JobEvent{StartedAt: "1"}),
			"ambiguous shape": jobEventEnvelope(t, scheduler.JobEvent{
				JobID: "job-sg-123", StartedAt: "1", FinishedAt: "2",
			}),
		} {
			t.Run(name, func(t *testing.T) {
				err := f.service.OnJobEvent(ctx, envelope)
				if code := statusCodeOf(t, err); code != 422 {
					t.Errorf("status %d, wanted 422", code)
				}
			})
		}
	})
}

func TestService_Reschedule(t *testing.T) {
	ctx := context.Background()
	rerunID := regexp.MustCompile(`^job-sg-123-r-[a-z]{5}$`)

	seed := func(t *testing.T, f *fixture) {
		t.Helper()
		f.store.Create(ctx, dueRequest("job-sg-123", map[string]any{"tool_to_run": "version-ingest"}))
	}

	t.Run("a reschedule report registers a rerun", func(t *testing.T) {
		f := newFixture(t)
		seed(t, f)

		dueAt := fmt.Sprintf("%d", frozenNow.Add(2*time.Minute).UnixNano())
		err := f.service.OnJobEvent(ctx, jobEventEnvelope(t, scheduler.JobEvent{
			JobID: "job-sg-123",
			DueAt: dueAt,
		}))
		if err != nil {
			t.Fatal(err)
		}

		f.store.mu.Lock()
		reruns := []scheduler.JobRequest{}
		for _, req := range f.store.requests {
			if req.JobID != "job-sg-123" {
				reruns = append(reruns, req)
			}
		}
		f.store.mu.Unlock()

		if len(reruns) != 1 {
			t.Fatalf("registered %d reruns, wanted 1", len(reruns))
		}
		rerun := reruns[0]
		if !rerunID.MatchString(rerun.JobID) {
			t.Errorf("unexpected rerun id: %s", rerun.JobID)
		}
		if rerun.ScheduledByJobID != "job-sg-123" {
			t.Errorf("rerun scheduled by %q, wanted job-sg-123", rerun.ScheduledByJobID)
		}
		if want := frozenNow.Add(2 * time.Minute).UnixNano(); rerun.DueNS != want {
			t.Errorf("rerun due at %d, wanted %d", rerun.DueNS, want)
		}
		if rerun.ToolConfig["tool_to_run"] != "version-ingest" {
			t.Errorf("rerun lost the tool binding: %v", rerun.ToolConfig)
		}
	})

	t.Run("rescheduling a rerun replaces the suffix", func(t *testing.T) {
		f := newFixture(t)
		rerun := dueRequest("job-sg-123-r-abcde", map[string]any{"tool_to_run": "version-ingest"})
		f.store.Create(ctx, rerun)

		dueAt := fmt.Sprintf("%d", frozenNow.Add(2*time.Minute).UnixNano())
		next, err := f.service.Reschedule(ctx, "job-sg-123-r-abcde", dueAt)
		if err != nil {
			t.Fatal(err)
		}
		if !rerunID.MatchString(next.JobID) {
			t.Errorf("suffixes stacked up: %s", next.JobID)
		}
	})

	t.Run("bad due times are rejected", func(t *testing.T) {
		f := newFixture(t)
		seed(t, f)

		for name, dueAt := range map[string]string{
			"not a stamp":             "tomorrow",
			"too short":               "12345",
			"before the current due":  fmt.Sprintf("%d", frozenNow.Add(-2*time.Minute).UnixNano()),
			"sooner than the minimum": fmt.Sprintf("%d", frozenNow.Add(30*time.Second).UnixNano()),
			"exactly the current due": fmt.Sprintf("%d", frozenNow.Add(-time.Minute).UnixNano()),
		} {
			t.Run(name, func(t *testing.T) {
				_, err := f.service.Reschedule(ctx, "job-sg-123", dueAt)
				if code := statusCodeOf(t, err); code != 400 {
					t.Errorf("status %d, wanted 400", code)
				}
			})
		}
	})

	t.Run("an unknown job request is rejected", func(t *testing.T) {
		f := newFixture(t)
		seed(t, f)

		dueAt := fmt.Sprintf("%d", frozenNow.Add(2*time.Minute).UnixNano())
		_, err := f.service.Reschedule(ctx, "job-sg-999", dueAt)
		if code := statusCodeOf(t, err); code != 400 {
			t.Errorf("status %d, wanted 400", code)
		}
	})
}
