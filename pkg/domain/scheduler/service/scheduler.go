package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spinvfx/spinfab/pkg/conn/bus"
	"github.com/spinvfx/spinfab/pkg/conn/catalog"
	"github.com/spinvfx/spinfab/pkg/conn/remote"
	"github.com/spinvfx/spinfab/pkg/domain"
	"github.com/spinvfx/spinfab/pkg/domain/scheduler"
	schedb "github.com/spinvfx/spinfab/pkg/domain/scheduler/db"
)

// JobLauncher spawns the workload running a prepared job request.
type JobLauncher interface {
	Launch(ctx context.Context, jobID string, jobFile string) error
}

// Config tunes the scheduler service.
type Config struct {
	// EventToolsConfigName is the name of the configuration document
	// binding event types to tools.
	EventToolsConfigName string

	// JobconfBaseDir is the shared directory job configuration
	// documents are written to.
	JobconfBaseDir string

	// MaxDueJobs caps how many due requests one scan prepares.
	MaxDueJobs int

	// ScheduleAfter delays a fresh registration's due time.
	ScheduleAfter time.Duration
}

// Service registers job requests for catalog events and drives them
// through preparation, execution and rescheduling.
type Service struct {
	store    schedb.Interface
	configs  remote.Configs
	deps     remote.Deps
	catalog  catalog.Catalog
	events   bus.Publisher
	launcher JobLauncher
	config   Config
	logger   *log.Logger

	// replaced in tests
	now func() time.Time
}

func New(
	store schedb.Interface,
	configs remote.Configs,
	deps remote.Deps,
	cat catalog.Catalog,
	events bus.Publisher,
	launcher JobLauncher,
	config Config,
	logger *log.Logger,
) *Service {
	if config.MaxDueJobs <= 0 {
		config.MaxDueJobs = 10
	}
	return &Service{
		store:    store,
		configs:  configs,
		deps:     deps,
		catalog:  cat,
		events:   events,
		launcher: launcher,
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
}

// OnEvent ingests one catalog event arriving from the sourcing service
// and registers a job request for it when the event-tools configuration
// binds a tool to its type.
//
// Events the configuration does not cover, or lacking the context a
// tool run needs, are dropped without error. A request already
// registered for the same event is left alone.
func (s *Service) OnEvent(ctx context.Context, envelope bus.Envelope) error {
	if envelope.ID == "" {
		return scheduler.Reject(422, "the event envelope carries no id")
	}
	if envelope.Source != domain.SourceSourcingService {
		return scheduler.Reject(422, "unexpected event source: "+envelope.Source)
	}

	augmented := domain.AugmentedEvent{}
	if err := json.Unmarshal(envelope.Detail, &augmented); err != nil || augmented.ID == "" {
		return scheduler.Reject(422, "the event detail is not an augmented event")
	}
	augmented.EventBusID = envelope.ID

	if augmented.Source != domain.SourceCatalogWebhook {
		return scheduler.Reject(422, "unexpected augmented event source: "+augmented.Source)
	}

	uid := augmented.UID()

	eventType := augmented.EventType()
	if eventType == "" {
		s.logger.Printf("%s: dropped, no event type", uid)
		return nil
	}
	if person := s.person(augmented); person == "" {
		s.logger.Printf("%s: dropped, no person", uid)
		return nil
	}
	if augmented.Site == "" {
		s.logger.Printf("%s: dropped, no site", uid)
		return nil
	}

	level, found, err := s.eventLevel(ctx, augmented)
	if err != nil {
		return err
	}
	if !found {
		s.logger.Printf("%s: dropped, no level for the event", uid)
		return nil
	}

	toolConfig, found, err := s.lookupToolConfig(ctx, eventType, level)
	if err != nil {
		return err
	}
	if !found {
		s.logger.Printf("%s: dropped, no tool configured for %s", uid, eventType)
		return nil
	}

	// A tool binding without an explicit profile runs with the packages
	// effective at the event's own level.
	if profileID, _ := toolConfig["profile_id"].(string); profileID == "" {
		if profilePath, _ := toolConfig["profile_path"].(string); profilePath == "" {
			toolConfig["profile_path"] = string(level)
		}
	}

	now := s.now()
	created, err := s.store.Create(ctx, scheduler.JobRequest{
		JobID:               augmented.NormalizedJobID(),
		Catalog:             scheduler.CatalogGlobal,
		TriggeringEventType: eventType,
		DueNS:               now.Add(s.config.ScheduleAfter).UnixNano(),
		ToolConfig:          toolConfig,
		Event:               augmented,
		RegisteredNS:        now.UnixNano(),
		ExitCode:            -1,
	})
	if err != nil {
		return err
	}
	if !created {
		s.logger.Printf("%s: a job request is already registered", uid)
		return nil
	}

	s.logger.Printf("%s: registered job request %s", uid, augmented.NormalizedJobID())
	return nil
}

// person identifies who triggered the event.
//
// TODO: read the identity from the catalog session when the webhook
// gateway starts forwarding it.
func (s *Service) person(event domain.AugmentedEvent) string {
	return "unknown@unknown.com"
}

// eventLevel derives the level path of the project the event belongs to.
func (s *Service) eventLevel(ctx context.Context, event domain.AugmentedEvent) (domain.LevelPath, bool, error) {
	projectID, ok := event.ProjectID()
	if !ok {
		return "", false, nil
	}

	project, err := s.catalog.FindProject(ctx, projectID)
	if err != nil {
		if err == catalog.ErrNotFound {
			return "", false, nil
		}
		return "", false, err
	}

	path := domain.CanonizePath(fmt.Sprintf("/%s/%s/%s", project.Site, project.Division, project.Name))
	if _, ok := domain.ParseLevelPath(path); !ok {
		return "", false, nil
	}
	return path, true, nil
}

// lookupToolConfig finds the tool bound to eventType at the given level.
//
// The binding is returned raw. Decoding is deferred to preparation time
// so a bad binding surfaces on the job request, not as a lost event.
func (s *Service) lookupToolConfig(ctx context.Context, eventType string, level domain.LevelPath) (map[string]any, bool, error) {
	body, found, err := s.configs.EffectiveConfig(ctx, s.config.EventToolsConfigName, level)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, scheduler.Reject(503, "the event tools configuration is not available")
	}

	configuration, _ := body["configuration"].(map[string]any)
	eventTypes, ok := configuration["event_types"].(map[string]any)
	if !ok {
		return nil, false, scheduler.Reject(503, "the event tools configuration has no event_types")
	}

	value, ok := eventTypes[strings.ToLower(eventType)].(map[string]any)
	if !ok {
		return nil, false, nil
	}
	if toolToRun, _ := value["tool_to_run"].(string); toolToRun == "" {
		return nil, false, nil
	}
	return value, true, nil
}

// GetJob fetches one job request.
func (s *Service) GetJob(ctx context.Context, jobID string) (scheduler.JobRequest, error) {
	req, found, err := s.store.Get(ctx, jobID)
	if err != nil {
		return scheduler.JobRequest{}, err
	}
	if !found {
		return scheduler.JobRequest{}, scheduler.Reject(404, "no job request: "+jobID)
	}
	return req, nil
}

// ResetJob puts a job request back in front of the due scan, clearing
// every lifecycle stamp.
func (s *Service) ResetJob(ctx context.Context, jobID string) error {
	done, err := s.store.MarkUnprepared(ctx, jobID)
	if err != nil {
		return err
	}
	if !done {
		return scheduler.Reject(404, "no job request: "+jobID)
	}
	return nil
}
