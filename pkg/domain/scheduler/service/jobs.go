package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spinvfx/spinfab/pkg/conn/bus"
	"github.com/spinvfx/spinfab/pkg/domain"
	"github.com/spinvfx/spinfab/pkg/domain/scheduler"
)

// ProcessDue prepares the job requests whose due time has passed and
// reports how many it touched.
//
// Each prepared request gets a job configuration document on the shared
// filesystem and a workload running the tool. Requests that cannot ever
// be prepared are marked unrecoverable so the scan stops revisiting
// them. Transient failures leave the request due for the next scan.
func (s *Service) ProcessDue(ctx context.Context) (int, error) {
	due, err := s.store.Due(ctx, s.now().UnixNano(), s.config.MaxDueJobs)
	if err != nil {
		return 0, err
	}

	for _, req := range due {
		if err := s.prepare(ctx, req); err != nil {
			s.logger.Printf("%s: preparation failed: %s", req.JobID, err)
		}
	}
	return len(due), nil
}

func (s *Service) prepare(ctx context.Context, req scheduler.JobRequest) error {
	toolConfig, err := scheduler.EventToolConfigFromMap(req.ToolConfig)
	if err != nil || !toolConfig.IsValid() {
		s.logger.Printf("%s: the tool binding is unusable, giving up", req.JobID)
		return s.giveUp(ctx, req.JobID)
	}
	if toolConfig.ProfileID == "" && toolConfig.ProfilePath == "" {
		s.logger.Printf("%s: the tool binding names no profile, giving up", req.JobID)
		return s.giveUp(ctx, req.JobID)
	}

	var packages []string
	var found bool
	if toolConfig.ProfileID != "" {
		packages, found, err = s.deps.ProfilePackages(ctx, toolConfig.ProfileID)
	} else {
		packages, found, err = s.deps.PackagesAtPath(ctx, domain.CanonizePath(toolConfig.ProfilePath))
	}
	if err != nil {
		return err
	}
	if !found {
		s.logger.Printf("%s: the tool binding names an unknown profile, giving up", req.JobID)
		return s.giveUp(ctx, req.JobID)
	}

	jobFile, err := s.writeJobConf(req, toolConfig, packages)
	if err != nil {
		s.logger.Printf("%s: unable to store the job configuration: %s", req.JobID, err)
		return s.publishStatus(ctx, domain.EventTypeJobUnprepared, req.JobID)
	}

	if err := s.launcher.Launch(ctx, req.JobID, jobFile); err != nil {
		s.logger.Printf("%s: unable to launch the job: %s", req.JobID, err)
		if _, err := s.store.MarkUnprepared(ctx, req.JobID); err != nil {
			return err
		}
		return s.publishStatus(ctx, domain.EventTypeJobUnprepared, req.JobID)
	}

	if _, err := s.store.MarkPrepared(ctx, req.JobID, s.now().UnixNano()); err != nil {
		return err
	}
	return s.publishStatus(ctx, domain.EventTypeJobPrepared, req.JobID)
}

// giveUp takes the request out of the due scan for good.
func (s *Service) giveUp(ctx context.Context, jobID string) error {
	if _, err := s.store.MarkUnrecoverable(ctx, jobID, s.now().UnixNano()); err != nil {
		return err
	}
	return s.publishStatus(ctx, domain.EventTypeJobUnrecoverable, jobID)
}

func (s *Service) writeJobConf(req scheduler.JobRequest, toolConfig scheduler.EventToolConfig, packages []string) (string, error) {
	payload, err := json.Marshal(scheduler.JobConf{
		Event:           req.Event,
		ToolConfig:      toolConfig,
		ProfilePackages: packages,
	})
	if err != nil {
		return "", err
	}

	jobFile := filepath.Join(s.config.JobconfBaseDir, req.JobID+".json")
	if err := os.WriteFile(jobFile, payload, 0644); err != nil {
		return "", err
	}
	return jobFile, nil
}

func (s *Service) publishStatus(ctx context.Context, detailType string, jobID string) error {
	return s.events.Publish(ctx, detailType, scheduler.JobStatusDetail{
		JobID:     jobID,
		StampedAt: s.now().UnixNano(),
	})
}

// OnJobEvent applies a status report a runner sent over the bus.
//
// Started and finished reports stamp the job request and are echoed to
// the bus as job-status events. A reschedule report registers a fresh
// request for a rerun.
func (s *Service) OnJobEvent(ctx context.Context, envelope bus.Envelope) error {
	if envelope.Source != domain.SourceSchedulerJob {
		return scheduler.Reject(422, "unexpected job event source: "+envelope.Source)
	}

	jobEvent := scheduler.JobEvent{}
	if err := json.Unmarshal(envelope.Detail, &jobEvent); err != nil || jobEvent.JobID == "" {
		return scheduler.Reject(422, "the event detail is not a job event")
	}

	switch {
	case jobEvent.IsStarted():
		return s.markStarted(ctx, jobEvent)
	case jobEvent.IsFinished():
		return s.markFinished(ctx, jobEvent)
	case jobEvent.IsReschedule():
		_, err := s.Reschedule(ctx, jobEvent.JobID, jobEvent.DueAt)
		return err
	default:
		return scheduler.Reject(422, "the job event has no recognizable shape")
	}
}

func (s *Service) markStarted(ctx context.Context, jobEvent scheduler.JobEvent) error {
	stamp, err := strconv.ParseInt(jobEvent.StartedAt, 10, 64)
	if err != nil {
		return scheduler.Reject(422, "unreadable started_at stamp: "+jobEvent.StartedAt)
	}
	done, err := s.store.MarkStarted(ctx, jobEvent.JobID, stamp)
	if err != nil {
		return err
	}
	if !done {
		return scheduler.Reject(400, "no job request: "+jobEvent.JobID)
	}
	return s.publishStatus(ctx, domain.EventTypeJobStarted, jobEvent.JobID)
}

func (s *Service) markFinished(ctx context.Context, jobEvent scheduler.JobEvent) error {
	stamp, err := strconv.ParseInt(jobEvent.FinishedAt, 10, 64)
	if err != nil {
		return scheduler.Reject(422, "unreadable finished_at stamp: "+jobEvent.FinishedAt)
	}
	exitCode, err := strconv.Atoi(jobEvent.ExitCode)
	if err != nil {
		return scheduler.Reject(422, "unreadable exit_code: "+jobEvent.ExitCode)
	}
	done, err := s.store.MarkFinished(ctx, jobEvent.JobID, stamp, exitCode)
	if err != nil {
		return err
	}
	if !done {
		return scheduler.Reject(400, "no job request: "+jobEvent.JobID)
	}
	return s.publishStatus(ctx, domain.EventTypeJobFinished, jobEvent.JobID)
}

// Reschedule registers a rerun of jobID at the given due time.
//
// The new due time must be in the future of both the old one and of
// now plus the minimum delay, so a runaway tool cannot wedge the
// scheduler in a tight loop.
func (s *Service) Reschedule(ctx context.Context, jobID string, dueAt string) (scheduler.JobRequest, error) {
	dueNS, ok := scheduler.ParseDueStamp(dueAt)
	if !ok {
		return scheduler.JobRequest{}, scheduler.Reject(400, "unreadable due_at stamp: "+dueAt)
	}

	current, found, err := s.store.Get(ctx, jobID)
	if err != nil {
		return scheduler.JobRequest{}, err
	}
	if !found {
		return scheduler.JobRequest{}, scheduler.Reject(400, "no job request: "+jobID)
	}

	if dueNS <= current.DueNS {
		return scheduler.JobRequest{}, scheduler.Reject(400, "the new due time must be after the current one")
	}
	now := s.now()
	if dueNS < now.Add(scheduler.MinRescheduleDelay).UnixNano() {
		return scheduler.JobRequest{}, scheduler.Reject(400, "the new due time is too soon")
	}

	newID, ok := scheduler.RescheduledJobID(jobID)
	if !ok {
		return scheduler.JobRequest{}, scheduler.Reject(400, "not a reschedulable job id: "+jobID)
	}

	rerun := scheduler.JobRequest{
		JobID:               newID,
		Catalog:             current.Catalog,
		TriggeringEventType: current.TriggeringEventType,
		DueNS:               dueNS,
		ToolConfig:          current.ToolConfig,
		Event:               current.Event,
		RegisteredNS:        now.UnixNano(),
		ExitCode:            -1,
		ScheduledByJobID:    jobID,
	}
	created, err := s.store.Create(ctx, rerun)
	if err != nil {
		return scheduler.JobRequest{}, err
	}
	if !created {
		return scheduler.JobRequest{}, scheduler.Reject(409, "a rerun with the same id is already registered")
	}

	s.logger.Printf("%s: registered rerun %s", jobID, newID)
	return rerun, nil
}
