package postgres

import (
	"context"
	"encoding/json"

	kpool "github.com/spinvfx/spinfab/pkg/conn/db/postgres/pool"
	"github.com/spinvfx/spinfab/pkg/conn/db/postgres/schema"
	"github.com/spinvfx/spinfab/pkg/domain/scheduler"
	schedb "github.com/spinvfx/spinfab/pkg/domain/scheduler/db"
	xerrors "github.com/spinvfx/spinfab/pkg/errors"
)

type pgScheduler struct {
	pool  kpool.Pool
	names schema.Names
}

func New(pool kpool.Pool, names schema.Names) schedb.Interface {
	return &pgScheduler{pool: pool, names: names}
}

const jobrequestColumns = `"job_id", "catalog", "triggering_event_type", "due_ns", "tool_config", "event",
	"registered_ns", "prepared_ns", "started_ns", "finished_ns", "exit_code", "scheduled_by_job_id"`

func scanJobRequest(row interface {
	Scan(dest ...interface{}) error
}) (scheduler.JobRequest, error) {
	req := scheduler.JobRequest{}
	var toolConfig, event []byte
	err := row.Scan(
		&req.JobID, &req.Catalog, &req.TriggeringEventType, &req.DueNS, &toolConfig, &event,
		&req.RegisteredNS, &req.PreparedNS, &req.StartedNS, &req.FinishedNS, &req.ExitCode,
		&req.ScheduledByJobID,
	)
	if err != nil {
		return scheduler.JobRequest{}, err
	}
	if err := json.Unmarshal(toolConfig, &req.ToolConfig); err != nil {
		return scheduler.JobRequest{}, err
	}
	if err := json.Unmarshal(event, &req.Event); err != nil {
		return scheduler.JobRequest{}, err
	}
	return req, nil
}

func (s *pgScheduler) Create(ctx context.Context, req scheduler.JobRequest) (bool, error) {
	if req.ToolConfig == nil {
		req.ToolConfig = map[string]any{}
	}
	toolConfigJSON, err := json.Marshal(req.ToolConfig)
	if err != nil {
		return false, xerrors.Wrap(err)
	}
	eventJSON, err := json.Marshal(req.Event)
	if err != nil {
		return false, xerrors.Wrap(err)
	}

	tag, err := s.pool.Exec(
		ctx,
		`insert into "`+s.names.Jobrequest()+`" (`+jobrequestColumns+`)
		values ($1, $2, $3, $4, $5::jsonb, $6::jsonb, $7, $8, $9, $10, $11, $12)
		on conflict ("job_id") do nothing`,
		req.JobID, req.Catalog, req.TriggeringEventType, req.DueNS,
		string(toolConfigJSON), string(eventJSON),
		req.RegisteredNS, req.PreparedNS, req.StartedNS, req.FinishedNS, req.ExitCode,
		req.ScheduledByJobID,
	)
	if err != nil {
		return false, xerrors.Wrap(err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *pgScheduler) Get(ctx context.Context, jobID string) (scheduler.JobRequest, bool, error) {
	rows, err := s.pool.Query(
		ctx,
		`select `+jobrequestColumns+` from "`+s.names.Jobrequest()+`" where "job_id" = $1`,
		jobID,
	)
	if err != nil {
		return scheduler.JobRequest{}, false, xerrors.Wrap(err)
	}
	defer rows.Close()

	for rows.Next() {
		req, err := scanJobRequest(rows)
		if err != nil {
			return scheduler.JobRequest{}, false, xerrors.Wrap(err)
		}
		return req, true, nil
	}
	if err := rows.Err(); err != nil {
		return scheduler.JobRequest{}, false, xerrors.Wrap(err)
	}
	return scheduler.JobRequest{}, false, nil
}

func (s *pgScheduler) Due(ctx context.Context, nowNS int64, limit int) ([]scheduler.JobRequest, error) {
	rows, err := s.pool.Query(
		ctx,
		`select `+jobrequestColumns+` from "`+s.names.Jobrequest()+`"
		where "catalog" = $1 and "due_ns" < $2 and "prepared_ns" = 0
		order by "due_ns" asc limit $3`,
		scheduler.CatalogGlobal, nowNS, limit,
	)
	if err != nil {
		return nil, xerrors.Wrap(err)
	}
	defer rows.Close()

	due := []scheduler.JobRequest{}
	for rows.Next() {
		req, err := scanJobRequest(rows)
		if err != nil {
			return nil, xerrors.Wrap(err)
		}
		due = append(due, req)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(err)
	}
	return due, nil
}

func (s *pgScheduler) stamp(ctx context.Context, jobID string, set string, args ...any) (bool, error) {
	tag, err := s.pool.Exec(
		ctx,
		`update "`+s.names.Jobrequest()+`" set `+set+` where "job_id" = $1`,
		append([]any{jobID}, args...)...,
	)
	if err != nil {
		return false, xerrors.Wrap(err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *pgScheduler) MarkPrepared(ctx context.Context, jobID string, stampNS int64) (bool, error) {
	return s.stamp(ctx, jobID, `"prepared_ns" = $2`, stampNS)
}

func (s *pgScheduler) MarkUnprepared(ctx context.Context, jobID string) (bool, error) {
	return s.stamp(ctx, jobID, `"prepared_ns" = 0, "started_ns" = 0, "finished_ns" = 0, "exit_code" = -1`)
}

func (s *pgScheduler) MarkUnrecoverable(ctx context.Context, jobID string, stampNS int64) (bool, error) {
	if stampNS > 0 {
		stampNS = -stampNS
	}
	return s.stamp(ctx, jobID, `"prepared_ns" = $2`, stampNS)
}

func (s *pgScheduler) MarkStarted(ctx context.Context, jobID string, stampNS int64) (bool, error) {
	return s.stamp(ctx, jobID, `"started_ns" = $2`, stampNS)
}

func (s *pgScheduler) MarkFinished(ctx context.Context, jobID string, stampNS int64, exitCode int) (bool, error) {
	return s.stamp(ctx, jobID, `"finished_ns" = $2, "exit_code" = $3`, stampNS, exitCode)
}

var _ schedb.Interface = &pgScheduler{}
