package mock

import (
	"context"
	"errors"

	"github.com/spinvfx/spinfab/pkg/domain/scheduler"
	schedb "github.com/spinvfx/spinfab/pkg/domain/scheduler/db"
)

// Scheduler is a hand-written test double for the job request store.
type Scheduler struct {
	Impl struct {
		Create            func(ctx context.Context, req scheduler.JobRequest) (bool, error)
		Get               func(ctx context.Context, jobID string) (scheduler.JobRequest, bool, error)
		Due               func(ctx context.Context, nowNS int64, limit int) ([]scheduler.JobRequest, error)
		MarkPrepared      func(ctx context.Context, jobID string, stampNS int64) (bool, error)
		MarkUnprepared    func(ctx context.Context, jobID string) (bool, error)
		MarkUnrecoverable func(ctx context.Context, jobID string, stampNS int64) (bool, error)
		MarkStarted       func(ctx context.Context, jobID string, stampNS int64) (bool, error)
		MarkFinished      func(ctx context.Context, jobID string, stampNS int64, exitCode int) (bool, error)
	}
}

var _ schedb.Interface = &Scheduler{}

func New() *Scheduler {
	return &Scheduler{}
}

func (m *Scheduler) Create(ctx context.Context, req scheduler.JobRequest) (bool, error) {
	if m.Impl.Create == nil {
		return false, errors.New("mock: Create is not set")
	}
	return m.Impl.Create(ctx, req)
}

func (m *Scheduler) Get(ctx context.Context, jobID string) (scheduler.JobRequest, bool, error) {
	if m.Impl.Get == nil {
		return scheduler.JobRequest{}, false, errors.New("mock: Get is not set")
	}
	return m.Impl.Get(ctx, jobID)
}

func (m *Scheduler) Due(ctx context.Context, nowNS int64, limit int) ([]scheduler.JobRequest, error) {
	if m.Impl.Due == nil {
		return nil, errors.New("mock: Due is not set")
	}
	return m.Impl.Due(ctx, nowNS, limit)
}

func (m *Scheduler) MarkPrepared(ctx context.Context, jobID string, stampNS int64) (bool, error) {
	if m.Impl.MarkPrepared == nil {
		return false, errors.New("mock: MarkPrepared is not set")
	}
	return m.Impl.MarkPrepared(ctx, jobID, stampNS)
}

func (m *Scheduler) MarkUnprepared(ctx context.Context, jobID string) (bool, error) {
	if m.Impl.MarkUnprepared == nil {
		return false, errors.New("mock: MarkUnprepared is not set")
	}
	return m.Impl.MarkUnprepared(ctx, jobID)
}

func (m *Scheduler) MarkUnrecoverable(ctx context.Context, jobID string, stampNS int64) (bool, error) {
	if m.Impl.MarkUnrecoverable == nil {
		return false, errors.New("mock: MarkUnrecoverable is not set")
	}
	return m.Impl.MarkUnrecoverable(ctx, jobID, stampNS)
}

func (m *Scheduler) MarkStarted(ctx context.Context, jobID string, stampNS int64) (bool, error) {
	if m.Impl.MarkStarted == nil {
		return false, errors.New("mock: MarkStarted is not set")
	}
	return m.Impl.MarkStarted(ctx, jobID, stampNS)
}

func (m *Scheduler) MarkFinished(ctx context.Context, jobID string, stampNS int64, exitCode int) (bool, error) {
	if m.Impl.MarkFinished == nil {
		return false, errors.New("mock: MarkFinished is not set")
	}
	return m.Impl.MarkFinished(ctx, jobID, stampNS, exitCode)
}
