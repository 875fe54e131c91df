package db

import (
	"context"

	"github.com/spinvfx/spinfab/pkg/domain/scheduler"
)

// Interface is the job request store.
type Interface interface {
	// Create inserts a new job request.
	//
	// When a request with the same job id already exists the insert is
	// a no-op and Create returns false.
	Create(ctx context.Context, req scheduler.JobRequest) (bool, error)

	Get(ctx context.Context, jobID string) (scheduler.JobRequest, bool, error)

	// Due lists unprepared requests whose due time has passed, oldest
	// first, at most limit of them.
	Due(ctx context.Context, nowNS int64, limit int) ([]scheduler.JobRequest, error)

	// MarkPrepared stamps the kubernetes job creation time. False when
	// no such request exists.
	MarkPrepared(ctx context.Context, jobID string, stampNS int64) (bool, error)

	// MarkUnprepared resets a request so a later scan retries it.
	MarkUnprepared(ctx context.Context, jobID string) (bool, error)

	// MarkUnrecoverable takes the request out of the due scan for good.
	MarkUnrecoverable(ctx context.Context, jobID string, stampNS int64) (bool, error)

	MarkStarted(ctx context.Context, jobID string, stampNS int64) (bool, error)

	MarkFinished(ctx context.Context, jobID string, stampNS int64, exitCode int) (bool, error)
}
