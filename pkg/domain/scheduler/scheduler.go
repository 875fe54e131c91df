package scheduler

import (
	"encoding/json"
	"math/rand"
	"regexp"
	"strconv"
	"time"

	"github.com/spinvfx/spinfab/pkg/domain"
)

// Catalog partitions job requests. A single studio-wide partition is
// used today.
const CatalogGlobal = "global"

// MinRescheduleDelay is the earliest a job may be pushed into the
// future, relative to now.
const MinRescheduleDelay = time.Minute

// JobRequest is one registered intent to run a tool for an event.
//
// The lifecycle stamps are unix nanoseconds. PreparedNS is zero until
// the kubernetes job is created, and negative when preparation failed
// beyond retry. ExitCode stays -1 until the runner reports back.
type JobRequest struct {
	JobID               string                `json:"job_id"`
	Catalog             string                `json:"catalog"`
	TriggeringEventType string                `json:"triggering_event_type"`
	DueNS               int64                 `json:"due_ns"`
	ToolConfig          map[string]any        `json:"tool_config"`
	Event               domain.AugmentedEvent `json:"event"`
	RegisteredNS        int64                 `json:"registered_ns"`
	PreparedNS          int64                 `json:"prepared_ns"`
	StartedNS           int64                 `json:"started_ns"`
	FinishedNS          int64                 `json:"finished_ns"`
	ExitCode            int                   `json:"exit_code"`
	ScheduledByJobID    string                `json:"scheduled_by_job_id,omitempty"`
}

// IsUnrecoverable reports whether preparation was abandoned.
func (j JobRequest) IsUnrecoverable() bool {
	return j.PreparedNS < 0
}

// EventToolConfig binds an event type to the tool run for it, as
// declared in the event-tools configuration document.
type EventToolConfig struct {
	ToolToRun   string         `json:"tool_to_run"`
	ProfileID   string         `json:"profile_id,omitempty"`
	ProfilePath string         `json:"profile_path,omitempty"`
	ToolConfig  map[string]any `json:"tool_config,omitempty"`
}

// IsValid requires at least a tool to run.
func (c EventToolConfig) IsValid() bool {
	return c.ToolToRun != ""
}

// EventToolConfigFromMap decodes the per-event-type value of the
// event-tools configuration document.
func EventToolConfigFromMap(value map[string]any) (EventToolConfig, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return EventToolConfig{}, err
	}
	c := EventToolConfig{}
	if err := json.Unmarshal(payload, &c); err != nil {
		return EventToolConfig{}, err
	}
	return c, nil
}

// JobEvent is the status report a runner sends over the bus. Which
// fields are set decides what it means.
type JobEvent struct {
	JobID      string `json:"job_id"`
	StartedAt  string `json:"started_at,omitempty"`
	FinishedAt string `json:"finished_at,omitempty"`
	DueAt      string `json:"due_at,omitempty"`
	ExitCode   string `json:"exit_code,omitempty"`
}

// IsStarted reports the tool has begun running.
func (e JobEvent) IsStarted() bool {
	return e.StartedAt != "" && e.FinishedAt == "" && e.DueAt == ""
}

// IsFinished reports the tool has exited.
func (e JobEvent) IsFinished() bool {
	return e.FinishedAt != "" && e.ExitCode != "" &&
		e.StartedAt == "" && e.DueAt == ""
}

// IsReschedule asks for a rerun at a later due time.
func (e JobEvent) IsReschedule() bool {
	return e.DueAt != "" && e.StartedAt == "" && e.FinishedAt == ""
}

// due stamps travel as 19-digit unix-nanosecond strings.
var dueStampPattern = regexp.MustCompile(`^\d{19}$`)

// ParseDueStamp reads a due time from its wire form.
func ParseDueStamp(stamp string) (int64, bool) {
	if !dueStampPattern.MatchString(stamp) {
		return 0, false
	}
	ns, err := strconv.ParseInt(stamp, 10, 64)
	if err != nil {
		return 0, false
	}
	return ns, true
}

var (
	rescheduledJobIDPattern = regexp.MustCompile(`^(job-.*)(-r-\w{5})$`)
	jobIDPattern            = regexp.MustCompile(`^job-.*$`)
)

const rescheduleSuffixLetters = "abcdefghijklmnopqrstuvwxyz"

func rescheduleSuffix() string {
	letters := make([]byte, 5)
	for i := range letters {
		letters[i] = rescheduleSuffixLetters[rand.Intn(len(rescheduleSuffixLetters))]
	}
	return "-r-" + string(letters)
}

// RescheduledJobID derives a fresh id for a rerun of jobID.
//
// A previous reschedule suffix is replaced rather than stacked, so
// the chain job-x, job-x-r-aaaaa, job-x-r-bbbbb stays flat. Ids not
// shaped like job ids cannot be rescheduled.
func RescheduledJobID(jobID string) (string, bool) {
	if m := rescheduledJobIDPattern.FindStringSubmatch(jobID); m != nil {
		return m[1] + rescheduleSuffix(), true
	}
	if jobIDPattern.MatchString(jobID) {
		return jobID + rescheduleSuffix(), true
	}
	return "", false
}

// StatusError is a rejection with an HTTP-aligned status code, raised
// by the scheduler service and translated at the API boundary.
type StatusError struct {
	Code   int
	Reason string
}

func (e *StatusError) Error() string {
	return strconv.Itoa(e.Code) + ": " + e.Reason
}

func Reject(code int, reason string) error {
	return &StatusError{Code: code, Reason: reason}
}

// JobStatusDetail is the payload of job-status bus events.
type JobStatusDetail struct {
	JobID     string `json:"job_id"`
	StampedAt int64  `json:"stamped_at"`
}

// JobConf is the document a runner reads to know what to execute.
type JobConf struct {
	Event           domain.AugmentedEvent `json:"event"`
	ToolConfig      EventToolConfig       `json:"tool_config"`
	ProfilePackages []string              `json:"profile_packages"`
}
