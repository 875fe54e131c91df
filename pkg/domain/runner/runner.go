package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spinvfx/spinfab/pkg/conn/bus"
	"github.com/spinvfx/spinfab/pkg/domain"
	"github.com/spinvfx/spinfab/pkg/domain/scheduler"
	xerrors "github.com/spinvfx/spinfab/pkg/errors"
)

// ExitActivationFailed is returned when the package environment could
// not be activated, so the tool never ran.
const ExitActivationFailed = 125

// ExitTerminated is reported when the tool had to be killed after the
// termination grace period. 143 is the conventional SIGTERM exit.
const ExitTerminated = 143

// EnvActivator turns package requests into the environment the tool
// runs in.
type EnvActivator interface {
	// Activate resolves the requests and returns the activated
	// environment as KEY=VALUE pairs.
	Activate(ctx context.Context, requests []string) ([]string, error)
}

type commandActivator struct {
	command []string
}

// NewCommandActivator wraps the studio's environment activation CLI.
//
// The command is invoked with the package requests appended and must
// print the activated environment as KEY=VALUE lines.
func NewCommandActivator(command ...string) (EnvActivator, error) {
	if len(command) == 0 {
		return nil, xerrors.New("the activator command is empty")
	}
	return &commandActivator{command: command}, nil
}

func (a *commandActivator) Activate(ctx context.Context, requests []string) ([]string, error) {
	args := append([]string{}, a.command[1:]...)
	args = append(args, requests...)

	output, err := exec.CommandContext(ctx, a.command[0], args...).Output()
	if err != nil {
		return nil, xerrors.WrapWithNote("environment activation failed", err)
	}

	env := []string{}
	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !strings.Contains(line, "=") {
			continue
		}
		env = append(env, line)
	}
	return env, nil
}

// Config tunes one runner invocation, read from the JOBCONF_*
// environment the scheduler injects.
type Config struct {
	JobID   string
	JobFile string

	// GracePeriod bounds how long the tool may linger after SIGTERM.
	GracePeriod time.Duration
}

// Runner executes the tool of one prepared job request and reports its
// lifecycle over the bus.
type Runner struct {
	events    bus.Publisher
	activator EnvActivator
	config    Config
	logger    *log.Logger

	// replaced in tests
	now func() time.Time
}

func New(events bus.Publisher, activator EnvActivator, config Config, logger *log.Logger) *Runner {
	if config.GracePeriod <= 0 {
		config.GracePeriod = 30 * time.Second
	}
	return &Runner{
		events:    events,
		activator: activator,
		config:    config,
		logger:    logger,
		now:       time.Now,
	}
}

// toolInput is what the tool reads from stdin.
type toolInput struct {
	Config map[string]any `json:"config"`
	Event  map[string]any `json:"event"`
}

// Run executes the job and returns the exit code the container should
// exit with.
//
// The tool sees the activated package environment on top of the
// runner's own, and reads its configuration and the triggering event
// as JSON on stdin. Cancelling ctx forwards SIGTERM to the tool; when
// it lingers past the grace period it is killed and a synthetic exit
// is reported.
func (r *Runner) Run(ctx context.Context) (int, error) {
	payload, err := os.ReadFile(r.config.JobFile)
	if err != nil {
		return ExitActivationFailed, xerrors.WrapWithNote("unable to read the job configuration", err)
	}
	jobConf := scheduler.JobConf{}
	if err := json.Unmarshal(payload, &jobConf); err != nil {
		return ExitActivationFailed, xerrors.WrapWithNote("unreadable job configuration", err)
	}
	if jobConf.ToolConfig.ToolToRun == "" {
		return ExitActivationFailed, xerrors.New("the job configuration names no tool")
	}

	env, err := r.activator.Activate(ctx, jobConf.ProfilePackages)
	if err != nil {
		r.logger.Printf("%s: %s", r.config.JobID, err)
		r.emitFinished(ctx, ExitActivationFailed)
		return ExitActivationFailed, err
	}

	stdin, err := json.Marshal(toolInput{
		Config: jobConf.ToolConfig.ToolConfig,
		Event:  jobConf.Event.Event,
	})
	if err != nil {
		return ExitActivationFailed, xerrors.Wrap(err)
	}

	fields := strings.Fields(jobConf.ToolConfig.ToolToRun)
	tool := exec.CommandContext(ctx, fields[0], fields[1:]...)
	tool.Env = append(os.Environ(), env...)
	tool.Stdin = bytes.NewReader(stdin)
	tool.Stdout = os.Stdout
	tool.Stderr = os.Stderr
	tool.Cancel = func() error {
		return tool.Process.Signal(syscall.SIGTERM)
	}
	tool.WaitDelay = r.config.GracePeriod

	r.emit(ctx, scheduler.JobEvent{
		JobID:     r.config.JobID,
		StartedAt: r.stamp(),
	})

	err = tool.Run()
	exitCode := 0
	if err != nil {
		exitErr := &exec.ExitError{}
		if !errors.As(err, &exitErr) {
			r.emitFinished(ctx, ExitActivationFailed)
			return ExitActivationFailed, xerrors.WrapWithNote("unable to run the tool", err)
		}
		exitCode = exitErr.ExitCode()
		if exitCode < 0 {
			exitCode = ExitTerminated
		}
	}

	r.emitFinished(ctx, exitCode)
	return exitCode, nil
}

// Reschedule asks the scheduler for a rerun at the given time.
func (r *Runner) Reschedule(ctx context.Context, dueAt time.Time) {
	r.emit(ctx, scheduler.JobEvent{
		JobID: r.config.JobID,
		DueAt: strconv.FormatInt(dueAt.UnixNano(), 10),
	})
}

func (r *Runner) emitFinished(ctx context.Context, exitCode int) {
	r.emit(ctx, scheduler.JobEvent{
		JobID:      r.config.JobID,
		FinishedAt: r.stamp(),
		ExitCode:   strconv.Itoa(exitCode),
	})
}

func (r *Runner) stamp() string {
	return strconv.FormatInt(r.now().UnixNano(), 10)
}

// emit is best effort. A lost lifecycle event must not kill the tool
// run, the scheduler reconciles from the job request stamps.
func (r *Runner) emit(ctx context.Context, jobEvent scheduler.JobEvent) {
	if err := r.events.Publish(ctx, domain.EventTypeJobEvent, jobEvent); err != nil {
		r.logger.Printf("%s: unable to publish a lifecycle event: %s", r.config.JobID, err)
	}
}
