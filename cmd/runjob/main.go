package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spinvfx/spinfab/pkg/conn/bus"
	"github.com/spinvfx/spinfab/pkg/domain"
	"github.com/spinvfx/spinfab/pkg/domain/runner"
	"github.com/spinvfx/spinfab/pkg/workloads/k8s"
)

func main() {
	activator := flag.String("activator", "rez-env-export", "command printing KEY=VALUE lines for the resolved packages")
	grace := flag.Duration("grace", 30*time.Second, "how long the tool may linger after SIGTERM")
	busName := flag.String("bus", os.Getenv("SPINFAB_BUS"), "the internal event bus")
	flag.Parse()

	jobID := os.Getenv(k8s.EnvJobID)
	jobFile := os.Getenv(k8s.EnvJobFile)
	if jobID == "" || jobFile == "" {
		log.Fatalf("%s and %s must be set", k8s.EnvJobID, k8s.EnvJobFile)
	}
	logger := log.New(os.Stderr, jobID+" ", log.LstdFlags)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	events, err := bus.NewEventBridgePublisher(ctx, *busName, domain.SourceSchedulerJob)
	if err != nil {
		logger.Fatalf("can not reach the event bus: %s", err)
	}

	env, err := runner.NewCommandActivator(*activator)
	if err != nil {
		logger.Fatalf("can not build the activator: %s", err)
	}

	r := runner.New(events, env, runner.Config{
		JobID:       jobID,
		JobFile:     jobFile,
		GracePeriod: *grace,
	}, logger)

	exitCode, err := r.Run(ctx)
	if err != nil {
		logger.Printf("job failed: %s", err)
	}
	os.Exit(exitCode)
}
