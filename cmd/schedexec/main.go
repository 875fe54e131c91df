package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/spinvfx/spinfab/pkg/configs"
	"github.com/spinvfx/spinfab/pkg/conn/bus"
	"github.com/spinvfx/spinfab/pkg/conn/catalog"
	"github.com/spinvfx/spinfab/pkg/conn/db/postgres/pool"
	"github.com/spinvfx/spinfab/pkg/conn/db/postgres/schema"
	"github.com/spinvfx/spinfab/pkg/conn/remote"
	"github.com/spinvfx/spinfab/pkg/domain"
	schedpg "github.com/spinvfx/spinfab/pkg/domain/scheduler/db/postgres"
	"github.com/spinvfx/spinfab/pkg/domain/scheduler/service"
	"github.com/spinvfx/spinfab/pkg/loop"
	"github.com/spinvfx/spinfab/pkg/utils/liveness"
	"github.com/spinvfx/spinfab/pkg/workloads/k8s"
)

func main() {
	configPath := flag.String("config", "", "schedexec config path")
	flag.Parse()

	conf, err := configs.Load[configs.SchedexecConfig](*configPath)
	if err != nil {
		log.Fatalf("can not read configuration: %s", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pgpool, err := pgxpool.Connect(ctx, conf.Database.URL)
	if err != nil {
		log.Fatalf("can not connect to the database: %s", err)
	}
	defer pgpool.Close()

	names := conf.Database.Names()
	if err := schema.Create(ctx, pool.Wrap(pgpool), names); err != nil {
		log.Fatalf("can not prepare the database schema: %s", err)
	}

	events, err := bus.NewEventBridgePublisher(ctx, conf.Bus.Name, domain.SourceScheduler)
	if err != nil {
		log.Fatalf("can not reach the event bus: %s", err)
	}

	cluster, err := k8s.FromCluster()
	if err != nil {
		log.Fatalf("can not reach the cluster: %s", err)
	}
	launcher := k8s.NewLauncher(cluster, k8s.LauncherConfig{
		Namespace:    conf.Kubernetes.Namespace,
		AppName:      conf.Kubernetes.AppName,
		Image:        conf.Kubernetes.Image,
		Command:      conf.Kubernetes.Command,
		BackoffLimit: conf.Kubernetes.BackoffLimit,
		TTLSeconds:   conf.Kubernetes.TTLSeconds(),
	})

	schedulerService := service.New(
		schedpg.New(pool.Wrap(pgpool), names),
		remote.NewHTTPConfigs(conf.ConfigService.URL, conf.ConfigService.Token, conf.ConfigService.Timeout()),
		remote.NewHTTPDeps(conf.DepsService.URL, conf.DepsService.Token, conf.DepsService.Timeout()),
		catalog.NewHTTPCatalog(conf.Catalog.URL, conf.Catalog.ScriptName, conf.Catalog.APIKey, conf.Catalog.Timeout()),
		events,
		launcher,
		service.Config{
			EventToolsConfigName: conf.Scheduler.EventToolsConfigName,
			JobconfBaseDir:       conf.Scheduler.JobconfBaseDir,
			MaxDueJobs:           conf.Scheduler.MaxDueJobs,
			ScheduleAfter:        conf.Scheduler.ScheduleAfter(),
		},
		log.Default(),
	)

	period := conf.Period()
	log.Printf("scanning for due job requests every %s", period)

	_, err = loop.Start(ctx, 0, func(ctx context.Context, prepared int) (int, loop.Next) {
		count, err := schedulerService.ProcessDue(ctx)
		if err != nil {
			log.Printf("due scan failed: %s", err)
		} else if 0 < count {
			log.Printf("prepared %d job request(s)", count)
		}

		if conf.LivenessFile != "" {
			if err := liveness.Touch(conf.LivenessFile); err != nil {
				log.Printf("unable to touch the liveness file: %s", err)
			}
		}
		return prepared + count, loop.Continue(period)
	})
	if err != nil && ctx.Err() == nil {
		log.Fatalf("due scan loop broke: %s", err)
	}
	log.Println("shutting down")
}
