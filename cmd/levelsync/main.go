package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/spinvfx/spinfab/pkg/configs"
	"github.com/spinvfx/spinfab/pkg/conn/catalog"
	"github.com/spinvfx/spinfab/pkg/conn/db/postgres/pool"
	"github.com/spinvfx/spinfab/pkg/conn/db/postgres/schema"
	levelpg "github.com/spinvfx/spinfab/pkg/domain/level/db/postgres"
	"github.com/spinvfx/spinfab/pkg/domain/level/service"
)

func main() {
	configPath := flag.String("config", "", "levelsync config path")
	flag.Parse()

	conf, err := configs.Load[configs.LevelsyncConfig](*configPath)
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

	syncService := service.NewSyncService(
		levelpg.New(pool.Wrap(pgpool), names),
		catalog.NewHTTPCatalog(conf.Catalog.URL, conf.Catalog.ScriptName, conf.Catalog.APIKey, conf.Catalog.Timeout()),
		conf.TreeDir,
		conf.Catalog.AvoidTags,
		conf.Catalog.RestrictTo,
		conf.LivenessFile,
		log.Default(),
	)

	log.Printf("refreshing tree snapshots every %s", conf.Interval())
	if err := syncService.Run(ctx, conf.Interval()); err != nil && ctx.Err() == nil {
		log.Fatalf("sync loop broke: %s", err)
	}
	log.Println("shutting down")
}
