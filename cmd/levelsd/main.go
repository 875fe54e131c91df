package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/spinvfx/spinfab/cmd/levelsd/handlers"
	"github.com/spinvfx/spinfab/pkg/auth"
	"github.com/spinvfx/spinfab/pkg/configs"
	"github.com/spinvfx/spinfab/pkg/conn/catalog"
	"github.com/spinvfx/spinfab/pkg/conn/db/postgres/pool"
	"github.com/spinvfx/spinfab/pkg/conn/db/postgres/schema"
	levelpg "github.com/spinvfx/spinfab/pkg/domain/level/db/postgres"
	"github.com/spinvfx/spinfab/pkg/domain/level/service"
	"github.com/spinvfx/spinfab/pkg/utils/echoutil"
	"github.com/spinvfx/spinfab/pkg/utils/filewatch"
)

func main() {
	configPath := flag.String("config", "", "levelsd config path")
	loglevel := flag.String("loglevel", "info", "log level. debug|info|warn|error|off")
	flag.Parse()

	conf, err := configs.Load[configs.LevelsdConfig](*configPath)
	if err != nil {
		log.Fatalf("can not read configuration: %s", err)
	}

	e := echo.New()
	e.Pre(middleware.AddTrailingSlash())

	echoutil.SetLevel(e, *loglevel)
	e.HTTPErrorHandler = func(err error, ctx echo.Context) {
		e.DefaultHTTPErrorHandler(err, ctx)
		e.Logger.Error(err)
	}
	e.Use(echoutil.LogHandlerFunc)

	ctx := context.Background()
	if watched, cancel, err := filewatch.UntilModifyContext(ctx, *configPath); err != nil {
		log.Fatalf("can not watch configuration: %s", err)
	} else {
		defer cancel()
		context.AfterFunc(watched, func() {
			log.Println("config file is updated. quit to restart server.")
			graceful, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := e.Shutdown(graceful); err != nil {
				log.Printf("error on shutdown by config update: %s", err)
			}
		})
	}

	var keyfunc jwt.Keyfunc
	if conf.Auth.VerifyTokens {
		keyfunc, err = auth.KeyfuncFromPEMFile(conf.Auth.PublicKeyFile)
		if err != nil {
			log.Fatalf("can not load the token verification key: %s", err)
		}
	}
	manager := auth.New(keyfunc, conf.Auth.APIKeyGroups)

	pgpool, err := pgxpool.Connect(ctx, conf.Database.URL)
	if err != nil {
		log.Fatalf("can not connect to the database: %s", err)
	}
	defer pgpool.Close()

	names := conf.Database.Names()
	if err := schema.Create(ctx, pool.Wrap(pgpool), names); err != nil {
		log.Fatalf("can not prepare the database schema: %s", err)
	}

	store := levelpg.New(pool.Wrap(pgpool), names)

	// the sync service doubles as the snapshot loader; building trees
	// is levelsync's job
	loader := service.NewSyncService(
		store,
		catalog.NewHTTPCatalog(conf.Catalog.URL, conf.Catalog.ScriptName, conf.Catalog.APIKey, conf.Catalog.Timeout()),
		conf.TreeDir,
		conf.Catalog.AvoidTags,
		conf.Catalog.RestrictTo,
		"",
		log.Default(),
	)

	levelsService := service.NewLevelsService(
		store, loader, conf.CacheFor(), conf.Auth.EnforceProjectAccess, log.Default(),
	)

	e.GET("/health/live/", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	// handlers
	{
		authed := e.Group("", auth.Middleware(manager))
		authed.GET("/tree/", handlers.GetTreeHandler(levelsService))
		authed.GET("/levels/", handlers.GetLevelHandler(levelsService))
		authed.GET("/sites/", handlers.SitesHandler())
		authed.POST("/sync/", handlers.RequestSyncHandler(store))
	}

	e.Logger.Fatal(e.Start(fmt.Sprintf(":%d", conf.Server.Port)))
}
