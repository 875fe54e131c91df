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

	"github.com/spinvfx/spinfab/cmd/configsd/handlers"
	"github.com/spinvfx/spinfab/pkg/auth"
	"github.com/spinvfx/spinfab/pkg/configs"
	"github.com/spinvfx/spinfab/pkg/conn/db/postgres/pool"
	"github.com/spinvfx/spinfab/pkg/conn/db/postgres/schema"
	"github.com/spinvfx/spinfab/pkg/conn/remote"
	configpg "github.com/spinvfx/spinfab/pkg/domain/config/db/postgres"
	"github.com/spinvfx/spinfab/pkg/domain/config/service"
	"github.com/spinvfx/spinfab/pkg/utils/echoutil"
	"github.com/spinvfx/spinfab/pkg/utils/filewatch"
)

func main() {
	configPath := flag.String("config", "", "configsd config path")
	loglevel := flag.String("loglevel", "info", "log level. debug|info|warn|error|off")
	flag.Parse()

	conf, err := configs.Load[configs.ConfigsdConfig](*configPath)
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

	configsService := service.New(
		configpg.New(pool.Wrap(pgpool), names),
		service.NewFileBodyStore(conf.BodyDir),
		remote.NewLevels(conf.LevelService.URL, conf.LevelService.Token, conf.LevelService.Timeout()),
		conf.Auth.EnforceProjectAccess,
		log.Default(),
	)

	e.GET("/health/live/", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	// handlers
	{
		id := "id"
		name := "name"

		authed := e.Group("", auth.Middleware(manager))
		authed.POST("/configs/", handlers.CreateConfigHandler(configsService))
		authed.GET("/configs/", handlers.FindConfigsHandler(configsService))
		authed.GET("/configs/current/:"+name+"/", handlers.GetEffectiveHandler(configsService, name))
		authed.GET("/configs/:"+id+"/", handlers.GetConfigHandler(configsService, id))
		authed.PATCH("/configs/:"+id+"/", handlers.PatchConfigHandler(configsService, id))
		authed.DELETE("/configs/:"+id+"/", handlers.DeleteConfigHandler(configsService, id))
		authed.PUT("/configs/:"+id+"/status/", handlers.SetStatusHandler(configsService, id))
		authed.GET("/configs/:"+id+"/status/", handlers.GetStatusHandler(configsService, id))
		authed.GET("/configs/:"+id+"/current/", handlers.GetEffectivePreviewHandler(configsService, id))
		authed.GET("/effective-config/", handlers.EffectiveConfigHandler(configsService))
	}

	e.Logger.Fatal(e.Start(fmt.Sprintf(":%d", conf.Server.Port)))
}
