package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/spinvfx/spinfab/cmd/sourcingd/handlers"
	"github.com/spinvfx/spinfab/pkg/auth"
	"github.com/spinvfx/spinfab/pkg/configs"
	"github.com/spinvfx/spinfab/pkg/conn/bus"
	"github.com/spinvfx/spinfab/pkg/domain"
	"github.com/spinvfx/spinfab/pkg/domain/sourcing"
	"github.com/spinvfx/spinfab/pkg/domain/sourcing/service"
	"github.com/spinvfx/spinfab/pkg/utils/echoutil"
	"github.com/spinvfx/spinfab/pkg/utils/filewatch"
)

// stamped at build time via -ldflags
var (
	buildID   = "dev"
	buildDate = ""
	buildHash = ""
)

func main() {
	configPath := flag.String("config", "", "sourcingd config path")
	loglevel := flag.String("loglevel", "info", "log level. debug|info|warn|error|off")
	flag.Parse()

	conf, err := configs.Load[configs.SourcingdConfig](*configPath)
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

	events, err := bus.NewEventBridgePublisher(ctx, conf.Bus.Name, domain.SourceSourcingService)
	if err != nil {
		log.Fatalf("can not reach the event bus: %s", err)
	}

	sourcingService := service.New(
		events,
		sourcing.NewEventStats(),
		service.Config{
			SignatureToken:   conf.SignatureToken,
			RejectUnverified: conf.RejectUnverified,
			DefaultSite:      conf.DefaultSite,
			Proxy:            domain.BuildInfo{ID: buildID, Date: buildDate, Hash: buildHash},
		},
		log.Default(),
	)

	e.GET("/health/live/", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	// handlers
	{
		// the webhook authenticates by signature, not by token
		e.POST("/on-event/", handlers.OnEventHandler(sourcingService))

		authed := e.Group("", auth.Middleware(manager))
		authed.GET("/stats/", handlers.StatsHandler(sourcingService))
	}

	e.Logger.Fatal(e.Start(fmt.Sprintf(":%d", conf.Server.Port)))
}
