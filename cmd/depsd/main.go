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

	"github.com/spinvfx/spinfab/cmd/depsd/handlers"
	"github.com/spinvfx/spinfab/pkg/auth"
	"github.com/spinvfx/spinfab/pkg/configs"
	"github.com/spinvfx/spinfab/pkg/conn/bus"
	"github.com/spinvfx/spinfab/pkg/conn/db/postgres/pool"
	"github.com/spinvfx/spinfab/pkg/conn/db/postgres/schema"
	"github.com/spinvfx/spinfab/pkg/conn/remote"
	"github.com/spinvfx/spinfab/pkg/domain"
	"github.com/spinvfx/spinfab/pkg/domain/dependency"
	deppg "github.com/spinvfx/spinfab/pkg/domain/dependency/db/postgres"
	"github.com/spinvfx/spinfab/pkg/domain/dependency/service"
	"github.com/spinvfx/spinfab/pkg/utils/echoutil"
	"github.com/spinvfx/spinfab/pkg/utils/filewatch"
)

func main() {
	configPath := flag.String("config", "", "depsd config path")
	loglevel := flag.String("loglevel", "info", "log level. debug|info|warn|error|off")
	flag.Parse()

	conf, err := configs.Load[configs.DepsdConfig](*configPath)
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

	events, err := bus.NewEventBridgePublisher(ctx, conf.Bus.Name, domain.SourceDependencyService)
	if err != nil {
		log.Fatalf("can not reach the event bus: %s", err)
	}

	packages, err := dependency.LoadPackageIndex(conf.PackagesDir)
	if err != nil {
		log.Fatalf("can not scan the package repository: %s", err)
	}

	store := deppg.New(pool.Wrap(pgpool), names)
	levels := remote.NewLevels(conf.LevelService.URL, conf.LevelService.Token, conf.LevelService.Timeout())

	profileService := service.New(
		store, levels, packages, events, conf.SkipDescendantUpdates, log.Default(),
	)
	defer profileService.Quiesce()
	bundlesService := service.NewBundles(store)

	e.GET("/health/live/", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	// handlers
	{
		id := "id"
		name := "name"

		authed := e.Group("", auth.Middleware(manager))

		authed.POST("/profiles/", handlers.CreateProfileHandler(profileService))
		authed.GET("/profiles/", handlers.ListProfilesHandler(profileService))
		authed.GET("/profiles/:"+id+"/", handlers.GetProfileHandler(profileService, id))
		authed.PATCH("/profiles/:"+id+"/", handlers.PatchProfileHandler(profileService, id))
		authed.DELETE("/profiles/:"+id+"/", handlers.DeleteProfileHandler(profileService, id))

		authed.GET("/profiles/:"+id+"/packages/", handlers.GetProfilePackagesHandler(profileService, id))
		authed.PUT("/profiles/:"+id+"/packages/", handlers.SetProfilePackagesHandler(profileService, id))
		authed.DELETE("/profiles/:"+id+"/packages/:"+name+"/", handlers.DeleteProfilePackageHandler(profileService, id, name))

		authed.GET("/profiles/:"+id+"/bundles/", handlers.GetProfileBundlesHandler(profileService, id))
		authed.POST("/profiles/:"+id+"/bundles/:"+name+"/", handlers.AddProfileBundleHandler(profileService, id, name))
		authed.DELETE("/profiles/:"+id+"/bundles/:"+name+"/", handlers.DeleteProfileBundleHandler(profileService, id, name))

		authed.GET("/profiles/:"+id+"/all/", handlers.AllPackagesHandler(profileService, id))
		authed.POST("/profiles/:"+id+"/validate/", handlers.ValidateProfileHandler(profileService, id))
		authed.PUT("/on-validity-change/", handlers.OnValidityChangeHandler(profileService))

		authed.POST("/profiles/:"+id+"/comments/", handlers.AddCommentHandler(profileService, id))
		authed.GET("/profiles/:"+id+"/comments/", handlers.ListCommentsHandler(profileService, id))

		authed.GET("/effective-profile/", handlers.GetEffectiveProfileHandler(profileService, handlers.WholeProfile))
		authed.GET("/effective-profile/packages/", handlers.GetEffectiveProfileHandler(profileService, handlers.PackagesOnly))
		authed.GET("/effective-profile/bundles/", handlers.GetEffectiveProfileHandler(profileService, handlers.BundlesOnly))
		authed.GET("/effective-profile/all/", handlers.GetEffectiveProfileHandler(profileService, handlers.FlatPackages))
		authed.GET("/effective-profile/xml/", handlers.ExportXMLHandler(profileService))
		authed.POST("/effective-profile/xml/", handlers.ImportXMLHandler(profileService, false))
		authed.PUT("/effective-profile/xml/", handlers.ImportXMLHandler(profileService, true))

		authed.GET("/bundles/", handlers.ListBundlesHandler(bundlesService))
		authed.GET("/bundles/:"+name+"/", handlers.GetBundleHandler(bundlesService, name))
		authed.POST("/bundles/", handlers.CreateBundleHandler(bundlesService))
		authed.PUT("/bundles/:"+name+"/", handlers.SetBundlePackagesHandler(bundlesService, name))
		authed.DELETE("/bundles/:"+name+"/", handlers.DeleteBundleHandler(bundlesService, name))
	}

	e.Logger.Fatal(e.Start(fmt.Sprintf(":%d", conf.Server.Port)))
}
