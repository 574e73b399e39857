package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/opentracing/opentracing-go"
	"github.com/urfave/cli/v2"
	"gorm.io/gorm"

	"github.com/nolashq/nolas/config"
	"github.com/nolashq/nolas/internal/database"
	"github.com/nolashq/nolas/internal/logger"
	"github.com/nolashq/nolas/internal/repository"
	"github.com/nolashq/nolas/internal/tracing"
	"github.com/nolashq/nolas/server"
	"github.com/nolashq/nolas/services"
)

func main() {
	app := &cli.App{
		Name:  "nolas",
		Usage: "multi-tenant email integration service",
		Commands: []*cli.Command{
			{
				Name:   "server",
				Usage:  "Start the API server",
				Action: runServer,
			},
			{
				Name:   "listener",
				Usage:  "Start a mailbox listener worker (cluster mode)",
				Action: runListener,
			},
			{
				Name:   "migrate",
				Usage:  "Run database migrations",
				Action: runMigrations,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runServer(c *cli.Context) error {
	cfg, db, err := initConfigAndDatabase()
	if err != nil {
		return err
	}

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("Nolas starting up...")

	srv, err := server.NewServer(cfg, db)
	if err != nil {
		return err
	}
	if err := srv.Run(); err != nil {
		return err
	}

	log.Println("Shutdown complete")
	return nil
}

// runListener runs only the mailbox listener service. Cluster deployments
// start several of these alongside a single API server.
func runListener(c *cli.Context) error {
	cfg, db, err := initConfigAndDatabase()
	if err != nil {
		return err
	}

	appLogger := logger.NewAppLogger(cfg.Logger)
	appLogger.InitLogger()

	tracer, closer, err := tracing.NewJaegerTracer(cfg.Tracing, appLogger)
	if err != nil {
		return err
	}
	defer closer.Close()
	opentracing.SetGlobalTracer(tracer)

	repos := repository.InitRepositories(db)
	svcs, err := services.InitServices(cfg, repos, appLogger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop
		appLogger.Info("Shutting down listener...")
		cancel()
	}()

	if err := svcs.ListenerService.Run(ctx); err != nil {
		return err
	}
	svcs.ConnectionManager.CloseAll(context.Background())
	if svcs.EventsPublisher != nil {
		svcs.EventsPublisher.Close()
	}
	return nil
}

func runMigrations(c *cli.Context) error {
	cfg, db, err := initConfigAndDatabase()
	if err != nil {
		return err
	}

	if err := repository.MigrateDB(db, cfg.Database.MinPoolSize, cfg.Database.MaxPoolSize); err != nil {
		return err
	}
	log.Println("Database migration completed successfully")
	return nil
}

func initConfigAndDatabase() (*config.Config, *gorm.DB, error) {
	cfg, err := config.InitConfig()
	if err != nil {
		return nil, nil, err
	}

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		return nil, nil, err
	}

	return cfg, db, nil
}
