package server

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"gorm.io/gorm"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"

	"github.com/nolashq/nolas/api"
	"github.com/nolashq/nolas/config"
	"github.com/nolashq/nolas/internal/cron"
	"github.com/nolashq/nolas/internal/enum"
	"github.com/nolashq/nolas/internal/logger"
	"github.com/nolashq/nolas/internal/repository"
	"github.com/nolashq/nolas/internal/tracing"
	"github.com/nolashq/nolas/services"
)

type Server struct {
	config       *config.Config
	httpServer   *http.Server
	router       *gin.Engine
	services     *services.Services
	repositories *repository.Repositories
	cronManager  *cron.CronManager
	log          logger.Logger
	tracerCloser io.Closer
}

func NewServer(cfg *config.Config, db *gorm.DB) (*Server, error) {
	// Initialize logger
	appLogger := logger.NewAppLogger(cfg.Logger)
	appLogger.InitLogger()

	// Initialize tracing
	tracer, closer, err := tracing.NewJaegerTracer(cfg.Tracing, appLogger)
	if err != nil {
		log.Fatalf("Could not initialize jaeger tracer: %s", err.Error())
	}
	opentracing.SetGlobalTracer(tracer)

	// Initialize repositories
	repos := repository.InitRepositories(db)

	// Initialize services
	svcs, err := services.InitServices(cfg, repos, appLogger)
	if err != nil {
		return nil, err
	}

	cronManager := cron.NewCronManager(
		cfg,
		appLogger,
		newKubernetesClient(appLogger),
		repos.AuthorizationRequestRepository,
		repos.UidTrackingRepository,
	)

	// Initialize Gin
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	api.RegisterRoutes(router, svcs, repos, appLogger)

	return &Server{
		config:       cfg,
		router:       router,
		services:     svcs,
		repositories: repos,
		cronManager:  cronManager,
		log:          appLogger,
		tracerCloser: closer,
		httpServer: &http.Server{
			Addr:    ":" + cfg.AppConfig.APIPort,
			Handler: router,
		},
	}, nil
}

// newKubernetesClient returns nil outside a cluster, which puts the cron
// manager in local mode without leader election.
func newKubernetesClient(log logger.Logger) kubernetes.Interface {
	restConfig, err := rest.InClusterConfig()
	if err != nil {
		log.Infof("Not running in kubernetes, cron leader election disabled: %v", err)
		return nil
	}
	client, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		log.Warnf("Failed to create kubernetes client: %v", err)
		return nil
	}
	return client
}

func (s *Server) recoverWithJaeger(name string) {
	if r := recover(); r != nil {
		// Create a new span for the panic
		span := opentracing.GlobalTracer().StartSpan(
			fmt.Sprintf("panic.%s", name),
		)
		defer span.Finish()

		// Mark span as failed
		ext.Error.Set(span, true)

		// Log panic details
		span.LogKV(
			"event", "panic",
			"process", name,
			"error", fmt.Sprintf("%v", r),
			"stack", string(debug.Stack()),
		)

		log.Printf("❌ Panic in %s: %v\n%s", name, r, debug.Stack())
	}
}

func (s *Server) wrapGoroutine(name string, fn func()) {
	defer s.recoverWithJaeger(name)
	fn()
}

func (s *Server) Run() error {
	// Create root context for the application
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listenerDone := make(chan struct{})

	// In single mode this process tails every active account itself; in
	// cluster mode dedicated listener workers do that instead.
	if s.config.IMAP.ListenerMode == enum.ListenerModeSingle {
		log.Println("Starting mailbox listener...")
		go s.wrapGoroutine("listener_service", func() {
			defer close(listenerDone)
			if err := s.services.ListenerService.Run(ctx); err != nil {
				log.Printf("❌ Listener service error: %v", err)
			}
		})
	} else {
		close(listenerDone)
	}

	// Start scheduled maintenance jobs
	if err := s.cronManager.Start(os.Getenv("POD_NAME"), os.Getenv("POD_NAMESPACE")); err != nil {
		return err
	}

	// Start HTTP server in a goroutine with panic recovery
	go s.wrapGoroutine("http_server", func() {
		log.Println("Starting HTTP server")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("❌ HTTP server error: %v", err)
		}
	})
	log.Println("✅ HTTP server started successfully")
	log.Println("Nolas is now running. Press Ctrl+C to exit.")

	return s.waitForShutdown(cancel, listenerDone)
}

func (s *Server) waitForShutdown(cancel context.CancelFunc, listenerDone <-chan struct{}) error {
	defer s.recoverWithJaeger("shutdown")

	// Set up signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// Wait for termination signal
	<-stop
	log.Println("Shutting down...")

	// Create a context with timeout for shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	// Shut down HTTP server
	log.Println("Shutting down HTTP server...")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("❌ HTTP server shutdown error: %v", err)
	} else {
		log.Println("✅ HTTP server shut down successfully")
	}

	// Stop cron jobs before tearing down their repositories
	s.cronManager.Stop()

	// Cancel the root context so mailbox supervisors drain their in-flight
	// polls, then wait for the listener service to finish.
	cancel()
	select {
	case <-listenerDone:
		log.Println("✅ Listener service stopped successfully")
	case <-time.After(35 * time.Second):
		log.Println("⚠️ Listener service stop timed out, forcing exit")
	}

	if s.services.EventsPublisher != nil {
		if err := s.services.EventsPublisher.Close(); err != nil {
			log.Printf("❌ Events publisher shutdown error: %v", err)
		}
	}

	// Pooled IMAP connections go last so draining supervisors could still
	// release them.
	closeDone := make(chan struct{})
	go s.wrapGoroutine("connection_manager_shutdown", func() {
		defer close(closeDone)
		s.services.ConnectionManager.CloseAll(shutdownCtx)
	})
	select {
	case <-closeDone:
		log.Println("✅ IMAP connections closed")
	case <-time.After(10 * time.Second):
		log.Println("⚠️ IMAP connection close timed out, forcing exit")
	}

	if s.tracerCloser != nil {
		s.tracerCloser.Close()
	}

	return nil
}
