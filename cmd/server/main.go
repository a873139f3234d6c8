package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"freelance-workflow/api/rest/routes"
	"freelance-workflow/config"
	"freelance-workflow/core/effects"
	"freelance-workflow/core/monitoring"
	"freelance-workflow/core/orchestrator"
	"freelance-workflow/core/repository"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}

	log := setupLogger(cfg.Env, cfg.LogLevel)
	log.WithFields(logrus.Fields{"env": cfg.Env, "store": cfg.Store}).Info("starting freelance workflow engine")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := monitoring.NewMetricsExporter(reg)

	// Initialize storage and effect sinks
	var (
		store     repository.Store
		notifier  effects.Notifier
		publisher effects.Publisher
		auditor   effects.Auditor
	)
	switch cfg.Store {
	case config.StoreMemory:
		sink := effects.NewMemorySink()
		mem := repository.NewMemoryStore()
		mem.SetDriftObserver(metrics)
		store, notifier, publisher, auditor = mem, sink, sink, sink
		log.Warn("using in-memory store, state is lost on restart")
	default:
		db, err := repository.NewDB(cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to database")
		}
		defer db.Close()

		if err := db.Migrate(context.Background()); err != nil {
			log.WithError(err).Fatal("failed to apply schema")
		}
		log.Info("database connected successfully")

		pg := repository.NewPostgresStore(db)
		pg.SetDriftObserver(metrics)
		store = pg
		notifier = repository.NewNotificationRepository(db)
		publisher = repository.NewChannelPublisher(db, cfg.RealtimeChannel)
		auditor = repository.NewAuditRepository(db)
	}

	dispatcher := effects.NewDispatcher(notifier, publisher, auditor, metrics, log)
	orch, err := orchestrator.NewOrchestrator(store, dispatcher, metrics, orchestrator.Options{
		CommissionPct:     cfg.CommissionPct,
		RevisionLimit:     cfg.RevisionLimit,
		RevisionExtension: cfg.RevisionExtension,
	}, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize orchestrator")
	}

	monitor := monitoring.NewTaskMonitor(store, reg, log)

	r := mux.NewRouter()
	routes.SetupRoutes(r, orch, store, monitor, reg, log)

	// Start server
	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// Graceful shutdown
	go func() {
		log.WithField("port", cfg.ServerPort).Info("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
		return
	}
	log.Info("server exited")
}

func setupLogger(env, level string) *logrus.Entry {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	switch env {
	case config.EnvLocal:
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		log.SetLevel(logrus.DebugLevel)
	case config.EnvDev:
		log.SetFormatter(&logrus.JSONFormatter{})
		log.SetLevel(logrus.InfoLevel)
	default:
		log.SetFormatter(&logrus.JSONFormatter{})
		log.SetLevel(logrus.WarnLevel)
	}

	if level != "" {
		lvl, err := logrus.ParseLevel(level)
		if err != nil {
			log.WithError(err).Warn("ignoring invalid LOG_LEVEL")
		} else {
			log.SetLevel(lvl)
		}
	}

	return logrus.NewEntry(log).WithField("service", "freelance-workflow")
}
