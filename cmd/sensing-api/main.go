package main

import (
	"context"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"example.com/sensing-api/internal/auditlog"
	"example.com/sensing-api/internal/config"
	"example.com/sensing-api/internal/ingest"
	spg "example.com/sensing-api/internal/storage/postgres"
	transport "example.com/sensing-api/internal/transport/http"
)

func main() {
	cfg := config.Parse()
	log := logrus.StandardLogger()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log.WithFields(logrus.Fields{"port": cfg.Port, "workers": cfg.WorkerCount, "pool": cfg.PoolMaxConns}).Info("starting")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sink, err := auditlog.Open(cfg.LogDir)
	if err != nil {
		log.WithError(err).Fatal("audit log")
	}
	defer sink.Close()

	db, err := spg.Connect(ctx, cfg.PostgresDSN, cfg.PoolMaxConns)
	if err != nil {
		log.WithError(err).Fatal("db connect")
	}
	log.Info("db: connected")

	mig := filepath.Join("migrations", "0001_init.sql")
	if err := db.RunMigration(ctx, mig); err != nil {
		log.WithError(err).Fatal("migration")
	}
	log.Info("db: migration applied")

	writer := spg.NewWriter(db)
	pipeline := ingest.NewPipeline(writer, sink, cfg.QueueMaxSize, cfg.WorkerCount, cfg.IngestTimeout)
	pipeline.Start()
	log.WithFields(logrus.Fields{"queue": cfg.QueueMaxSize, "workers": cfg.WorkerCount}).Info("pipeline started")

	deps := &transport.ServerDeps{
		Cfg:      cfg,
		Ingestor: pipeline,
		DB:       db,
		Log:      log,
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           deps.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("http server")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	_ = srv.Shutdown(shutdownCtx)

	// Drain queued and in-flight batches before the pool goes away.
	pipeline.Stop()
	db.Close()
	log.Info("shutdown complete")
}
