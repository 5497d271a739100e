package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"skcrm/core/internal/app"
	"skcrm/core/internal/backup"
	"skcrm/core/internal/config"
	"skcrm/core/internal/email"
	"skcrm/core/internal/logging"
	"skcrm/core/internal/search"
	"skcrm/core/internal/store"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFile)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, backendName, err := store.Detect(ctx, store.Options{
		Backend:     cfg.StoreBackend,
		DataPath:    cfg.DataPath,
		DatabaseURL: cfg.DatabaseURL,
		RedisURL:    cfg.RedisURL,
	}, log)
	if err != nil {
		log.WithError(err).Fatal("store unavailable")
	}
	dataStore := store.New(backend, log)
	defer dataStore.Close()
	log.WithField("backend", backendName).Info("store opened")

	deps := app.Deps{
		Config: cfg,
		Store:  dataStore,
		Log:    log,
	}

	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, log)
		defer meiliClient.Close()
		deps.Engine = meiliClient
	}

	mailer := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	}, log)
	if mailer.IsConfigured() {
		deps.Mailer = mailer
	} else {
		log.Info("SMTP not configured, email relay disabled")
	}

	deps.Backup = newBackup(ctx, cfg, dataStore, log)

	service := app.New(deps)
	defer service.Close()
	if err := service.Bootstrap(ctx); err != nil {
		log.WithError(err).Fatal("bootstrap failed")
	}

	log.WithField("interval", cfg.SweepInterval).Info("SK CRM core running")
	service.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if deps.Backup != nil {
		if _, err := deps.Backup.Snapshot(shutdownCtx, "SK CRM", "Snapshot on shutdown"); err != nil {
			log.WithError(err).Warn("shutdown snapshot failed")
		}
	}
	log.Info("stopped")
}

func newBackup(ctx context.Context, cfg config.Config, dataStore *store.Store, log *logrus.Logger) *backup.Service {
	if strings.TrimSpace(cfg.BackupDir) == "" {
		return nil
	}
	opts := backup.Options{Dir: cfg.BackupDir, Store: dataStore, Log: log}

	objects := backup.ObjectStoreConfig{
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3Bucket,
		UseSSL:    cfg.S3UseSSL,
	}
	if objects.Configured() {
		sink, err := backup.NewObjectStore(objects)
		if err != nil {
			log.WithError(err).Warn("object storage disabled")
		} else if err := sink.EnsureBucket(ctx); err != nil {
			log.WithError(err).Warn("object storage disabled")
		} else {
			opts.Sink = sink
		}
	}
	return backup.New(opts)
}
