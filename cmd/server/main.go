package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"docuvault/internal/config"
	"docuvault/internal/email"
	"docuvault/internal/httpapi"
	"docuvault/internal/service"
	"docuvault/internal/storage"
	"docuvault/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	logger := newLogger(cfg)

	var (
		clientSvc    *service.ClientService
		templateSvc  *service.TemplateService
		sessionSvc   *service.SessionService
		reviewSvc    *service.ReviewService
		uploadSvc    *service.UploadService
		monthlySvc   *service.MonthlyService
		reminderSvc  *service.ReminderService
		dispatchSvc  *service.DispatchService
		retentionSvc *service.RetentionService
		dbPing       func(context.Context) error
	)

	if cfg.DBDSN != "" {
		if err := postgres.Migrate(cfg.DBDSN); err != nil {
			logger.Error("db migrate failed", "err", err)
			os.Exit(1)
		}

		pgPool, err := postgres.Open(context.Background(), cfg.DBDSN)
		if err != nil {
			logger.Error("db open failed", "err", err)
			os.Exit(1)
		}
		defer pgPool.Close()

		clients := postgres.NewClientsStore(pgPool)
		documents := postgres.NewDocumentRequestsStore(pgPool)
		templates := postgres.NewTemplatesStore(pgPool)
		sessions := postgres.NewSessionsStore(pgPool)
		uploads := postgres.NewUploadsStore(pgPool)
		outbox := postgres.NewOutboxStore(pgPool)

		var blobs *storage.BlobStore
		if cfg.S3Endpoint != "" {
			blobs, err = storage.New(context.Background(), storage.Options{
				Endpoint:  cfg.S3Endpoint,
				AccessKey: cfg.S3AccessKey,
				SecretKey: cfg.S3SecretKey,
				Bucket:    cfg.S3Bucket,
				UseSSL:    cfg.S3UseSSL,
			})
			if err != nil {
				logger.Error("blob store init failed", "err", err)
				os.Exit(1)
			}
		} else {
			logger.Warn("blob store disabled: portal uploads unavailable", "hint", "set APP_S3_ENDPOINT")
		}

		publicURL := cfg.PublicURLString()

		clientSvc = &service.ClientService{Clients: clients, Documents: documents}
		sessionSvc = &service.SessionService{
			Sessions:  sessions,
			Clients:   clients,
			Documents: documents,
			Mail:      outbox,
			PublicURL: publicURL,
		}
		templateSvc = &service.TemplateService{
			Templates: templates,
			Clients:   clients,
			Documents: documents,
			Sessions:  sessionSvc,
			Mail:      outbox,
			PublicURL: publicURL,
		}
		reviewSvc = &service.ReviewService{
			Uploads:  uploads,
			Sessions: sessions,
			Clients:  clients,
			Mail:     outbox,
			Logger:   logger,
		}
		monthlySvc = &service.MonthlyService{
			Templates: templates,
			Clients:   clients,
			Sessions:  sessionSvc,
			Mail:      outbox,
			PublicURL: publicURL,
			Logger:    logger,
			Batch:     cfg.SchedulerBatch,
		}
		reminderSvc = &service.ReminderService{
			Sessions:  sessions,
			Uploads:   uploads,
			Clients:   clients,
			Mail:      outbox,
			PublicURL: publicURL,
			Logger:    logger,
			Batch:     cfg.SchedulerBatch,
		}
		dispatchSvc = &service.DispatchService{
			Outbox: outbox,
			Sender: newSender(cfg, logger),
			Logger: logger,
			Batch:  cfg.DispatchBatch,
		}
		if blobs != nil {
			uploadSvc = &service.UploadService{
				Sessions:     sessions,
				Uploads:      uploads,
				Documents:    documents,
				Store:        blobs,
				Logger:       logger,
				UploadURLTTL: cfg.UploadURLTTL,
			}
			retentionSvc = &service.RetentionService{
				Uploads: uploads,
				Blobs:   blobs,
				Logger:  logger,
				Batch:   cfg.SchedulerBatch,
			}
		}
		dbPing = pgPool.Ping
	} else {
		logger.Warn("database disabled: api unavailable", "hint", "set APP_DB_DSN")
	}

	router := httpapi.NewRouter(httpapi.RouterOpts{
		Logger:     logger,
		IsProd:     cfg.IsProd(),
		DBPing:     dbPing,
		Clients:    clientSvc,
		Templates:  templateSvc,
		Sessions:   sessionSvc,
		Review:     reviewSvc,
		Uploads:    uploadSvc,
		Monthly:    monthlySvc,
		Reminders:  reminderSvc,
		Dispatch:   dispatchSvc,
		Retention:  retentionSvc,
		OwnerID:    cfg.OwnerID,
		StaffKey:   cfg.StaffAPIKey,
		CronSecret: cfg.CronSecret,
		PublicURL:  cfg.PublicURLString(),
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "env", cfg.Env, "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}
}

// newSender returns the real SMTP sender, or a log-only stand-in when SMTP
// is not configured so dev environments can still drain the outbox.
func newSender(cfg config.Config, logger *slog.Logger) service.MailSender {
	settings := email.Settings{
		Host:      cfg.SMTPHost,
		Port:      cfg.SMTPPort,
		Username:  cfg.SMTPUsername,
		Password:  cfg.SMTPPassword,
		TLSMode:   cfg.SMTPTLSMode,
		FromName:  cfg.SMTPFromName,
		FromEmail: cfg.SMTPFromEmail,
	}
	if settings.Configured() {
		return &email.Sender{Settings: settings}
	}
	logger.Warn("smtp disabled: outbox mail will be logged, not sent", "hint", "set APP_SMTP_HOST and APP_SMTP_FROM_EMAIL")
	return logSender{logger: logger}
}

type logSender struct {
	logger *slog.Logger
}

func (s logSender) Send(to, subject, _ string) error {
	s.logger.Info("mail (not sent)", "to", to, "subject", subject)
	return nil
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.IsProd() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
