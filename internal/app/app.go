package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"image-ingest/internal/auth"
	kafka_impl "image-ingest/internal/broker/kafka"
	"image-ingest/internal/config"
	upload_h "image-ingest/internal/http-server/handler/upload"
	"image-ingest/internal/http-server/router"
	minio_repo "image-ingest/internal/repository/image/cloud/minio"
	postgres_repo "image-ingest/internal/repository/image/db/postgres"
	"image-ingest/internal/resource"
	"image-ingest/internal/usecase/processor"
	upload_uc "image-ingest/internal/usecase/upload"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/zlog"
)

type App struct {
	cfg      *config.Config
	server   *http.Server
	logger   *zlog.Zerolog
	db       *dbpg.DB
	producer *kafka_impl.EventProducer
	sessions *upload_uc.SessionManager
}

func NewApp(cfg *config.Config, logger *zlog.Zerolog) (*App, error) {
	retries := cfg.DefaultRetryStrategy()

	dbOpts := &dbpg.Options{
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
	}

	db, err := dbpg.New(cfg.DBDSN(), []string{}, dbOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	minioClient, err := minio.New(cfg.Minio.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Minio.AccessKey, cfg.Minio.SecretKey, ""),
		Secure: cfg.Minio.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	fileRepo := minio_repo.NewFileRepository(minioClient, cfg.Minio.Bucket, cfg.Minio.MaxAttempts, cfg.Minio.WriteTimeout, logger)
	imageRepo := postgres_repo.NewImagesRepository(db, retries)

	monitor := resource.NewMonitor(logger)
	selector := processor.NewSelector(processor.DefaultCatalog())
	cascade := processor.NewCascade(selector, monitor, logger, cfg.Upload.ProcessTimeout)
	variants := processor.NewVariantGenerator(processor.DefaultVariantSpecs(), monitor, logger)

	sessions := upload_uc.NewSessionManager(upload_uc.NewMemorySessionStore(), cfg.Upload.SessionIdleWindow, logger)

	var producer *kafka_impl.EventProducer
	if cfg.Kafka.Enabled {
		producer = kafka_impl.NewEventProducer(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic, retries)
	}

	var uploadUsecase *upload_uc.Usecase
	if producer != nil {
		uploadUsecase = upload_uc.NewUsecase(imageRepo, fileRepo, producer, cascade, variants, monitor, sessions, logger)
	} else {
		uploadUsecase = upload_uc.NewUsecase(imageRepo, fileRepo, nil, cascade, variants, monitor, sessions, logger)
	}

	gate := auth.NewGate(cfg.Auth.Secret)
	uploadHandler := upload_h.NewHandler(uploadUsecase, logger)

	h := &router.Handler{
		UploadHandler: uploadHandler,
		AuthGate:      gate,
	}

	server := &http.Server{
		Addr:         ":" + cfg.Server.Addr,
		Handler:      router.SetupRouter(h),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &App{
		cfg:      cfg,
		server:   server,
		logger:   logger,
		db:       db,
		producer: producer,
		sessions: sessions,
	}, nil
}

func (a *App) Run() error {
	a.logger.Info().Str("addr", a.cfg.Server.Addr).Msg("Starting server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.sessions.StartSweeper(ctx, a.cfg.Upload.SweepInterval)

	go a.handleSignals(cancel)

	serverErr := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		a.logger.Error().Err(err).Msg("Server error")
		return err
	case <-ctx.Done():
		a.logger.Info().Msg("Shutting down server")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error().Err(err).Msg("Server shutdown failed")
		}

		if a.db != nil && a.db.Master != nil {
			a.db.Master.Close()
		}

		if a.producer != nil {
			a.producer.Close()
		}

		a.logger.Info().Msg("Server stopped gracefully")
		return nil
	}
}

func (a *App) handleSignals(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	a.logger.Info().Str("signal", sig.String()).Msg("Received signal")
	cancel()
}
