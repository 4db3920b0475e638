package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fiapx/fiapx-video-processor/internal/domain/port"
	"github.com/fiapx/fiapx-video-processor/internal/infra/config"
	"github.com/fiapx/fiapx-video-processor/internal/infra/ffmpeg"
	"github.com/fiapx/fiapx-video-processor/internal/infra/httpapi"
	"github.com/fiapx/fiapx-video-processor/internal/infra/memory"
	"github.com/fiapx/fiapx-video-processor/internal/infra/metrics"
	miniostorage "github.com/fiapx/fiapx-video-processor/internal/infra/minio"
	"github.com/fiapx/fiapx-video-processor/internal/infra/postgres"
	"github.com/fiapx/fiapx-video-processor/internal/infra/rabbitmq"
	rediscache "github.com/fiapx/fiapx-video-processor/internal/infra/redis"
	"github.com/fiapx/fiapx-video-processor/internal/infra/scheduler"
	"github.com/fiapx/fiapx-video-processor/internal/infra/sqlite"
	"github.com/fiapx/fiapx-video-processor/internal/infra/storage"
	"github.com/fiapx/fiapx-video-processor/internal/infra/tracing"
	"github.com/fiapx/fiapx-video-processor/internal/infra/webhook"
	"github.com/fiapx/fiapx-video-processor/internal/usecase"
	"github.com/fiapx/fiapx-video-processor/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type repositories struct {
	videos  port.VideoFileRepository
	results port.ProcessingResultRepository
	close   func()
}

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting fiapx-video-processor")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing (non-fatal if the collector is unavailable)
	tp, err := tracing.InitTracer(ctx, cfg.JaegerEndpoint)
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else {
		defer tp.Shutdown(context.Background())
	}

	repos := openRepositories(ctx, cfg, log)
	defer repos.close()

	files := storage.NewLocalStorage(log)
	for _, dir := range []string{cfg.UploadDir, cfg.OutputDir, cfg.TempDir} {
		fatalOnErr(os.MkdirAll(dir, 0755), "create "+dir)
	}

	// Status cache (optional)
	var cache port.StatusCache
	if cfg.RedisAddr != "" {
		client, err := rediscache.NewClient(ctx, rediscache.ClientConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Warn("redis unavailable, status cache disabled", zap.Error(err))
		} else {
			defer client.Close()
			cache = rediscache.NewStatusCache(client, cfg.StatusTTL)
		}
	}

	// Object storage mirror (optional)
	var artifacts port.ArtifactStore
	if cfg.MinIOEndpoint != "" {
		store, err := miniostorage.NewArtifactStore(miniostorage.StorageConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			UseSSL:    cfg.MinIOUseSSL,
			ZipBucket: cfg.MinIOZipBucket,
		})
		fatalOnErr(err, "create minio storage")
		fatalOnErr(store.EnsureBucket(ctx), "ensure minio bucket")
		artifacts = store
	}

	// Broker
	transport := rabbitmq.NewTransport(rabbitmq.Config{
		URL:             cfg.RabbitMQURL,
		ConnectAttempts: cfg.RabbitMQConnectRetries,
		RetryDelay:      cfg.RabbitMQRetryDelay,
	}, log)
	if err := transport.Connect(ctx); err != nil {
		log.Error("rabbitmq unavailable at startup, will reconnect lazily", zap.Error(err))
	}
	defer transport.Close()

	notifier := webhook.NewNotifier(webhook.Config{
		URL:        cfg.WebhookURL,
		Timeout:    cfg.WebhookTimeout,
		Attempts:   cfg.WebhookAttempts,
		RetryDelay: cfg.WebhookRetryDelay,
	}, log)
	defer notifier.Close()

	extractor := ffmpeg.NewExtractor(ffmpeg.ExtractorConfig{
		FPS:    cfg.FFmpegFPS,
		Format: cfg.FFmpegFormat,
	}, log)

	// Use cases
	process := usecase.NewProcessVideosUseCase(
		repos.videos, repos.results, files, extractor, notifier,
		log,
		usecase.ProcessVideosConfig{
			UploadDir:     cfg.UploadDir,
			OutputDir:     cfg.OutputDir,
			TempDir:       cfg.TempDir,
			PublicBaseURL: cfg.PublicBaseURL,
		},
	)
	download := usecase.NewDownloadResultUseCase(repos.results, files, cfg.OutputDir)
	if cache != nil {
		process.WithStatusCache(cache)
	}
	if artifacts != nil {
		process.WithArtifactStore(artifacts)
		download.WithArtifactStore(artifacts)
	}

	consumer := usecase.NewConsumeVideosUseCase(transport, process, log, usecase.WithRestartDelay(cfg.ConsumerRestartDelay))
	queueStatus := usecase.NewQueueStatusUseCase(transport, log)

	api := httpapi.NewHandler(httpapi.Services{
		Upload:     usecase.NewUploadVideosUseCase(repos.videos, files, cfg.UploadDir, log),
		Enqueue:    usecase.NewEnqueueVideosUseCase(transport, log),
		Status:     usecase.NewGetVideoStatusUseCase(repos.videos, cache, log),
		List:       usecase.NewListUserVideosUseCase(repos.videos, repos.results),
		Processing: usecase.NewGetProcessingStatusUseCase(repos.results, files, cfg.OutputDir, cfg.PublicBaseURL),
		Download:   download,
		Queue:      queueStatus,
		Consumer:   consumer,
		Webhook:    notifier,
	}, log)

	// HTTP API + metrics
	srv := metrics.StartServer(cfg.HTTPPort, api.Routes(), log)

	sampler := scheduler.NewQueueSampler(queueStatus, cfg.QueueSampleSchedule, log)
	fatalOnErr(sampler.Start(), "start queue sampler")

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	if err := consumer.Start(ctx); err != nil {
		log.Warn("consumer stopped before subscribing", zap.Error(err))
	}

	log.Info("fiapx-video-processor started, consuming messages")
	<-ctx.Done()

	// Shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	sampler.Stop()
	srv.Shutdown(shutdownCtx)
	log.Info("waiting for in-flight batch to finish")
	transport.Wait()
	notifier.Wait()

	log.Info("fiapx-video-processor stopped")
}

func openRepositories(ctx context.Context, cfg *config.Config, log *zap.Logger) repositories {
	switch cfg.DatabaseDriver {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		fatalOnErr(err, "connect to postgres")

		if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
			log.Warn("migration warning", zap.Error(err))
		}
		return repositories{
			videos:  postgres.NewVideoFileRepository(pool),
			results: postgres.NewProcessingResultRepository(pool),
			close:   pool.Close,
		}
	case "sqlite":
		db, err := sqlite.Open(cfg.DatabaseURL)
		fatalOnErr(err, "open sqlite")
		return repositories{
			videos:  sqlite.NewVideoFileRepository(db),
			results: sqlite.NewProcessingResultRepository(db),
			close:   func() { db.Close() },
		}
	case "memory", "":
		log.Warn("using in-memory repositories, data is lost on restart")
		return repositories{
			videos:  memory.NewVideoFileRepository(),
			results: memory.NewProcessingResultRepository(),
			close:   func() {},
		}
	default:
		panic("unknown DATABASE_DRIVER: " + cfg.DatabaseDriver)
	}
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
