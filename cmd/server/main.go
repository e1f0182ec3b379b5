package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/inkpost/internal/config"
	"github.com/inkpost/internal/db"
	"github.com/inkpost/internal/events"
	"github.com/inkpost/internal/handler"
	"github.com/inkpost/internal/lock"
	"github.com/inkpost/internal/logger"
	"github.com/inkpost/internal/router"
	"github.com/inkpost/internal/security"
	"github.com/inkpost/internal/storage"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel)

	if err := run(cfg); err != nil {
		slog.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg config.AppConfig) error {
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 初始化数据库
	if err := db.Init(cfg.DatabasePath); err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	if err := db.EnsureUser(db.DB, cfg.SuperRootEmail, cfg.SuperRootPassword); err != nil {
		return fmt.Errorf("ensure super root user: %w", err)
	}

	locker, closeLocker, err := newLocker(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer closeLocker()

	publisher, err := newPublisher(cfg.Kafka)
	if err != nil {
		return err
	}
	defer publisher.Close()

	blobs, uploadDir, err := newBlobStore(ctx, cfg)
	if err != nil {
		return err
	}

	api := handler.NewAPI(db.DB, handler.Options{
		Tokens:    security.NewTokens(cfg.JWTSecret, cfg.JWTTTL),
		Blobs:     blobs,
		Locker:    locker,
		Publisher: publisher,
	})
	srv := &http.Server{
		Addr: cfg.ListenAddr,
		Handler: router.SetupRouter(api, router.Options{
			SessionSecret: cfg.SessionSecret,
			UploadDir:     uploadDir,
			UploadURLPath: cfg.UploadURLPath,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server listening", slog.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		slog.Info("shutting down server")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// newLocker picks the redis lock when an address is configured so several
// instances serialize slug allocation together.
func newLocker(ctx context.Context, cfg config.RedisConfig) (lock.Locker, func(), error) {
	if cfg.Addr == "" {
		return lock.NewLocal(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	client.AddHook(logger.RedisHook{})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.Addr, err)
	}
	slog.Info("using redis slug lock", slog.String("addr", cfg.Addr))
	return lock.NewRedis(client, "inkpost:lock:"), func() { client.Close() }, nil
}

func newPublisher(cfg config.KafkaConfig) (events.Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return events.LogPublisher{}, nil
	}
	publisher, err := events.NewKafkaPublisher(cfg.Brokers, cfg.Topic)
	if err != nil {
		return nil, err
	}
	slog.Info("publishing post events to kafka", slog.String("topic", cfg.Topic), slog.Any("brokers", cfg.Brokers))
	return publisher, nil
}

// newBlobStore returns the upload store and, for local storage, the
// directory the router should serve.
func newBlobStore(ctx context.Context, cfg config.AppConfig) (storage.BlobStore, string, error) {
	if cfg.MinIO.Endpoint == "" {
		return storage.NewLocal(cfg.UploadDir, cfg.UploadURLPath), cfg.UploadDir, nil
	}

	store, err := storage.NewMinIO(ctx, storage.MinIOOptions{
		Endpoint:  cfg.MinIO.Endpoint,
		AccessKey: cfg.MinIO.AccessKey,
		SecretKey: cfg.MinIO.SecretKey,
		Bucket:    cfg.MinIO.Bucket,
		UseSSL:    cfg.MinIO.UseSSL,
		PublicURL: cfg.MinIO.PublicURL,
	})
	if err != nil {
		return nil, "", err
	}
	slog.Info("storing uploads in minio", slog.String("bucket", cfg.MinIO.Bucket))
	return store, "", nil
}
