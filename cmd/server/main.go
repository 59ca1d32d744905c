package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/adarsh745/etaxmentor-sub000/internal/config"
	"github.com/adarsh745/etaxmentor-sub000/internal/events"
	httpserver "github.com/adarsh745/etaxmentor-sub000/internal/http"
	"github.com/adarsh745/etaxmentor-sub000/internal/jobs"
	"github.com/adarsh745/etaxmentor-sub000/internal/repository"
	"github.com/adarsh745/etaxmentor-sub000/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connect: %v", err)
	}
	defer pool.Close()

	if cfg.MigrateOnStart {
		if err := repository.Migrate(ctx, cfg.DatabaseURL); err != nil {
			log.Fatalf("migrate: %v", err)
		}
	}
	store := repository.NewStore(pool)

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Printf("redis unavailable, session caching disabled: %v", err)
			redisClient = nil
		}
		cancel()
	}

	var blobs storage.BlobStore
	if cfg.S3Endpoint != "" || cfg.S3AccessKey != "" {
		s3Store, err := storage.NewS3Store(ctx, storage.S3Options{
			Endpoint:     cfg.S3Endpoint,
			Region:       cfg.S3Region,
			Bucket:       cfg.S3Bucket,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			UsePathStyle: cfg.UsePathStyle,
		})
		if err != nil {
			log.Fatalf("s3 store: %v", err)
		}
		blobs = s3Store
	} else {
		localStore, err := storage.NewLocalStore(cfg.UploadDir)
		if err != nil {
			log.Fatalf("local store: %v", err)
		}
		blobs = localStore
	}

	producer := events.NewProducer(cfg.KafkaBroker, cfg.KafkaTopic)
	defer func() {
		if err := producer.Close(); err != nil {
			log.Printf("producer close: %v", err)
		}
	}()

	jobs.StartSessionSweep(ctx, store, cfg.SweepInterval)

	server := httpserver.NewServer(cfg, store, blobs, producer, redisClient)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
		os.Exit(1)
	}
}
