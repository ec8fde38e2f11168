package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"entree-api/internal/api"
	"entree-api/internal/config"
	"entree-api/internal/ingest"
	"entree-api/internal/kafka"
	"entree-api/internal/logger"
	"entree-api/internal/resolver"
	"entree-api/internal/store"
)

// openCache connects to the same redis the API serves reads from, so syncs
// can drop entities they rewrite. Optional: without redis, syncs just write.
func openCache(cfg *config.Config, log *logger.Logger) *api.Cache {
	if !cfg.Redis.Enabled {
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		log.Warn("CACHE", fmt.Sprintf("Redis unreachable at %s, skipping invalidation: %v", cfg.Redis.Addr, err))
		return nil
	}
	log.Info("CACHE", fmt.Sprintf("Connected to redis at %s", cfg.Redis.Addr))
	return api.NewCache(client, cfg.Cache.TTL, log)
}

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.NewLogger()
	defer log.Close()

	sqldb, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to open postgres: %v", err))
	}
	if err := sqldb.Ping(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to postgres: %v", err))
	}
	bunDB := bun.NewDB(sqldb, pgdialect.New())
	defer bunDB.Close()

	db := store.New(bunDB)
	res := resolver.New(db)
	svc := ingest.New(db, res, log)

	if cache := openCache(cfg, log); cache != nil {
		res.Cache = cache
		svc.Cache = cache
	}

	if !cfg.Kafka.Enabled {
		log.Fatal("KAFKA", "Sync worker needs kafka; set KAFKA_ENABLED=true")
	}

	topics := []string{cfg.Kafka.Topics.SyncRecords, cfg.Kafka.Topics.SyncReports}
	if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, topics); err != nil {
		log.Warn("KAFKA", fmt.Sprintf("Topic bootstrap failed: %v", err))
	}

	producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.SyncReports)
	defer producer.Close()
	svc.Reporter = producer

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.SyncRecords, cfg.Kafka.GroupID, log)
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info("SYNC", "Shutting down...")
		cancel()
	}()

	if err := consumer.Start(ctx, svc.Handle); err != nil {
		log.Fatal("SYNC", fmt.Sprintf("Consumer stopped: %v", err))
	}
}
