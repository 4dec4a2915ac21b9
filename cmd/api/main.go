package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"jobvault/internal/api"
	"jobvault/internal/backup"
	"jobvault/internal/config"
	"jobvault/internal/database"
	"jobvault/internal/extract"
	"jobvault/internal/kv"
	"jobvault/internal/storage"
	"jobvault/internal/store"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	log.Printf("api bootstrapped with db host=%s port=%d db=%s sslmode=%s",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}
	log.Printf("database migrated")

	ctx := context.Background()
	backing := kv.NewGormStore(db)
	sets := &api.Sets{
		ZH: store.NewSet(ctx, backing, kv.PartitionZH, logger),
		EN: store.NewSet(ctx, backing, kv.PartitionEN, logger),
	}
	engine := backup.NewEngine(backing, sets.ZH, sets.EN, logger)

	for _, set := range []*store.Set{sets.ZH, sets.EN} {
		if err := set.Sections.InitializeDefaultTemplates(ctx); err != nil {
			log.Fatalf("seed section templates: %v", err)
		}
	}
	log.Printf("section templates seeded")

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}
	log.Printf("storage client ready, bucket=%s", cfg.MinIO.Bucket)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.Redis.Addr()})
	defer asynqClient.Close()

	extractor := extract.NewExtractor(cfg.Extract, logger)

	router := api.NewRouter()
	api.RegisterRoutes(router, cfg, sets, engine, backing, asynqClient, redisClient, storageClient, extractor, logger)

	address := fmt.Sprintf(":%d", cfg.API.Port)
	log.Printf("api listening on %s", address)
	if err := router.Run(address); err != nil {
		log.Fatalf("failed to start api server: %v", err)
	}
}
