package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"MotionWeaver-server/config"
	"MotionWeaver-server/models"
	"MotionWeaver-server/routers"
	"MotionWeaver-server/routers/api"
	"MotionWeaver-server/service"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[Main] load config: %v", err)
	}

	db, err := models.OpenDB(cfg.MySQL.DSN)
	if err != nil {
		log.Fatalf("[Main] open database: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("[Main] redis ping: %v", err)
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	settings := config.NewSettingsStore(cfg.Generation)
	queue := service.NewQueue(redisOpt)
	defer queue.Close()
	notifier := service.NewNotifier(rdb)
	chords := service.NewChordStore(rdb)

	var llm *service.LLMClient
	var llmCaller service.LLMCaller
	if cfg.UseMockAPI {
		llmCaller = service.NewMockLLM()
	} else {
		llm = service.NewLLMClient(cfg)
		llmCaller = llm
	}

	var storage *service.Storage
	if cfg.MinIO.Endpoint != "" {
		storage, err = service.NewStorage(cfg)
		if err != nil {
			log.Printf("[Main] minio unavailable, final videos stay local: %v", err)
			storage = nil
		}
	}

	pipeline := &service.Pipeline{
		DB:       db,
		LLM:      llmCaller,
		Queue:    queue,
		Notifier: notifier,
		Chords:   chords,
	}

	// Remap crashed in-flight rows before the worker pool accepts tasks.
	service.RecoverStuckEntities(db)

	processor := service.NewProcessor(db, cfg, settings, rdb, queue, notifier, chords, pipeline, storage)
	if err := processor.Start(redisOpt, 10); err != nil {
		log.Fatalf("[Main] start worker pool: %v", err)
	}

	handler := &api.Handler{
		DB:       db,
		Pipeline: pipeline,
		Notifier: notifier,
		Settings: settings,
		LLM:      llm,
		Metrics:  processor.Metrics,
	}
	router := routers.InitRouter(handler)

	go func() {
		log.Printf("[Main] listening on %s", cfg.Server.Port)
		if err := router.Run(cfg.Server.Port); err != nil {
			log.Fatalf("[Main] http server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("[Main] shutting down")
	processor.Shutdown()
}
