package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"scribber/internal/config"
	"scribber/internal/db"
	"scribber/internal/logging"
	"scribber/internal/model"
	"scribber/internal/notify"
	"scribber/internal/processor"
	"scribber/internal/provider"
	"scribber/internal/queue"
	"scribber/internal/repository"
	"scribber/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New("info", "console", "scribber-worker")
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat, "scribber-worker")

	gdb, err := db.Open(cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}
	repos := repository.New(gdb)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	broker := queue.NewBroker(rdb)
	if err := broker.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("failed to connect to redis")
	}

	store, err := storage.New(cfg.UploadDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open upload storage")
	}

	factory := provider.NewFactory(provider.Credentials{
		OpenAI:     cfg.OpenAIKey,
		Anthropic:  cfg.AnthropicKey,
		ElevenLabs: cfg.ElevenLabsKey,
		Google:     cfg.GoogleKey,
		Qwen:       cfg.QwenKey,
	})

	// The worker publishes through Redis so the API process delivers
	// events to its WebSocket subscribers.
	hub := notify.NewHub(log)
	bcast := notify.NewBroadcaster(hub, rdb, log)

	proc := processor.New(repos, factory, store, bcast, log)
	worker := queue.NewWorker(broker, proc, repos.Jobs, queue.WorkerConfig{
		Counts: map[model.OperationType]int{
			model.OperationTranscription: cfg.TranscriptionWorkers,
			model.OperationSummarization: cfg.SummarizationWorkers,
		},
		MaxRetries:  cfg.MaxRetries,
		RetryDelay:  cfg.RetryDelay,
		HardTimeout: cfg.JobTimeout,
		SoftTimeout: cfg.JobSoftTimeout,
	}, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().
		Int("transcription_workers", cfg.TranscriptionWorkers).
		Int("summarization_workers", cfg.SummarizationWorkers).
		Msg("worker starting")
	worker.Run(ctx)
	log.Info().Msg("worker stopped")
}
