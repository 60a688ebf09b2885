package main

import (
	"context"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"scribber/internal/api"
	"scribber/internal/config"
	"scribber/internal/db"
	"scribber/internal/logging"
	"scribber/internal/notify"
	"scribber/internal/queue"
	"scribber/internal/repository"
	"scribber/internal/storage"
)

func main() {
	// Load .env file if it exists (ignore error if file doesn't exist)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New("info", "console", "scribber-server")
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat, "scribber-server")

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	gdb, err := db.Open(cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}
	if err := db.SeedModels(context.Background(), gdb, cfg.ModelSeedPath, log); err != nil {
		log.Warn().Err(err).Msg("model catalog seed skipped")
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
	qs := queue.NewService(broker, repos, log)

	store, err := storage.New(cfg.UploadDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize upload storage")
	}

	hub := notify.NewHub(log)
	bcast := notify.NewBroadcaster(hub, rdb, log)
	go func() {
		if err := bcast.Run(context.Background()); err != nil {
			log.Error().Err(err).Msg("event relay stopped")
		}
	}()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	a := api.New(cfg, repos, qs, store, hub, bcast, log)
	a.RegisterRoutes(r)

	log.Info().Str("port", cfg.Port).Msg("scribber backend listening")
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

// corsMiddleware adds CORS headers for browser and mobile clients.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-User-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
