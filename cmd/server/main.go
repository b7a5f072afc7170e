package main // Entry point package

import (
	"log"  // Logging library
	"time" // Model client timeout

	"github.com/joho/godotenv"    // Loads .env files in development
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/prankroom/prank-studio/internal/config"
	"github.com/prankroom/prank-studio/internal/database"
	"github.com/prankroom/prank-studio/internal/genimage"
	"github.com/prankroom/prank-studio/internal/handler"
	"github.com/prankroom/prank-studio/internal/queue"
	"github.com/prankroom/prank-studio/internal/repository"
	"github.com/prankroom/prank-studio/internal/router"
	"github.com/prankroom/prank-studio/internal/storage"
	"github.com/prankroom/prank-studio/pkg/logger"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env vars win

	cfg := config.Load() // Load environment config
	logr := logger.New() // JSON logger for worker-facing code

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database open: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient() // nil when Redis is unreachable; callers degrade
	if rdb == nil {
		log.Printf("redis unavailable: balance cache, response cache and rate limiting disabled")
	}

	uploader, err := storage.NewUploader(storage.Config{
		Endpoint:      cfg.S3Endpoint,
		Region:        cfg.S3Region,
		AccessKey:     cfg.S3AccessKey,
		SecretKey:     cfg.S3SecretKey,
		Bucket:        cfg.S3Bucket,
		PublicBaseURL: cfg.S3PublicBase,
		UsePathStyle:  cfg.S3UsePathStyle,
	})
	if err != nil {
		log.Fatalf("storage uploader: %v", err)
	}

	modelClient := genimage.NewClient(cfg.ModelAPIBase, cfg.ModelAPIKey,
		time.Duration(cfg.ModelTimeoutSec)*time.Second, logr)

	userRepo := repository.NewUserRepo(db)
	tokenRepo := repository.NewTokenRepo(db)
	ledgerRepo := repository.NewLedgerRepo(db)
	photoRepo := repository.NewPhotoRepo(db)
	generationRepo := repository.NewGenerationRepo(db, ledgerRepo)

	authHandler := handler.NewAuthHandler(cfg, userRepo, tokenRepo, ledgerRepo)
	photoHandler := handler.NewPhotoHandler(uploader, photoRepo)
	generationHandler := handler.NewGenerationHandler(generationRepo, photoRepo, uploader, modelClient, rdb)
	tokenHandler := handler.NewTokenHandler(ledgerRepo, rdb)

	// Drain completion events into logs/generations.log in the background.
	go func() {
		if err := queue.StartGenerationConsumer(); err != nil {
			log.Printf("generation consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	router.RegisterRoutes(e, config.LoadCacheConfig(), rdb)
	router.RegisterAuth(e, authHandler, cfg.JWTSecret)
	router.RegisterAPI(e, cfg.JWTSecret, config.LoadRateLimitConfig(), rdb,
		photoHandler, generationHandler, tokenHandler)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
