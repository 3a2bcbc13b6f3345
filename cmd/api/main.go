package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/astra-lms/astra-api/internal/config"
	"github.com/astra-lms/astra-api/internal/database"
	"github.com/astra-lms/astra-api/internal/gradebook"
	"github.com/astra-lms/astra-api/internal/handler"
	"github.com/astra-lms/astra-api/internal/middleware"
	"github.com/astra-lms/astra-api/internal/remote"
	"github.com/astra-lms/astra-api/internal/repository"
	"github.com/astra-lms/astra-api/internal/router"
	"github.com/astra-lms/astra-api/internal/service"
	cloud "github.com/astra-lms/astra-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	natsConn, err := database.ConnectNATS(cfg.NATSURL)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	if natsConn != nil {
		defer natsConn.Close()
	}

	var uploader service.FileUploader
	if cfg.CloudinaryCloudName != "" {
		cloudService, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		uploader = cloudService
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	remoteClient := remote.NewClient(cfg.ServiceTimeout, logger)
	gradebookStore := gradebook.NewSQLStore(db)

	courseRepo := repository.NewCourseRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	roundRepo := repository.NewRoundRepository(db)
	exerciseRepo := repository.NewExerciseRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	eventRepo := repository.NewEventRepository(db)

	failures := service.NewFailureRecorder(eventRepo, natsConn, "", logger)

	courseService := service.NewCourseService(courseRepo, categoryRepo, roundRepo, exerciseRepo, eventRepo, remoteClient, failures, validate, logger)
	categoryService := service.NewCategoryService(categoryRepo, courseRepo, validate, logger)
	roundService := service.NewRoundService(roundRepo, courseRepo, gradebookStore, validate, logger)
	exerciseService := service.NewExerciseService(exerciseRepo, roundRepo, remoteClient, gradebookStore, failures, validate, cfg.CallbackBaseURL, logger)
	gradingService := service.NewGradingService(submissionRepo, exerciseRepo, roundRepo, remoteClient, gradebookStore, failures, nil, uploader, validate, cfg.CallbackBaseURL, logger)
	summaryService := service.NewSummaryService(courseRepo, roundRepo, exerciseRepo, categoryRepo, submissionRepo, redisClient, cfg.SummaryCacheTTL, logger)

	courseHandler := handler.NewCourseHandler(courseService, logger)
	categoryHandler := handler.NewCategoryHandler(categoryService, logger)
	roundHandler := handler.NewRoundHandler(roundService, logger)
	exerciseHandler := handler.NewExerciseHandler(exerciseService, logger)
	submissionHandler := handler.NewSubmissionHandler(gradingService, logger)
	summaryHandler := handler.NewSummaryHandler(summaryService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		CourseHandler:     courseHandler,
		CategoryHandler:   categoryHandler,
		RoundHandler:      roundHandler,
		ExerciseHandler:   exerciseHandler,
		SubmissionHandler: submissionHandler,
		SummaryHandler:    summaryHandler,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
		StaffMiddleware:   middleware.RequireStaff(),
		SubmitLimiter:     middleware.RateLimit("submit", cfg.SubmitRateLimit, cfg.SubmitRateWindow),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
