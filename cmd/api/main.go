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
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/oku-edu/oku-go-api/internal/config"
	"github.com/oku-edu/oku-go-api/internal/database"
	"github.com/oku-edu/oku-go-api/internal/grading"
	"github.com/oku-edu/oku-go-api/internal/handler"
	"github.com/oku-edu/oku-go-api/internal/middleware"
	"github.com/oku-edu/oku-go-api/internal/models"
	"github.com/oku-edu/oku-go-api/internal/observability"
	"github.com/oku-edu/oku-go-api/internal/queue"
	"github.com/oku-edu/oku-go-api/internal/repository"
	"github.com/oku-edu/oku-go-api/internal/router"
	"github.com/oku-edu/oku-go-api/pkg/ai"
	cloud "github.com/oku-edu/oku-go-api/pkg/cloudinary"
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

	if err := db.AutoMigrate(
		&models.Rubric{}, &models.RubricCriterion{},
		&models.Submission{}, &models.SubmissionPart{},
		&models.GradingResult{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var blobStore grading.BlobStore
	if cfg.CloudinaryCloudName != "" {
		uploader, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		blobStore = uploader
	} else {
		logger.Warn().Msg("no blob store configured, oversized submission parts will fail")
	}

	grader, err := ai.NewOpenAIGrader(ai.OpenAIConfig{
		APIKey: cfg.OpenAIAPIKey,
		Logger: logger,
	})
	if err != nil {
		log.Fatalf("failed to create grading client: %v", err)
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = nats.Connect(cfg.NATSURL)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	submissionRepo := repository.NewSubmissionRepository(db)
	rubricRepo := repository.NewRubricRepository(db)
	resultRepo := repository.NewGradingResultRepository(db)

	events := grading.NewEvents(natsConn, "oku.grading", logger)
	preparer := grading.NewPreparer(blobStore, cfg.InlineLimitBytes, logger)
	adapter := grading.NewAdapter(grader, grading.AdapterConfig{
		Model:           cfg.GradingModel,
		InitialBudget:   cfg.InitialBudget,
		EscalatedBudget: cfg.EscalatedBudget,
		Temperature:     cfg.Temperature,
	}, logger)
	persister := grading.NewPersister(submissionRepo, resultRepo, events, logger)
	pipeline := grading.NewPipeline(submissionRepo, preparer, adapter, persister, logger)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	var jobQueue queue.Queue
	var pool *grading.Pool
	if cfg.RedisURL != "" {
		redisClient, err := database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()

		redisQueue := queue.NewRedisQueue(redisClient, queue.RedisOptions{
			Visibility:  cfg.VisibilityTimeout,
			MaxAttempts: cfg.MaxAttempts,
			BackoffBase: cfg.BackoffBase,
			BackoffMax:  cfg.BackoffMax,
		}, logger)
		jobQueue = redisQueue

		pool = grading.NewPool(redisQueue, pipeline, persister, grading.PoolConfig{
			Workers:      cfg.WorkerCount,
			PollInterval: cfg.PollInterval,
			JobDeadline:  cfg.JobDeadline,
		}, logger)
		pool.Start(workerCtx)

		go reportQueueDepth(workerCtx, redisQueue)
	} else {
		logger.Warn().Msg("no redis configured, grading jobs run inline in the request context")
		jobQueue = queue.NewInlineQueue(func(ctx context.Context, job *queue.Job) error {
			attemptCtx, cancel := context.WithTimeout(ctx, cfg.JobDeadline)
			defer cancel()

			err := pipeline.Process(attemptCtx, job)
			if err == nil {
				return nil
			}

			cause := grading.Classify(err)
			terminal := !cause.Retryable() || job.Attempt >= job.MaxAttempts
			if persistErr := persister.RecordFailure(context.WithoutCancel(ctx), job.SubmissionID, cause, terminal); persistErr != nil {
				logger.Error().Err(persistErr).Uint("submission_id", job.SubmissionID).Msg("record failure failed")
			}

			return cause
		}, cfg.MaxAttempts, grading.Retryable, logger)
	}

	submissionHandler := handler.NewSubmissionHandler(submissionRepo, resultRepo, jobQueue, validate, logger, cfg.MaxAttempts)
	rubricHandler := handler.NewRubricHandler(rubricRepo, validate, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    25 << 20,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		SubmissionHandler: submissionHandler,
		RubricHandler:     rubricHandler,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, stopWorkers, pool)
}

func reportQueueDepth(ctx context.Context, q *queue.RedisQueue) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			depth, err := q.Depth(ctx)
			if err != nil {
				continue
			}
			observability.QueueDepth().Set(float64(depth))
		}
	}
}

func waitForShutdown(app *fiber.App, stopWorkers context.CancelFunc, pool *grading.Pool) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	// Stop claiming new jobs before the HTTP listener goes away.
	stopWorkers()
	if pool != nil {
		pool.Wait()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
