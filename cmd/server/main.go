package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/robfig/cron"
	config "github.com/socialflowhq/socialflow/configs"
	"github.com/socialflowhq/socialflow/internal/api/handlers"
	"github.com/socialflowhq/socialflow/internal/api/middleware"
	"github.com/socialflowhq/socialflow/internal/audit"
	job "github.com/socialflowhq/socialflow/internal/jobs"
	"github.com/socialflowhq/socialflow/internal/notify"
	"github.com/socialflowhq/socialflow/internal/platform"
	"github.com/socialflowhq/socialflow/internal/publisher"
	"github.com/socialflowhq/socialflow/internal/queue"
	"github.com/socialflowhq/socialflow/internal/repository"
	"github.com/socialflowhq/socialflow/internal/scheduler"
	"github.com/socialflowhq/socialflow/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    100 * 1024 * 1024, // 100 MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	postTargetRepo := repository.NewPostTargetRepository(db)
	socialAccountRepo := repository.NewSocialAccountRepository(db)
	postMediaRepo := repository.NewPostMediaRepository(db)
	mediaAssetRepo := repository.NewMediaAssetRepository(db)
	cronLogRepo := repository.NewCronLogRepository(db)
	publishEventRepo := repository.NewPublishEventRepository(db)
	apiKeyRepo := repository.NewApiKeyRepository(db)

	mediaCDN := fmt.Sprintf("https://pub-%s.r2.dev", cfg.R2.AccountID)

	authService := service.NewAuthService(*cfg, userRepo)
	userService := service.NewUserService(userRepo)
	r2Service := service.NewR2Service(*cfg)
	postService := service.NewPostService(db, postRepo, postTargetRepo, socialAccountRepo, mediaAssetRepo, postMediaRepo, r2Service, mediaCDN)
	accountService := service.NewAccountService(*cfg, socialAccountRepo)
	connectService := service.NewConnectService(*cfg, socialAccountRepo)
	apiKeyService := service.NewApiKeyService(apiKeyRepo)

	registry := platform.NewRegistry(
		platform.NewFacebookPublisher(),
		platform.NewInstagramPublisher(),
		platform.NewTwitterPublisher(),
		platform.NewLinkedInPublisher(),
		platform.NewTiktokPublisher(),
	)

	notifyRegistry := notify.NewRegistry()
	sink := audit.NewMultiSink(
		audit.NewStoreSink(publishEventRepo),
		audit.NewNotifierSink(notifyRegistry),
	)

	orchestrator := publisher.NewOrchestrator(
		postRepo,
		postTargetRepo,
		socialAccountRepo,
		postMediaRepo,
		mediaAssetRepo,
		registry,
		sink,
		cfg.Publishing,
		[]byte(cfg.SecretKey),
	)

	sched := scheduler.NewScheduler(postRepo, postTargetRepo, cronLogRepo, orchestrator, cfg.Publishing)

	authMiddleware := middleware.NewAuthMiddleware(*cfg, apiKeyService)

	auth := handlers.NewAuthHandler(*cfg, authService)
	app.Get("/login", auth.Login)
	app.Get("/login/callback", auth.LoginCallbackHandler)

	platformHandler := handlers.NewPlatformHandler(accountService, connectService, *cfg)
	app.Get("/auth/:platform", platformHandler.AddSocialAccount)
	app.Get("/auth/:platform/callback", platformHandler.CallbackHandler)

	cronHandler := handlers.NewCronHandler(sched, *cfg)
	app.Get("/cron/publish-scheduler", cronHandler.RunPublishScheduler)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	user := handlers.NewUserHandler(userService)
	api.Get("/user/info", user.GetUserInfo)

	apiKeys := handlers.NewApiKeyHandler(apiKeyService)
	api.Post("/api_key/new", apiKeys.CreateApiKey)
	api.Get("/api_key/list", apiKeys.ListKeys)
	api.Post("/api_key/remove", apiKeys.RemoveAPIKey)

	post := handlers.NewPostHandler(postService, client)
	api.Post("/posts/create", post.CreatePost)
	api.Get("/posts", post.ListPosts)
	api.Post("/posts/remove", post.RemovePost)
	api.Post("/posts/retry", post.RetryTarget)

	// social accounts api routes
	api.Get("/accounts", platformHandler.ListSocialAccounts)
	api.Post("/accounts/remove", platformHandler.DeleteSocialAccount)

	events := handlers.NewEventsHandler(notifyRegistry, publishEventRepo)
	api.Get("/events", events.ListEvents)
	api.Get("/events/stream", events.StreamEvents)

	// cron jobs
	refreshTokenJob := job.NewTokenRefreshJob(socialAccountRepo, connectService)

	//queue
	queueW := queue.NewQueue(orchestrator)

	c := cron.New()
	c.AddFunc("@every 00h01m00s", func() {
		if _, err := sched.RunCycle(context.Background(), time.Now()); err != nil {
			log.Printf("scheduler cycle failed: %v", err)
		}
	})
	c.AddFunc("@every 00h10m00s", refreshTokenJob.RefreshTokens)
	c.AddFunc("@every 01h00m00s", func() {
		if err := sched.Cleanup(context.Background(), time.Now()); err != nil {
			log.Printf("scheduler cleanup failed: %v", err)
		}
	})
	c.Start()

	go func() {
		server := asynq.NewServer(redisConn, asynq.Config{
			Concurrency: cfg.Publishing.Concurrency,
		})

		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypePublishPost, queueW.HandlePublishPostTask)

		log.Println("Starting the Asynq server...")
		if err := server.Run(mux); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	go func() {
		if err := app.Listen(":3000"); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Println("Server is running on http://localhost:3000")

	gracefulShutdown(app, db)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	closeDB(db)
	log.Println("Server shutdown complete.")
}
