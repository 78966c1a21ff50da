package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/bug-analyzer/backend/internal/ado"
	"github.com/bug-analyzer/backend/internal/api/handlers"
	"github.com/bug-analyzer/backend/internal/cache/redis"
	"github.com/bug-analyzer/backend/internal/duplicate"
	"github.com/bug-analyzer/backend/internal/embedding"
	"github.com/bug-analyzer/backend/internal/ingestion"
	"github.com/bug-analyzer/backend/internal/middleware/ratelimit"
	"github.com/bug-analyzer/backend/internal/middleware/security"
	"github.com/bug-analyzer/backend/internal/middleware/validation"
	"github.com/bug-analyzer/backend/internal/rootcause"
	"github.com/bug-analyzer/backend/internal/similarity"
	"github.com/bug-analyzer/backend/internal/storage/sqlite"
	"github.com/bug-analyzer/backend/internal/vector/milvus"
	"github.com/bug-analyzer/backend/pkg/config"
	appLogger "github.com/bug-analyzer/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting Bug Analyzer API Server")

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(
			fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			cfg.Redis.Password,
			cfg.Redis.DB,
			time.Duration(cfg.ADO.CacheTTL)*time.Second,
		)
		if err != nil {
			appLogger.Warn("Redis unavailable, continuing without cache", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	var milvusClient *milvus.Client
	if cfg.Milvus.Enabled {
		milvusClient, err = milvus.NewClient(cfg.Milvus.Endpoint, cfg.Milvus.CollectionName, cfg.Milvus.VectorDim)
		if err != nil {
			appLogger.Warn("Milvus unavailable, corpus search disabled", zap.Error(err))
			milvusClient = nil
		} else {
			defer milvusClient.Close()
			if err := milvusClient.CreateCollection(context.Background()); err != nil {
				appLogger.Fatal("Failed to create collection", zap.Error(err))
			}
		}
	}

	adoClient := ado.NewClient(
		cfg.ADO.OrgURL,
		cfg.ADO.PAT,
		time.Duration(cfg.ADO.TimeoutSec)*time.Second,
		redisClient,
	)

	embedClient := embedding.NewClient(cfg.Embedding.APIKey, cfg.Embedding.Model, cfg.Embedding.Dim, redisClient)

	var remote *similarity.RemoteLLM
	if cfg.OpenArena.Enabled {
		remote = similarity.NewRemoteLLM(cfg.OpenArena.BaseURL, cfg.OpenArena.Token, cfg.OpenArena.WorkflowID)
	}

	strategies := similarity.Chain(
		remote,
		similarity.NewEmbedding(embedClient),
		similarity.NewLexical(),
	)

	detector := duplicate.NewDetector(strategies)
	classifier := rootcause.NewClassifier()

	var indexer *ingestion.Indexer
	if milvusClient != nil && embedClient != nil {
		indexer = ingestion.NewIndexer(adoClient, embedClient, milvusClient, sqliteClient)
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Reviewer",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		IsDevelopment: cfg.Logging.Level == "debug",
	}))

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: 60,
		Logger:               appLogger.GetLogger(),
	})
	defer limiter.Stop()
	app.Use(limiter.Middleware())

	app.Use(validation.Middleware(validation.Config{
		Logger: appLogger.GetLogger(),
	}))

	duplicateHandler := handlers.NewDuplicateHandler(adoClient, detector, cfg.Analysis.SimilarityThreshold, cfg.Analysis.MaxResults)
	analyticsHandler := handlers.NewAnalyticsHandler(adoClient, classifier, sqliteClient)
	commentHandler := handlers.NewCommentHandler(adoClient, cfg.Analysis.MinCommentScore)
	collaborationHandler := handlers.NewCollaborationHandler(sqliteClient)
	indexHandler := handlers.NewIndexHandler(indexer, embedClient, milvusClient)
	wsHandler := handlers.NewWebSocketHandler(indexer)

	api := app.Group("/api/v1")

	api.Post("/duplicates/find-duplicates", duplicateHandler.FindDuplicates)
	api.Get("/duplicates/find-duplicates", duplicateHandler.FindDuplicatesGet)

	api.Get("/analytics/root-causes", analyticsHandler.RootCauses)
	api.Get("/analytics/quality-metrics", analyticsHandler.QualityMetrics)
	api.Get("/analytics/trends", analyticsHandler.Trends)

	api.Get("/bugs/:id/comments", commentHandler.BugComments)
	api.Post("/comments/score", commentHandler.ScoreComment)

	api.Post("/collaboration/review-duplicate", collaborationHandler.ReviewDuplicate)
	api.Get("/collaboration/review-history", collaborationHandler.ReviewHistory)
	api.Get("/collaboration/team-stats", collaborationHandler.TeamStats)

	api.Post("/index/index-bugs", indexHandler.IndexBugs)
	api.Post("/index/similar", indexHandler.Similar)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/progress", websocket.New(wsHandler.HandleProgress))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":            "ready",
			"ado_configured":    adoClient.Configured(),
			"remote_inference":  remote.Configured(),
			"embedding_enabled": embedClient != nil,
			"vector_enabled":    milvusClient != nil,
			"cache_enabled":     redisClient != nil,
			"strategies":        len(strategies),
		})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
