package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/minio/minio-go/v7"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	_ "github.com/lib/pq" // PostgreSQL driver

	"parttrack/internal/config"
	"parttrack/internal/config_handler"
	"parttrack/internal/constants"
	"parttrack/internal/importer"
	"parttrack/internal/logger"
	"parttrack/pkg/bootstrap"
	"parttrack/pkg/health"
	"parttrack/pkg/logging"
	"parttrack/pkg/metrics"
	"parttrack/pkg/middleware"
	"parttrack/pkg/models"
	"parttrack/pkg/tracing"
)

const cacheMetricsInterval = 30 * time.Second

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	db             *sql.DB
	redisClient    *redis.Client
	mongoClient    *mongo.Client
	minioClient    *minio.Client
	service        *importer.Service
	profileStore   *importer.ProfileStore
	archiver       *importer.Archiver
	server         *http.Server
	tracerProvider *tracing.TracerProvider
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName("import-service")
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.initDatabases(ctx); err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}

	if err := a.InitBroker("import-service"); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	if err := a.initService(ctx); err != nil {
		return fmt.Errorf("failed to initialize service: %w", err)
	}

	tp, err := tracing.Init(a.Config.Tracing, "import-service")
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterImportMetrics()
	metrics.RegisterBrokerMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	if err := a.initHTTPServer(); err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	return nil
}

func (a *App) initDatabases(ctx context.Context) error {
	db, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return err
	}
	a.db = db

	redisClient, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		a.Logger.WarnwCtx(ctx, "Redis connection failed, duplicate rows will not be suppressed", "error", err)
	} else if redisClient == nil {
		a.Logger.InfowCtx(ctx, "Redis not configured, duplicate rows will not be suppressed")
	}
	a.redisClient = redisClient

	mongoClient, err := a.dbConnector.InitMongoDB(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if mongoClient == nil {
		return fmt.Errorf("mongodb uri is required for import profiles")
	}
	a.mongoClient = mongoClient

	return nil
}

func (a *App) initService(ctx context.Context) error {
	dbName := a.Config.Database.MongoDB.Database
	if dbName == "" {
		dbName = constants.DefaultMongoDBName
	}
	mongoDB := a.mongoClient.Database(dbName)

	a.profileStore = importer.NewProfileStore(importer.NewProfileRepository(mongoDB), a.Logger)

	transformer, err := importer.NewTransformer()
	if err != nil {
		return fmt.Errorf("failed to create transformer: %w", err)
	}

	var dedupRepo importer.DedupRepository
	if a.redisClient != nil {
		dedupRepo = importer.NewCircuitBreakerRepository(
			importer.NewDedupRepository(a.redisClient),
			a.Config.CircuitBreaker,
		)
	}
	deduper := importer.NewDeduper(dedupRepo, a.Config.Import.Dedup, a.Logger)

	minioClient, err := a.dbConnector.InitMinIO()
	if err != nil {
		a.Logger.WarnwCtx(ctx, "MinIO connection failed, uploads will not be archived", "error", err)
	}
	a.minioClient = minioClient
	bucket := a.Config.MinIO.Bucket
	if bucket == "" {
		bucket = constants.DefaultImportBucket
	}
	a.archiver = importer.NewArchiver(minioClient, bucket, a.Logger)
	if err := a.archiver.EnsureBucket(ctx); err != nil {
		a.Logger.WarnwCtx(ctx, "Failed to ensure archive bucket, uploads may not be archived", "error", err)
	}

	partsTopic := a.Config.Broker.Kafka.OutputTopic
	if partsTopic == "" {
		partsTopic = constants.DefaultPartsTopic
	}
	events := importer.NewEventPublisher(a.Producer, partsTopic, a.Config.Broker.Kafka.Retry, a.Logger)

	a.service = importer.NewService(
		importer.NewRepository(a.db),
		a.profileStore,
		transformer,
		deduper,
		a.archiver,
		events,
		a.Config.Import,
		a.Logger,
	)

	return nil
}

func (a *App) initHTTPServer() error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.Config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware("import-service"))
	}

	router.Use(middleware.RecoveryMiddleware(a.Logger))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(a.Logger))
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.JWTAuth(a.Config.Auth))

	// Spool oversized uploads to disk instead of memory.
	router.MaxMultipartMemory = 8 << 20

	handler := importer.NewHandler(a.service, a.Logger)
	handler.RegisterRoutes(router)

	// Redis and MinIO only degrade the service: imports still run without
	// dedup or archiving. Postgres and the profile store are load-bearing.
	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewPostgreSQLChecker(a.db))
	healthRegistry.Register(health.NewMongoDBChecker(a.mongoClient))
	if a.redisClient != nil {
		healthRegistry.RegisterOptional(health.NewRedisChecker(a.redisClient))
	}
	if a.minioClient != nil {
		bucket := a.Config.MinIO.Bucket
		if bucket == "" {
			bucket = constants.DefaultImportBucket
		}
		healthRegistry.RegisterOptional(health.NewMinIOChecker(a.minioClient, bucket))
	}

	router.GET("/health", func(c *gin.Context) {
		h := healthRegistry.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(a.Config.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(a.Config.Server.WriteTimeoutSeconds) * time.Second,
	}

	return nil
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Stop the listener when the group winds down, otherwise g.Wait would
	// block on the serve goroutine forever.
	g.Go(func() error {
		<-gCtx.Done()
		serverCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(serverCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown error: %w", err)
		}
		return gCtx.Err()
	})

	if a.Config.Broker.Kafka.ConfigUpdateTopic != "" {
		configEventHandler := config_handler.NewHandlerWithInvalidator(models.ServiceTypeImport, a.profileStore, a.Logger)

		g.Go(func() error {
			configCtx := logging.WithServiceName(gCtx, "import-service")
			a.Logger.InfowCtx(configCtx, "Starting config update event consumer",
				"topic", a.Config.Broker.Kafka.ConfigUpdateTopic,
			)
			return a.Consumer.Consume(gCtx, a.Config.Broker.Kafka.ConfigUpdateTopic, func(cCtx context.Context, key string, value []byte) error {
				return configEventHandler.HandleConfigUpdateEvent(cCtx, value)
			})
		})
	}

	g.Go(func() error {
		a.service.StartCacheMetricsUpdater(gCtx, cacheMetricsInterval)
		return gCtx.Err()
	})

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx := logging.WithServiceName(ctx, "import-service")
	a.Logger.InfowCtx(shutdownCtx, "Shutting down import service")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, a.redisClient, a.db, a.mongoClient)...)

		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
