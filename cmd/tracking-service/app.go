package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	_ "github.com/lib/pq" // PostgreSQL driver

	"parttrack/internal/broker"
	"parttrack/internal/config"
	"parttrack/internal/config_handler"
	"parttrack/internal/constants"
	"parttrack/internal/logger"
	"parttrack/internal/tracking"
	"parttrack/pkg/bootstrap"
	"parttrack/pkg/health"
	"parttrack/pkg/logging"
	"parttrack/pkg/metrics"
	"parttrack/pkg/middleware"
	"parttrack/pkg/models"
	"parttrack/pkg/retry"
	"parttrack/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	db             *sql.DB
	service        *tracking.Service
	server         *http.Server
	tracerProvider *tracing.TracerProvider
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName("tracking-service")
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.initDatabase(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	a.initService()

	if err := a.InitBroker("tracking-service"); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	tp, err := tracing.Init(a.Config.Tracing, "tracking-service")
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterTrackingMetrics()
	metrics.RegisterBrokerMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	if err := a.initHTTPServer(); err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	return nil
}

func (a *App) initDatabase(ctx context.Context) error {
	db, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return err
	}
	a.db = db
	return nil
}

func (a *App) initService() {
	repo := tracking.NewCircuitBreakerRepository(tracking.NewRepository(a.db), a.Config.CircuitBreaker)
	a.service = tracking.NewService(repo, a.Config.Tracking, a.Logger)
}

func (a *App) initHTTPServer() error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.Config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware("tracking-service"))
	}

	router.Use(middleware.RecoveryMiddleware(a.Logger))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(a.Logger))
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.JWTAuth(a.Config.Auth))

	handler := tracking.NewHandler(a.service, a.Logger)
	handler.RegisterRoutes(router)

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewPostgreSQLChecker(a.db))

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

	configConsumer, err := broker.NewConsumer(a.Config.Broker, a.Logger)
	if err != nil {
		configCtx := logging.WithServiceName(ctx, "tracking-service")
		a.Logger.WarnwCtx(configCtx, "Failed to create config event consumer, event-driven reload disabled",
			"error", err,
		)
	} else {
		configConsumer.SetServiceName("tracking-service")
		defer configConsumer.Close()
		configEventHandler := config_handler.NewHandlerWithReloader(models.ServiceTypeTracking, a.service, a.Logger)

		g.Go(func() error {
			configCtx := logging.WithServiceName(gCtx, "tracking-service")
			a.Logger.InfowCtx(configCtx, "Starting config update event consumer",
				"topic", a.Config.Broker.Kafka.ConfigUpdateTopic,
			)
			return configConsumer.Consume(gCtx, a.Config.Broker.Kafka.ConfigUpdateTopic, func(cCtx context.Context, key string, value []byte) error {
				return configEventHandler.HandleConfigUpdateEvent(cCtx, value)
			})
		})
	}

	g.Go(func() error {
		return a.service.StartReloader(gCtx)
	})

	inputTopic := a.Config.Broker.Kafka.InputTopic
	if inputTopic == "" {
		inputTopic = constants.DefaultPartsTopic
	}
	g.Go(func() error {
		return a.Consumer.Consume(gCtx, inputTopic, a.handlePartEvent)
	})

	return g.Wait()
}

func (a *App) handlePartEvent(ctx context.Context, key string, value []byte) error {
	var event models.PartEvent
	if err := json.Unmarshal(value, &event); err != nil {
		// A payload that does not decode will not decode on a retry either.
		return retry.Permanent(fmt.Errorf("failed to unmarshal part event: %w", err))
	}

	decisions, err := a.service.EvaluateAll(ctx, &event.Part)

	outputTopic := a.Config.Broker.Kafka.OutputTopic
	if outputTopic == "" {
		outputTopic = constants.DefaultDecisionsTopic
	}

	published := 0
	for _, decision := range decisions {
		if !decision.Tracked {
			continue
		}

		decisionEvent := models.TrackingDecisionEvent{
			ID:             uuid.New().String(),
			PartID:         decision.PartID,
			ArticleCode:    event.Part.ArticleCode,
			WorkstationID:  decision.WorkstationID,
			Tracked:        decision.Tracked,
			MatchedRuleID:  decision.MatchedRuleID,
			RuleSetVersion: decision.RuleSetVersion,
			EvaluatedAt:    decision.EvaluatedAt,
			TraceID:        tracing.TraceIDFromContext(ctx),
		}

		if pubErr := a.Producer.Publish(ctx, outputTopic, decision.WorkstationID, decisionEvent); pubErr != nil {
			a.Logger.ErrorwCtx(ctx, "Failed to publish decision event",
				"part_id", decision.PartID,
				"workstation_id", decision.WorkstationID,
				"error", pubErr,
			)
			if err == nil {
				err = pubErr
			}
			continue
		}
		published++
	}

	a.Logger.InfowCtx(ctx, "Part evaluated",
		"part_id", event.Part.ID,
		"article_code", event.Part.ArticleCode,
		"workstations", len(decisions),
		"tracked", published,
	)

	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx := logging.WithServiceName(ctx, "tracking-service")
	a.Logger.InfowCtx(shutdownCtx, "Shutting down tracking service")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, nil, a.db, nil)...)

		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
