package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/RubachokBoss/plagiarism-checker/plagiarism-service/internal/config"
	"github.com/RubachokBoss/plagiarism-checker/plagiarism-service/internal/delivery/httpd"
	"github.com/RubachokBoss/plagiarism-checker/plagiarism-service/internal/repository"
	"github.com/RubachokBoss/plagiarism-checker/plagiarism-service/internal/service"
	"github.com/RubachokBoss/plagiarism-checker/plagiarism-service/internal/service/analyzer"
	"github.com/RubachokBoss/plagiarism-checker/plagiarism-service/internal/worker"
	"github.com/RubachokBoss/plagiarism-checker/plagiarism-service/internal/worker/queue"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type App struct {
	server           *http.Server
	logger           zerolog.Logger
	config           *config.Config
	db               *sql.DB
	redis            *redis.Client
	rabbitMQRepo     repository.RabbitMQRepository
	generationPool   *worker.WorkerPool
	tasks            service.TaskManager
	submissionWorker worker.SubmissionWorker
	cancel           context.CancelFunc
}

func New(cfg *config.Config, log zerolog.Logger, db *sql.DB) (*App, error) {
	a := &App{
		logger: log,
		config: cfg,
		db:     db,
	}

	submissionRepo := repository.NewSubmissionRepository(db, log)
	reportRepo := repository.NewReportRepository(db, log)
	auditRepo := repository.NewAuditRepository(db, log)
	settingsRepo := repository.NewSettingsRepository(db, log)

	settings := service.NewSettingsProvider(settingsRepo, service.Settings{
		SimilarityThreshold: cfg.Analysis.SimilarityThreshold,
		FastCompareMode:     cfg.Analysis.FastCompareMode,
	}, log)

	// Interfaces stay nil unless their backend is enabled.
	var (
		statusRepo     repository.TaskStatusRepository
		eventPublisher service.ReportEventPublisher
		flagPublisher  worker.FlagPublisher
		lock           = service.NewLocalGenerationLock()
	)

	if cfg.Redis.Enabled {
		client, err := repository.NewRedisClient(context.Background(), cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
		if err != nil {
			return nil, err
		}
		a.redis = client

		statusRepo = repository.NewTaskStatusRepository(client, cfg.Redis.StatusTTL, log)
		// The lock outlives the longest allowed generation. It is renewed when
		// the task starts running, so queue time does not count against it.
		lock = service.NewRedisGenerationLock(repository.NewRedisLocker(client, cfg.Analysis.Timeout+time.Minute, log))
	}

	var rabbitPublisher *queue.EventPublisher
	if cfg.RabbitMQ.Enabled {
		rabbitMQRepo, err := repository.NewRabbitMQRepository(cfg.RabbitMQ.URL, log)
		if err != nil {
			a.closeBackends()
			return nil, err
		}
		a.rabbitMQRepo = rabbitMQRepo

		if err := rabbitMQRepo.SetupQueue(
			cfg.RabbitMQ.Exchange,
			cfg.RabbitMQ.QueueName,
			cfg.RabbitMQ.SubmissionCreatedKey,
			cfg.RabbitMQ.ReportRequestedKey,
		); err != nil {
			a.closeBackends()
			return nil, err
		}

		rabbitPublisher = queue.NewEventPublisher(
			queue.NewRabbitMQPublisher(rabbitMQRepo.Channel(), log),
			cfg.RabbitMQ.Exchange,
			queue.EventRoutingKeys{
				SubmissionFlagged: cfg.RabbitMQ.SubmissionFlaggedKey,
				ReportCompleted:   cfg.RabbitMQ.ReportCompletedKey,
				ReportFailed:      cfg.RabbitMQ.ReportFailedKey,
			},
			log,
		)
		eventPublisher = rabbitPublisher
		flagPublisher = rabbitPublisher
	}

	engine := analyzer.NewPlagiarismEngine(
		analyzer.NewSimilarityScorer(analyzer.ScorerConfig{
			JaccardWeight:      cfg.Analysis.JaccardWeight,
			LCSWeight:          cfg.Analysis.LCSWeight,
			MinTileLength:      cfg.Analysis.MinTileLength,
			MaxHighlightTokens: cfg.Analysis.MaxHighlightTokens,
		}),
		analyzer.NewCandidateSelector(analyzer.SelectorConfig{
			ExhaustiveBelow: cfg.Analysis.ExhaustiveBelow,
			MinOverlap:      cfg.Analysis.MinOverlap,
			KGramSize:       cfg.Analysis.KGramSize,
			WindowSize:      cfg.Analysis.WindowSize,
		}, log),
		log,
		analyzer.EngineConfig{Workers: cfg.Analysis.CompareWorkers},
	)

	coordinator := service.NewReportCoordinator(
		submissionRepo,
		reportRepo,
		engine,
		settings,
		service.NewAuditLogger(auditRepo, log),
		log,
		service.CoordinatorConfig{BatchSize: cfg.Analysis.BatchSize},
	)

	a.generationPool = worker.NewWorkerPool(cfg.Analysis.MaxWorkers, log)

	a.tasks = service.NewTaskManager(
		coordinator,
		lock,
		a.generationPool,
		statusRepo,
		eventPublisher,
		log,
		service.TaskManagerConfig{
			Timeout:        cfg.Analysis.Timeout,
			StatusInterval: cfg.Analysis.StatusInterval,
			Retention:      cfg.Analysis.TaskRetention,
		},
	)

	if a.rabbitMQRepo != nil {
		a.submissionWorker = worker.NewSubmissionWorker(
			worker.NewWorkerPool(cfg.RabbitMQ.PrefetchCount, log),
			queue.NewRabbitMQConsumer(
				a.rabbitMQRepo.Channel(),
				cfg.RabbitMQ.QueueName,
				cfg.RabbitMQ.ConsumerTag,
				cfg.RabbitMQ.PrefetchCount,
				log,
			),
			queue.RoutingKeys{
				SubmissionCreated: cfg.RabbitMQ.SubmissionCreatedKey,
				ReportRequested:   cfg.RabbitMQ.ReportRequestedKey,
			},
			coordinator,
			a.tasks,
			settings,
			flagPublisher,
			log,
		)
	}

	health := httpd.HealthDeps{
		Database: reportRepo.Ping,
		Pool:     a.generationPool,
	}
	if a.submissionWorker != nil {
		health.Consumer = a.submissionWorker
	}
	if a.redis != nil {
		health.Redis = func(ctx context.Context) error { return a.redis.Ping(ctx).Err() }
	}

	handler := httpd.NewHandler(coordinator, service.NewReportService(coordinator, settings, log), a.tasks, health, log)

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(httpd.RequestLogger(log))
	router.Use(httpd.Recovery(log))
	router.Use(middleware.Timeout(60 * time.Second))
	router.Use(httpd.NewCORS(
		cfg.CORS.AllowedOrigins,
		cfg.CORS.AllowedMethods,
		cfg.CORS.AllowedHeaders,
		cfg.CORS.ExposedHeaders,
		cfg.CORS.AllowCredentials,
		cfg.CORS.MaxAge,
	))

	var apiMiddlewares []func(http.Handler) http.Handler
	if cfg.Auth.Enabled {
		apiMiddlewares = append(apiMiddlewares, httpd.JWTAuth(cfg.Auth.JWTSecret, cfg.Auth.Issuer))
	} else {
		apiMiddlewares = append(apiMiddlewares, httpd.HeaderActor)
	}
	if cfg.RateLimit.Enabled {
		limiter := httpd.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
		apiMiddlewares = append(apiMiddlewares, limiter.Middleware)
	}

	handler.RegisterRoutes(router, apiMiddlewares...)

	a.server = &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return a, nil
}

// Run starts the background workers and blocks serving HTTP.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if err := a.generationPool.Start(ctx); err != nil {
		return fmt.Errorf("failed to start generation pool: %w", err)
	}

	if a.submissionWorker != nil {
		if err := a.submissionWorker.Start(ctx); err != nil {
			a.logger.Error().Err(err).Msg("Failed to start submission worker")
			return err
		}
	}

	a.logger.Info().Msgf("Starting plagiarism service on %s", a.config.Server.Address)
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info().Msg("Shutting down plagiarism service...")

	serverErr := a.server.Shutdown(ctx)
	if serverErr != nil {
		a.logger.Error().Err(serverErr).Msg("Failed to shutdown HTTP server")
	}

	if a.cancel != nil {
		a.cancel()
	}

	if a.submissionWorker != nil {
		if err := a.submissionWorker.Stop(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to stop submission worker")
		}
	}

	a.tasks.Shutdown()
	if err := a.generationPool.Stop(); err != nil {
		a.logger.Error().Err(err).Msg("Failed to stop generation pool")
	}

	a.closeBackends()

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close database connection")
		}
	}

	a.logger.Info().Msg("Plagiarism service stopped")
	return serverErr
}

func (a *App) closeBackends() {
	if a.rabbitMQRepo != nil {
		if err := a.rabbitMQRepo.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close RabbitMQ connection")
		}
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close Redis connection")
		}
	}
}
