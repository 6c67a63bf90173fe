package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arena-labs/arena-go/internal/evaluation"
	"github.com/arena-labs/arena-go/internal/platform/env"
	"github.com/arena-labs/arena-go/internal/platform/httpserver"
	"github.com/arena-labs/arena-go/internal/platform/postgres"
	"github.com/arena-labs/arena-go/internal/platform/queue"
	pgrepo "github.com/arena-labs/arena-go/internal/repo/postgres"
	"github.com/arena-labs/arena-go/internal/storage/objectstore"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx := context.Background()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := env.String("ARENA_EVALUATOR_HTTP_ADDR", ":8080")
	shutdownTimeout, err := env.Duration("ARENA_EVALUATOR_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		logger.Error("invalid env", "error", err)
		os.Exit(2)
	}
	workers, err := env.Int("ARENA_EVALUATOR_WORKERS", 4)
	if err != nil || workers < 1 {
		logger.Error("invalid worker count", "error", err)
		os.Exit(2)
	}
	signTTL, err := env.Duration("ARENA_SIGN_TTL", objectstore.DefaultSignTTL)
	if err != nil {
		logger.Error("invalid sign ttl", "error", err)
		os.Exit(2)
	}
	defaultImage := env.String("ARENA_DEFAULT_DOCKER_IMAGE", "arena/compute-worker:latest")

	dbCfg, err := postgres.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid database config", "error", err)
		os.Exit(2)
	}
	db, err := postgres.Open(ctx, dbCfg)
	if err != nil {
		logger.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	storeCfg, err := objectstore.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid object store config", "error", err)
		os.Exit(2)
	}
	store, err := objectstore.New(ctx, storeCfg, logger)
	if err != nil {
		logger.Error("object store unavailable", "error", err)
		os.Exit(1)
	}

	queueCfg, err := queue.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid queue config", "error", err)
		os.Exit(2)
	}
	rdb, err := queue.Open(ctx, queueCfg)
	if err != nil {
		logger.Error("redis unavailable", "error", err)
		os.Exit(1)
	}
	defer func() { _ = rdb.Close() }()
	q := queue.New(rdb, queueCfg.KeyPrefix, logger)

	routes, err := queue.LoadRoutes(env.String("ARENA_QUEUE_ROUTES_FILE", ""))
	if err != nil {
		logger.Error("invalid queue routes", "error", err)
		os.Exit(2)
	}

	dispatcher := evaluation.NewDispatcher(store, q, routes, evaluation.DispatcherConfig{
		DefaultDockerImage: defaultImage,
		SignTTL:            signTTL,
	}, logger)

	svc := evaluation.NewService(evaluation.ServiceParams{
		Submissions:  pgrepo.NewSubmissionStore(db, logger),
		Competitions: pgrepo.NewCompetitionStore(db),
		Scores:       pgrepo.NewScoreStore(db),
		Leaderboard:  pgrepo.NewLeaderboardStore(db),
		Jobs:         pgrepo.NewJobStore(db),
		Stats:        pgrepo.NewStatsStore(db),
		Metadata:     pgrepo.NewMetadataStore(db),
		Store:        store,
		Dispatcher:   dispatcher,
		Publisher:    q,
		Callbacks:    evaluation.QueueCallbackSink{Pub: q},
		Notifier:     evaluation.LogNotifier{Logger: logger},
		SignTTL:      signTTL,
		Logger:       logger,
	})
	if svc == nil {
		logger.Error("evaluation service wiring incomplete")
		os.Exit(2)
	}

	go q.Consume(ctx, evaluation.QueueSiteWorker, "", workers, svc.ConsumeEvaluateRequest)
	go q.Consume(ctx, evaluation.QueueSubmissionUpdates, "", workers, svc.ConsumeCallback)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", httpserver.Healthz("evaluator"))
	mux.HandleFunc(
		"/readyz",
		httpserver.ReadyzWithChecks(
			"evaluator",
			httpserver.ReadinessCheck{
				Name: "postgres",
				Check: func(ctx context.Context) error {
					checkCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
					defer cancel()
					return db.PingContext(checkCtx)
				},
			},
			httpserver.ReadinessCheck{
				Name: "redis",
				Check: func(ctx context.Context) error {
					checkCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
					defer cancel()
					return rdb.Ping(checkCtx).Err()
				},
			},
		),
	)

	api := newEvaluatorAPI(logger, q, svc)
	api.register(mux)

	cfg := httpserver.Config{
		Service:         "evaluator",
		Addr:            addr,
		ShutdownTimeout: shutdownTimeout,
	}

	if err := httpserver.Run(ctx, logger, cfg, httpserver.Wrap(logger, "evaluator", mux)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
