package bootstrap

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	publishingservice "letterbox/contexts/newsletter/publishing-service"
	cacheadapter "letterbox/contexts/newsletter/publishing-service/adapters/cache"
	emailadapter "letterbox/contexts/newsletter/publishing-service/adapters/email"
	postgresadapter "letterbox/contexts/newsletter/publishing-service/adapters/postgres"
	"letterbox/contexts/newsletter/publishing-service/application/workers"
	"letterbox/contexts/newsletter/publishing-service/ports"
	"letterbox/internal/platform/cache"
	"letterbox/internal/platform/config"
	"letterbox/internal/platform/db"
	"letterbox/internal/platform/httpserver"
	"letterbox/internal/platform/logging"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	redis    *goredis.Client
	logger   *zap.Logger
}

type WorkerApp struct {
	postgres    *db.Postgres
	redis       *goredis.Client
	worker      workers.IssueDeliveryWorker
	concurrency int
	logger      *zap.Logger
}

type infrastructure struct {
	cfg      config.Config
	logger   *zap.Logger
	postgres *db.Postgres
	redis    *goredis.Client
	repo     *postgresadapter.Repository
	reader   ports.IssueReader
}

func BuildAPI() (*APIApp, error) {
	infra, err := buildInfrastructure("api")
	if err != nil {
		return nil, err
	}
	auth, err := httpserver.NewAuthenticator(infra.cfg.JWTSecret)
	if err != nil {
		infra.close()
		return nil, errors.New("JWT_SECRET is required")
	}

	module := infra.module(nil)
	server := httpserver.New(module, auth, infra.logger, normalizeAddr(infra.cfg.HTTPPort))
	return &APIApp{
		server:   server,
		postgres: infra.postgres,
		redis:    infra.redis,
		logger:   infra.logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	infra, err := buildInfrastructure("worker")
	if err != nil {
		return nil, err
	}
	sender, err := emailadapter.NewClient(emailadapter.Config{
		BaseURL:            infra.cfg.EmailBaseURL,
		Sender:             infra.cfg.EmailSender,
		AuthorizationToken: infra.cfg.EmailAuthToken,
		Timeout:            infra.cfg.EmailTimeout,
	})
	if err != nil {
		infra.close()
		return nil, err
	}

	module := infra.module(sender)
	return &WorkerApp{
		postgres:    infra.postgres,
		redis:       infra.redis,
		worker:      module.Worker,
		concurrency: infra.cfg.WorkerConcurrency,
		logger:      infra.logger,
	}, nil
}

// BuildMigrator connects to postgres for a one-shot schema migration.
func BuildMigrator() (*db.Postgres, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.LogMode, cfg.ServiceName)
	if err != nil {
		return nil, nil, err
	}
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, nil, errors.New("POSTGRES_DSN is required")
	}
	pg, err := db.Connect(cfg.PostgresDSN, db.PoolConfig{MaxOpenConns: 2})
	if err != nil {
		return nil, nil, err
	}
	return pg, logger.With(zap.String("process", "migrate")), nil
}

func buildInfrastructure(process string) (*infrastructure, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	baseLogger, err := logging.New(cfg.LogMode, cfg.ServiceName)
	if err != nil {
		return nil, err
	}
	logger := baseLogger.With(zap.String("process", process))
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN, db.PoolConfig{
		MaxOpenConns:    cfg.WorkerConcurrency + 10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
	})
	if err != nil {
		return nil, err
	}
	if cfg.RunMigrations {
		if err := pg.Migrate(logger); err != nil {
			_ = pg.Close()
			return nil, err
		}
	}

	infra := &infrastructure{
		cfg:      cfg,
		logger:   logger,
		postgres: pg,
		repo:     postgresadapter.NewRepository(pg.DB, logger),
	}
	infra.reader = infra.repo

	if strings.TrimSpace(cfg.RedisAddr) != "" {
		client, err := cache.Connect(context.Background(), cache.Config{Addr: cfg.RedisAddr})
		if err != nil {
			infra.close()
			return nil, err
		}
		infra.redis = client
		infra.reader = cacheadapter.NewIssueCache(infra.repo, client, cacheadapter.DefaultIssueTTL, logger)
	}
	return infra, nil
}

func (i *infrastructure) module(sender ports.EmailSender) publishingservice.Module {
	return publishingservice.NewModule(publishingservice.Dependencies{
		Records:        i.repo,
		Transactions:   i.repo,
		Issues:         i.repo,
		IssueReader:    i.reader,
		Deliveries:     i.repo,
		Subscribers:    i.repo,
		Email:          sender,
		IDGenerator:    postgresadapter.UUIDGenerator{},
		IdempotencyTTL: i.cfg.IdempotencyTTL,
		Worker: workers.WorkerConfig{
			IdleInterval:  i.cfg.WorkerIdleInterval,
			ErrorInterval: i.cfg.WorkerErrorInterval,
			BaseURL:       i.cfg.AppBaseURL,
		},
		Logger: i.logger,
	})
}

func (i *infrastructure) close() {
	if i.redis != nil {
		_ = i.redis.Close()
	}
	if i.postgres != nil {
		_ = i.postgres.Close()
	}
}

func (a *APIApp) Run(ctx context.Context) error {
	a.logger.Info("api app started",
		zap.String("event", "bootstrap_api_started"),
		zap.String("module", "internal/app/bootstrap"),
		zap.String("layer", "platform"),
	)
	return a.server.Run(ctx)
}

func (a *APIApp) Close() error {
	_ = a.logger.Sync()
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

// Run starts the configured number of delivery loops and blocks until ctx
// is cancelled or one of them fails.
func (w *WorkerApp) Run(ctx context.Context) error {
	w.logger.Info("worker app started",
		zap.String("event", "bootstrap_worker_started"),
		zap.String("module", "internal/app/bootstrap"),
		zap.String("layer", "platform"),
		zap.Int("concurrency", w.concurrency),
	)

	group, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < w.concurrency; i++ {
		group.Go(func() error {
			return w.worker.RunForever(groupCtx)
		})
	}
	return group.Wait()
}

// Drain processes the queue until it is empty and reports how many rows
// were handled.
func (w *WorkerApp) Drain(ctx context.Context) (int, error) {
	var processed atomic.Int64
	group, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < w.concurrency; i++ {
		group.Go(func() error {
			n, err := w.worker.Drain(groupCtx)
			processed.Add(int64(n))
			return err
		})
	}
	err := group.Wait()
	total := int(processed.Load())
	w.logger.Info("delivery queue drained",
		zap.String("event", "bootstrap_worker_drained"),
		zap.String("module", "internal/app/bootstrap"),
		zap.String("layer", "platform"),
		zap.Int("processed", total),
	)
	return total, err
}

func (w *WorkerApp) Close() error {
	_ = w.logger.Sync()
	if w.redis != nil {
		_ = w.redis.Close()
	}
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
