package rest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"go.uber.org/zap"

	"github.com/ledgerline/finance-tracker-backend/internal/domain/values"
	"github.com/ledgerline/finance-tracker-backend/internal/infrastructure/cache"
	"github.com/ledgerline/finance-tracker-backend/internal/infrastructure/config"
	"github.com/ledgerline/finance-tracker-backend/internal/infrastructure/database"
	"github.com/ledgerline/finance-tracker-backend/internal/infrastructure/repository"
	"github.com/ledgerline/finance-tracker-backend/internal/service/ledger"
	"github.com/ledgerline/finance-tracker-backend/internal/service/reporting"
)

// Server owns the HTTP listener and every dependency behind it.
type Server struct {
	config     *config.Config
	httpServer *http.Server
	logger     *slog.Logger
	db         *database.ConnectionPool
}

// NewServer builds the full dependency graph from configuration.
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	zapLogger, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("failed to create infrastructure logger: %w", err)
	}

	db, err := database.NewConnectionPool(ctx, &cfg.Database, zapLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	var reportCache cache.Cache
	if cfg.Redis.Enabled {
		reportCache, err = cache.NewRedisCache(&cfg.Redis, zapLogger)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
	} else {
		reportCache = cache.NewMemoryCache(nil)
	}

	paymentFloor, err := values.NewMoneyFromString(cfg.Ledger.MinimumPaymentFloor)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("invalid minimum payment floor: %w", err)
	}

	cards := repository.NewCardRepository(db.Pool())
	plans := repository.NewPlanRepository(db.Pool())
	uow := repository.NewUnitOfWork(db)

	ledgerSvc := ledger.NewService(uow, cards, plans, logger, nil)
	reportsSvc := reporting.NewService(cards, plans, reportCache, cfg.Reports.CacheTTL, paymentFloor, logger, nil)

	handler := NewHandler(ledgerSvc, reportsSvc, logger)
	router := NewRouter(handler, cfg, logger, func() error {
		checkCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ReadTimeout)
		defer cancel()
		return db.HealthCheck(checkCtx)
	})

	return &Server{
		config: cfg,
		logger: logger,
		db:     db,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}, nil
}

// Start serves until the context is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", slog.Int("port", s.config.Server.Port))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down http server")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.db.Close()
	return nil
}
