package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-tourbook/internal/app/domain/booking"
	"github.com/FACorreiaa/go-tourbook/internal/app/middleware"
	database "github.com/FACorreiaa/go-tourbook/internal/db"
	"github.com/FACorreiaa/go-tourbook/internal/pkg/config"
)

// Server holds the long-lived connections the HTTP API depends on.
type Server struct {
	cfg       *config.Config
	logger    *zap.Logger
	dbPool    *pgxpool.Pool
	redis     *redis.Client
	publisher booking.EventPublisher
	router    http.Handler
}

// New connects to Postgres (required), Redis and RabbitMQ (both optional).
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logger,
	}

	dbPool, err := s.setupDatabase(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to setup database: %w", err)
	}
	s.dbPool = dbPool

	s.setupRedis(ctx)
	s.setupPublisher()

	return s, nil
}

// setupDatabase initializes the database connection and runs migrations
func (s *Server) setupDatabase(ctx context.Context) (*pgxpool.Pool, error) {
	s.logger.Info("Setting up database connection and migrations")

	dbConfig, err := database.NewDatabaseConfig(s.cfg, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database configuration: %w", err)
	}

	pool, err := database.Init(dbConfig.ConnectionURL, s.cfg.Repositories.Postgres, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database pool: %w", err)
	}

	if !database.WaitForDB(ctx, pool, s.logger) {
		pool.Close()
		return nil, fmt.Errorf("database at %s:%s is unreachable",
			s.cfg.Repositories.Postgres.Host, s.cfg.Repositories.Postgres.Port)
	}
	s.logger.Info("Connected to Postgres",
		zap.String("host", s.cfg.Repositories.Postgres.Host),
		zap.String("port", s.cfg.Repositories.Postgres.Port),
		zap.String("database", s.cfg.Repositories.Postgres.DB))

	if err = database.RunMigrations(dbConfig.ConnectionURL, s.logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	s.logger.Info("Database setup completed successfully")
	return pool, nil
}

func (s *Server) setupRedis(ctx context.Context) {
	rc := s.cfg.Repositories.Redis
	if !rc.Enabled {
		s.logger.Info("Response cache disabled")
		return
	}
	client, err := middleware.NewRedisClient(ctx, rc.Addr, rc.Password, rc.DB)
	if err != nil {
		s.logger.Warn("Redis unavailable, response cache disabled", zap.String("addr", rc.Addr), zap.Error(err))
		return
	}
	s.redis = client
	s.logger.Info("Connected to Redis", zap.String("addr", rc.Addr))
}

func (s *Server) setupPublisher() {
	if s.cfg.RabbitMQURL == "" {
		s.logger.Info("No RABBITMQ_URL, booking events go to the debug log")
		s.publisher = booking.NewLogPublisher(s.logger)
		return
	}
	publisher, err := booking.NewRabbitPublisher(s.cfg.RabbitMQURL, s.logger)
	if err != nil {
		s.logger.Warn("RabbitMQ unavailable, booking events go to the debug log", zap.Error(err))
		s.publisher = booking.NewLogPublisher(s.logger)
		return
	}
	s.publisher = publisher
}

// HTTPServer creates and configures the HTTP server
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         ":" + s.cfg.ServerPort,
		Handler:      s.router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// SetRouter sets the HTTP router/handler
func (s *Server) SetRouter(router http.Handler) {
	s.router = router
}

func (s *Server) GetDBPool() *pgxpool.Pool {
	return s.dbPool
}

// CacheStore is nil when Redis is not connected.
func (s *Server) CacheStore() middleware.ResponseStore {
	if s.redis == nil {
		return nil
	}
	return middleware.NewRedisStore(s.redis)
}

func (s *Server) Publisher() booking.EventPublisher {
	return s.publisher
}

// Close releases every connection opened by New.
func (s *Server) Close() {
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			s.logger.Warn("Failed to close booking publisher", zap.Error(err))
		}
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.dbPool != nil {
		s.dbPool.Close()
	}
}
