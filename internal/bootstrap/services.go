package bootstrap

import (
	"context"
	"fmt"

	"mathquiz/internal/config"
	"mathquiz/internal/controller"
	"mathquiz/internal/db"
	"mathquiz/internal/problem"
	"mathquiz/internal/quiz"

	"go.uber.org/zap"
)

// ServiceContainer holds all initialized services and their lifecycle management
type ServiceContainer struct {
	// Database connections
	MySQLConn *db.MySQLConnection
	Scores    *db.ScoreRepository

	// Core services
	Generator *problem.Generator
	Sessions  *quiz.Store

	logger *zap.Logger
}

// ServiceInitOptions configures which services to initialize
type ServiceInitOptions struct {
	EnableMySQL  bool
	RequireMySQL bool // If true, fail if MySQL is not available
}

// NewServiceContainer initializes all requested services based on options
func NewServiceContainer(ctx context.Context, cfg *config.Config, opts ServiceInitOptions, logger *zap.Logger) (*ServiceContainer, error) {
	container := &ServiceContainer{
		Generator: problem.NewGenerator(nil, logger),
		Sessions:  quiz.NewStore(cfg.Quiz.Duration(), logger),
		logger:    logger,
	}

	if opts.EnableMySQL && cfg.MySQL.Host != "" {
		conn, scores, err := initMySQL(ctx, cfg, logger)
		if err != nil {
			if opts.RequireMySQL {
				return nil, fmt.Errorf("MySQL initialization failed (required): %w", err)
			}
			logger.Warn("MySQL initialization failed, leaderboard will be disabled", zap.Error(err))
		} else {
			container.MySQLConn = conn
			container.Scores = scores
		}
	} else if opts.RequireMySQL {
		return nil, fmt.Errorf("MySQL configuration is required but not provided")
	}

	return container, nil
}

// QuizController builds the HTTP controller over the container's services.
func (sc *ServiceContainer) QuizController(cfg *config.Config) *controller.QuizController {
	var scores controller.ScoreStore
	if sc.Scores != nil {
		scores = sc.Scores
	}
	return controller.NewQuizController(sc.Generator, sc.Sessions, scores, cfg.Quiz, sc.logger)
}

// Close cleans up all resources
func (sc *ServiceContainer) Close() {
	if sc.MySQLConn != nil {
		sc.MySQLConn.Close()
		sc.logger.Info("MySQL connection closed")
	}
}

// initMySQL connects, ensures the database exists and prepares the scores table
func initMySQL(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*db.MySQLConnection, *db.ScoreRepository, error) {
	conn, err := db.NewMySQLConnection(ctx, cfg.MySQL, logger)
	if err != nil {
		return nil, nil, err
	}

	if err := conn.EnsureDatabase(ctx, cfg.MySQL.Database); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to ensure %s database: %w", cfg.MySQL.Database, err)
	}

	scores, err := db.NewScoreRepository(ctx, conn.GetDB(), logger)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}

	logger.Info("MySQL connection established and scores table verified",
		zap.String("database", cfg.MySQL.Database))
	return conn, scores, nil
}

// GetServerModeOptions returns ServiceInitOptions configured for server mode
func GetServerModeOptions(cfg *config.Config) ServiceInitOptions {
	return ServiceInitOptions{
		EnableMySQL:  cfg.MySQL.Host != "",
		RequireMySQL: false, // Optional in server mode
	}
}
