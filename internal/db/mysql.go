package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"mathquiz/internal/config"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

// MySQLConnection manages the MySQL database connection
type MySQLConnection struct {
	db     *sql.DB
	config config.MySQLConfig
	logger *zap.Logger
}

// buildDSN builds the driver DSN; an empty dbName connects without selecting a database
func buildDSN(cfg config.MySQLConfig, dbName string) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&collation=utf8mb4_unicode_ci",
		cfg.Username,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		dbName,
	)
}

func openPool(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// NewMySQLConnection opens a pool on the server without selecting a database.
func NewMySQLConnection(ctx context.Context, cfg config.MySQLConfig, logger *zap.Logger) (*MySQLConnection, error) {
	logger.Info("Connecting to MySQL",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("username", cfg.Username))

	db, err := openPool(ctx, buildDSN(cfg, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}

	logger.Info("MySQL connection established successfully")
	return &MySQLConnection{
		db:     db,
		config: cfg,
		logger: logger,
	}, nil
}

// EnsureDatabase creates the database if it doesn't exist and reconnects to use it
func (m *MySQLConnection) EnsureDatabase(ctx context.Context, dbName string) error {
	m.logger.Info("Ensuring database exists", zap.String("database", dbName))

	// Create database if not exists
	query := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s` CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci", dbName)
	if _, err := m.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}

	// Reconnect with database selected
	db, err := openPool(ctx, buildDSN(m.config, dbName))
	if err != nil {
		return fmt.Errorf("failed to reconnect to database %s: %w", dbName, err)
	}

	// Swap pools only once the new one is reachable
	m.db.Close()
	m.db = db

	m.logger.Info("Database ready", zap.String("database", dbName))
	return nil
}

// GetDB returns the underlying sql.DB connection
func (m *MySQLConnection) GetDB() *sql.DB {
	return m.db
}

// Close closes the database connection
func (m *MySQLConnection) Close() error {
	if m.db != nil {
		m.logger.Info("Closing MySQL connection")
		return m.db.Close()
	}
	return nil
}
