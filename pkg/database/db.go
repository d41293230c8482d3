package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Config holds database configuration
type Config struct {
	Driver          string // "postgres" or "sqlite"
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	SQLitePath      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	LogQueries      bool
}

// ConnectionPool manages database connections
type ConnectionPool struct {
	db     *sql.DB
	orm    *gorm.DB
	logger *slog.Logger
}

// NewConnectionPool opens the configured database and wraps it in GORM.
func NewConnectionPool(ctx context.Context, config *Config, logger *slog.Logger) (*ConnectionPool, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if config.Driver == "sqlite" {
		orm, err := OpenSQLite(config.SQLitePath, config.LogQueries)
		if err != nil {
			return nil, err
		}
		db, err := orm.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sqlite handle: %w", err)
		}
		logger.Info("database connected successfully",
			slog.String("driver", "sqlite"),
			slog.String("path", config.SQLitePath),
		)
		return &ConnectionPool{db: db, orm: orm, logger: logger}, nil
	}

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host,
		config.Port,
		config.User,
		config.Password,
		config.Database,
		config.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	} else {
		db.SetMaxOpenConns(25)
	}

	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	} else {
		db.SetMaxIdleConns(5)
	}

	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	} else {
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	ctxTest, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctxTest); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	orm, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), gormConfig(config.LogQueries))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	logger.Info("database connected successfully",
		slog.String("driver", "postgres"),
		slog.String("host", config.Host),
		slog.String("database", config.Database),
	)

	return &ConnectionPool{
		db:     db,
		orm:    orm,
		logger: logger,
	}, nil
}

// OpenSQLite opens a SQLite database through GORM. SQLite serializes writers,
// so the pool is pinned to one connection; this also keeps in-memory
// databases alive for the lifetime of the handle.
func OpenSQLite(dsn string, logQueries bool) (*gorm.DB, error) {
	orm, err := gorm.Open(sqlite.Open(dsn), gormConfig(logQueries))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	db, err := orm.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sqlite handle: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := orm.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, fmt.Errorf("failed to configure sqlite: %w", err)
	}
	return orm, nil
}

func gormConfig(logQueries bool) *gorm.Config {
	level := gormlogger.Warn
	if logQueries {
		level = gormlogger.Info
	}
	return &gorm.Config{
		Logger:         gormlogger.Default.LogMode(level),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	}
}

// ORM returns the GORM handle
func (cp *ConnectionPool) ORM() *gorm.DB {
	return cp.orm
}

// GetDB returns the underlying sql.DB connection
func (cp *ConnectionPool) GetDB() *sql.DB {
	return cp.db
}

// Close closes the database connection
func (cp *ConnectionPool) Close() error {
	if cp.db != nil {
		return cp.db.Close()
	}
	return nil
}

// Health checks the database health
func (cp *ConnectionPool) Health(ctx context.Context) error {
	ctxTest, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return cp.db.PingContext(ctxTest)
}

// DefaultConfig returns default database configuration for development
func DefaultConfig() *Config {
	return &Config{
		Driver:          "postgres",
		Host:            "localhost",
		Port:            5432,
		User:            "rentledger",
		Password:        "dev",
		Database:        "rentledger",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}
