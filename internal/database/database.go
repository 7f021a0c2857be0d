// Package database opens the relational store backing the identity store
// and the attendance ledger.
package database

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"church-checkin/internal/models"
)

const (
	DriverSqlite   = "sqlite"
	DriverPostgres = "postgres"
)

// MigrateModels lists the tables created on startup, in dependency order
var MigrateModels = []any{
	&models.Identity{},
	&models.AttendanceEvent{},
}

type Config struct {
	Driver string
	// DataDir holds the sqlite file. Uses an in-memory database when empty.
	DataDir string
	// MemoryName names the in-memory database, letting tests stay isolated
	MemoryName string
	// DSN is the postgres connection string
	DSN    string
	Logger *slog.Logger
}

// Open connects to the configured database and creates the table schemas
func Open(cfg Config) (*gorm.DB, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	gormCfg := &gorm.Config{
		Logger:         gormlogger.Discard,
		TranslateError: true,
	}

	var db *gorm.DB
	var err error
	switch cfg.Driver {
	case DriverSqlite, "":
		db, err = openSqlite(cfg.DataDir, cfg.MemoryName, gormCfg)
	case DriverPostgres:
		if cfg.DSN == "" {
			return nil, errors.New("postgres driver requires a DSN")
		}
		db, err = gorm.Open(postgres.Open(cfg.DSN), gormCfg)
	default:
		return nil, fmt.Errorf("unknown database driver: %s", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	for _, model := range MigrateModels {
		logger.Debug(fmt.Sprintf("creating table: %T", model), "component", "database")
		if err := db.AutoMigrate(model); err != nil {
			return nil, fmt.Errorf("failed to migrate %T: %w", model, err)
		}
	}
	return db, nil
}

func openSqlite(dataDir, memoryName string, gormCfg *gorm.Config) (*gorm.DB, error) {
	if dataDir == "" {
		if memoryName == "" {
			memoryName = "checkin"
		}
		return OpenMemory(memoryName, gormCfg)
	}
	// Make sure that we can read data dir, and create if it doesn't exist
	if _, err := os.Stat(dataDir); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read data dir: %w", err)
		}
		if err := os.MkdirAll(dataDir, fs.ModePerm); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
	}
	dbPath := filepath.Join(dataDir, "checkin.sqlite")
	connOpts := "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	return gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?%s", dbPath, connOpts)), gormCfg)
}

// OpenMemory opens a named in-memory sqlite database. Each name is a separate
// database; a single connection is used so shared-cache table locks never occur.
func OpenMemory(name string, gormCfg *gorm.Config) (*gorm.DB, error) {
	if gormCfg == nil {
		gormCfg = &gorm.Config{Logger: gormlogger.Discard, TranslateError: true}
	}
	db, err := gorm.Open(
		sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", name)),
		gormCfg,
	)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// Close closes the underlying connection pool
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get database handle: %w", err)
	}
	return sqlDB.Close()
}
