package main

import (
	"context"
	"fmt"
	"log/slog"

	"church-checkin/config"
	"church-checkin/internal/database"
	"church-checkin/internal/repository"
)

// store bundles the repositories of the configured backend
type store struct {
	identities repository.IdentityRepository
	attendance repository.AttendanceRepository
	ping       func(ctx context.Context) error
	close      func() error
}

func openStore(cfg *config.Config, logger *slog.Logger) (*store, error) {
	switch cfg.Store {
	case config.StorePocketBase:
		identities := repository.NewPocketBaseRESTIdentityRepository(cfg.PocketBaseURL, cfg.PocketBaseToken, logger)
		return &store{
			identities: identities,
			attendance: repository.NewPocketBaseRESTAttendanceRepository(cfg.PocketBaseURL, cfg.PocketBaseToken, logger),
			ping:       identities.Ping,
			close:      func() error { return nil },
		}, nil
	default:
		dbCfg := database.Config{Driver: cfg.Store, Logger: logger}
		if cfg.Store == config.StorePostgres {
			dbCfg.DSN = cfg.DatabaseURL
		} else {
			dbCfg.DataDir = cfg.DatabasePath
		}
		db, err := database.Open(dbCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		return &store{
			identities: repository.NewGormIdentityRepository(db),
			attendance: repository.NewGormAttendanceRepository(db),
			ping:       sqlDB.PingContext,
			close:      func() error { return database.Close(db) },
		}, nil
	}
}
