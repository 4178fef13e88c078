package main

import (
	"context"

	"github.com/hray3182/gabay/internal/bot/handlers"
	"github.com/hray3182/gabay/internal/config"
	"github.com/hray3182/gabay/internal/database"
	"github.com/hray3182/gabay/internal/dispatcher"
	"github.com/hray3182/gabay/internal/reminder"
	"github.com/hray3182/gabay/internal/repository"
	"github.com/hray3182/gabay/internal/scheduler"
	"github.com/hray3182/gabay/internal/sqlitestore"
	"github.com/rs/zerolog"
)

// store is everything the binary needs from a backend.
type store interface {
	scheduler.Store
	scheduler.OwnerLister
	reminder.Store
	dispatcher.ContactResolver
	handlers.Users
	handlers.Contacts
	Close() error
}

type pgStore struct {
	*repository.ReminderRepository
	*repository.UserRepository
	*repository.ContactRepository
	db *database.DB
}

func (s *pgStore) Close() error {
	s.db.Close()
	return nil
}

// openStore connects to the configured backend and brings its schema up to date.
func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (store, error) {
	if cfg.StoreDriver == config.DriverSQLite {
		st, err := sqlitestore.Open(ctx, sqlitestore.Config{Path: cfg.SQLitePath, BusyTimeout: cfg.SQLiteBusyTimeout}, log)
		if err != nil {
			return nil, err
		}
		return st, nil
	}

	db, err := database.New(ctx, cfg.DatabaseURI)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, log); err != nil {
		db.Close()
		return nil, err
	}
	return &pgStore{
		ReminderRepository: repository.NewReminderRepository(db),
		UserRepository:     repository.NewUserRepository(db),
		ContactRepository:  repository.NewContactRepository(db),
		db:                 db,
	}, nil
}
