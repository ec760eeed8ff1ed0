package db

import (
	"context"

	"github.com/mini-rodalies-3d/railsim/internal/logging"
)

// Open returns a PostgreSQL store when databaseURL is set and a SQLite store
// at sqlitePath otherwise. The schema is created if missing.
func Open(ctx context.Context, databaseURL, sqlitePath string, log *logging.Logger) (Store, error) {
	if databaseURL != "" {
		pg, err := ConnectPostgres(ctx, databaseURL)
		if err != nil {
			return nil, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		return pg, nil
	}

	sq, err := Connect(sqlitePath, log)
	if err != nil {
		return nil, err
	}
	if err := sq.EnsureSchema(ctx); err != nil {
		sq.Close()
		return nil, err
	}
	return sq, nil
}
