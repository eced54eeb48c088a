// Package storage picks the repository backend named by STORE_DRIVER.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"hotel_booking/internal/domain"
	"hotel_booking/internal/shared"
	mongostore "hotel_booking/internal/storage/mongo"
	mysqlrepo "hotel_booking/internal/storage/mysql"
)

type Repos struct {
	Users   domain.UserRepository
	Catalog domain.CatalogRepository
	Ledger  domain.BookingRepository

	close func(context.Context) error
}

func (r *Repos) Close(ctx context.Context) error {
	if r.close == nil {
		return nil
	}
	return r.close(ctx)
}

func Open(ctx context.Context, cfg shared.Config) (*Repos, error) {
	switch cfg.StoreDriver {
	case "mysql":
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			return nil, fmt.Errorf("sql.Open: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("db ping: %w", err)
		}
		log.Info().Str("driver", "mysql").Msg("database connection ok")
		s := mysqlrepo.New(db)
		return &Repos{
			Users: s.Users, Catalog: s.Catalog, Ledger: s.Ledger,
			close: func(context.Context) error { return db.Close() },
		}, nil

	case "mongo", "":
		client, err := mongostore.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		s, err := mongostore.New(ctx, client.Database(cfg.MongoDB))
		if err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		log.Info().Str("driver", "mongo").Str("db", cfg.MongoDB).Msg("database connection ok")
		return &Repos{
			Users: s.Users, Catalog: s.Catalog, Ledger: s.Ledger,
			close: client.Disconnect,
		}, nil

	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}
