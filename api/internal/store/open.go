package store

import (
	"context"
	"fmt"
	"log"

	"video-rater/api/internal/config"
	"video-rater/api/internal/rating"
)

// Backend is a source of descriptions and a sink of ratings in one place.
type Backend interface {
	rating.Source
	rating.Sink
	rating.Reviewed
	Close() error
}

// Open builds the backend selected by cfg.Backend.
func Open(ctx context.Context, cfg *config.Config) (Backend, error) {
	switch cfg.Backend {
	case config.BackendSheets:
		s, err := NewSheets(ctx, cfg.ServiceAccountJSON, cfg.SheetID, cfg.DescriptionsSheet, cfg.RatingsSheet)
		if err != nil {
			return nil, err
		}
		log.Printf("store: google sheets %s (%s -> %s)", cfg.SheetID, cfg.DescriptionsSheet, cfg.RatingsSheet)
		return s, nil
	case config.BackendPostgres:
		s, err := OpenSQL(ctx, DriverPostgres, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		log.Printf("store: postgres %s", config.SafeDSNSummary(cfg.DatabaseURL))
		if err := migrate(ctx, s); err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendSQLite:
		s, err := OpenSQL(ctx, DriverSQLite, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Printf("store: sqlite %s", cfg.SQLitePath)
		if err := migrate(ctx, s); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func migrate(ctx context.Context, s *SQL) error {
	if err := s.EnsureSchema(ctx); err != nil {
		_ = s.Close()
		return err
	}
	return nil
}
