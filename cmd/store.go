package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/leafline/dispensary-cli/internal/crawler"
	"github.com/leafline/dispensary-cli/internal/db"
	"github.com/leafline/dispensary-cli/internal/store"
	"github.com/leafline/dispensary-cli/pkg/customsearch"
	"github.com/leafline/dispensary-cli/pkg/places"
)

// initStore opens the configured backend and ensures the schema exists.
func initStore(ctx context.Context) (store.Store, error) {
	var st store.Store

	switch cfg.Store.Driver {
	case "sqlite":
		s, err := store.NewSQLite(cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		st = s
	case "postgres", "":
		pool, err := db.Connect(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		st = store.NewPostgres(pool)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// newPlacesClient builds the Places client from config.
func newPlacesClient() places.Client {
	var opts []places.Option
	if cfg.Places.RequestsPerSec > 0 {
		opts = append(opts, places.WithRateLimit(cfg.Places.RequestsPerSec))
	}
	if cfg.Places.BaseURL != "" {
		opts = append(opts, places.WithBaseURL(cfg.Places.BaseURL))
	}
	if cfg.Places.GeocodingBaseURL != "" {
		opts = append(opts, places.WithGeocodingBaseURL(cfg.Places.GeocodingBaseURL))
	}
	if cfg.Places.PageTokenDelayMS > 0 {
		opts = append(opts, places.WithPageTokenDelay(time.Duration(cfg.Places.PageTokenDelayMS)*time.Millisecond))
	}
	return places.NewClient(cfg.Places.Key, opts...)
}

// newMentionFinder builds the Custom Search mention finder, or nil when the
// search engine is not configured.
func newMentionFinder() crawler.MentionFinder {
	if cfg.CustomSearch.Key == "" || cfg.CustomSearch.EngineID == "" {
		return nil
	}
	var opts []customsearch.Option
	if cfg.CustomSearch.RequestsPerSec > 0 {
		opts = append(opts, customsearch.WithRateLimit(cfg.CustomSearch.RequestsPerSec))
	}
	if cfg.CustomSearch.BaseURL != "" {
		opts = append(opts, customsearch.WithBaseURL(cfg.CustomSearch.BaseURL))
	}
	return crawler.NewMentionFinder(customsearch.NewClient(cfg.CustomSearch.Key, cfg.CustomSearch.EngineID, opts...))
}

func newCrawler(st store.Store) *crawler.Crawler {
	return crawler.New(newPlacesClient(), newMentionFinder(), st, cfg.Crawl)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		return nil
	},
}

func init() { rootCmd.AddCommand(migrateCmd) }
