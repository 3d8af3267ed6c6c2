package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/viper"

	"github.com/chrscato/cdx-billreview/internal/common"
	"github.com/chrscato/cdx-billreview/internal/config"
	"github.com/chrscato/cdx-billreview/internal/refdata"
	"github.com/chrscato/cdx-billreview/internal/service"
	"github.com/chrscato/cdx-billreview/internal/storage"
)

// Default key prefixes in the claim store, matching the layout the rest
// of the pipeline writes into.
const (
	defaultStagingPrefix = "data/hcfa_json/valid/mapped/staging"
	defaultReadyPrefix   = "data/hcfa_json/readyforprocess"
	defaultEOBRPrefix    = "data/hcfa_json/EOBR_ready"
)

// openReferenceDB opens the reference/audit SQLite database and brings
// its schema current.
func openReferenceDB(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/billreview/reference.db"
	}
	dbPath = config.ExpandPath(dbPath)

	db, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open reference database: %w", err)
	}

	if err := db.Migrate(ctx); err != nil {
		closeQuietly(db)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// openClaimStore builds the configured claim store: S3 in production, a
// local directory for development.
func openClaimStore(ctx context.Context) (service.ClaimStore, error) {
	backend := viper.GetString("store.backend")
	switch backend {
	case "", "s3":
		bucket := viper.GetString("store.bucket")
		region := viper.GetString("store.region")
		return storage.NewS3ClaimStore(ctx, bucket, region)
	case "local":
		dir := config.ExpandPath(viper.GetString("store.local_dir"))
		return storage.NewLocalClaimStore(dir)
	default:
		return nil, fmt.Errorf("%w: unknown store backend %q", common.ErrInvalidConfig, backend)
	}
}

// loadReferenceData loads the ancillary allow-list and bundle
// definitions, once per run.
func loadReferenceData() (*refdata.AncillarySet, []refdata.Bundle, error) {
	ancillaryPath := config.ExpandPath(viper.GetString("refdata.ancillary_path"))
	if ancillaryPath == "" {
		ancillaryPath = "data/ancillary_codes.json"
	}
	bundlesPath := config.ExpandPath(viper.GetString("refdata.bundles_path"))
	if bundlesPath == "" {
		bundlesPath = "data/procedure_bundles.json"
	}

	ancillary, err := refdata.LoadAncillarySet(ancillaryPath)
	if err != nil {
		return nil, nil, err
	}
	bundles, err := refdata.LoadBundles(bundlesPath)
	if err != nil {
		return nil, nil, err
	}

	slog.Info("Loaded reference data",
		"ancillary_codes", ancillary.Len(),
		"bundles", len(bundles))
	return ancillary, bundles, nil
}

func closeQuietly(db *storage.SQLiteStorage) {
	if err := db.Close(); err != nil {
		slog.Error("Failed to close database", "error", err)
	}
}

func prefixOr(key, fallback string) string {
	if v := viper.GetString(key); v != "" {
		return v
	}
	return fallback
}
