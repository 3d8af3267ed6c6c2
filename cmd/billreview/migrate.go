package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/chrscato/cdx-billreview/internal/storage"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending reference-database migrations",
		Long: `Bring the local reference database (rate tables, procedure taxonomy,
validation log) up to the current schema version. Safe to run
repeatedly; applied migrations are skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openReferenceDB(cmd.Context())
			if err != nil {
				return err
			}
			defer closeQuietly(db)

			version, err := db.SchemaVersion(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to read schema version: %w", err)
			}
			slog.Info("Reference database ready",
				"schema_version", version,
				"expected", storage.ExpectedSchemaVersion)
			return nil
		},
	}
}
