package main

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/chrscato/cdx-billreview/internal/engine"
	"github.com/chrscato/cdx-billreview/internal/model"
	"github.com/chrscato/cdx-billreview/internal/worker"
)

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [file...]",
		Short: "Validate staged claims against their orders",
		Long: `Validate staged claims: match billed procedures against the order's
line items (exact, bundle, clinical equivalence), check units, resolve
reimbursement rates, and move each claim to its success, fails, or
arthrograms destination.

Examples:
  billreview validate                  # validate everything in staging
  billreview validate claim_123.json   # validate one claim
  billreview validate --limit 50       # cap the batch size
  billreview validate --dry-run        # report without moving claims`,
		RunE: runValidate,
	}

	cmd.Flags().IntP("limit", "l", 0, "Maximum number of claims to process (0 = all)")
	cmd.Flags().IntP("workers", "w", 4, "Concurrent validations")
	cmd.Flags().Bool("dry-run", false, "Validate without moving claims or recording verdicts")

	_ = viper.BindPFlag("validation.limit", cmd.Flags().Lookup("limit"))
	_ = viper.BindPFlag("validation.workers", cmd.Flags().Lookup("workers"))
	_ = viper.BindPFlag("validation.dry_run", cmd.Flags().Lookup("dry-run"))

	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	limit := viper.GetInt("validation.limit")
	workers := viper.GetInt("validation.workers")
	dryRun := viper.GetBool("validation.dry_run")

	slog.Info("Starting claim validation", "dry_run", dryRun)

	db, err := openReferenceDB(ctx)
	if err != nil {
		return err
	}
	defer closeQuietly(db)

	store, err := openClaimStore(ctx)
	if err != nil {
		return fmt.Errorf("failed to open claim store: %w", err)
	}

	ancillary, bundles, err := loadReferenceData()
	if err != nil {
		return err
	}

	stagingPrefix := prefixOr("paths.staging_prefix", defaultStagingPrefix)

	keys, err := stagedClaimKeys(ctx, args, store, stagingPrefix, limit)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		slog.Info("No claims to validate")
		return nil
	}
	slog.Info("Found claims to validate", "count", len(keys))

	pool := &worker.Pool{
		Store:         store,
		Validator:     engine.NewValidator(ancillary, bundles, db, db),
		Log:           db,
		StagingPrefix: stagingPrefix,
		Workers:       workers,
		DryRun:        dryRun,
	}

	bar := progressbar.Default(int64(len(keys)), "validating")
	results := make([]worker.Result, 0, len(keys))
	for _, batch := range chunkKeys(keys, workers*4) {
		results = append(results, pool.Run(ctx, batch)...)
		_ = bar.Add(len(batch))
		if ctx.Err() != nil {
			break
		}
	}
	_ = bar.Finish()

	summarize(results)
	return nil
}

// claimLister is the slice of the claim store the key resolver needs.
type claimLister interface {
	List(ctx context.Context, prefix string) ([]string, error)
}

// stagedClaimKeys resolves the batch: explicit file names when given,
// otherwise everything under the staging prefix (excluding claims already
// routed into its subfolders).
func stagedClaimKeys(ctx context.Context, args []string, store claimLister, stagingPrefix string, limit int) ([]string, error) {
	if len(args) > 0 {
		keys := make([]string, 0, len(args))
		for _, name := range args {
			keys = append(keys, path.Join(stagingPrefix, name))
		}
		return keys, nil
	}

	all, err := store.List(ctx, stagingPrefix+"/")
	if err != nil {
		return nil, fmt.Errorf("failed to list staging claims: %w", err)
	}

	keys := make([]string, 0, len(all))
	for _, key := range all {
		rel := strings.TrimPrefix(key, stagingPrefix+"/")
		if strings.Contains(rel, "/") {
			continue // already routed
		}
		if !strings.HasSuffix(strings.ToLower(rel), ".json") {
			continue
		}
		keys = append(keys, key)
		if limit > 0 && len(keys) >= limit {
			break
		}
	}
	return keys, nil
}

func chunkKeys(keys []string, size int) [][]string {
	if size < 1 {
		size = 1
	}
	var chunks [][]string
	for start := 0; start < len(keys); start += size {
		end := start + size
		if end > len(keys) {
			end = len(keys)
		}
		chunks = append(chunks, keys[start:end])
	}
	return chunks
}

func summarize(results []worker.Result) {
	var passed, softPassed, failed, arthrograms, errored int
	for _, r := range results {
		switch {
		case r.Err != nil:
			errored++
			slog.Error("Claim processing failed", "key", r.Key, "error", r.Err)
		case r.Arthrogram:
			arthrograms++
		case r.Status == model.StatusPass:
			passed++
		case r.Status == model.StatusSoftPass:
			softPassed++
		case r.Status == model.StatusFail:
			failed++
		}
	}

	slog.Info("Validation complete",
		"total", len(results),
		"pass", passed,
		"soft_pass", softPassed,
		"fail", failed,
		"arthrograms", arthrograms,
		"errors", errored)
}
