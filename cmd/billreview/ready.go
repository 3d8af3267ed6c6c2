package main

import (
	"fmt"
	"log/slog"
	"math/rand"
	"path"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/chrscato/cdx-billreview/internal/engine"
)

func readyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ready [file...]",
		Short: "Run the ready-for-process gate on staged payment claims",
		Long: `Check claims staged for payment-document generation: structural
completeness, field formats, billed/ordered line reconciliation, and a
full rate pass. Claims that pass get their assigned rates stamped onto
each service line and move to the EOBR-ready destination.

Examples:
  billreview ready                   # check everything in readyforprocess
  billreview ready claim_123.json    # check one claim
  billreview ready --sample 10       # spot-check 10 random claims`,
		RunE: runReady,
	}

	cmd.Flags().IntP("limit", "l", 0, "Maximum number of claims to check (0 = all)")
	cmd.Flags().IntP("sample", "s", 0, "Check a random sample of N claims")
	cmd.Flags().Bool("dry-run", false, "Check without moving claims")

	_ = viper.BindPFlag("ready.limit", cmd.Flags().Lookup("limit"))
	_ = viper.BindPFlag("ready.sample", cmd.Flags().Lookup("sample"))
	_ = viper.BindPFlag("ready.dry_run", cmd.Flags().Lookup("dry-run"))

	return cmd
}

func runReady(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	limit := viper.GetInt("ready.limit")
	sample := viper.GetInt("ready.sample")
	dryRun := viper.GetBool("ready.dry_run")

	slog.Info("Starting ready-for-process validation", "dry_run", dryRun)

	db, err := openReferenceDB(ctx)
	if err != nil {
		return err
	}
	defer closeQuietly(db)

	store, err := openClaimStore(ctx)
	if err != nil {
		return fmt.Errorf("failed to open claim store: %w", err)
	}

	ancillary, _, err := loadReferenceData()
	if err != nil {
		return err
	}

	readyPrefix := prefixOr("paths.ready_prefix", defaultReadyPrefix)
	eobrPrefix := prefixOr("paths.eobr_prefix", defaultEOBRPrefix)

	keys, err := stagedClaimKeys(ctx, args, store, readyPrefix, limit)
	if err != nil {
		return err
	}
	if sample > 0 && sample < len(keys) {
		rand.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
		keys = keys[:sample]
		slog.Info("Randomly selected claims for validation", "count", len(keys))
	}
	if len(keys) == 0 {
		slog.Info("No claims to check")
		return nil
	}

	validator := engine.NewReadyValidator(db, ancillary)

	var valid, invalid, moved int
	for _, key := range keys {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		claim, err := store.Get(ctx, key)
		if err != nil {
			invalid++
			slog.Error("Failed to load claim", "key", key, "error", err)
			continue
		}

		result, err := validator.Validate(ctx, claim)
		if err != nil {
			return fmt.Errorf("checking %s: %w", key, err)
		}

		if result.Passed {
			valid++
			if !dryRun {
				dstKey := strings.Replace(key, readyPrefix, eobrPrefix, 1)
				if err := store.Move(ctx, key, dstKey, claim); err != nil {
					return fmt.Errorf("moving %s: %w", key, err)
				}
				moved++
				slog.Info("Claim ready for payment documents", "file", path.Base(key), "destination", dstKey)
			}
			continue
		}

		invalid++
		reportFailure(key, result)
	}

	slog.Info("Ready check complete",
		"total", len(keys),
		"valid", valid,
		"invalid", invalid,
		"moved", moved)
	return nil
}

func reportFailure(key string, result *engine.ReadyResult) {
	slog.Error("Claim not ready", "file", path.Base(key))
	for _, e := range result.Errors {
		slog.Error("  validation error", "error", e)
	}
	for _, missing := range result.MissingRates {
		mod := missing.Modifier
		if mod == "" {
			mod = "None"
		}
		slog.Error("  missing rate", "cpt", missing.CPT, "modifier", mod, "network", missing.Network)
	}
	if rec := result.Reconciliation; rec != nil && !rec.Matched {
		for _, cpt := range rec.MissingFromOrdered {
			slog.Warn("  billed but not ordered", "cpt", cpt)
		}
		for _, cpt := range rec.MissingFromBilled {
			slog.Warn("  ordered but not billed", "cpt", cpt)
		}
		for _, mismatch := range rec.CountMismatches {
			slog.Warn("  count mismatch", "cpt", mismatch.CPT, "billed", mismatch.BilledCount, "ordered", mismatch.OrderedCount)
		}
	}
}
