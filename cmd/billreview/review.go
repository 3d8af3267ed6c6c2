package main

import (
	"context"
	"fmt"
	"log/slog"
	"path"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/chrscato/cdx-billreview/internal/model"
	"github.com/chrscato/cdx-billreview/internal/review"
	"github.com/chrscato/cdx-billreview/internal/service"
)

func reviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Interactively review failed claims",
		Long: `Open an interactive queue over claims that failed validation. Each
entry shows the itemized failure reasons; after correcting the source
data, requeue the claim to send it back through validation.`,
		RunE: runReview,
	}

	cmd.Flags().Int("limit", 100, "Maximum number of failed claims to load")
	_ = viper.BindPFlag("review.limit", cmd.Flags().Lookup("limit"))

	return cmd
}

func runReview(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	db, err := openReferenceDB(ctx)
	if err != nil {
		return err
	}
	defer closeQuietly(db)

	store, err := openClaimStore(ctx)
	if err != nil {
		return fmt.Errorf("failed to open claim store: %w", err)
	}

	verdicts, err := db.VerdictsByStatus(ctx, model.StatusFail, viper.GetInt("review.limit"))
	if err != nil {
		return fmt.Errorf("failed to load failed claims: %w", err)
	}

	stagingPrefix := prefixOr("paths.staging_prefix", defaultStagingPrefix)
	requeuer := &storeRequeuer{
		store:         store,
		stagingPrefix: stagingPrefix,
		failsPrefix:   path.Join(stagingPrefix, string(model.RouteFail)),
	}

	program := tea.NewProgram(review.NewModel(verdicts, requeuer), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("review session failed: %w", err)
	}
	return nil
}

// storeRequeuer moves a failed claim from the fails route back to the
// staging prefix so the next validation run picks it up.
type storeRequeuer struct {
	store         service.ClaimStore
	stagingPrefix string
	failsPrefix   string
}

func (r *storeRequeuer) Requeue(ctx context.Context, fileName string) error {
	srcKey := path.Join(r.failsPrefix, fileName)
	claim, err := r.store.Get(ctx, srcKey)
	if err != nil {
		return fmt.Errorf("loading %s: %w", srcKey, err)
	}
	// Clear the stale verdict so the engine re-evaluates from scratch.
	claim.ValidationInfo = nil

	dstKey := path.Join(r.stagingPrefix, fileName)
	if err := r.store.Move(ctx, srcKey, dstKey, claim); err != nil {
		return fmt.Errorf("requeueing %s: %w", fileName, err)
	}
	slog.Info("Requeued claim for revalidation", "file", fileName)
	return nil
}
