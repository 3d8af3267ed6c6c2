// Package engine implements the claim validation engine: the layered
// procedure matchers, the unit and rate checks, and the orchestrator that
// turns their evidence into a verdict.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chrscato/cdx-billreview/internal/common"
	"github.com/chrscato/cdx-billreview/internal/model"
	"github.com/chrscato/cdx-billreview/internal/refdata"
	"github.com/chrscato/cdx-billreview/internal/service"
)

// Validator orchestrates one validation pass over a claim. Reference data
// is injected once and treated as immutable for the run, so a single
// Validator is safe to share across a batch of claims.
type Validator struct {
	taxonomy  service.Taxonomy
	resolver  *RateResolver
	ancillary *refdata.AncillarySet
	bundles   []refdata.Bundle
}

// NewValidator wires a validator over its reference data and collaborators.
func NewValidator(ancillary *refdata.AncillarySet, bundles []refdata.Bundle, taxonomy service.Taxonomy, rates service.RateSource) *Validator {
	return &Validator{
		taxonomy:  taxonomy,
		resolver:  NewRateResolver(rates, ancillary),
		ancillary: ancillary,
		bundles:   bundles,
	}
}

// Result is the outcome of one validation pass.
type Result struct {
	Verdict    *model.Verdict
	Rates      map[string]model.Cents
	Route      model.Route
	Arthrogram bool
}

// ValidateClaim runs the full stage sequence: ancillary filter, exact
// match, bundle match, clinical-equivalence match, unit check, then the
// gated rate check. It mutates the claim only to stamp validation_info
// (and the arthrogram check for redirected claims); relocation is the
// caller's job, guided by the returned route.
//
// Data problems never surface as errors; they become verdict content.
// Only reference-data failures return an error.
func (v *Validator) ValidateClaim(ctx context.Context, claim *model.Claim) (*Result, error) {
	if claim.IsArthrogram() {
		stampArthrogram(claim)
		slog.Info("Arthrogram claim redirected, skipping validation")
		return &Result{Route: model.RouteArthrogram, Arthrogram: true}, nil
	}

	// A claim with nothing billed is unreadable input, not a failed
	// validation; there is no line evidence to build a verdict from.
	if len(claim.ServiceLines) == 0 {
		return nil, fmt.Errorf("%w: order %s", common.ErrNoServiceLines, NetworkContextFromClaim(claim).OrderID)
	}

	billed := model.FromServiceLines(claim.ServiceLines)
	ordered := model.FromOrderLines(claim.FileMaker.LineItems)

	filtered, skipped := FilterAncillaries(billed, v.ancillary)

	exactMatches, remainingBilled, remainingOrdered := MatchExact(filtered, ordered)
	bundleMatches, remainingBilled := MatchBundles(remainingBilled, v.bundles)
	clinicalMatches, remainingBilled, err := MatchClinicalEquivalents(ctx, remainingBilled, remainingOrdered, v.taxonomy)
	if err != nil {
		return nil, fmt.Errorf("clinical-equivalence stage: %w", err)
	}

	allMatches := make([]model.MatchResult, 0, len(exactMatches)+len(bundleMatches)+len(clinicalMatches))
	allMatches = append(allMatches, exactMatches...)
	allMatches = append(allMatches, bundleMatches...)
	allMatches = append(allMatches, clinicalMatches...)

	unitViolation, unitMessages := ValidateUnits(filtered)

	// Rate data is meaningless on a claim already doomed to fail, and
	// skipping the lookup avoids misleading missing-rate noise.
	var rateResult RateResult
	if len(remainingBilled) == 0 && !unitViolation {
		rateResult, err = v.resolver.Resolve(ctx, filtered, NetworkContextFromClaim(claim))
		if err != nil {
			return nil, fmt.Errorf("rate stage: %w", err)
		}
	}

	verdict := assembleVerdict(allMatches, remainingBilled, skipped, unitMessages, rateResult)
	claim.ValidationInfo = verdict

	return &Result{
		Verdict: verdict,
		Rates:   rateResult.Rates,
		Route:   verdict.Route(),
	}, nil
}

// assembleVerdict applies the final classification. Reason order is
// fixed (unmatched, units, rates) because downstream display and golden
// records depend on it.
func assembleVerdict(matches []model.MatchResult, remainingBilled []model.Procedure, skipped, unitMessages []string, rateResult RateResult) *model.Verdict {
	reasons := make([]string, 0, len(remainingBilled)+len(unitMessages))
	unmatched := make([]string, 0, len(remainingBilled))

	for _, proc := range remainingBilled {
		unmatched = append(unmatched, proc.CPTCode)
		reasons = append(reasons, model.UnmatchedReason(proc.CPTCode))
	}
	reasons = append(reasons, unitMessages...)
	reasons = append(reasons, rateResult.Errors...)
	for _, cpt := range rateResult.Missing {
		reasons = append(reasons, model.RateMissingReason(cpt))
	}

	lines := make([]model.MatchedLine, 0, len(matches))
	softPass := false
	for _, m := range matches {
		lines = append(lines, m.Line())
		if m.Type == model.MatchClinicalEquivalent {
			softPass = true
		}
	}

	status := model.StatusPass
	switch {
	case len(reasons) > 0:
		status = model.StatusFail
	case softPass:
		status = model.StatusSoftPass
	}

	return &model.Verdict{
		Status:         status,
		FailureReasons: reasons,
		MatchedLines:   lines,
		UnmatchedCPTs:  unmatched,
		SkippedCPTs:    skipped,
	}
}

func stampArthrogram(claim *model.Claim) {
	if claim.ProcessingInfo == nil {
		claim.ProcessingInfo = &model.ProcessingInfo{}
	}
	claim.ProcessingInfo.ArthrogramCheck = &model.ArthrogramCheck{
		IsArthrogram: true,
		CheckDate:    time.Now().Format("2006-01-02 15:04:05"),
	}
}
