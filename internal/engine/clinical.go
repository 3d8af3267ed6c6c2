package engine

import (
	"context"
	"fmt"

	"github.com/chrscato/cdx-billreview/internal/model"
	"github.com/chrscato/cdx-billreview/internal/service"
)

// MatchClinicalEquivalents is the last-resort matcher. It links a billed
// code to an ordered code that is not identical but shares the same
// taxonomy (category, subcategory) pair, meaning the procedures are
// clinically interchangeable. Billed codes with no taxonomy entry are
// skipped. Like the exact matcher, the scan is greedy and first-match.
//
// Any claim carrying a clinical-equivalent match is capped at SOFT_PASS
// by the orchestrator; this stage only records the pairing.
func MatchClinicalEquivalents(ctx context.Context, billed, ordered []model.Procedure, taxonomy service.Taxonomy) (matches []model.MatchResult, remaining []model.Procedure, err error) {
	usedOrdered := make(map[int]struct{}, len(ordered))

	// Taxonomy rows are read once per distinct code per pass.
	type class struct {
		category    string
		subcategory string
		ok          bool
	}
	classes := make(map[string]class)
	classOf := func(cpt string) (class, error) {
		if c, cached := classes[cpt]; cached {
			return c, nil
		}
		category, subcategory, ok, lookupErr := taxonomy.ProcedureClass(ctx, cpt)
		if lookupErr != nil {
			return class{}, fmt.Errorf("taxonomy lookup for %s: %w", cpt, lookupErr)
		}
		c := class{category: category, subcategory: subcategory, ok: ok && category != "" && subcategory != ""}
		classes[cpt] = c
		return c, nil
	}

	for _, billProc := range billed {
		billClass, lookupErr := classOf(billProc.CPTCode)
		if lookupErr != nil {
			return nil, nil, lookupErr
		}
		if !billClass.ok {
			remaining = append(remaining, billProc)
			continue
		}

		matched := false
		for oi := range ordered {
			if _, used := usedOrdered[oi]; used {
				continue
			}
			ordClass, lookupErr := classOf(ordered[oi].CPTCode)
			if lookupErr != nil {
				return nil, nil, lookupErr
			}
			if !ordClass.ok || ordClass.category != billClass.category || ordClass.subcategory != billClass.subcategory {
				continue
			}

			ordProc := ordered[oi]
			matches = append(matches, model.MatchResult{
				Billed:  billProc,
				Ordered: &ordProc,
				Type:    model.MatchClinicalEquivalent,
				Details: fmt.Sprintf("Category: %s, Subcategory: %s", billClass.category, billClass.subcategory),
			})
			usedOrdered[oi] = struct{}{}
			matched = true
			break
		}

		if !matched {
			remaining = append(remaining, billProc)
		}
	}

	return matches, remaining, nil
}
