package engine

import (
	"fmt"

	"github.com/chrscato/cdx-billreview/internal/model"
	"github.com/chrscato/cdx-billreview/internal/refdata"
)

// MatchBundles absorbs billed codes that individually lack an ordered
// counterpart but collectively form a known clinical bundle. Bundles are
// checked in definition order; the first bundle whose core codes are all
// present consumes every core and optional code found in the billed set,
// and the scan stops there. Only one bundle is applied per validation
// run: a claim carrying two unrelated bundled groups has only the first
// resolved here, leaving the second to the clinical stage or to failure.
func MatchBundles(billed []model.Procedure, bundles []refdata.Bundle) (matches []model.MatchResult, remaining []model.Procedure) {
	remaining = billed

	billedByCode := make(map[string]model.Procedure, len(billed))
	codeSet := make(map[string]struct{}, len(billed))
	for _, proc := range billed {
		if _, seen := billedByCode[proc.CPTCode]; !seen {
			billedByCode[proc.CPTCode] = proc
		}
		codeSet[proc.CPTCode] = struct{}{}
	}

	for _, bundle := range bundles {
		if !bundle.HasCore(codeSet) {
			continue
		}

		consumed := make(map[string]struct{})
		for _, code := range bundle.AllCodes() {
			proc, present := billedByCode[code]
			if !present {
				continue
			}
			if _, dup := consumed[code]; dup {
				continue
			}
			matches = append(matches, model.MatchResult{
				Billed:  proc,
				Ordered: nil,
				Type:    model.MatchBundled,
				Details: fmt.Sprintf("Part of bundle: %s", bundle.Name),
			})
			consumed[code] = struct{}{}
		}

		remaining = nil
		for _, proc := range billed {
			if _, ok := consumed[proc.CPTCode]; !ok {
				remaining = append(remaining, proc)
			}
		}
		break
	}

	return matches, remaining
}
