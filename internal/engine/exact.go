package engine

import "github.com/chrscato/cdx-billreview/internal/model"

// MatchExact pairs billed and ordered procedures with identical CPT codes,
// one to one. The scan is greedy and stable: each billed procedure takes
// the first unconsumed ordered procedure with the same code, in input
// order, with no backtracking. Duplicate codes therefore resolve to
// first-available pairing. That keeps the algorithm O(n·m) and
// deterministic; it deliberately does not attempt assignment-problem
// optimality across dates or modifiers.
//
// Remaining slices preserve original relative order and exclude anything
// claimed by a match.
func MatchExact(billed, ordered []model.Procedure) (matches []model.MatchResult, remainingBilled, remainingOrdered []model.Procedure) {
	usedOrdered := make(map[int]struct{}, len(ordered))
	matchedBilled := make(map[int]struct{}, len(billed))

	for bi, billProc := range billed {
		for oi := range ordered {
			if _, used := usedOrdered[oi]; used {
				continue
			}
			if billProc.CPTCode != ordered[oi].CPTCode {
				continue
			}
			ordProc := ordered[oi]
			matches = append(matches, model.MatchResult{
				Billed:  billProc,
				Ordered: &ordProc,
				Type:    model.MatchExact,
			})
			usedOrdered[oi] = struct{}{}
			matchedBilled[bi] = struct{}{}
			break
		}
	}

	for bi, proc := range billed {
		if _, ok := matchedBilled[bi]; !ok {
			remainingBilled = append(remainingBilled, proc)
		}
	}
	for oi, proc := range ordered {
		if _, ok := usedOrdered[oi]; !ok {
			remainingOrdered = append(remainingOrdered, proc)
		}
	}

	return matches, remainingBilled, remainingOrdered
}
