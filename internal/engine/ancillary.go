package engine

import (
	"github.com/chrscato/cdx-billreview/internal/model"
	"github.com/chrscato/cdx-billreview/internal/refdata"
)

// FilterAncillaries removes allow-listed ancillary codes from the billed
// set before any matching runs. Ancillary services are administratively
// exempt from reconciliation and always price at zero. Both returned
// slices preserve input order.
func FilterAncillaries(procedures []model.Procedure, ancillary *refdata.AncillarySet) (filtered []model.Procedure, skipped []string) {
	filtered = make([]model.Procedure, 0, len(procedures))
	for _, proc := range procedures {
		if ancillary.Contains(proc.CPTCode) {
			skipped = append(skipped, proc.CPTCode)
			continue
		}
		filtered = append(filtered, proc)
	}
	return filtered, skipped
}
