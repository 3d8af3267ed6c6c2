package engine

import "github.com/chrscato/cdx-billreview/internal/model"

// ValidateUnits flags non-ancillary procedures billed with more than one
// unit. Multi-unit billing on a non-ancillary code is a hard failure that
// requires human review. The input is the ancillary-filtered billed set,
// so ancillary codes, which legitimately bill multiple units, are never
// checked here.
func ValidateUnits(procedures []model.Procedure) (hasViolation bool, messages []string) {
	for _, proc := range procedures {
		if proc.Units > 1 {
			messages = append(messages, model.UnitReason(proc.CPTCode, proc.Units))
		}
	}
	return len(messages) > 0, messages
}
