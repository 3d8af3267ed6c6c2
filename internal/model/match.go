package model

// MatchType identifies which matcher resolved a billed procedure.
type MatchType string

const (
	MatchExact              MatchType = "EXACT"
	MatchBundled            MatchType = "BUNDLED"
	MatchClinicalEquivalent MatchType = "CLINICAL_EQUIVALENT"
)

// MatchResult pairs a billed procedure with the evidence that resolved
// it. Ordered is nil for bundle matches, which justify a billed code
// without consuming an ordered line.
type MatchResult struct {
	Ordered *Procedure
	Details string
	Type    MatchType
	Billed  Procedure
}

// MatchedLine is the document form of a match, written into the verdict.
type MatchedLine struct {
	BilledCPT  string    `json:"billed_cpt"`
	OrderedCPT string    `json:"ordered_cpt,omitempty"`
	MatchType  MatchType `json:"match_type"`
	Details    string    `json:"details,omitempty"`
}

// Line converts the match into its document form.
func (m MatchResult) Line() MatchedLine {
	line := MatchedLine{
		BilledCPT: m.Billed.CPTCode,
		MatchType: m.Type,
		Details:   m.Details,
	}
	if m.Ordered != nil {
		line.OrderedCPT = m.Ordered.CPTCode
	}
	return line
}
