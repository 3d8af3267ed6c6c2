package model

import "fmt"

// Status is the overall validation outcome.
type Status string

const (
	// StatusPass means every billed procedure was justified exactly or
	// through a bundle, units were clean, and every rate resolved.
	StatusPass Status = "PASS"
	// StatusSoftPass means the claim is payable but at least one billed
	// procedure matched only through clinical equivalence.
	StatusSoftPass Status = "SOFT_PASS"
	// StatusFail means at least one failure reason was recorded.
	StatusFail Status = "FAIL"
)

// Route is the claim-store destination a validated claim moves to,
// relative to the staging prefix.
type Route string

const (
	RouteSuccess    Route = "success"
	RouteFail       Route = "fails"
	RouteArthrogram Route = "arthrograms"
)

// Verdict is the validation outcome stamped onto the claim document.
// FailureReasons keeps a fixed order: unmatched codes first, then unit
// violations, then rate problems.
type Verdict struct {
	Status         Status        `json:"status"`
	FailureReasons []string      `json:"failure_reasons"`
	MatchedLines   []MatchedLine `json:"matched_lines"`
	UnmatchedCPTs  []string      `json:"unmatched_cpts,omitempty"`
	SkippedCPTs    []string      `json:"skipped_ancillary_cpts,omitempty"`
}

// Failed reports whether the claim routes to the failure queue.
func (v *Verdict) Failed() bool {
	return v.Status == StatusFail
}

// Route maps the status to its claim-store destination. SOFT_PASS
// claims are payable and travel with the successes.
func (v *Verdict) Route() Route {
	if v.Failed() {
		return RouteFail
	}
	return RouteSuccess
}

// UnmatchedReason tags a billed CPT no matcher could justify.
func UnmatchedReason(cpt string) string {
	return fmt.Sprintf("UNMATCHED_CPT: %s", cpt)
}

// UnitReason tags a non-ancillary CPT billed with more than one unit.
func UnitReason(cpt string, units int) string {
	return fmt.Sprintf("TOO_MANY_UNITS: %s billed with %d units", cpt, units)
}

// RateMissingReason tags a CPT the rate tables could not price.
func RateMissingReason(cpt string) string {
	return fmt.Sprintf("RATE_MISSING: %s", cpt)
}
