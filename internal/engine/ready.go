package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/chrscato/cdx-billreview/internal/model"
	"github.com/chrscato/cdx-billreview/internal/refdata"
	"github.com/chrscato/cdx-billreview/internal/service"
)

// ReadyValidator gates claims staged for payment-document generation. It
// is a superset of the structural and rate validation the core engine
// performs: field-format normalization, line reconciliation, and a full
// rate pass that stamps assigned rates onto the service lines. The rate
// lookup itself is the same RateResolver the core engine uses.
type ReadyValidator struct {
	resolver  *RateResolver
	ancillary *refdata.AncillarySet
}

// NewReadyValidator wires the gate over the shared rate source and
// ancillary allow-list.
func NewReadyValidator(rates service.RateSource, ancillary *refdata.AncillarySet) *ReadyValidator {
	return &ReadyValidator{
		resolver:  NewRateResolver(rates, ancillary),
		ancillary: ancillary,
	}
}

// RateInfo describes one resolved service-line rate.
type RateInfo struct {
	Modifier string
	Source   string
	Rate     model.Cents
}

// MissingRate describes one service line the rate tables could not price.
type MissingRate struct {
	CPT      string
	Modifier string
	Network  string
}

// ReadyResult is the outcome of one ready-for-process check.
type ReadyResult struct {
	FoundRates     map[string]RateInfo
	Reconciliation *Reconciliation
	Errors         []string
	MissingRates   []MissingRate
	AncillaryCPTs  []string
	Passed         bool
}

// Validate runs the gate: structure, field formats, line reconciliation,
// then rates. Rates are only attempted on structurally sound claims. On a
// clean pass every service line carries its assigned rate and the claim
// is stamped ready; the caller moves it to the EOBR-ready destination.
func (rv *ReadyValidator) Validate(ctx context.Context, claim *model.Claim) (*ReadyResult, error) {
	result := &ReadyResult{FoundRates: make(map[string]RateInfo)}

	result.Errors = append(result.Errors, CheckStructure(claim)...)
	if len(result.Errors) == 0 {
		result.Errors = append(result.Errors, NormalizeFieldFormats(claim)...)
	}
	if len(result.Errors) > 0 {
		return result, nil
	}

	result.Reconciliation = ReconcileLineCounts(claim, rv.ancillary)

	netCtx := NetworkContextFromClaim(claim)
	if netCtx.Network == "" {
		result.Errors = append(result.Errors, "Missing Provider Network status")
		return result, nil
	}
	if !netCtx.InNetwork() && netCtx.OrderID == "" {
		result.Errors = append(result.Errors, "Missing Order ID for out-of-network rate check")
		return result, nil
	}

	for i := range claim.ServiceLines {
		line := &claim.ServiceLines[i]
		cpt := strings.ToUpper(strings.TrimSpace(line.CPTCode))
		if cpt == "" {
			continue
		}

		if rv.ancillary.Contains(cpt) {
			result.AncillaryCPTs = append(result.AncillaryCPTs, cpt)
			zero := model.Cents(0)
			line.AssignedRate = &zero
			result.FoundRates[cpt] = RateInfo{Source: RateSourceAncillary}
			continue
		}

		if netCtx.InNetwork() && model.CleanTIN(netCtx.TIN) == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("Missing provider TIN for in-network CPT %s", cpt))
			continue
		}

		rate, source, found, err := rv.resolver.ResolveLine(ctx, cpt, line.Modifiers, netCtx)
		if err != nil {
			return nil, fmt.Errorf("rate lookup for %s: %w", cpt, err)
		}
		if !found {
			result.MissingRates = append(result.MissingRates, MissingRate{
				CPT:      cpt,
				Modifier: PriorityModifier(line.Modifiers),
				Network:  netCtx.Network,
			})
			continue
		}

		assigned := rate
		line.AssignedRate = &assigned
		result.FoundRates[cpt] = RateInfo{
			Rate:     rate,
			Modifier: PriorityModifier(line.Modifiers),
			Source:   source,
		}
	}

	result.Passed = len(result.Errors) == 0 && len(result.MissingRates) == 0
	if result.Passed {
		claim.RateCheckInfo = &model.RateCheckInfo{
			Timestamp: time.Now().Format(time.RFC3339),
			Status:    "PASS",
		}
	}
	return result, nil
}

// CheckStructure verifies the claim carries every section and field the
// payment pipeline depends on.
func CheckStructure(claim *model.Claim) []string {
	var errs []string

	if claim.PatientInfo.PatientName == "" {
		errs = append(errs, "Missing or empty required patient field: patient_name")
	}
	if claim.PatientInfo.PatientDOB == "" {
		errs = append(errs, "Missing or empty required patient field: patient_dob")
	}

	if len(claim.ServiceLines) == 0 {
		errs = append(errs, "Empty service_lines array")
	}
	for i, line := range claim.ServiceLines {
		if line.DateOfService == "" {
			errs = append(errs, fmt.Sprintf("Service line %d missing required field: date_of_service", i+1))
		}
		if line.CPTCode == "" {
			errs = append(errs, fmt.Sprintf("Service line %d missing required field: cpt_code", i+1))
		}
		if line.ChargeAmount == "" {
			errs = append(errs, fmt.Sprintf("Service line %d missing required field: charge_amount", i+1))
		}
	}

	if claim.BillingInfo.BillingProviderTIN == "" {
		errs = append(errs, "Missing or empty required billing field: billing_provider_tin")
	}
	if claim.BillingInfo.TotalCharge == "" {
		errs = append(errs, "Missing or empty required billing field: total_charge")
	}
	if claim.MappingInfo.OrderID == "" {
		errs = append(errs, "Missing or empty order_id in mapping_info")
	}

	return errs
}

// dobLayouts are the accepted patient date-of-birth formats.
var dobLayouts = []string{
	"01/02/2006", "01-02-2006", "01/02/06", "01-02-06",
	"01 02 2006", "2006-01-02", "2006-01-02 15:04:05",
}

// allowedModifiers are the only modifiers the payment pipeline accepts.
var allowedModifiers = map[string]struct{}{
	"LT": {}, "RT": {}, "26": {}, "TC": {},
}

// NormalizeFieldFormats validates field formats and normalizes them in
// place: the provider TIN must be 9 digits, the patient DOB is rewritten
// as YYYY-MM-DD, uncertain account numbers become N/A, and service-line
// modifiers are canonicalized. Returns the formatting errors found.
func NormalizeFieldFormats(claim *model.Claim) []string {
	var errs []string

	tin := model.CleanTIN(claim.FileMaker.Provider.TIN)
	if len(tin) != 9 {
		errs = append(errs, "Invalid TIN format in filemaker.provider (must be 9 digits)")
	}

	for _, field := range []struct{ name, value string }{
		{"Billing Address 1", claim.FileMaker.Provider.BillingAddress1},
		{"Billing Address City", claim.FileMaker.Provider.BillingCity},
		{"Billing Address State", claim.FileMaker.Provider.BillingState},
		{"Billing Address Postal Code", claim.FileMaker.Provider.BillingPostalCode},
		{"Billing Name", claim.FileMaker.Provider.BillingName},
	} {
		if field.value == "" {
			errs = append(errs, fmt.Sprintf("Missing required billing field in provider: %s", field.name))
		}
	}

	if dob := strings.TrimSpace(claim.FileMaker.Order.PatientDOB); dob != "" {
		parsed := false
		for _, layout := range dobLayouts {
			if t, err := time.Parse(layout, dob); err == nil {
				claim.FileMaker.Order.PatientDOB = t.Format("2006-01-02")
				parsed = true
				break
			}
		}
		if !parsed {
			errs = append(errs, "Invalid patient DOB format in filemaker.order (cannot parse date)")
		}
	}

	if strings.EqualFold(strings.TrimSpace(claim.BillingInfo.PatientAccountNo), "uncertain") {
		claim.BillingInfo.PatientAccountNo = "N/A"
	}

	for i := range claim.ServiceLines {
		line := &claim.ServiceLines[i]

		if dos := line.DateOfService; dos != "" && model.ParseDOS(dos).IsZero() {
			errs = append(errs, fmt.Sprintf("Service line %d: Invalid date_of_service format (%s)", i+1, dos))
		}

		if len(line.Modifiers) > 0 {
			for _, mod := range line.Modifiers {
				if _, ok := allowedModifiers[strings.ToUpper(strings.TrimSpace(mod))]; !ok {
					errs = append(errs, fmt.Sprintf("Service line %d: Invalid modifier(s) %v", i+1, line.Modifiers))
					break
				}
			}
			line.Modifiers = CanonicalModifiers(line.Modifiers)
		}

		if charge := line.ChargeAmount; charge != "" {
			value, err := model.ParseCents(charge)
			if err != nil {
				errs = append(errs, fmt.Sprintf("Service line %d: Invalid charge amount (%s)", i+1, charge))
			} else if value <= 0 {
				errs = append(errs, fmt.Sprintf("Service line %d: Charge amount not positive (%s)", i+1, charge))
			}
		}

		if line.Units.Value(0) <= 0 {
			errs = append(errs, fmt.Sprintf("Service line %d: Units must be a positive integer", i+1))
		}
	}

	return errs
}

// CanonicalModifiers reduces a modifier list to the payment-relevant set:
// at most one component modifier (TC wins over 26) and one laterality
// modifier (LT wins over RT). Anything else is dropped.
func CanonicalModifiers(modifiers []string) []string {
	var component, laterality string
	for _, mod := range modifiers {
		switch strings.ToUpper(strings.TrimSpace(mod)) {
		case "TC":
			component = "TC"
		case "26":
			if component == "" {
				component = "26"
			}
		case "LT":
			laterality = "LT"
		case "RT":
			if laterality == "" {
				laterality = "RT"
			}
		}
	}

	var out []string
	if laterality != "" {
		out = append(out, laterality)
	}
	if component != "" {
		out = append(out, component)
	}
	return out
}

// CountMismatch reports a CPT billed and ordered a different number of
// times.
type CountMismatch struct {
	CPT          string `json:"cpt"`
	BilledCount  int    `json:"billed_count"`
	OrderedCount int    `json:"ordered_count"`
}

// Reconciliation is a count-based multiset comparison of billed versus
// ordered CPTs, ignoring ancillaries. It is advisory: discrepancies feed
// the review queue but do not block the gate on their own.
type Reconciliation struct {
	MissingFromBilled  []string        `json:"cpt_in_order_not_billed"`
	MissingFromOrdered []string        `json:"cpt_billed_not_in_order"`
	CountMismatches    []CountMismatch `json:"cpt_count_mismatches"`
	Matched            bool            `json:"matched"`
}

// ReconcileLineCounts compares billed and ordered CPT counts.
func ReconcileLineCounts(claim *model.Claim, ancillary *refdata.AncillarySet) *Reconciliation {
	billedCounts := make(map[string]int)
	for _, line := range claim.ServiceLines {
		cpt := strings.ToUpper(strings.TrimSpace(line.CPTCode))
		if cpt == "" || ancillary.Contains(cpt) {
			continue
		}
		billedCounts[cpt]++
	}

	orderedCounts := make(map[string]int)
	for _, line := range claim.FileMaker.LineItems {
		cpt := strings.ToUpper(strings.TrimSpace(line.CPT))
		if cpt == "" || strings.EqualFold(cpt, "none") || ancillary.Contains(cpt) {
			continue
		}
		orderedCounts[cpt]++
	}

	all := make([]string, 0, len(billedCounts)+len(orderedCounts))
	seen := make(map[string]struct{})
	for cpt := range billedCounts {
		seen[cpt] = struct{}{}
		all = append(all, cpt)
	}
	for cpt := range orderedCounts {
		if _, ok := seen[cpt]; !ok {
			all = append(all, cpt)
		}
	}
	sort.Strings(all)

	rec := &Reconciliation{}
	for _, cpt := range all {
		billed, ordered := billedCounts[cpt], orderedCounts[cpt]
		switch {
		case billed == 0:
			rec.MissingFromBilled = append(rec.MissingFromBilled, cpt)
		case ordered == 0:
			rec.MissingFromOrdered = append(rec.MissingFromOrdered, cpt)
		case billed != ordered:
			rec.CountMismatches = append(rec.CountMismatches, CountMismatch{
				CPT:          cpt,
				BilledCount:  billed,
				OrderedCount: ordered,
			})
		}
	}
	rec.Matched = len(rec.MissingFromBilled) == 0 && len(rec.MissingFromOrdered) == 0 && len(rec.CountMismatches) == 0
	return rec
}
