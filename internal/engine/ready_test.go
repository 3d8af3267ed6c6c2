package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrscato/cdx-billreview/internal/model"
	"github.com/chrscato/cdx-billreview/internal/refdata"
)

// readyClaim builds a structurally complete in-network claim that passes
// the gate when a PPO rate exists for each billed code.
func readyClaim(cpts ...string) *model.Claim {
	claim := &model.Claim{}
	claim.PatientInfo = model.PatientInfo{PatientName: "Jane Doe", PatientDOB: "01/02/1980"}
	claim.BillingInfo = model.BillingInfo{
		BillingProviderTIN: "12-3456789",
		TotalCharge:        "1250.00",
	}
	claim.MappingInfo.OrderID = "ORD-1"
	claim.FileMaker.Provider = model.Provider{
		TIN:               "12-3456789",
		Network:           "In Network",
		BillingName:       "Imaging Partners LLC",
		BillingAddress1:   "100 Main St",
		BillingCity:       "Atlanta",
		BillingState:      "GA",
		BillingPostalCode: "30303",
	}
	claim.FileMaker.Order.OrderID = "ORD-1"
	claim.FileMaker.Order.PatientDOB = "01/02/1980"

	for _, cpt := range cpts {
		claim.ServiceLines = append(claim.ServiceLines, model.ServiceLine{
			DateOfService: "01/15/2024",
			CPTCode:       cpt,
			ChargeAmount:  "$625.00",
			Units:         model.NewFlexInt(1),
		})
		claim.FileMaker.LineItems = append(claim.FileMaker.LineItems, model.OrderLine{CPT: cpt})
	}
	return claim
}

func TestReadyValidatorPass(t *testing.T) {
	rates := &stubRates{ppo: map[rateKey]model.Cents{
		{cpt: "73721", party: "123456789", modifier: ""}: 45000,
	}}
	rv := NewReadyValidator(rates, refdata.NewAncillarySet())

	claim := readyClaim("73721")
	result, err := rv.Validate(context.Background(), claim)
	require.NoError(t, err)

	assert.True(t, result.Passed)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.MissingRates)

	require.NotNil(t, claim.ServiceLines[0].AssignedRate)
	assert.Equal(t, model.Cents(45000), *claim.ServiceLines[0].AssignedRate)
	assert.Equal(t, RateInfo{Rate: 45000, Source: RateSourcePPO}, result.FoundRates["73721"])

	require.NotNil(t, claim.RateCheckInfo)
	assert.Equal(t, "PASS", claim.RateCheckInfo.Status)
	assert.NotEmpty(t, claim.RateCheckInfo.Timestamp)

	assert.Equal(t, "1980-01-02", claim.FileMaker.Order.PatientDOB, "DOB is normalized to ISO")
}

func TestReadyValidatorStructureErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.Claim)
		want   string
	}{
		{
			name:   "missing patient name",
			mutate: func(c *model.Claim) { c.PatientInfo.PatientName = "" },
			want:   "Missing or empty required patient field: patient_name",
		},
		{
			name:   "missing patient dob",
			mutate: func(c *model.Claim) { c.PatientInfo.PatientDOB = "" },
			want:   "Missing or empty required patient field: patient_dob",
		},
		{
			name:   "no service lines",
			mutate: func(c *model.Claim) { c.ServiceLines = nil },
			want:   "Empty service_lines array",
		},
		{
			name:   "service line missing cpt",
			mutate: func(c *model.Claim) { c.ServiceLines[0].CPTCode = "" },
			want:   "Service line 1 missing required field: cpt_code",
		},
		{
			name:   "service line missing charge",
			mutate: func(c *model.Claim) { c.ServiceLines[0].ChargeAmount = "" },
			want:   "Service line 1 missing required field: charge_amount",
		},
		{
			name:   "missing billing TIN",
			mutate: func(c *model.Claim) { c.BillingInfo.BillingProviderTIN = "" },
			want:   "Missing or empty required billing field: billing_provider_tin",
		},
		{
			name:   "missing total charge",
			mutate: func(c *model.Claim) { c.BillingInfo.TotalCharge = "" },
			want:   "Missing or empty required billing field: total_charge",
		},
		{
			name:   "missing order id",
			mutate: func(c *model.Claim) { c.MappingInfo.OrderID = "" },
			want:   "Missing or empty order_id in mapping_info",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rv := NewReadyValidator(&stubRates{}, refdata.NewAncillarySet())
			claim := readyClaim("73721")
			tt.mutate(claim)

			result, err := rv.Validate(context.Background(), claim)
			require.NoError(t, err)
			assert.False(t, result.Passed)
			assert.Contains(t, result.Errors, tt.want)
		})
	}
}

func TestReadyValidatorFormatErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.Claim)
		want   string
	}{
		{
			name:   "bad provider TIN",
			mutate: func(c *model.Claim) { c.FileMaker.Provider.TIN = "12345" },
			want:   "Invalid TIN format in filemaker.provider (must be 9 digits)",
		},
		{
			name:   "missing billing name",
			mutate: func(c *model.Claim) { c.FileMaker.Provider.BillingName = "" },
			want:   "Missing required billing field in provider: Billing Name",
		},
		{
			name:   "unparseable order DOB",
			mutate: func(c *model.Claim) { c.FileMaker.Order.PatientDOB = "yesterday" },
			want:   "Invalid patient DOB format in filemaker.order (cannot parse date)",
		},
		{
			name:   "bad date of service",
			mutate: func(c *model.Claim) { c.ServiceLines[0].DateOfService = "15th of March" },
			want:   "Service line 1: Invalid date_of_service format (15th of March)",
		},
		{
			name:   "unknown modifier",
			mutate: func(c *model.Claim) { c.ServiceLines[0].Modifiers = []string{"XU"} },
			want:   "Service line 1: Invalid modifier(s) [XU]",
		},
		{
			name:   "unparseable charge",
			mutate: func(c *model.Claim) { c.ServiceLines[0].ChargeAmount = "TBD" },
			want:   "Service line 1: Invalid charge amount (TBD)",
		},
		{
			name:   "zero charge",
			mutate: func(c *model.Claim) { c.ServiceLines[0].ChargeAmount = "0.00" },
			want:   "Service line 1: Charge amount not positive (0.00)",
		},
		{
			name:   "zero units",
			mutate: func(c *model.Claim) { c.ServiceLines[0].Units = model.NewFlexInt(0) },
			want:   "Service line 1: Units must be a positive integer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rv := NewReadyValidator(&stubRates{}, refdata.NewAncillarySet())
			claim := readyClaim("73721")
			tt.mutate(claim)

			result, err := rv.Validate(context.Background(), claim)
			require.NoError(t, err)
			assert.False(t, result.Passed)
			assert.Contains(t, result.Errors, tt.want)
		})
	}
}

func TestReadyValidatorUncertainAccountNumber(t *testing.T) {
	rates := &stubRates{ppo: map[rateKey]model.Cents{
		{cpt: "73721", party: "123456789", modifier: ""}: 45000,
	}}
	rv := NewReadyValidator(rates, refdata.NewAncillarySet())

	claim := readyClaim("73721")
	claim.BillingInfo.PatientAccountNo = "Uncertain"

	_, err := rv.Validate(context.Background(), claim)
	require.NoError(t, err)
	assert.Equal(t, "N/A", claim.BillingInfo.PatientAccountNo)
}

func TestCanonicalModifiers(t *testing.T) {
	tests := []struct {
		name      string
		modifiers []string
		want      []string
	}{
		{name: "TC wins over 26", modifiers: []string{"26", "TC"}, want: []string{"TC"}},
		{name: "LT wins over RT", modifiers: []string{"RT", "LT"}, want: []string{"LT"}},
		{name: "laterality before component", modifiers: []string{"TC", "LT"}, want: []string{"LT", "TC"}},
		{name: "case insensitive", modifiers: []string{"lt"}, want: []string{"LT"}},
		{name: "unknown dropped", modifiers: []string{"XU"}, want: nil},
		{name: "empty", modifiers: nil, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanonicalModifiers(tt.modifiers))
		})
	}
}

func TestReadyValidatorMissingRate(t *testing.T) {
	rv := NewReadyValidator(&stubRates{}, refdata.NewAncillarySet())

	claim := readyClaim("73721")
	claim.ServiceLines[0].Modifiers = []string{"TC"}

	result, err := rv.Validate(context.Background(), claim)
	require.NoError(t, err)

	assert.False(t, result.Passed)
	require.Len(t, result.MissingRates, 1)
	assert.Equal(t, MissingRate{CPT: "73721", Modifier: "TC", Network: "In Network"}, result.MissingRates[0])
	assert.Nil(t, claim.RateCheckInfo, "a failing claim is never stamped")
}

func TestReadyValidatorAncillaryLine(t *testing.T) {
	rv := NewReadyValidator(&stubRates{}, refdata.NewAncillarySet("99070"))

	claim := readyClaim("99070")
	result, err := rv.Validate(context.Background(), claim)
	require.NoError(t, err)

	assert.True(t, result.Passed)
	assert.Equal(t, []string{"99070"}, result.AncillaryCPTs)
	require.NotNil(t, claim.ServiceLines[0].AssignedRate)
	assert.Equal(t, model.Cents(0), *claim.ServiceLines[0].AssignedRate)
}

func TestReconcileLineCounts(t *testing.T) {
	ancillary := refdata.NewAncillarySet("99070")

	claim := &model.Claim{}
	claim.ServiceLines = []model.ServiceLine{
		{CPTCode: "73721"},
		{CPTCode: "73721"},
		{CPTCode: "72148"},
		{CPTCode: "99070"},
	}
	claim.FileMaker.LineItems = []model.OrderLine{
		{CPT: "73721"},
		{CPT: "70553"},
		{CPT: "None"},
		{CPT: "99070"},
	}

	rec := ReconcileLineCounts(claim, ancillary)

	assert.False(t, rec.Matched)
	assert.Equal(t, []string{"70553"}, rec.MissingFromBilled)
	assert.Equal(t, []string{"72148"}, rec.MissingFromOrdered)
	require.Len(t, rec.CountMismatches, 1)
	assert.Equal(t, CountMismatch{CPT: "73721", BilledCount: 2, OrderedCount: 1}, rec.CountMismatches[0])
}

func TestReconcileLineCountsMatched(t *testing.T) {
	claim := &model.Claim{}
	claim.ServiceLines = []model.ServiceLine{{CPTCode: "73721"}}
	claim.FileMaker.LineItems = []model.OrderLine{{CPT: "73721"}}

	rec := ReconcileLineCounts(claim, refdata.NewAncillarySet())
	assert.True(t, rec.Matched)
}

func TestReadyValidatorReconciliationIsAdvisory(t *testing.T) {
	rates := &stubRates{ppo: map[rateKey]model.Cents{
		{cpt: "73721", party: "123456789", modifier: ""}: 45000,
	}}
	rv := NewReadyValidator(rates, refdata.NewAncillarySet())

	claim := readyClaim("73721")
	claim.FileMaker.LineItems = append(claim.FileMaker.LineItems, model.OrderLine{CPT: "70553"})

	result, err := rv.Validate(context.Background(), claim)
	require.NoError(t, err)

	assert.True(t, result.Passed, "count discrepancies alone do not block the gate")
	require.NotNil(t, result.Reconciliation)
	assert.False(t, result.Reconciliation.Matched)
}
