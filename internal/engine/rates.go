package engine

import (
	"context"
	"fmt"

	"github.com/chrscato/cdx-billreview/internal/model"
	"github.com/chrscato/cdx-billreview/internal/refdata"
	"github.com/chrscato/cdx-billreview/internal/service"
)

// Rate sources reported on resolved lines.
const (
	RateSourcePPO       = "PPO"
	RateSourceOTA       = "OTA"
	RateSourceAncillary = "Ancillary"
)

// NetworkContext carries the claim fields that select the rate table.
// In-network providers price per provider (PPO, keyed by TIN);
// out-of-network claims price per order (OTA, keyed by order ID).
type NetworkContext struct {
	Network string
	TIN     string
	OrderID string
}

// NetworkContextFromClaim extracts the rate-lookup context. The order ID
// on the order header is authoritative; the mapping info is the fallback.
func NetworkContextFromClaim(claim *model.Claim) NetworkContext {
	orderID := claim.FileMaker.Order.OrderID
	if orderID == "" {
		orderID = claim.MappingInfo.OrderID
	}
	return NetworkContext{
		Network: claim.FileMaker.Provider.Network,
		TIN:     claim.FileMaker.Provider.TIN,
		OrderID: orderID,
	}
}

// InNetwork reports whether the PPO table applies.
func (n NetworkContext) InNetwork() bool {
	return n.Network == "In Network"
}

// RateResult aggregates one resolution pass over a billed set.
type RateResult struct {
	Rates   map[string]model.Cents
	Missing []string
	Errors  []string
}

// Failed reports whether any code is missing a rate or lacked required
// context. Mirrors the verdict rule: rate problems are FAIL evidence.
func (r RateResult) Failed() bool {
	return len(r.Missing) > 0 || len(r.Errors) > 0
}

// RateResolver attaches a dollar rate to every billed procedure. One
// resolver serves both the core validation pass and the ready-for-process
// gate so the PPO/OTA lookup semantics cannot drift apart.
type RateResolver struct {
	rates     service.RateSource
	ancillary *refdata.AncillarySet
}

// NewRateResolver wires a resolver over a rate source and the ancillary
// allow-list.
func NewRateResolver(rates service.RateSource, ancillary *refdata.AncillarySet) *RateResolver {
	return &RateResolver{rates: rates, ancillary: ancillary}
}

// PriorityModifier returns the first modifier equal to "26" or "TC".
// Only the professional/technical component split participates in rate
// differentiation; every other modifier is ignored for pricing.
func PriorityModifier(modifiers []string) string {
	for _, mod := range modifiers {
		if mod == "26" || mod == "TC" {
			return mod
		}
	}
	return ""
}

// Resolve prices every procedure in the billed set. Missing context
// (network status, order ID, TIN) is reported as result content, not as a
// Go error; only rate-source failures propagate as errors. Ancillary
// codes resolve to zero without a lookup.
func (r *RateResolver) Resolve(ctx context.Context, procedures []model.Procedure, netCtx NetworkContext) (RateResult, error) {
	result := RateResult{Rates: make(map[string]model.Cents, len(procedures))}

	if netCtx.Network == "" {
		result.Errors = append(result.Errors, "Missing Provider Network status")
		return result, nil
	}
	if !netCtx.InNetwork() && netCtx.OrderID == "" {
		result.Errors = append(result.Errors, "Missing Order ID for out-of-network rate check")
		return result, nil
	}

	tin := model.CleanTIN(netCtx.TIN)

	for _, proc := range procedures {
		cpt := proc.CPTCode
		if r.ancillary.Contains(cpt) {
			result.Rates[cpt] = 0
			continue
		}

		modifier := PriorityModifier(proc.Modifiers)

		var (
			rate  model.Cents
			found bool
			err   error
		)
		if netCtx.InNetwork() {
			if tin == "" {
				result.Errors = append(result.Errors, fmt.Sprintf("Missing provider TIN for in-network CPT %s", cpt))
				continue
			}
			rate, found, err = r.rates.PPORate(ctx, cpt, tin, modifier)
		} else {
			rate, found, err = r.rates.OTARate(ctx, netCtx.OrderID, cpt, modifier)
		}
		if err != nil {
			return RateResult{}, fmt.Errorf("rate lookup for %s: %w", cpt, err)
		}

		if found {
			result.Rates[cpt] = rate
		} else {
			result.Missing = append(result.Missing, cpt)
		}
	}

	return result, nil
}

// ResolveLine prices a single service line for the ready-for-process
// gate. The bool reports whether a rate was found; source names the table
// that supplied it.
func (r *RateResolver) ResolveLine(ctx context.Context, cpt string, modifiers []string, netCtx NetworkContext) (rate model.Cents, source string, found bool, err error) {
	if r.ancillary.Contains(cpt) {
		return 0, RateSourceAncillary, true, nil
	}

	modifier := PriorityModifier(modifiers)
	if netCtx.InNetwork() {
		rate, found, err = r.rates.PPORate(ctx, cpt, model.CleanTIN(netCtx.TIN), modifier)
		return rate, RateSourcePPO, found, err
	}
	rate, found, err = r.rates.OTARate(ctx, netCtx.OrderID, cpt, modifier)
	return rate, RateSourceOTA, found, err
}
