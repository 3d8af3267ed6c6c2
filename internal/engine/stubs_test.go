package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/chrscato/cdx-billreview/internal/model"
)

// stubTaxonomy serves (category, subcategory) pairs from a map.
type stubTaxonomy struct {
	classes map[string][2]string
	err     error
}

func (s *stubTaxonomy) ProcedureClass(_ context.Context, cpt string) (string, string, bool, error) {
	if s.err != nil {
		return "", "", false, s.err
	}
	class, ok := s.classes[cpt]
	if !ok {
		return "", "", false, nil
	}
	return class[0], class[1], true, nil
}

type rateKey struct {
	cpt      string
	party    string
	modifier string
}

// stubRates serves PPO and OTA rates from maps and records every lookup
// so tests can assert the rate stage was, or was not, reached.
type stubRates struct {
	ppo     map[rateKey]model.Cents
	ota     map[rateKey]model.Cents
	err     error
	lookups []string
}

func (s *stubRates) PPORate(_ context.Context, cpt, tin, modifier string) (model.Cents, bool, error) {
	s.lookups = append(s.lookups, fmt.Sprintf("ppo:%s:%s:%s", cpt, tin, modifier))
	if s.err != nil {
		return 0, false, s.err
	}
	rate, ok := s.ppo[rateKey{cpt: cpt, party: tin, modifier: modifier}]
	return rate, ok, nil
}

func (s *stubRates) OTARate(_ context.Context, orderID, cpt, modifier string) (model.Cents, bool, error) {
	s.lookups = append(s.lookups, fmt.Sprintf("ota:%s:%s:%s", cpt, orderID, modifier))
	if s.err != nil {
		return 0, false, s.err
	}
	rate, ok := s.ota[rateKey{cpt: cpt, party: orderID, modifier: modifier}]
	return rate, ok, nil
}

// billedProc is shorthand for a normalized billed procedure.
func billedProc(cpt string, modifiers ...string) model.Procedure {
	return model.NewProcedure(cpt, modifiers, 1, time.Time{}, model.SourceBilled)
}

// orderedProc is shorthand for a normalized ordered procedure.
func orderedProc(cpt string, modifiers ...string) model.Procedure {
	return model.NewProcedure(cpt, modifiers, 1, time.Time{}, model.SourceOrdered)
}
