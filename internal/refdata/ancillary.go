// Package refdata loads the read-only reference data consulted during
// validation: the ancillary CPT allow-list and the procedure bundle
// definitions. Both are loaded once per run and treated as immutable.
package refdata

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// AncillarySet is the allow-list of CPT codes exempt from matching and
// unit rules. Ancillary codes always price at zero.
type AncillarySet struct {
	codes map[string]struct{}
}

// NewAncillarySet builds a set from explicit codes. Codes are normalized
// the same way Procedure codes are.
func NewAncillarySet(codes ...string) *AncillarySet {
	set := &AncillarySet{codes: make(map[string]struct{}, len(codes))}
	for _, c := range codes {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c != "" {
			set.codes[c] = struct{}{}
		}
	}
	return set
}

// LoadAncillarySet reads the allow-list JSON file. The file maps each
// ancillary code to its description; only the keys matter here. An empty
// file is valid and filters nothing.
func LoadAncillarySet(path string) (*AncillarySet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ancillary codes: %w", err)
	}

	var doc struct {
		AncillaryCodes map[string]json.RawMessage `json:"ancillary_codes"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse ancillary codes: %w", err)
	}

	codes := make([]string, 0, len(doc.AncillaryCodes))
	for code := range doc.AncillaryCodes {
		codes = append(codes, code)
	}
	return NewAncillarySet(codes...), nil
}

// Contains reports whether the code is on the allow-list.
func (a *AncillarySet) Contains(cpt string) bool {
	if a == nil {
		return false
	}
	_, ok := a.codes[strings.ToUpper(strings.TrimSpace(cpt))]
	return ok
}

// Len returns the number of codes on the allow-list.
func (a *AncillarySet) Len() int {
	if a == nil {
		return 0
	}
	return len(a.codes)
}
