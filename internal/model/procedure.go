package model

import (
	"encoding/json"
	"strings"
	"time"
)

// Procedure sources.
const (
	SourceBilled  = "billed"
	SourceOrdered = "ordered"
)

// Procedure is the normalized unit the matchers operate on: one CPT code
// from either the billed or the ordered side, with its modifiers, units,
// and service date. A zero DateOfService means the date was absent or
// unparseable; matching never depends on it. Raw keeps the source line
// as it arrived, for traceability only; no stage reads it.
type Procedure struct {
	DateOfService time.Time
	CPTCode       string
	Source        string
	Modifiers     []string
	Units         int
	Raw           json.RawMessage
}

// NewProcedure builds a normalized procedure: the CPT code is trimmed
// and uppercased, blank modifiers are dropped, and units below one are
// clamped to one.
func NewProcedure(cpt string, modifiers []string, units int, dos time.Time, source string) Procedure {
	cleaned := make([]string, 0, len(modifiers))
	for _, mod := range modifiers {
		mod = strings.ToUpper(strings.TrimSpace(mod))
		if mod == "" || mod == "NONE" {
			continue
		}
		cleaned = append(cleaned, mod)
	}
	if len(cleaned) == 0 {
		cleaned = nil
	}
	if units < 1 {
		units = 1
	}
	return Procedure{
		DateOfService: dos,
		CPTCode:       strings.ToUpper(strings.TrimSpace(cpt)),
		Source:        source,
		Modifiers:     cleaned,
		Units:         units,
	}
}

// FromServiceLine converts one billed service line.
func FromServiceLine(line ServiceLine) Procedure {
	proc := NewProcedure(line.CPTCode, line.Modifiers, line.Units.Value(1), ParseDOS(line.DateOfService), SourceBilled)
	proc.Raw = rawLine(line)
	return proc
}

// FromOrderLine converts one ordered line item. FileMaker exports a
// single modifier per line, sometimes the literal string "None".
func FromOrderLine(line OrderLine) Procedure {
	var modifiers []string
	if line.Modifier != "" {
		modifiers = []string{line.Modifier}
	}
	proc := NewProcedure(line.CPT, modifiers, line.Units.Value(1), ParseDOS(line.DOS), SourceOrdered)
	proc.Raw = rawLine(line)
	return proc
}

// rawLine re-encodes the source record; both line types are plain data
// and always marshal.
func rawLine(line any) json.RawMessage {
	raw, err := json.Marshal(line)
	if err != nil {
		return nil
	}
	return raw
}

// FromServiceLines converts the billed side, dropping lines with no CPT
// code.
func FromServiceLines(lines []ServiceLine) []Procedure {
	procedures := make([]Procedure, 0, len(lines))
	for _, line := range lines {
		proc := FromServiceLine(line)
		if proc.CPTCode == "" {
			continue
		}
		procedures = append(procedures, proc)
	}
	return procedures
}

// FromOrderLines converts the ordered side, dropping lines with no CPT
// code.
func FromOrderLines(lines []OrderLine) []Procedure {
	procedures := make([]Procedure, 0, len(lines))
	for _, line := range lines {
		proc := FromOrderLine(line)
		if proc.CPTCode == "" {
			continue
		}
		procedures = append(procedures, proc)
	}
	return procedures
}

// dosLayouts are the accepted service-date formats.
var dosLayouts = []string{"01/02/2006", "2006-01-02"}

// ParseDOS parses a service date. Range values like
// "01/15/2024 - 01/16/2024" resolve to their start date. Unparseable
// input degrades to the zero time rather than failing the claim; the
// matchers do not key on dates.
func ParseDOS(dos string) time.Time {
	dos = strings.TrimSpace(dos)
	if dos == "" {
		return time.Time{}
	}
	if start, _, found := strings.Cut(dos, " - "); found {
		dos = strings.TrimSpace(start)
	}
	for _, layout := range dosLayouts {
		if t, err := time.Parse(layout, dos); err == nil {
			return t
		}
	}
	return time.Time{}
}
