package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Cents is a monetary amount in integer cents. All rate and charge
// arithmetic happens in cents; dollars exist only at the parse and
// display boundaries.
type Cents int64

// ParseCents parses a currency string like "$1,234.56", "250", or
// "-17.5" into cents. Fractions beyond two decimal places are truncated.
func ParseCents(s string) (Cents, error) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.ReplaceAll(cleaned, "$", "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" {
		return 0, fmt.Errorf("empty currency value")
	}

	negative := false
	switch cleaned[0] {
	case '-':
		negative = true
		cleaned = cleaned[1:]
	case '+':
		cleaned = cleaned[1:]
	}

	whole := cleaned
	frac := ""
	if dot := strings.IndexByte(cleaned, '.'); dot >= 0 {
		whole, frac = cleaned[:dot], cleaned[dot+1:]
	}
	if whole == "" {
		whole = "0"
	}

	dollars, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid currency value %q", s)
	}

	// Two decimal places of precision; anything further is dropped.
	if len(frac) > 2 {
		frac = frac[:2]
	}
	for len(frac) < 2 {
		frac += "0"
	}
	fracCents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid currency value %q", s)
	}

	total := dollars*100 + fracCents
	if negative {
		total = -total
	}
	return Cents(total), nil
}

// CentsFromFloat converts a dollar amount to cents, rounding to the
// nearest cent. Rate tables store REAL dollars; this is their single
// conversion point.
func CentsFromFloat(dollars float64) Cents {
	return Cents(math.Round(dollars * 100))
}

// Dollars returns the amount as a float64 dollar value.
func (c Cents) Dollars() float64 {
	return float64(c) / 100
}

// String formats the amount as "$12.34".
func (c Cents) String() string {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s$%d.%02d", sign, v/100, v%100)
}

// MarshalJSON emits a plain decimal dollar number so claim documents
// stay readable by the rest of the pipeline.
func (c Cents) MarshalJSON() ([]byte, error) {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return []byte(fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)), nil
}

// UnmarshalJSON accepts either a JSON number or a currency string.
func (c *Cents) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, perr := ParseCents(s)
		if perr != nil {
			return perr
		}
		*c = parsed
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("invalid monetary value %s", string(data))
	}
	*c = CentsFromFloat(f)
	return nil
}
