// Package model holds the claim document schema and the core value types
// the validation pipeline passes between stages.
package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Claim is one HCFA-1500 claim document as stored in the claim store:
// the OCR-extracted bill sections plus the mapped FileMaker order record.
// Validation stamps its outcome back onto the same document.
type Claim struct {
	PatientInfo    PatientInfo     `json:"patient_info"`
	ServiceLines   []ServiceLine   `json:"service_lines"`
	BillingInfo    BillingInfo     `json:"billing_info"`
	MappingInfo    MappingInfo     `json:"mapping_info"`
	FileMaker      OrderRecord     `json:"filemaker"`
	ValidationInfo *Verdict        `json:"validation_info,omitempty"`
	ProcessingInfo *ProcessingInfo `json:"processing_info,omitempty"`
	RateCheckInfo  *RateCheckInfo  `json:"rate_validation,omitempty"`
}

// PatientInfo is the patient section extracted from the bill.
type PatientInfo struct {
	PatientName string `json:"patient_name"`
	PatientDOB  string `json:"patient_dob"`
	PatientZip  string `json:"patient_zip,omitempty"`
}

// ServiceLine is one billed procedure line. String fields hold the raw
// extracted text; AssignedRate is stamped by the ready-for-process gate.
type ServiceLine struct {
	DateOfService  string   `json:"date_of_service"`
	CPTCode        string   `json:"cpt_code"`
	ChargeAmount   string   `json:"charge_amount"`
	PlaceOfService string   `json:"place_of_service,omitempty"`
	Modifiers      []string `json:"modifiers,omitempty"`
	AssignedRate   *Cents   `json:"assigned_rate,omitempty"`
	Units          FlexInt  `json:"units"`
}

// BillingInfo is the provider billing section extracted from the bill.
type BillingInfo struct {
	BillingProviderName string `json:"billing_provider_name,omitempty"`
	BillingProviderTIN  string `json:"billing_provider_tin"`
	BillingProviderNPI  string `json:"billing_provider_npi,omitempty"`
	PatientAccountNo    string `json:"patient_account_no,omitempty"`
	TotalCharge         string `json:"total_charge"`
}

// MappingInfo links the bill to its FileMaker order.
type MappingInfo struct {
	OrderID  string `json:"order_id"`
	FileName string `json:"file_name,omitempty"`
}

// OrderRecord is the authoritative order pulled from FileMaker: the
// rendering provider, the order header, and the ordered line items.
type OrderRecord struct {
	Provider  Provider    `json:"provider"`
	Order     Order       `json:"order"`
	LineItems []OrderLine `json:"line_items"`
}

// Provider is the rendering provider on the order. Field names follow
// the FileMaker export.
type Provider struct {
	TIN               string `json:"TIN"`
	NPI               string `json:"NPI,omitempty"`
	Network           string `json:"Provider Network"`
	BillingName       string `json:"Billing Name"`
	BillingAddress1   string `json:"Billing Address 1"`
	BillingCity       string `json:"Billing Address City"`
	BillingState      string `json:"Billing Address State"`
	BillingPostalCode string `json:"Billing Address Postal Code"`
}

// InNetwork reports whether the provider prices through the PPO table.
func (p Provider) InNetwork() bool {
	return p.Network == "In Network"
}

// Order is the order header.
type Order struct {
	OrderID           string `json:"Order_ID"`
	PatientDOB        string `json:"Patient_DOB,omitempty"`
	BundleType        string `json:"bundle_type,omitempty"`
	JurisdictionState string `json:"Jurisdiction_State,omitempty"`
}

// OrderLine is one ordered procedure. Field names follow the FileMaker
// export; Modifier may carry the literal string "None".
type OrderLine struct {
	CPT         string  `json:"CPT"`
	DOS         string  `json:"DOS,omitempty"`
	Modifier    string  `json:"Modifier,omitempty"`
	Description string  `json:"Description,omitempty"`
	Charge      string  `json:"Charge,omitempty"`
	Units       FlexInt `json:"Units,omitempty"`
}

// ProcessingInfo carries pipeline bookkeeping stamped onto the document.
type ProcessingInfo struct {
	ArthrogramCheck *ArthrogramCheck `json:"arthrogram_check,omitempty"`
}

// ArthrogramCheck records the arthrogram redirect decision.
type ArthrogramCheck struct {
	CheckDate    string `json:"check_date"`
	IsArthrogram bool   `json:"is_arthrogram"`
}

// RateCheckInfo records a passing ready-for-process rate check.
type RateCheckInfo struct {
	Timestamp string `json:"timestamp"`
	Status    string `json:"status"`
}

// IsArthrogram reports whether the order is flagged as an arthrogram
// bundle. Arthrogram claims bypass validation entirely.
func (c *Claim) IsArthrogram() bool {
	return strings.EqualFold(strings.TrimSpace(c.FileMaker.Order.BundleType), "arthrogram")
}

// CleanTIN strips separators and whitespace from a provider TIN.
func CleanTIN(tin string) string {
	tin = strings.ReplaceAll(tin, "-", "")
	tin = strings.ReplaceAll(tin, " ", "")
	return strings.TrimSpace(tin)
}

// FlexInt is an integer that tolerates the loose typing of OCR output:
// it unmarshals from a JSON number, a numeric string, or null.
type FlexInt struct {
	n   int
	set bool
}

// NewFlexInt wraps a known integer value.
func NewFlexInt(n int) FlexInt {
	return FlexInt{n: n, set: true}
}

// Value returns the held integer, or def when the field was absent,
// null, or unparseable.
func (f FlexInt) Value(def int) int {
	if !f.set {
		return def
	}
	return f.n
}

// MarshalJSON implements json.Marshaler.
func (f FlexInt) MarshalJSON() ([]byte, error) {
	if !f.set {
		return []byte("null"), nil
	}
	return json.Marshal(f.n)
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*f = FlexInt{}
		return nil
	}

	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexInt{n: n, set: true}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid integer value %s", trimmed)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*f = FlexInt{}
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		// "1.0" style values show up in OCR output. Anything worse
		// degrades to unset rather than failing the whole document.
		fval, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			*f = FlexInt{}
			return nil
		}
		n = int(fval)
	}
	*f = FlexInt{n: n, set: true}
	return nil
}
