package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Sentinel values used instead of empty fields so downstream code can treat
// absence uniformly.
const (
	UnknownValue    = "Unknown"
	UnknownVendor   = "Unknown Vendor"
	UnknownCustomer = "Unknown Customer"
	ItemNotDetected = "Item not detected"
)

// Method identifies the strategy that produced an ExtractionResult.
type Method string

const (
	MethodVision    Method = "vision"
	MethodTextModel Method = "textModel"
	MethodRegex     Method = "regex"
	MethodPrevious  Method = "previous"
)

// Fixed confidence per strategy.
const (
	ConfidenceVision    = 0.9
	ConfidenceTextModel = 0.85
	ConfidenceRegex     = 0.7
	ConfidencePrevious  = 0.5
)

// LineItem is one row of the invoice item table. Amount should equal
// Quantity x UnitPrice within 0.10.
type LineItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Amount      decimal.Decimal `json:"amount"`
}

// PlaceholderItem returns the item used when no line items were detected.
func PlaceholderItem() LineItem {
	return LineItem{
		Description: ItemNotDetected,
		Quantity:    decimal.NewFromInt(1),
		UnitPrice:   decimal.Zero,
		Amount:      decimal.Zero,
	}
}

// IsPlaceholder reports whether the item is the items-not-detected sentinel.
func (li LineItem) IsPlaceholder() bool {
	return li.Description == ItemNotDetected && li.Amount.IsZero() && li.UnitPrice.IsZero()
}

// ExtractedInvoice is the normalized invoice record produced by the engine.
type ExtractedInvoice struct {
	InvoiceNumber     string          `json:"invoiceNumber"`
	Date              string          `json:"date"`
	DueDate           string          `json:"dueDate"`
	Vendor            string          `json:"vendor"`
	Customer          string          `json:"customer"`
	Items             []LineItem      `json:"items"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	Tax               decimal.Decimal `json:"tax"`
	Total             decimal.Decimal `json:"total"`
	ExtractionMethods []Method        `json:"extractionMethods"`
}

// NewExtractedInvoice returns a record populated entirely with sentinels.
func NewExtractedInvoice() ExtractedInvoice {
	return ExtractedInvoice{
		InvoiceNumber:     UnknownValue,
		Date:              UnknownValue,
		DueDate:           UnknownValue,
		Vendor:            UnknownVendor,
		Customer:          UnknownCustomer,
		Items:             []LineItem{PlaceholderItem()},
		ExtractionMethods: []Method{},
	}
}

// Clone returns a deep copy so callers never share item slices.
func (inv ExtractedInvoice) Clone() ExtractedInvoice {
	out := inv
	out.Items = append([]LineItem(nil), inv.Items...)
	out.ExtractionMethods = append([]Method(nil), inv.ExtractionMethods...)
	return out
}

// FillDefaults replaces empty strings and an empty item list with sentinels.
func (inv *ExtractedInvoice) FillDefaults() {
	if strings.TrimSpace(inv.InvoiceNumber) == "" {
		inv.InvoiceNumber = UnknownValue
	}
	if strings.TrimSpace(inv.Date) == "" {
		inv.Date = UnknownValue
	}
	if strings.TrimSpace(inv.DueDate) == "" {
		inv.DueDate = UnknownValue
	}
	if strings.TrimSpace(inv.Vendor) == "" {
		inv.Vendor = UnknownVendor
	}
	if strings.TrimSpace(inv.Customer) == "" {
		inv.Customer = UnknownCustomer
	}
	if len(inv.Items) == 0 {
		inv.Items = []LineItem{PlaceholderItem()}
	}
	if inv.ExtractionMethods == nil {
		inv.ExtractionMethods = []Method{}
	}
}

// GenuineItems returns the items that are not the placeholder.
func (inv ExtractedInvoice) GenuineItems() []LineItem {
	items := make([]LineItem, 0, len(inv.Items))
	for _, it := range inv.Items {
		if !it.IsPlaceholder() {
			items = append(items, it)
		}
	}
	return items
}

// HasItems reports whether at least one genuine line item is present.
func (inv ExtractedInvoice) HasItems() bool {
	return len(inv.GenuineItems()) > 0
}

// ItemsTotal sums the amounts of all line items.
func (inv ExtractedInvoice) ItemsTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range inv.Items {
		sum = sum.Add(it.Amount)
	}
	return sum
}

// AddMethod records a contributing strategy once.
func (inv *ExtractedInvoice) AddMethod(m Method) {
	for _, existing := range inv.ExtractionMethods {
		if existing == m {
			return
		}
	}
	inv.ExtractionMethods = append(inv.ExtractionMethods, m)
}

// IsDefaultString reports whether a string field is empty or a sentinel.
func IsDefaultString(s string) bool {
	switch strings.TrimSpace(s) {
	case "", UnknownValue, UnknownVendor, UnknownCustomer:
		return true
	}
	return false
}

// IsDefaultItems reports whether an item list is empty or only the placeholder.
func IsDefaultItems(items []LineItem) bool {
	for _, it := range items {
		if !it.IsPlaceholder() {
			return false
		}
	}
	return true
}

// ExtractionResult is the candidate produced by one strategy attempt.
type ExtractionResult struct {
	Method     Method           `json:"method"`
	Confidence float64          `json:"confidence"`
	Data       ExtractedInvoice `json:"data"`
}

// Document is the prepared input handed to extraction strategies.
type Document struct {
	Data     []byte
	MIMEType string
	// Text is the text layer or caller-supplied text; empty when none exists.
	Text string
}

// IsImage reports whether the document bytes are an image.
func (d Document) IsImage() bool {
	return len(d.Data) > 0 && strings.HasPrefix(d.MIMEType, "image/")
}

// IsPDF reports whether the document bytes are a PDF.
func (d Document) IsPDF() bool {
	return len(d.Data) > 0 && d.MIMEType == "application/pdf"
}

// StrategyAttempt records one strategy invocation for diagnostics.
type StrategyAttempt struct {
	Method     Method        `json:"method"`
	Confidence float64       `json:"confidence,omitempty"`
	Duration   time.Duration `json:"duration"`
	Produced   bool          `json:"produced"`
	Skipped    bool          `json:"skipped,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// ReconciliationOutcome is the final answer of the engine.
type ReconciliationOutcome struct {
	Invoice            ExtractedInvoice  `json:"invoice"`
	IsPlausibleInvoice bool              `json:"isPlausibleInvoice"`
	Reason             string            `json:"reason,omitempty"`
	Attempts           []StrategyAttempt `json:"attempts,omitempty"`
	Validation         *ValidationResult `json:"validation,omitempty"`
}

// ProcessResponse is the JSON body returned by the upload endpoint.
type ProcessResponse struct {
	Success       bool                   `json:"success"`
	Outcome       *ReconciliationOutcome `json:"outcome,omitempty"`
	InvoiceID     string                 `json:"invoiceId,omitempty"`
	DuplicateOf   string                 `json:"duplicateOf,omitempty"`
	ObjectPath    string                 `json:"objectPath,omitempty"`
	Error         string                 `json:"error,omitempty"`
	TotalDuration float64                `json:"totalDuration"`
}
