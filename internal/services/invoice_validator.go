package services

import (
	"github.com/facturaIA/invoice-extraction-service/internal/models"
	"github.com/facturaIA/invoice-extraction-service/internal/parser"
	"github.com/shopspring/decimal"
)

// Acceptance and warning codes.
const (
	CodeMissingInvoiceNumber = "missing_invoice_number"
	CodeMissingLineItems     = "missing_line_items"
	CodeNonPositiveTotal     = "non_positive_total"
	CodeMissingVendor        = "missing_vendor"
	CodeTotalMismatch        = "total_mismatch"
	CodeDueBeforeIssue       = "due_before_issue"
)

// InvoiceValidator is the final gate deciding whether a reconciled record is
// plausible as an invoice.
type InvoiceValidator struct {
	classifier *DocumentClassifier
	tolerance  decimal.Decimal // percentage tolerance (0.05 = 5%)
}

// NewInvoiceValidator creates a new validator with default 5% tolerance
func NewInvoiceValidator() *InvoiceValidator {
	return &InvoiceValidator{
		classifier: NewDocumentClassifier(),
		tolerance:  decimal.NewFromFloat(0.05),
	}
}

// Validate runs the rejection rules, then the acceptance requirements, then
// soft consistency checks that only raise warnings.
func (v *InvoiceValidator) Validate(inv models.ExtractedInvoice, text string) *models.ValidationResult {
	result := &models.ValidationResult{
		Valid:    true,
		Errors:   []models.ValidationError{},
		Warnings: []models.ValidationWarning{},
	}

	// 1. Statement / receipt / HOA rejection
	v.classifier.checkRules(inv, text, result)

	// 2. Required fields
	v.validateRequired(inv, result)

	// 3. Subtotal + tax against total
	v.validateTotal(inv, result)

	// 4. Date order
	v.validateDates(inv, result)

	result.Valid = len(result.Errors) == 0
	result.NeedsReview = len(result.Warnings) > 0
	return result
}

// validateRequired checks the fields every accepted invoice must carry.
func (v *InvoiceValidator) validateRequired(inv models.ExtractedInvoice, result *models.ValidationResult) {
	if models.IsDefaultString(inv.InvoiceNumber) {
		result.Errors = append(result.Errors, models.ValidationError{
			Field:   "invoiceNumber",
			Code:    CodeMissingInvoiceNumber,
			Message: "no invoice number found",
		})
	}
	if !inv.HasItems() {
		result.Errors = append(result.Errors, models.ValidationError{
			Field:   "items",
			Code:    CodeMissingLineItems,
			Message: "no line items detected",
		})
	}
	if !inv.Total.IsPositive() {
		result.Errors = append(result.Errors, models.ValidationError{
			Field:   "total",
			Code:    CodeNonPositiveTotal,
			Message: "total must be positive",
		})
	}
	if models.IsDefaultString(inv.Vendor) {
		result.Errors = append(result.Errors, models.ValidationError{
			Field:   "vendor",
			Code:    CodeMissingVendor,
			Message: "no vendor found",
		})
	}
}

// validateTotal checks total matches subtotal plus tax
func (v *InvoiceValidator) validateTotal(inv models.ExtractedInvoice, result *models.ValidationResult) {
	if !inv.Subtotal.IsPositive() || !inv.Total.IsPositive() {
		return
	}

	expected := inv.Subtotal.Add(inv.Tax)
	diff := inv.Total.Sub(expected).Abs()
	if diff.GreaterThan(inv.Total.Mul(v.tolerance)) {
		result.Warnings = append(result.Warnings, models.ValidationWarning{
			Field:    "total",
			Code:     CodeTotalMismatch,
			Expected: expected.StringFixed(2),
			Actual:   inv.Total.StringFixed(2),
			Message:  "total does not match subtotal plus tax",
		})
	}
}

// validateDates warns when the due date precedes the issue date.
func (v *InvoiceValidator) validateDates(inv models.ExtractedInvoice, result *models.ValidationResult) {
	issued, ok := parser.ParseDate(inv.Date)
	if !ok {
		return
	}
	due, ok := parser.ParseDate(inv.DueDate)
	if !ok {
		return
	}
	if due.Before(issued) {
		result.Warnings = append(result.Warnings, models.ValidationWarning{
			Field:    "dueDate",
			Code:     CodeDueBeforeIssue,
			Expected: "on or after " + inv.Date,
			Actual:   inv.DueDate,
			Message:  "due date is before the invoice date",
		})
	}
}
