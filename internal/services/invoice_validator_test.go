package services

import (
	"testing"

	"github.com/facturaIA/invoice-extraction-service/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func validInvoice() models.ExtractedInvoice {
	inv := models.NewExtractedInvoice()
	inv.InvoiceNumber = "INV-2024-001"
	inv.Date = "2024-03-15"
	inv.DueDate = "2024-04-14"
	inv.Vendor = "Acme Corp"
	inv.Customer = "Beta LLC"
	inv.Items = []models.LineItem{{Description: "Widget", Quantity: d("2"), UnitPrice: d("10"), Amount: d("20")}}
	inv.Subtotal = d("20")
	inv.Tax = d("2")
	inv.Total = d("22")
	return inv
}

func codes(r *models.ValidationResult) []string {
	var out []string
	for _, e := range r.Errors {
		out = append(out, e.Code)
	}
	return out
}

func TestValidate_AcceptsPlausibleInvoice(t *testing.T) {
	r := NewInvoiceValidator().Validate(validInvoice(), "Invoice INV-2024-001\nTotal 22.00")

	assert.True(t, r.Valid, "errors: %v", r.Errors)
	assert.Empty(t, r.Reason())
	assert.False(t, r.NeedsReview)
}

func TestValidate_AcceptanceRequirements(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.ExtractedInvoice)
		code   string
	}{
		{"missing number", func(i *models.ExtractedInvoice) { i.InvoiceNumber = models.UnknownValue }, CodeMissingInvoiceNumber},
		{"placeholder items", func(i *models.ExtractedInvoice) {
			i.Items = []models.LineItem{models.PlaceholderItem()}
			i.Subtotal, i.Tax, i.Total = decimal.Zero, decimal.Zero, decimal.Zero
		}, CodeMissingLineItems},
		{"zero total", func(i *models.ExtractedInvoice) { i.Total, i.Subtotal = decimal.Zero, decimal.Zero }, CodeNonPositiveTotal},
		{"default vendor", func(i *models.ExtractedInvoice) { i.Vendor = models.UnknownVendor }, CodeMissingVendor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := validInvoice()
			tt.mutate(&inv)
			r := NewInvoiceValidator().Validate(inv, "Invoice\nTotal")

			assert.False(t, r.Valid)
			assert.Contains(t, codes(r), tt.code)
			assert.NotEmpty(t, r.Reason())
		})
	}
}

func TestValidate_RejectsBankStatement(t *testing.T) {
	text := "First National Bank\nAccount Statement\nOpening Balance 1,000.00\nClosing Balance 1,250.00"
	inv := models.NewExtractedInvoice()
	inv.Vendor = "First National Bank"

	r := NewInvoiceValidator().Validate(inv, text)
	assert.False(t, r.Valid)
	assert.Contains(t, codes(r), CodeStatementShape)

	c := NewDocumentClassifier().Classify(inv, text)
	assert.False(t, c.Valid)
	assert.Equal(t, CodeStatementShape, c.Errors[0].Code)
}

func TestClassify_Rules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.ExtractedInvoice)
		text   string
		code   string
	}{
		{
			name: "suspiciously empty",
			mutate: func(i *models.ExtractedInvoice) {
				i.Items = []models.LineItem{models.PlaceholderItem()}
			},
			code: CodeSuspiciouslyEmpty,
		},
		{
			name:   "subtotal far from total",
			mutate: func(i *models.ExtractedInvoice) { i.Subtotal = d("5000") },
			code:   CodeNumericInconsistency,
		},
		{
			name: "large subtotal tiny total",
			mutate: func(i *models.ExtractedInvoice) {
				i.Subtotal = d("1050")
				i.Total = d("60")
			},
			code: CodeNumericInconsistency,
		},
		{
			name:   "statement keyword in vendor",
			mutate: func(i *models.ExtractedInvoice) { i.Vendor = "Monthly Statement Services" },
			code:   CodeStatementKeyword,
		},
		{
			name: "receipt keyword in item",
			mutate: func(i *models.ExtractedInvoice) {
				i.Items[0].Description = "Cashier 4 sale"
			},
			code: CodeReceiptKeyword,
		},
		{
			name:   "statement shaped",
			mutate: func(i *models.ExtractedInvoice) { i.InvoiceNumber = models.UnknownValue },
			text:   "Previous payment received\nBalance forward 20.00",
			code:   CodeStatementShape,
		},
		{
			name:   "receipt shaped",
			mutate: func(i *models.ExtractedInvoice) { i.InvoiceNumber = models.UnknownValue },
			text:   "Corner Shop\nMilk 2.00\nTotal 22.00",
			code:   CodeReceiptShape,
		},
		{
			name: "hoa assessment",
			mutate: func(i *models.ExtractedInvoice) {
				i.Vendor = "Lakeside Condominium Trust"
			},
			text: "Invoice 55\nLakeside Condominium Trust\nQuarterly fee 22.00",
			code: CodeHOAAssessment,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := validInvoice()
			tt.mutate(&inv)

			r := NewDocumentClassifier().Classify(inv, tt.text)
			require.False(t, r.Valid)
			assert.Contains(t, codes(r), tt.code)
		})
	}
}

func TestClassify_HOAWithSeveralItemsAllowed(t *testing.T) {
	inv := validInvoice()
	inv.Items = append(inv.Items, models.LineItem{Description: "Gutter repair", Quantity: d("1"), UnitPrice: d("2"), Amount: d("2")})

	r := NewDocumentClassifier().Classify(inv, "Invoice 77\nRiverside Homeowners Association\nWidget\nGutter repair")
	assert.True(t, r.Valid, "errors: %v", r.Errors)
}

func TestClassify_UsesFieldsWhenNoText(t *testing.T) {
	inv := validInvoice()
	inv.InvoiceNumber = models.UnknownValue
	inv.Vendor = "Acme Corp"
	inv.Items[0].Description = "Total care package"

	r := NewDocumentClassifier().Classify(inv, "")
	assert.Contains(t, codes(r), CodeReceiptShape)
}

func TestValidate_Warnings(t *testing.T) {
	inv := validInvoice()
	inv.Subtotal = d("15")
	inv.DueDate = "2024-03-01"

	r := NewInvoiceValidator().Validate(inv, "Invoice INV-2024-001")

	assert.True(t, r.Valid)
	assert.True(t, r.NeedsReview)
	require.Len(t, r.Warnings, 2)
	assert.Equal(t, CodeTotalMismatch, r.Warnings[0].Code)
	assert.Equal(t, "17.00", r.Warnings[0].Expected)
	assert.Equal(t, CodeDueBeforeIssue, r.Warnings[1].Code)
}
