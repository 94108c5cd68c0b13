package services

import (
	"regexp"
	"strings"

	"github.com/facturaIA/invoice-extraction-service/internal/models"
	"github.com/shopspring/decimal"
)

// Rejection codes.
const (
	CodeSuspiciouslyEmpty    = "suspiciously_empty"
	CodeNumericInconsistency = "numeric_inconsistency"
	CodeStatementKeyword     = "statement_keyword"
	CodeReceiptKeyword       = "receipt_keyword"
	CodeStatementShape       = "statement_shape"
	CodeReceiptShape         = "receipt_shape"
	CodeHOAAssessment        = "hoa_assessment"
)

var (
	statementKeywords = regexp.MustCompile(`(?i)\b(?:statement|account[ \t]+summary|opening[ \t]+balance|closing[ \t]+balance|beginning[ \t]+balance|ending[ \t]+balance|previous[ \t]+balance|hoa|homeowners?[ \t]+association|assessments?)\b`)
	receiptKeywords   = regexp.MustCompile(`(?i)\b(?:receipt|cashier|pos|point[ \t]+of[ \t]+sale|register|change[ \t]+due|cash[ \t]+tendered|tendered|thank[ \t]+you[ \t]+for[ \t]+shopping)\b`)
	hoaKeywords       = regexp.MustCompile(`(?i)\b(?:association|homeowners?|condominium|condo|hoa)\b`)

	grossGap      = decimal.NewFromInt(1000)
	largeSubtotal = decimal.NewFromInt(1000)
	smallTotal    = decimal.NewFromInt(100)
)

const minHOALineItems = 2

// DocumentClassifier rejects documents that look like statements, receipts
// or HOA assessments rather than invoices.
type DocumentClassifier struct{}

// NewDocumentClassifier creates a classifier.
func NewDocumentClassifier() *DocumentClassifier {
	return &DocumentClassifier{}
}

// Classify applies every rejection rule. text is the document text when
// available; otherwise the invoice fields stand in for it.
func (c *DocumentClassifier) Classify(inv models.ExtractedInvoice, text string) *models.ValidationResult {
	result := &models.ValidationResult{
		Valid:    true,
		Errors:   []models.ValidationError{},
		Warnings: []models.ValidationWarning{},
	}
	c.checkRules(inv, text, result)
	result.Valid = len(result.Errors) == 0
	return result
}

func (c *DocumentClassifier) checkRules(inv models.ExtractedInvoice, text string, result *models.ValidationResult) {
	if strings.TrimSpace(text) == "" {
		text = fieldText(inv)
	}
	lower := strings.ToLower(text)
	noNumber := models.IsDefaultString(inv.InvoiceNumber)

	// 1. Suspiciously empty
	if !inv.HasItems() && (!inv.Subtotal.IsZero() || !inv.Total.IsZero()) {
		result.Errors = append(result.Errors, models.ValidationError{
			Field:   "items",
			Code:    CodeSuspiciouslyEmpty,
			Message: "no line items found but the document carries a non-zero total",
		})
	}

	// 2. Gross numeric inconsistency; an unextracted subtotal is not compared.
	if !inv.Subtotal.IsZero() {
		if inv.Subtotal.Sub(inv.Total).Abs().GreaterThan(grossGap) ||
			(inv.Subtotal.GreaterThan(largeSubtotal) && inv.Total.LessThan(smallTotal)) {
			result.Errors = append(result.Errors, models.ValidationError{
				Field:   "subtotal",
				Code:    CodeNumericInconsistency,
				Message: "subtotal " + inv.Subtotal.StringFixed(2) + " is inconsistent with total " + inv.Total.StringFixed(2),
			})
		}
	}

	// 3. Keyword lists over the extracted fields
	for _, f := range keywordFields(inv) {
		if kw := statementKeywords.FindString(f.value); kw != "" {
			result.Errors = append(result.Errors, models.ValidationError{
				Field:   f.name,
				Code:    CodeStatementKeyword,
				Message: "looks like an account statement (" + f.name + " mentions \"" + kw + "\")",
			})
			break
		}
		if kw := receiptKeywords.FindString(f.value); kw != "" {
			result.Errors = append(result.Errors, models.ValidationError{
				Field:   f.name,
				Code:    CodeReceiptKeyword,
				Message: "looks like a receipt (" + f.name + " mentions \"" + kw + "\")",
			})
			break
		}
	}

	// 4. Structural patterns, only when no invoice number was found
	if noNumber {
		hasBalance := strings.Contains(lower, "balance")
		if (hasBalance && strings.Contains(lower, "transaction")) ||
			(hasBalance && strings.Contains(lower, "payment")) {
			result.Errors = append(result.Errors, models.ValidationError{
				Field:   "document",
				Code:    CodeStatementShape,
				Message: "statement-shaped document: balance and transaction/payment lines without an invoice number",
			})
		} else if kw := statementKeywords.FindString(text); kw != "" {
			result.Errors = append(result.Errors, models.ValidationError{
				Field:   "document",
				Code:    CodeStatementShape,
				Message: "statement-shaped document: mentions \"" + kw + "\" without an invoice number",
			})
		}
		if strings.Contains(lower, "total") && !strings.Contains(lower, "invoice") {
			result.Errors = append(result.Errors, models.ValidationError{
				Field:   "document",
				Code:    CodeReceiptShape,
				Message: "receipt-shaped document: a total without any invoice reference",
			})
		}
	}

	// 5. HOA / condominium assessments
	if len(inv.GenuineItems()) < minHOALineItems {
		if kw := hoaKeywords.FindString(text); kw != "" {
			result.Errors = append(result.Errors, models.ValidationError{
				Field:   "document",
				Code:    CodeHOAAssessment,
				Message: "looks like an HOA/condominium assessment (mentions \"" + kw + "\")",
			})
		}
	}
}

type namedField struct {
	name  string
	value string
}

func keywordFields(inv models.ExtractedInvoice) []namedField {
	fields := []namedField{
		{"vendor", inv.Vendor},
		{"customer", inv.Customer},
		{"invoiceNumber", inv.InvoiceNumber},
	}
	for _, it := range inv.GenuineItems() {
		fields = append(fields, namedField{"items", it.Description})
	}
	out := fields[:0]
	for _, f := range fields {
		if !models.IsDefaultString(f.value) {
			out = append(out, f)
		}
	}
	return out
}

// fieldText joins the non-default fields for rules that need document text.
func fieldText(inv models.ExtractedInvoice) string {
	var parts []string
	for _, f := range keywordFields(inv) {
		parts = append(parts, f.value)
	}
	return strings.Join(parts, "\n")
}
