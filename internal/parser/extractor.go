// Package parser implements the deterministic extraction strategy: ordered
// regular-expression rules plus layout heuristics for the item table.
package parser

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/facturaIA/invoice-extraction-service/internal/models"
	"github.com/facturaIA/invoice-extraction-service/internal/patterns"
	"github.com/facturaIA/invoice-extraction-service/internal/reconcile"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	// vendorScanLines is how many leading lines are searched for a company name.
	vendorScanLines   = 5
	defaultTermDays   = 30
	maxPartyNameRunes = 80

	confidenceCompanyName = 0.85
	confidenceLargest     = 0.3
)

var (
	// relativeDiscrepancy below which the items sum replaces the total.
	relativeDiscrepancy = decimal.NewFromFloat(0.2)
	one                 = decimal.NewFromInt(1)

	taxIDLine   = regexp.MustCompile(`(?i)\btax[ \t]*(?:id|number|no\b|#|reg)`)
	columnBreak = regexp.MustCompile(`[ \t]{3,}|\t`)
	labelCut    = regexp.MustCompile(`(?i)[ \t]+(?:to|from|bill[ \t]+to|ship[ \t]+to|date|invoice)[ \t]*:.*$`)
)

// ConfidenceMap records the confidence of the rule that produced each field.
type ConfidenceMap map[string]float64

// Extractor is the regex strategy.
type Extractor struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewExtractor creates a regex extractor.
func NewExtractor(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger, now: time.Now}
}

// Method identifies the strategy.
func (e *Extractor) Method() models.Method { return models.MethodRegex }

// Accepts reports whether the document has text to work on.
func (e *Extractor) Accepts(doc models.Document) bool {
	return strings.TrimSpace(doc.Text) != ""
}

// Attempt runs the extractor over the document text.
func (e *Extractor) Attempt(_ context.Context, doc models.Document) (*models.ExtractionResult, error) {
	result, _ := e.ExtractWithConfidence(doc.Text)
	return &result, nil
}

// Extract applies every field rule to text.
func (e *Extractor) Extract(text string) models.ExtractionResult {
	result, _ := e.ExtractWithConfidence(text)
	return result
}

// ExtractWithConfidence is Extract plus the per-field confidence map.
func (e *Extractor) ExtractWithConfidence(text string) (models.ExtractionResult, ConfidenceMap) {
	text = flatten(text)
	lines := splitLines(text)
	conf := ConfidenceMap{}
	inv := models.NewExtractedInvoice()

	if m, ok := patterns.InvoiceNumber.First(text); ok {
		inv.InvoiceNumber = strings.Trim(m.Value, "-/")
		conf["invoiceNumber"] = m.Confidence
	}

	issued, hasIssued := e.extractDate(lines, conf)
	if hasIssued {
		inv.Date = issued.Format(ISODate)
	}
	inv.DueDate = e.extractDueDate(text, lines, issued, hasIssued, conf).Format(ISODate)

	customer := ""
	if m, ok := patterns.Customer.First(text); ok {
		if customer = cleanParty(m.Value); customer != "" {
			inv.Customer = customer
			conf["customer"] = m.Confidence
		}
	}
	if vendor, c, ok := extractVendor(text, lines, customer); ok {
		inv.Vendor = vendor
		conf["vendor"] = c
	}

	items, itemConf := parseItems(lines)
	inv.Items = items
	conf["items"] = itemConf

	if m, ok := patterns.Subtotal.FirstInLines(lines, nil); ok {
		inv.Subtotal = reconcile.CoerceAmount(m.Value)
		conf["subtotal"] = m.Confidence
	}
	if m, ok := patterns.Tax.FirstInLines(lines, taxIDLine.MatchString); ok {
		inv.Tax = reconcile.CoerceAmount(m.Value)
		conf["tax"] = m.Confidence
	}
	inv.Total, conf["total"] = extractTotal(text, lines)

	e.checkTotalAgainstItems(&inv, conf)

	e.logger.Debug("parser.regex.extracted",
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.Int("items", len(inv.GenuineItems())),
		zap.String("total", inv.Total.StringFixed(2)),
	)

	return models.ExtractionResult{
		Method:     models.MethodRegex,
		Confidence: models.ConfidenceRegex,
		Data:       inv,
	}, conf
}

func (e *Extractor) extractDate(lines []string, conf ConfidenceMap) (time.Time, bool) {
	m, ok := patterns.Date.FirstInLines(lines, patterns.DueContext.MatchString)
	if !ok {
		return time.Time{}, false
	}
	t, ok := ParseDate(m.Value)
	if ok {
		conf["date"] = m.Confidence
	}
	return t, ok
}

// extractDueDate resolves an explicit due date, then "Net N" terms, then
// defaults to 30 days after the invoice date (or today).
func (e *Extractor) extractDueDate(text string, lines []string, issued time.Time, hasIssued bool, conf ConfidenceMap) time.Time {
	if m, ok := patterns.DueDate.FirstInLines(lines, nil); ok {
		if t, ok := ParseDate(m.Value); ok {
			conf["dueDate"] = m.Confidence
			return t
		}
	}

	if hasIssued {
		if m, ok := patterns.NetTerms.First(text); ok {
			if days, err := strconv.Atoi(m.Value); err == nil {
				conf["dueDate"] = m.Confidence
				return issued.AddDate(0, 0, days)
			}
		}
		return issued.AddDate(0, 0, defaultTermDays)
	}

	now := e.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return today.AddDate(0, 0, defaultTermDays)
}

// extractVendor prefers a company name in the document's first lines, then
// falls back to From/Vendor/Supplier labels. Customer lines, including the
// line after a bare "Bill To:" label, and the customer's own name are skipped.
func extractVendor(text string, lines []string, customer string) (string, float64, bool) {
	seen := 0
	afterLabel := false
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if seen++; seen > vendorScanLines {
			break
		}
		if patterns.CustomerContext.MatchString(line) {
			afterLabel = patterns.CustomerLabelOnly.MatchString(line)
			continue
		}
		if afterLabel {
			afterLabel = false
			continue
		}
		if m := patterns.CompanyName.FindStringSubmatch(line); m != nil {
			name := cleanParty(m[1])
			if name != "" && !strings.EqualFold(name, customer) {
				return name, confidenceCompanyName, true
			}
		}
	}

	if m, ok := patterns.Vendor.First(text); ok {
		if name := cleanParty(m.Value); name != "" {
			return name, m.Confidence, true
		}
	}
	return "", 0, false
}

// extractTotal tries the "Total" label, then synonyms, then the largest
// currency-formatted number in the document.
func extractTotal(text string, lines []string) (decimal.Decimal, float64) {
	if m, ok := patterns.Total.FirstInLines(lines, patterns.NotTotalLine.MatchString); ok {
		return reconcile.CoerceAmount(m.Value), m.Confidence
	}
	if m, ok := patterns.TotalSynonyms.FirstInLines(lines, nil); ok {
		return reconcile.CoerceAmount(m.Value), m.Confidence
	}

	largest := decimal.Zero
	for _, raw := range patterns.CurrencyAmount.FindAllString(text, -1) {
		if v := reconcile.CoerceAmount(raw); v.GreaterThan(largest) {
			largest = v
		}
	}
	if largest.IsZero() {
		return decimal.Zero, 0
	}
	return largest, confidenceLargest
}

// checkTotalAgainstItems replaces the total with the items sum when they
// disagree by more than one unit and the items are the more credible figure.
// A gap fully explained by tax is left alone.
func (e *Extractor) checkTotalAgainstItems(inv *models.ExtractedInvoice, conf ConfidenceMap) {
	if !inv.HasItems() {
		return
	}
	sum := inv.ItemsTotal()
	diff := sum.Sub(inv.Total).Abs()
	if diff.LessThanOrEqual(one) {
		return
	}
	if sum.Add(inv.Tax).Sub(inv.Total).Abs().LessThanOrEqual(one) {
		return
	}

	closeEnough := inv.Total.IsPositive() && diff.Div(inv.Total).LessThan(relativeDiscrepancy)
	if closeEnough || conf["items"] > conf["total"] {
		e.logger.Debug("parser.regex.total_replaced",
			zap.String("extracted", inv.Total.StringFixed(2)),
			zap.String("items_sum", sum.StringFixed(2)),
		)
		inv.Total = sum
		conf["total"] = conf["items"]
	}
}

// cleanParty trims a captured vendor/customer value to a usable name.
func cleanParty(s string) string {
	s = strings.TrimSpace(s)
	if loc := columnBreak.FindStringIndex(s); loc != nil {
		s = s[:loc[0]]
	}
	s = labelCut.ReplaceAllString(s, "")
	s = strings.Trim(s, " \t,;:|-")
	if r := []rune(s); len(r) > maxPartyNameRunes {
		s = strings.TrimSpace(string(r[:maxPartyNameRunes]))
	}
	if !strings.ContainsFunc(s, isLetter) {
		return ""
	}
	return s
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r > 127
}

// flatten normalizes line endings and page breaks into plain newlines.
func flatten(text string) string {
	return strings.NewReplacer("\r\n", "\n", "\r", "\n", "\f", "\n").Replace(text)
}

func splitLines(text string) []string {
	lines := strings.Split(flatten(text), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	return lines
}
