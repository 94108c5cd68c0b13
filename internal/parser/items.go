package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/facturaIA/invoice-extraction-service/internal/models"
	"github.com/facturaIA/invoice-extraction-service/internal/patterns"
	"github.com/facturaIA/invoice-extraction-service/internal/reconcile"
	"github.com/shopspring/decimal"
)

// Confidence of each item detection stage.
const (
	itemConfidenceHeader   = 0.8
	itemConfidenceTabular  = 0.7
	itemConfidenceQuantity = 0.65
	itemConfidenceScan     = 0.4
)

const (
	minHeaderKeywords = 3
	// sectionSearch is how far past the header a subtotal/total line is looked for.
	sectionSearch = 20
	// sectionFallback bounds the section when no subtotal/total line is found.
	sectionFallback = 15
)

var (
	currencySymbols = regexp.MustCompile(`[$€£]`)
	leftoverPunct   = regexp.MustCompile(`^[\s\-:|.,@#*]+|[\s\-:|.,@#*]+$`)
)

// ParseItems locates and parses the line-item table. It never returns an
// empty slice; when nothing is found the single placeholder item is returned.
func ParseItems(text string) []models.LineItem {
	items, _ := parseItems(splitLines(text))
	return items
}

func parseItems(lines []string) ([]models.LineItem, float64) {
	if items := parseHeaderSection(lines); len(items) > 0 {
		return items, itemConfidenceHeader
	}
	if items := parseTabular(lines, true); len(items) > 0 {
		return items, itemConfidenceTabular
	}
	if items := parseQuantityX(lines, true); len(items) > 0 {
		return items, itemConfidenceQuantity
	}
	if items := parseCurrencyLines(lines); len(items) > 0 {
		return items, itemConfidenceScan
	}
	return []models.LineItem{models.PlaceholderItem()}, 0
}

// parseHeaderSection finds the table header and parses the rows between it
// and the next subtotal/total line.
func parseHeaderSection(lines []string) []models.LineItem {
	header := -1
	for i, line := range lines {
		if countHeaderKeywords(line) >= minHeaderKeywords {
			header = i
			break
		}
	}
	if header < 0 {
		return nil
	}

	start := header + 1
	end := -1
	for i := start; i < len(lines) && i <= header+sectionSearch; i++ {
		if patterns.ItemSectionEnd.MatchString(lines[i]) {
			end = i
			break
		}
	}
	if end < 0 {
		end = min(start+sectionFallback, len(lines))
	}
	section := lines[start:end]

	if items := parseTabular(section, false); len(items) > 0 {
		return items
	}
	if items := parseQuantityX(section, false); len(items) > 0 {
		return items
	}
	return parseNumericTokens(section)
}

func countHeaderKeywords(line string) int {
	n := 0
	for _, kw := range patterns.ItemHeaderKeywords {
		if kw.MatchString(line) {
			n++
		}
	}
	return n
}

// parseTabular matches "description quantity unitPrice amount" rows.
func parseTabular(lines []string, exclude bool) []models.LineItem {
	var items []models.LineItem
	for _, line := range lines {
		if exclude && patterns.ItemExcluded.MatchString(line) {
			continue
		}
		m := patterns.ItemTabular.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		items = append(items, models.LineItem{
			Description: cleanDescription(m[1]),
			Quantity:    reconcile.CoerceAmount(m[2]),
			UnitPrice:   reconcile.CoerceAmount(m[3]),
			Amount:      reconcile.CoerceAmount(m[4]),
		})
	}
	return items
}

// parseQuantityX matches "3 x Widget $30.00" rows.
func parseQuantityX(lines []string, exclude bool) []models.LineItem {
	var items []models.LineItem
	for _, line := range lines {
		if exclude && patterns.ItemExcluded.MatchString(line) {
			continue
		}
		m := patterns.ItemQuantityX.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		qty := reconcile.CoerceAmount(m[1])
		amount := reconcile.CoerceAmount(m[3])
		items = append(items, models.LineItem{
			Description: cleanDescription(m[2]),
			Quantity:    qty,
			UnitPrice:   unitPrice(amount, qty),
			Amount:      amount,
		})
	}
	return items
}

// parseNumericTokens treats any row with two or more numbers as an item: the
// last number is the amount, the first one or two are quantity/unit price.
func parseNumericTokens(lines []string) []models.LineItem {
	var items []models.LineItem
	for _, line := range lines {
		if patterns.ItemExcluded.MatchString(line) {
			continue
		}
		nums := patterns.Number.FindAllString(line, -1)
		if len(nums) < 2 {
			continue
		}

		amount := reconcile.CoerceAmount(nums[len(nums)-1])
		first := reconcile.CoerceAmount(nums[0])
		var qty, unit decimal.Decimal
		switch {
		case len(nums) >= 3:
			qty, unit = first, reconcile.CoerceAmount(nums[1])
		case first.IsInteger() && first.IsPositive():
			qty, unit = first, unitPrice(amount, first)
		default:
			qty, unit = decimal.NewFromInt(1), first
		}

		desc := cleanDescription(patterns.Number.ReplaceAllString(line, " "))
		items = append(items, models.LineItem{
			Description: describe(desc, len(items)+1),
			Quantity:    qty,
			UnitPrice:   unit,
			Amount:      amount,
		})
	}
	return items
}

// parseCurrencyLines treats every non-keyword line carrying a currency
// amount as one item.
func parseCurrencyLines(lines []string) []models.LineItem {
	var items []models.LineItem
	for _, line := range lines {
		if patterns.ItemExcluded.MatchString(line) {
			continue
		}
		amounts := patterns.CurrencyAmount.FindAllString(line, -1)
		if len(amounts) == 0 {
			continue
		}
		amount := reconcile.CoerceAmount(amounts[len(amounts)-1])

		qty := decimal.NewFromInt(1)
		stripped := line
		for _, re := range patterns.ItemExplicitQuantity {
			if m := re.FindStringSubmatch(line); m != nil {
				qty = reconcile.CoerceAmount(m[1])
				stripped = re.ReplaceAllString(stripped, " ")
				break
			}
		}
		stripped = patterns.CurrencyAmount.ReplaceAllString(stripped, " ")
		stripped = patterns.Number.ReplaceAllString(stripped, " ")

		items = append(items, models.LineItem{
			Description: describe(cleanDescription(stripped), len(items)+1),
			Quantity:    qty,
			UnitPrice:   unitPrice(amount, qty),
			Amount:      amount,
		})
	}
	return items
}

func unitPrice(amount, qty decimal.Decimal) decimal.Decimal {
	if qty.IsZero() {
		return amount
	}
	return amount.DivRound(qty, 2)
}

func cleanDescription(s string) string {
	s = currencySymbols.ReplaceAllString(s, " ")
	s = spacesRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(leftoverPunct.ReplaceAllString(strings.TrimSpace(s), ""))
}

// describe substitutes a generic name for descriptions that are too short.
func describe(desc string, n int) string {
	if len([]rune(desc)) < 3 {
		return fmt.Sprintf("Item %d", n)
	}
	return desc
}
