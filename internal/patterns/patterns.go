// Package patterns holds the ordered regular-expression rules used to pull
// invoice fields out of raw document text. Every rule list is evaluated in
// order and the first match wins, regardless of later rules' confidence.
package patterns

import (
	"regexp"
	"strings"
)

// Rule is a labeled pattern whose first capture group is the field value.
type Rule struct {
	Name       string
	Pattern    *regexp.Regexp
	Confidence float64
}

// Match is the value captured by a rule.
type Match struct {
	Value      string
	Rule       string
	Confidence float64
}

// Set is a priority-ordered rule list.
type Set []Rule

// First returns the capture of the first rule that matches anywhere in text.
func (s Set) First(text string) (Match, bool) {
	for _, r := range s {
		if m := r.Pattern.FindStringSubmatch(text); m != nil {
			if v := strings.TrimSpace(capture(m)); v != "" {
				return Match{Value: v, Rule: r.Name, Confidence: r.Confidence}, true
			}
		}
	}
	return Match{}, false
}

// FirstInLines is First evaluated line by line; lines rejected by skip are
// ignored. Rules keep priority over line position.
func (s Set) FirstInLines(lines []string, skip func(string) bool) (Match, bool) {
	for _, r := range s {
		for _, line := range lines {
			if skip != nil && skip(line) {
				continue
			}
			if m := r.Pattern.FindStringSubmatch(line); m != nil {
				if v := strings.TrimSpace(capture(m)); v != "" {
					return Match{Value: v, Rule: r.Name, Confidence: r.Confidence}, true
				}
			}
		}
	}
	return Match{}, false
}

func capture(m []string) string {
	if len(m) > 1 {
		return m[1]
	}
	return m[0]
}

func rule(name, expr string, confidence float64) Rule {
	return Rule{Name: name, Pattern: regexp.MustCompile(expr), Confidence: confidence}
}

const (
	month       = `(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)`
	numericDate = `\d{1,2}[/.\-]\d{1,2}[/.\-]\d{2,4}|\d{4}-\d{1,2}-\d{1,2}`
	monthDate   = month + `\.?[ \t]+\d{1,2}(?:st|nd|rd|th)?,?[ \t]+\d{4}|\d{1,2}(?:st|nd|rd|th)?[ \t]+` + month + `\.?,?[ \t]+\d{4}`
	anyDate     = `(` + numericDate + `|` + monthDate + `)`

	// amount captures a money value with optional currency symbol or code.
	amount = `[ \t]*[:\-]?[ \t]*(?:USD|EUR|GBP|CAD|AUD)?[ \t]*[$€£]?[ \t]*(-?\d[\d,]*(?:\.\d{1,2})?)`
)

// InvoiceNumber rules, most specific first.
var InvoiceNumber = Set{
	rule("invoice-label", `(?i)\binvoice[ \t]*(?:no\.?|number|num\.?|#)?[ \t]*[:#]?[ \t]*([A-Z0-9][A-Z0-9\-/]*\d[A-Z0-9\-/]*)`, 0.95),
	rule("inv-token", `(?i)\b(INV[\-#]?[A-Z0-9\-]*\d[A-Z0-9\-]*)`, 0.9),
	rule("reference-label", `(?i)\b(?:bill|reference|ref|document|doc)[ \t]*(?:no\.?|number|#)[ \t]*[:#]?[ \t]*([A-Z0-9][A-Z0-9\-/]*\d[A-Z0-9\-/]*)`, 0.75),
	rule("letters-digits", `\b([A-Z]{2,}\d{4,})\b`, 0.5),
}

// Date rules for the issue date. Lines mentioning a due date are skipped by
// the caller.
var Date = Set{
	rule("date-label", `(?i)\b(?:invoice[ \t]+date|issue[ \t]+date|date[ \t]+of[ \t]+issue|dated|date)[ \t]*[:\-]?[ \t]*`+anyDate, 0.9),
	rule("iso", `\b(\d{4}-\d{2}-\d{2})\b`, 0.6),
	rule("numeric", `\b(\d{1,2}/\d{1,2}/\d{4})\b`, 0.6),
	rule("month-name", `(?i)\b(`+monthDate+`)\b`, 0.5),
}

// DueDate rules for an explicit due date.
var DueDate = Set{
	rule("due-label", `(?i)\b(?:due[ \t]+date|payment[ \t]+due|due[ \t]+by|due[ \t]+on|due)[ \t]*[:\-]?[ \t]*`+anyDate, 0.9),
}

// NetTerms rules capture a day count from payment terms. "Net 500.00" is an
// amount, not a term.
var NetTerms = Set{
	rule("net-days", `(?im)\bnet[ \t\-]*(\d{1,3})(?:[ \t]*days?\b|[ \t]*$|[ \t]*[;)]|[ \t]*,(?:[ \t]|$))`, 0.8),
	rule("within-days", `(?i)\b(?:payable|due|payment)[ \t]+(?:with)?in[ \t]+(\d{1,3})[ \t]+days\b`, 0.7),
}

// CompanyName matches a capitalized name ending in a company suffix.
var CompanyName = regexp.MustCompile(`\b([A-Z][A-Za-z0-9&'\-.]*(?:[ \t]+[A-Z&][A-Za-z0-9&'\-.]*)*[ \t]+(?:Inc|LLC|L\.L\.C|Ltd|Limited|Corp|Corporation|Co|Company|GmbH|LLP|PLC|Group|Holdings|Enterprises|Industries|Services|Solutions|Technologies|Associates|Partners)\b\.?)`)

// Vendor context rules.
var Vendor = Set{
	rule("billed-from", `(?i)\bbilled[ \t]+from[ \t]*:[ \t]*([^\n]+)`, 0.85),
	rule("from", `(?i)\bfrom[ \t]*:[ \t]*([^\n]+)`, 0.8),
	rule("vendor", `(?i)\bvendor(?:[ \t]+name)?[ \t]*:[ \t]*([^\n]+)`, 0.8),
	rule("supplier", `(?i)\bsupplier(?:[ \t]+name)?[ \t]*:[ \t]*([^\n]+)`, 0.8),
	rule("seller", `(?i)\b(?:seller|sold[ \t]+by)[ \t]*:[ \t]*([^\n]+)`, 0.7),
}

// Customer context rules.
var Customer = Set{
	rule("bill-to", `(?i)\bbill(?:ed)?[ \t]+to[ \t]*:[ \t]*([^\n]+)`, 0.9),
	rule("bill-to-next-line", `(?i)\bbill(?:ed)?[ \t]+to[ \t]*:?[ \t]*\n[ \t]*([^\n]+)`, 0.8),
	rule("customer", `(?i)\b(?:customer|client)(?:[ \t]+name)?[ \t]*:[ \t]*([^\n]+)`, 0.85),
	rule("ship-to", `(?i)\bship[ \t]+to[ \t]*:[ \t]*([^\n]+)`, 0.75),
	rule("attention", `(?i)\b(?:attention|attn\.?)[ \t]*:[ \t]*([^\n]+)`, 0.7),
	rule("to", `(?i)(?:^|\n)[ \t]*to[ \t]*:[ \t]*([^\n]+)`, 0.7),
}

// CustomerContext marks lines that introduce the customer, not the vendor.
var CustomerContext = regexp.MustCompile(`(?i)\b(?:bill(?:ed)?[ \t]+to|ship[ \t]+to|sold[ \t]+to|customer|client|attention|attn)\b|^[ \t]*to[ \t]*:`)

// CustomerLabelOnly matches a customer label standing alone on its line; the
// name follows on the next line.
var CustomerLabelOnly = regexp.MustCompile(`(?i)^[ \t]*(?:bill(?:ed)?[ \t]+to|ship[ \t]+to|sold[ \t]+to|customer|client|attention|attn\.?|to)[ \t]*:?[ \t]*$`)

// Subtotal rules.
var Subtotal = Set{
	rule("subtotal", `(?i)\bsub[ \t\-]?total`+amount, 0.9),
	rule("net-total", `(?i)\b(?:net[ \t]+amount|total[ \t]+before[ \t]+tax|amount[ \t]+before[ \t]+tax)`+amount, 0.7),
}

// Tax rules. An optional rate like "(8%)" or ": 8%" between label and value is skipped.
var Tax = Set{
	rule("tax", `(?i)\b(?:sales[ \t]+tax|tax|vat|gst|hst)(?:[ \t]*[:\-]?[ \t]*\(?[ \t]*\d+(?:\.\d+)?[ \t]*%[ \t]*\)?)?`+amount, 0.9),
}

// Total rules. Subtotal and tax-total lines are skipped by the caller.
var Total = Set{
	rule("total", `(?i)\btotal(?:[ \t]+(?:amount|due|payable))?`+amount, 0.9),
}

// TotalSynonyms are tried in order when no "Total" label matched.
var TotalSynonyms = Set{
	rule("amount-due", `(?i)\bamount[ \t]+due`+amount, 0.8),
	rule("balance-due", `(?i)\bbalance[ \t]+due`+amount, 0.75),
	rule("grand-total", `(?i)\bgrand[ \t]+total`+amount, 0.8),
	rule("total-due", `(?i)\btotal[ \t]+due`+amount, 0.8),
	rule("amount-payable", `(?i)\bamount[ \t]+payable`+amount, 0.7),
	rule("invoice-amount", `(?i)\binvoice[ \t]+(?:amount|total)`+amount, 0.7),
	rule("pay-this-amount", `(?i)\bpay[ \t]+this[ \t]+amount`+amount, 0.65),
}

// NotTotalLine marks lines whose "total" is not the invoice total.
var NotTotalLine = regexp.MustCompile(`(?i)sub[ \t\-]?total|total[ \t]+tax|tax[ \t]+total|total[ \t]+items|total[ \t]+qty|total[ \t]+quantity`)

// CurrencyAmount matches a currency-formatted number: a symbol-prefixed value
// or a value with exactly two decimals.
var CurrencyAmount = regexp.MustCompile(`[$€£][ \t]?-?\d[\d,]*(?:\.\d{1,2})?|-?\b\d{1,3}(?:,\d{3})+\.\d{2}\b|-?\b\d+\.\d{2}\b`)

// Number matches any numeric token.
var Number = regexp.MustCompile(`-?\b\d[\d,]*(?:\.\d+)?\b`)

// DueContext marks lines that talk about a due date.
var DueContext = regexp.MustCompile(`(?i)\bdue\b`)

// ItemHeaderKeywords are the column labels counted when detecting the item
// table header.
var ItemHeaderKeywords = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bdescription\b`),
	regexp.MustCompile(`(?i)\bitems?\b`),
	regexp.MustCompile(`(?i)\bproducts?\b`),
	regexp.MustCompile(`(?i)\bservices?\b`),
	regexp.MustCompile(`(?i)\b(?:qty|quantity)\b`),
	regexp.MustCompile(`(?i)\bunit[ \t]*price\b|\brate\b|\bprice\b`),
	regexp.MustCompile(`(?i)\bamount\b|\bline[ \t]+total\b`),
}

// ItemSectionEnd ends the bounded item section.
var ItemSectionEnd = regexp.MustCompile(`(?i)\b(?:sub[ \t\-]?total|total)\b`)

// ItemTabular matches "description quantity unitPrice amount".
var ItemTabular = regexp.MustCompile(`^[ \t]*(.*?[A-Za-z].*?)[ \t]+(\d+(?:\.\d+)?)[ \t]+[$€£]?[ \t]?(\d[\d,]*\.\d{2})[ \t]+[$€£]?[ \t]?(\d[\d,]*\.\d{2})[ \t]*$`)

// ItemQuantityX matches "quantity x description $amount".
var ItemQuantityX = regexp.MustCompile(`(?i)^[ \t]*(\d+(?:\.\d+)?)[ \t]*[x×][ \t]+(.+?)[ \t]+[$€£]?[ \t]?(\d[\d,]*\.\d{2})[ \t]*$`)

// ItemExplicitQuantity finds a quantity token such as "3 x", "3 items" or "qty 3".
var ItemExplicitQuantity = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(\d+)[ \t]*[x×][ \t]`),
	regexp.MustCompile(`(?i)\b(\d+)[ \t]*(?:items?|units?|pcs|pieces)\b`),
	regexp.MustCompile(`(?i)\b(?:qty|quantity)[ \t]*[:.]?[ \t]*(\d+)\b`),
}

// ItemExcluded marks lines that are never line items.
var ItemExcluded = regexp.MustCompile(`(?i)\b(?:invoice|inv[\-#]|total|subtotal|sub-total|tax|vat|gst|hst|balance|amount[ \t]+due|due|date|dated|payment|paid|terms|net[ \t]*\d+|discount|shipping[ \t]+to|bill[ \t]+to|ship[ \t]+to|page|phone|tel|fax|email|account|iban|swift|routing)\b`)
