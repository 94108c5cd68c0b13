package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ISODate is the layout every extracted date is normalized to.
const ISODate = "2006-01-02"

var (
	numericDateRe = regexp.MustCompile(`^(\d{1,2})[/.\-](\d{1,2})[/.\-](\d{2,4})$`)
	ordinalRe     = regexp.MustCompile(`(?i)(\d)(?:st|nd|rd|th)\b`)
	spacesRe      = regexp.MustCompile(`\s+`)
)

var dateLayouts = []string{
	ISODate,
	"2006-1-2",
	"2006/01/02",
	"2006-01-02T15:04:05Z07:00",
	"January 2 2006",
	"Jan 2 2006",
	"2 January 2006",
	"2 Jan 2006",
}

// ParseDate parses the date forms found on invoices. Numeric day/month
// ambiguity is resolved as MM/DD unless the first part cannot be a month.
func ParseDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}

	if m := numericDateRe.FindStringSubmatch(s); m != nil {
		return parseNumeric(m[1], m[2], m[3])
	}

	s = ordinalRe.ReplaceAllString(s, "$1")
	s = strings.NewReplacer(",", " ", ".", " ").Replace(s)
	s = spacesRe.ReplaceAllString(strings.TrimSpace(s), " ")
	s = fixSept(s)

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// NormalizeDate returns raw as YYYY-MM-DD.
func NormalizeDate(raw string) (string, bool) {
	t, ok := ParseDate(raw)
	if !ok {
		return "", false
	}
	return t.Format(ISODate), true
}

func parseNumeric(a, b, y string) (time.Time, bool) {
	first, _ := strconv.Atoi(a)
	second, _ := strconv.Atoi(b)
	year, _ := strconv.Atoi(y)
	if len(y) == 2 {
		year += 2000
	}

	month, day := first, second
	if first > 12 && second <= 12 {
		month, day = second, first
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day {
		// Rolled over, e.g. 02/30.
		return time.Time{}, false
	}
	return t, true
}

func fixSept(s string) string {
	fields := strings.Fields(s)
	for i, f := range fields {
		if strings.EqualFold(f, "sept") {
			fields[i] = "Sep"
		}
	}
	return strings.Join(fields, " ")
}
