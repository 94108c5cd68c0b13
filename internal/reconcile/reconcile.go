// Package reconcile repairs numeric relationships inside an extracted invoice:
// line amounts against quantity x unit price, and the total against the sum
// of items plus tax.
package reconcile

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/facturaIA/invoice-extraction-service/internal/models"
	"github.com/shopspring/decimal"
)

var (
	// itemTolerance is how far a stored line amount may drift from qty x price.
	itemTolerance = decimal.NewFromFloat(0.10)
	// totalTolerance is how far the total may drift from the items sum.
	totalTolerance = decimal.NewFromInt(1)

	nonNumeric = regexp.MustCompile(`[^\d.\-]`)
)

// CoerceAmount turns a money-ish string into a decimal by stripping every
// character that is not a digit, a decimal point or a minus sign. Unparseable
// input yields zero.
func CoerceAmount(s string) decimal.Decimal {
	cleaned := nonNumeric.ReplaceAllString(strings.TrimSpace(s), "")
	if cleaned == "" || cleaned == "-" || cleaned == "." {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Coerce converts a loosely typed JSON value (number, numeric string, null)
// into a decimal.
func Coerce(v interface{}) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}

	switch val := v.(type) {
	case float64:
		return decimal.NewFromFloat(val)
	case float32:
		return decimal.NewFromFloat32(val)
	case int:
		return decimal.NewFromInt(int64(val))
	case int64:
		return decimal.NewFromInt(val)
	case json.Number:
		return CoerceAmount(string(val))
	case string:
		return CoerceAmount(val)
	case decimal.Decimal:
		return val
	default:
		return decimal.Zero
	}
}

// Reconcile returns a normalized copy of inv. It is idempotent:
// Reconcile(Reconcile(x)) == Reconcile(x).
func Reconcile(inv models.ExtractedInvoice) models.ExtractedInvoice {
	out := inv.Clone()
	out.FillDefaults()

	for i, item := range out.Items {
		out.Items[i] = reconcileItem(item)
	}

	// Without genuine items there is nothing to check the total against.
	if !out.HasItems() {
		return out
	}

	itemsTotal := out.ItemsTotal()
	if itemsTotal.Sub(out.Total).Abs().GreaterThan(totalTolerance) {
		withTax := itemsTotal.Add(out.Tax)
		if withTax.Sub(out.Total).Abs().GreaterThan(totalTolerance) {
			out.Total = withTax.Round(2)
		}
	}
	return out
}

func reconcileItem(item models.LineItem) models.LineItem {
	if item.IsPlaceholder() {
		return item
	}
	item.Description = strings.TrimSpace(item.Description)
	if item.Quantity.IsZero() {
		item.Quantity = decimal.NewFromInt(1)
	}
	// A missing unit price is derived from the amount rather than zeroing the
	// amount.
	if item.UnitPrice.IsZero() {
		if !item.Amount.IsZero() {
			item.UnitPrice = item.Amount.DivRound(item.Quantity, 4)
		}
		return item
	}

	recomputed := item.Quantity.Mul(item.UnitPrice)
	if item.Amount.Sub(recomputed).Abs().GreaterThan(itemTolerance) {
		item.Amount = recomputed.Round(2)
	}
	return item
}
