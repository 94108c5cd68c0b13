package engine

import (
	"sort"

	"github.com/facturaIA/invoice-extraction-service/internal/models"
	"github.com/facturaIA/invoice-extraction-service/internal/reconcile"
	"github.com/shopspring/decimal"
)

// Merge combines candidates field by field. The most confident candidate is
// the base; a lower-confidence value only fills a field that is still
// default. Line items are also replaced when the alternative has strictly
// more of them and the current list holds at most one. The merged record is
// reconciled once at the end.
func Merge(results []models.ExtractionResult) models.ExtractedInvoice {
	if len(results) == 0 {
		return models.NewExtractedInvoice()
	}

	ordered := make([]models.ExtractionResult, len(results))
	copy(ordered, results)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Confidence > ordered[j].Confidence
	})

	merged := ordered[0].Data.Clone()
	merged.FillDefaults()
	merged.ExtractionMethods = []models.Method{}
	if contributes(merged) {
		merged.AddMethod(ordered[0].Method)
	}

	for _, alt := range ordered[1:] {
		if mergeInto(&merged, alt.Data) {
			merged.AddMethod(alt.Method)
		}
	}

	return reconcile.Reconcile(merged)
}

// mergeInto fills default fields of cur from alt and reports whether alt
// contributed anything.
func mergeInto(cur *models.ExtractedInvoice, alt models.ExtractedInvoice) bool {
	used := false
	str := func(dst *string, v string) {
		if models.IsDefaultString(*dst) && !models.IsDefaultString(v) {
			*dst = v
			used = true
		}
	}
	amount := func(dst *decimal.Decimal, v decimal.Decimal) {
		if dst.IsZero() && !v.IsZero() {
			*dst = v
			used = true
		}
	}

	str(&cur.InvoiceNumber, alt.InvoiceNumber)
	str(&cur.Date, alt.Date)
	str(&cur.DueDate, alt.DueDate)
	str(&cur.Vendor, alt.Vendor)
	str(&cur.Customer, alt.Customer)

	if !models.IsDefaultItems(alt.Items) {
		if models.IsDefaultItems(cur.Items) ||
			(len(alt.Items) > len(cur.Items) && len(cur.Items) <= 1) {
			cur.Items = append([]models.LineItem(nil), alt.Items...)
			used = true
		}
	}

	amount(&cur.Subtotal, alt.Subtotal)
	amount(&cur.Tax, alt.Tax)
	amount(&cur.Total, alt.Total)
	return used
}
