package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNewExtractedInvoice_AllSentinels(t *testing.T) {
	inv := NewExtractedInvoice()

	assert.Equal(t, UnknownValue, inv.InvoiceNumber)
	assert.Equal(t, UnknownVendor, inv.Vendor)
	assert.Equal(t, UnknownCustomer, inv.Customer)
	assert.Len(t, inv.Items, 1)
	assert.True(t, inv.Items[0].IsPlaceholder())
	assert.False(t, inv.HasItems())
	assert.True(t, inv.Total.IsZero())
	assert.NotNil(t, inv.ExtractionMethods)
}

func TestFillDefaults(t *testing.T) {
	inv := ExtractedInvoice{Vendor: "  ", InvoiceNumber: "A-1"}
	inv.FillDefaults()

	assert.Equal(t, "A-1", inv.InvoiceNumber)
	assert.Equal(t, UnknownVendor, inv.Vendor)
	assert.Equal(t, UnknownValue, inv.DueDate)
	assert.True(t, IsDefaultItems(inv.Items))
}

func TestCloneDoesNotShareItems(t *testing.T) {
	inv := NewExtractedInvoice()
	clone := inv.Clone()
	clone.Items[0].Description = "changed"

	assert.Equal(t, ItemNotDetected, inv.Items[0].Description)
}

func TestAddMethodDeduplicates(t *testing.T) {
	inv := NewExtractedInvoice()
	inv.AddMethod(MethodRegex)
	inv.AddMethod(MethodVision)
	inv.AddMethod(MethodRegex)

	assert.Equal(t, []Method{MethodRegex, MethodVision}, inv.ExtractionMethods)
}

func TestItemsTotalAndGenuineItems(t *testing.T) {
	inv := ExtractedInvoice{Items: []LineItem{
		PlaceholderItem(),
		{Description: "A", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromFloat(2.5), Amount: decimal.NewFromFloat(2.5)},
		{Description: "B", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(3), Amount: decimal.NewFromInt(6)},
	}}

	assert.Len(t, inv.GenuineItems(), 2)
	assert.True(t, inv.ItemsTotal().Equal(decimal.NewFromFloat(8.5)))
}

func TestIsDefaultString(t *testing.T) {
	for _, s := range []string{"", " ", UnknownValue, UnknownVendor, UnknownCustomer} {
		assert.True(t, IsDefaultString(s), s)
	}
	assert.False(t, IsDefaultString("Acme Corp"))
}
