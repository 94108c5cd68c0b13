package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseItems_NeverEmpty(t *testing.T) {
	for _, text := range []string{"", "   ", "Invoice 42\nTotal due upon receipt", "\n\n\n"} {
		items := ParseItems(text)
		require.Len(t, items, 1, "text %q", text)
		assert.True(t, items[0].IsPlaceholder())
	}
}

func TestParseItems_HeaderBoundedSection(t *testing.T) {
	text := `Invoice 9001
Description        Qty   Unit Price   Amount
Consulting hours   10    150.00       1,500.00
Travel             1     320.50       320.50
Subtotal                              1,820.50
Late fee           1     25.00        25.00`

	items, conf := parseItems(splitLines(text))

	require.Len(t, items, 2)
	assert.Equal(t, itemConfidenceHeader, conf)
	assert.Equal(t, "Consulting hours", items[0].Description)
	assert.True(t, items[0].Quantity.Equal(dec("10")))
	assert.True(t, items[0].UnitPrice.Equal(dec("150.00")))
	assert.True(t, items[0].Amount.Equal(dec("1500.00")))
	assert.Equal(t, "Travel", items[1].Description)
}

func TestParseItems_HeaderSectionNumericTokens(t *testing.T) {
	text := `Item  Qty  Price  Amount
Paper A4 box  3  4.5  13.5
Toner  2  90
Total 103.5`

	items := ParseItems(text)

	require.Len(t, items, 2)
	assert.Equal(t, "Paper A4 box", items[0].Description)
	assert.True(t, items[0].Quantity.Equal(dec("3")))
	assert.True(t, items[0].UnitPrice.Equal(dec("4.5")))
	assert.True(t, items[0].Amount.Equal(dec("13.5")))

	assert.Equal(t, "Toner", items[1].Description)
	assert.True(t, items[1].Quantity.Equal(dec("2")))
	assert.True(t, items[1].UnitPrice.Equal(dec("45")))
	assert.True(t, items[1].Amount.Equal(dec("90")))
}

func TestParseItems_QuantityTimesDescription(t *testing.T) {
	text := "Order summary\n3 x Coffee beans $45.00\n1 x Grinder $120.00"

	items, conf := parseItems(splitLines(text))

	require.Len(t, items, 2)
	assert.Equal(t, itemConfidenceQuantity, conf)
	assert.Equal(t, "Coffee beans", items[0].Description)
	assert.True(t, items[0].Quantity.Equal(dec("3")))
	assert.True(t, items[0].UnitPrice.Equal(dec("15")))
	assert.True(t, items[0].Amount.Equal(dec("45.00")))
}

func TestParseItems_CurrencyLineScan(t *testing.T) {
	text := "Website hosting $240.00\nDomain renewal 2 units $30.00\nTotal $270.00\nPayment received $0.00\n$5.00"

	items, conf := parseItems(splitLines(text))

	require.Len(t, items, 3)
	assert.Equal(t, itemConfidenceScan, conf)
	assert.Equal(t, "Website hosting", items[0].Description)
	assert.True(t, items[0].Quantity.Equal(dec("1")))

	assert.Equal(t, "Domain renewal", items[1].Description)
	assert.True(t, items[1].Quantity.Equal(dec("2")))
	assert.True(t, items[1].UnitPrice.Equal(dec("15")))

	assert.Equal(t, "Item 3", items[2].Description)
}

func TestParseItems_KeywordLinesIgnored(t *testing.T) {
	text := "Invoice Date 01/01/2024 $0.00\nBalance forward $300.00\nTax $8.00"

	items := ParseItems(text)
	require.Len(t, items, 1)
	assert.True(t, items[0].IsPlaceholder())
}
