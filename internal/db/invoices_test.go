package db

import (
	"context"
	"testing"

	"github.com/facturaIA/invoice-extraction-service/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToCents(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"22.00", 2200},
		{"10.005", 1001},
		{"0.1", 10},
		{"-3.456", -346},
		{"1234567.89", 123456789},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ToCents(decimal.RequireFromString(tt.in)))
		})
	}
	assert.Equal(t, "22.5", FromCents(2250).String())
}

func TestSchemaForTenant(t *testing.T) {
	assert.Equal(t, "tenant_acme", SchemaForTenant("Acme"))
	assert.Equal(t, "public", SchemaForTenant(""))
	assert.Equal(t, "public", SchemaForTenant(`x"; drop table invoices; --`))
	assert.Equal(t, `"tenant_acme"."invoices"`, table("acme", "invoices"))
}

func TestFromOutcome(t *testing.T) {
	inv := models.NewExtractedInvoice()
	inv.InvoiceNumber = "INV-9"
	inv.Date = "2024-03-15"
	inv.Vendor = "Acme Corp"
	inv.Items = []models.LineItem{{
		Description: "Widget",
		Quantity:    decimal.NewFromInt(2),
		UnitPrice:   decimal.RequireFromString("10.50"),
		Amount:      decimal.RequireFromString("21.00"),
	}}
	inv.Total = decimal.RequireFromString("21.00")
	inv.ExtractionMethods = []models.Method{models.MethodRegex}

	rec := FromOutcome(&models.ReconciliationOutcome{Invoice: inv, IsPlausibleInvoice: true}, "acme/2024/03/x.pdf", "u1")

	assert.Equal(t, "INV-9", rec.InvoiceNumber)
	require.NotNil(t, rec.InvoiceDate)
	assert.Equal(t, 15, rec.InvoiceDate.Day())
	assert.Nil(t, rec.DueDate)
	assert.Equal(t, int64(2100), rec.TotalCents)
	assert.Equal(t, []string{"regex"}, rec.Methods)
	require.Len(t, rec.Items, 1)
	assert.Equal(t, int64(1050), rec.Items[0].UnitPriceCents)
	assert.True(t, rec.Plausible)
	assert.Equal(t, "acme/2024/03/x.pdf", rec.ObjectPath)

	empty := FromOutcome(&models.ReconciliationOutcome{Invoice: models.NewExtractedInvoice()}, "", "")
	assert.Empty(t, empty.Items)
}

func TestQueriesWithoutPool(t *testing.T) {
	ctx := context.Background()
	Pool = nil

	assert.ErrorIs(t, Init(ctx, "", nil), ErrNoDatabase)
	assert.ErrorIs(t, EnsureSchema(ctx, "acme"), ErrNoDatabase)
	assert.ErrorIs(t, SaveInvoice(ctx, "acme", &Invoice{}), ErrNoDatabase)
	_, err := GetInvoices(ctx, "acme", 10)
	assert.ErrorIs(t, err, ErrNoDatabase)
	_, err = GetInvoiceByID(ctx, "acme", uuid.New())
	assert.ErrorIs(t, err, ErrNoDatabase)
	assert.ErrorIs(t, DeleteInvoice(ctx, "acme", uuid.New()), ErrNoDatabase)
	_, err = FindDuplicate(ctx, "acme", &Invoice{})
	assert.ErrorIs(t, err, ErrNoDatabase)
}

func TestStoreWithoutPool(t *testing.T) {
	ctx := context.Background()
	Pool = nil

	var s Store
	assert.False(t, s.Available())
	assert.ErrorIs(t, s.EnsureSchema(ctx, "acme"), ErrNoDatabase)
	assert.ErrorIs(t, s.SaveInvoice(ctx, "acme", &Invoice{}), ErrNoDatabase)
	_, err := s.FindDuplicate(ctx, "acme", &Invoice{})
	assert.ErrorIs(t, err, ErrNoDatabase)
}
