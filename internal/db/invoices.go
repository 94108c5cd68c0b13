package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/facturaIA/invoice-extraction-service/internal/models"
	"github.com/facturaIA/invoice-extraction-service/internal/parser"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Invoice is a persisted invoice. Money is stored in cents.
type Invoice struct {
	ID            uuid.UUID  `json:"id"`
	InvoiceNumber string     `json:"invoice_number"`
	InvoiceDate   *time.Time `json:"invoice_date"`
	DueDate       *time.Time `json:"due_date"`
	Vendor        string     `json:"vendor"`
	Customer      string     `json:"customer"`
	SubtotalCents int64      `json:"subtotal_cents"`
	TaxCents      int64      `json:"tax_cents"`
	TotalCents    int64      `json:"total_cents"`
	Methods       []string   `json:"methods"`
	Plausible     bool       `json:"plausible"`
	Reason        string     `json:"reason,omitempty"`
	ObjectPath    string     `json:"object_path,omitempty"`
	CreatedBy     string     `json:"created_by,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	Items         []LineItem `json:"items,omitempty"`
}

// LineItem is a persisted line item.
type LineItem struct {
	Description    string          `json:"description"`
	Quantity       decimal.Decimal `json:"quantity"`
	UnitPriceCents int64           `json:"unit_price_cents"`
	AmountCents    int64           `json:"amount_cents"`
}

// ToCents converts major currency units to cents, rounding half away from zero.
func ToCents(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

// FromCents converts cents back to major units.
func FromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}

// FromOutcome builds the record persisted for an extraction outcome.
func FromOutcome(out *models.ReconciliationOutcome, objectPath, createdBy string) *Invoice {
	inv := out.Invoice
	rec := &Invoice{
		InvoiceNumber: inv.InvoiceNumber,
		InvoiceDate:   parseISO(inv.Date),
		DueDate:       parseISO(inv.DueDate),
		Vendor:        inv.Vendor,
		Customer:      inv.Customer,
		SubtotalCents: ToCents(inv.Subtotal),
		TaxCents:      ToCents(inv.Tax),
		TotalCents:    ToCents(inv.Total),
		Methods:       make([]string, 0, len(inv.ExtractionMethods)),
		Plausible:     out.IsPlausibleInvoice,
		Reason:        out.Reason,
		ObjectPath:    objectPath,
		CreatedBy:     createdBy,
	}
	for _, m := range inv.ExtractionMethods {
		rec.Methods = append(rec.Methods, string(m))
	}
	for _, it := range inv.GenuineItems() {
		rec.Items = append(rec.Items, LineItem{
			Description:    it.Description,
			Quantity:       it.Quantity,
			UnitPriceCents: ToCents(it.UnitPrice),
			AmountCents:    ToCents(it.Amount),
		})
	}
	return rec
}

func parseISO(s string) *time.Time {
	t, err := time.Parse(parser.ISODate, s)
	if err != nil {
		return nil
	}
	return &t
}

// SaveInvoice writes the invoice and its line items in one transaction.
func SaveInvoice(ctx context.Context, tenant string, inv *Invoice) error {
	if Pool == nil {
		return ErrNoDatabase
	}
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}

	tx, err := Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := fmt.Sprintf(`
		INSERT INTO %s (
			id, invoice_number, invoice_date, due_date, vendor, customer,
			subtotal_cents, tax_cents, total_cents, methods, plausible,
			reason, object_path, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at
	`, table(tenant, "invoices"))

	err = tx.QueryRow(ctx, query,
		inv.ID, inv.InvoiceNumber, inv.InvoiceDate, inv.DueDate, inv.Vendor, inv.Customer,
		inv.SubtotalCents, inv.TaxCents, inv.TotalCents, inv.Methods, inv.Plausible,
		inv.Reason, inv.ObjectPath, inv.CreatedBy,
	).Scan(&inv.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert invoice: %w", err)
	}

	if len(inv.Items) > 0 {
		itemQuery := fmt.Sprintf(`
			INSERT INTO %s (invoice_id, position, description, quantity, unit_price_cents, amount_cents)
			VALUES ($1, $2, $3, $4::numeric, $5, $6)
		`, table(tenant, "invoice_line_items"))

		batch := &pgx.Batch{}
		for i, it := range inv.Items {
			batch.Queue(itemQuery, inv.ID, i+1, it.Description, it.Quantity.String(), it.UnitPriceCents, it.AmountCents)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert line items: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit invoice: %w", err)
	}
	return nil
}

const invoiceColumns = `id, invoice_number, invoice_date, due_date, vendor, customer,
	subtotal_cents, tax_cents, total_cents, methods, plausible, reason,
	object_path, created_by, created_at`

func scanInvoice(row pgx.Row, inv *Invoice) error {
	return row.Scan(
		&inv.ID, &inv.InvoiceNumber, &inv.InvoiceDate, &inv.DueDate, &inv.Vendor, &inv.Customer,
		&inv.SubtotalCents, &inv.TaxCents, &inv.TotalCents, &inv.Methods, &inv.Plausible, &inv.Reason,
		&inv.ObjectPath, &inv.CreatedBy, &inv.CreatedAt,
	)
}

// GetInvoices lists the most recent invoices without their line items.
func GetInvoices(ctx context.Context, tenant string, limit int) ([]Invoice, error) {
	if Pool == nil {
		return nil, ErrNoDatabase
	}

	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY created_at DESC LIMIT $1`,
		invoiceColumns, table(tenant, "invoices"))

	rows, err := Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invoices := []Invoice{}
	for rows.Next() {
		var inv Invoice
		if err := scanInvoice(rows, &inv); err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// GetInvoiceByID retrieves a single invoice with its line items.
func GetInvoiceByID(ctx context.Context, tenant string, id uuid.UUID) (*Invoice, error) {
	if Pool == nil {
		return nil, ErrNoDatabase
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, invoiceColumns, table(tenant, "invoices"))

	var inv Invoice
	if err := scanInvoice(Pool.QueryRow(ctx, query, id), &inv); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	itemQuery := fmt.Sprintf(`
		SELECT description, quantity::text, unit_price_cents, amount_cents
		FROM %s WHERE invoice_id = $1 ORDER BY position
	`, table(tenant, "invoice_line_items"))

	rows, err := Pool.Query(ctx, itemQuery, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			it  LineItem
			qty string
		)
		if err := rows.Scan(&it.Description, &qty, &it.UnitPriceCents, &it.AmountCents); err != nil {
			return nil, err
		}
		it.Quantity, err = decimal.NewFromString(qty)
		if err != nil {
			return nil, fmt.Errorf("invalid stored quantity %q: %w", qty, err)
		}
		inv.Items = append(inv.Items, it)
	}
	return &inv, rows.Err()
}

// DeleteInvoice removes an invoice; its line items cascade.
func DeleteInvoice(ctx context.Context, tenant string, id uuid.UUID) error {
	if Pool == nil {
		return ErrNoDatabase
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", table(tenant, "invoices"))
	tag, err := Pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FindDuplicate returns the id of an existing invoice with the same number,
// vendor and total, or uuid.Nil when there is none. Records whose number or
// vendor is unresolved are never matched.
func FindDuplicate(ctx context.Context, tenant string, inv *Invoice) (uuid.UUID, error) {
	if Pool == nil {
		return uuid.Nil, ErrNoDatabase
	}
	if models.IsDefaultString(inv.InvoiceNumber) || models.IsDefaultString(inv.Vendor) {
		return uuid.Nil, nil
	}

	query := fmt.Sprintf(`
		SELECT id FROM %s
		WHERE invoice_number = $1 AND lower(vendor) = lower($2) AND total_cents = $3
		ORDER BY created_at
		LIMIT 1
	`, table(tenant, "invoices"))

	var id uuid.UUID
	err := Pool.QueryRow(ctx, query, inv.InvoiceNumber, inv.Vendor, inv.TotalCents).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, nil
	}
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}
