package db

import (
	"context"

	"github.com/google/uuid"
)

// Store exposes the package-level invoice queries as a value, so callers can
// depend on an interface instead of the global pool.
type Store struct{}

// Available reports whether a pool is configured.
func (Store) Available() bool { return Pool != nil }

func (Store) EnsureSchema(ctx context.Context, tenant string) error {
	return EnsureSchema(ctx, tenant)
}

func (Store) FindDuplicate(ctx context.Context, tenant string, inv *Invoice) (uuid.UUID, error) {
	return FindDuplicate(ctx, tenant, inv)
}

func (Store) SaveInvoice(ctx context.Context, tenant string, inv *Invoice) error {
	return SaveInvoice(ctx, tenant, inv)
}

func (Store) GetInvoices(ctx context.Context, tenant string, limit int) ([]Invoice, error) {
	return GetInvoices(ctx, tenant, limit)
}

func (Store) GetInvoiceByID(ctx context.Context, tenant string, id uuid.UUID) (*Invoice, error) {
	return GetInvoiceByID(ctx, tenant, id)
}

func (Store) DeleteInvoice(ctx context.Context, tenant string, id uuid.UUID) error {
	return DeleteInvoice(ctx, tenant, id)
}
