package invoicing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// InvoiceRepository persists issued invoices and backs the numbering counter
type InvoiceRepository interface {
	// Save persists an invoice. A duplicate (tenant, year, month, sequence)
	// must surface shared.ErrNumberingConflict so callers can retry with a
	// fresh sequence read.
	Save(ctx context.Context, invoice *Invoice) error
	FindByNumber(ctx context.Context, tenantID uuid.UUID, invoiceNumber string) (*Invoice, error)
	// CountForMonth returns how many invoices this tenant has issued in the
	// given calendar month.
	CountForMonth(ctx context.Context, tenantID uuid.UUID, year int, month time.Month) (int64, error)
	// ExistsForPeriod reports whether the contract already has an invoice
	// whose period overlaps [start, end].
	ExistsForPeriod(ctx context.Context, tenantID, contractID uuid.UUID, start, end time.Time) (bool, error)
}

// Sequencer allocates the next invoice sequence for a tenant and calendar
// month. Implementations must be safe under concurrent callers across
// processes; an in-memory counter is never acceptable here.
type Sequencer interface {
	NextSequence(ctx context.Context, tenantID uuid.UUID, year int, month time.Month) (int, error)
}
