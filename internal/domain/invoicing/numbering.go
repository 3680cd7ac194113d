package invoicing

import (
	"fmt"
	"time"

	"github.com/logiserv/billing/internal/domain/shared"
)

const invoiceNumberPrefix = "INV"

// FormatInvoiceNumber renders the human-readable invoice identifier:
// INV-{YYYY}{MM}-{sequence zero-padded to 5 digits}.
func FormatInvoiceNumber(year int, month time.Month, sequence int) string {
	return fmt.Sprintf("%s-%04d%02d-%05d", invoiceNumberPrefix, year, int(month), sequence)
}

// ParseInvoiceNumber extracts year, month and sequence from an invoice number
func ParseInvoiceNumber(number string) (int, time.Month, int, error) {
	var prefix string
	var yearMonth, sequence int
	if _, err := fmt.Sscanf(number, "%3s-%6d-%5d", &prefix, &yearMonth, &sequence); err != nil {
		return 0, 0, 0, shared.NewDomainError("INVALID_INVOICE_NUMBER", fmt.Sprintf("malformed invoice number %q", number))
	}
	if prefix != invoiceNumberPrefix {
		return 0, 0, 0, shared.NewDomainError("INVALID_INVOICE_NUMBER", fmt.Sprintf("unexpected prefix in %q", number))
	}
	year := yearMonth / 100
	month := yearMonth % 100
	if month < 1 || month > 12 || sequence < 1 {
		return 0, 0, 0, shared.NewDomainError("INVALID_INVOICE_NUMBER", fmt.Sprintf("invalid date or sequence in %q", number))
	}
	return year, time.Month(month), sequence, nil
}
