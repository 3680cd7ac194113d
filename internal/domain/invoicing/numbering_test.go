package invoicing

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logiserv/billing/internal/domain/shared"
)

func TestFormatInvoiceNumber(t *testing.T) {
	assert.Equal(t, "INV-202607-00001", FormatInvoiceNumber(2026, time.July, 1))
	assert.Equal(t, "INV-202512-00042", FormatInvoiceNumber(2025, time.December, 42))
	assert.Equal(t, "INV-202501-99999", FormatInvoiceNumber(2025, time.January, 99999))
}

func TestParseInvoiceNumber(t *testing.T) {
	t.Run("round-trips formatted numbers", func(t *testing.T) {
		year, month, seq, err := ParseInvoiceNumber(FormatInvoiceNumber(2026, time.July, 123))
		require.NoError(t, err)
		assert.Equal(t, 2026, year)
		assert.Equal(t, time.July, month)
		assert.Equal(t, 123, seq)
	})

	t.Run("rejects malformed input", func(t *testing.T) {
		for _, number := range []string{
			"",
			"INV",
			"INV-202607",
			"XYZ-202607-00001",
			"INV-202613-00001",
			"INV-202600-00001",
			"INV-202607-00000",
		} {
			_, _, _, err := ParseInvoiceNumber(number)
			require.Error(t, err, number)

			var domainErr *shared.DomainError
			require.True(t, errors.As(err, &domainErr), number)
			assert.Equal(t, "INVALID_INVOICE_NUMBER", domainErr.Code)
		}
	})
}
