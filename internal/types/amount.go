package types

import (
	"github.com/shopspring/decimal"
)

// FormatAmount renders a monetary value with the fixed 2-decimal
// precision the canonical document layout mandates.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// FormatQuantity renders a quantity with the fixed 4-decimal precision
// the canonical document layout mandates.
func FormatQuantity(d decimal.Decimal) string {
	return d.StringFixed(4)
}
