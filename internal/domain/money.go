package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MaxAmount is the exclusive bound of a NUMERIC(12,2) money column.
var MaxAmount = decimal.New(1, 10)

// Money is written as a JSON number, not a quoted string.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// ValidateAmount rejects money values a NUMERIC(12,2) column would round or refuse.
func ValidateAmount(field string, d decimal.Decimal) error {
	switch {
	case d.IsNegative():
		return fmt.Errorf("%w: %s cannot be negative", ErrValidation, field)
	case !d.Equal(d.Round(2)):
		return fmt.Errorf("%w: %s cannot have more than two decimals", ErrValidation, field)
	case d.GreaterThanOrEqual(MaxAmount):
		return fmt.Errorf("%w: %s must be below %s", ErrValidation, field, MaxAmount)
	}
	return nil
}
