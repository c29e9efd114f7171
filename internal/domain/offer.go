package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Offer struct {
	ID                 string          `json:"id"`
	Title              string          `json:"title"`
	DiscountPercentage decimal.Decimal `json:"discountPercentage"`
	StartDate          time.Time       `json:"startDate"`
	EndDate            time.Time       `json:"endDate"`
	ApplicableProducts []string        `json:"applicableProducts"`
	IsActive           bool            `json:"isActive"`
}

// ValidAt reports whether the offer window contains t.
func (o *Offer) ValidAt(t time.Time) bool {
	return o.IsActive && !t.Before(o.StartDate) && !t.After(o.EndDate)
}

func (o *Offer) Validate() error {
	switch {
	case o.Title == "":
		return fmt.Errorf("%w: offer title is required", ErrValidation)
	case o.DiscountPercentage.IsZero():
		return fmt.Errorf("%w: offer discount is required", ErrValidation)
	case o.StartDate.IsZero() || o.EndDate.IsZero():
		return fmt.Errorf("%w: offer start and end dates are required", ErrValidation)
	}
	return nil
}

// OfferPatch is a partial edit of an offer's own fields.
type OfferPatch struct {
	Title              *string          `json:"offerTitle"`
	DiscountPercentage *decimal.Decimal `json:"discountPercentage"`
	StartDate          *time.Time       `json:"startDate"`
	EndDate            *time.Time       `json:"endDate"`
	IsActive           *bool            `json:"isActive"`
}
