package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// MaxProductImages bounds the multipart upload on product creation.
const MaxProductImages = 10

// MaxQuantity is the largest stock or line quantity the INTEGER columns hold.
const MaxQuantity = math.MaxInt32

func ValidateQuantity(field string, q, lowest int) error {
	if q < lowest || q > MaxQuantity {
		return fmt.Errorf("%w: %s must be between %d and %d", ErrValidation, field, lowest, MaxQuantity)
	}
	return nil
}

type Image struct {
	URL       string `json:"url"`
	StorageID string `json:"storageId"`
}

// Images is stored as a JSONB column.
type Images []Image

func (im Images) Value() (driver.Value, error) {
	if im == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(im)
}

func (im *Images) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*im = Images{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("scan images: unsupported type %T", src)
	}
	return json.Unmarshal(data, im)
}

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Category    string          `json:"category"`
	Images      Images          `json:"images"`
	OfferID     *string         `json:"offer,omitempty"`
	IsFeatured  bool            `json:"isFeatured"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func (p *Product) Validate() error {
	switch {
	case p.Name == "":
		return fmt.Errorf("%w: product name is required", ErrValidation)
	case p.Description == "":
		return fmt.Errorf("%w: product description is required", ErrValidation)
	case p.Category == "":
		return fmt.Errorf("%w: product category is required", ErrValidation)
	}
	if err := ValidateAmount("product price", p.Price); err != nil {
		return err
	}
	return ValidateQuantity("product quantity", p.Quantity, 0)
}

// ProductPatch is a partial administrative edit. Nil fields are left unchanged.
type ProductPatch struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Category    *string          `json:"category"`
	Quantity    *int             `json:"quantity"`
	IsFeatured  *bool            `json:"isFeatured"`
	OfferID     *string          `json:"offer"`
}

func (p ProductPatch) Validate() error {
	switch {
	case p.Name != nil && *p.Name == "":
		return fmt.Errorf("%w: product name cannot be empty", ErrValidation)
	case p.Price != nil:
		if err := ValidateAmount("product price", *p.Price); err != nil {
			return err
		}
	}
	if p.Quantity != nil {
		return ValidateQuantity("product quantity", *p.Quantity, 0)
	}
	return nil
}
