package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/joao-fontenele/storefront/internal/domain"
)

const productColumns = `id, name, description, price, quantity, category, images, offer_id, is_featured, created_at, updated_at`

const offerColumns = `o.id, o.title, o.discount_percentage, o.start_date, o.end_date, o.is_active,
	ARRAY(SELECT op.product_id FROM offer_products op WHERE op.offer_id = o.id ORDER BY op.position)`

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var p domain.Product
	var offerID sql.NullString
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Quantity, &p.Category,
		&p.Images, &offerID, &p.IsFeatured, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if offerID.Valid {
		p.OfferID = &offerID.String
	}
	return &p, nil
}

func (r *Repository) queryProducts(ctx context.Context, query string, args ...any) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	products := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (r *Repository) ListInStock(ctx context.Context) ([]domain.Product, error) {
	return r.queryProducts(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE quantity > 0
		ORDER BY created_at DESC
	`)
}

func (r *Repository) ListFeatured(ctx context.Context) ([]domain.Product, error) {
	return r.queryProducts(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE is_featured AND quantity > 0
		ORDER BY created_at DESC
	`)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Search matches q as a literal, case-insensitive substring of name or category.
func (r *Repository) Search(ctx context.Context, q string) ([]domain.Product, error) {
	return r.queryProducts(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE name ILIKE '%' || $1 || '%' OR category ILIKE '%' || $1 || '%'
		ORDER BY name
	`, likeEscaper.Replace(q))
}

func (r *Repository) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %s: %w", id, domain.ErrNotFound)
	}
	return p, err
}

func (r *Repository) CreateProduct(ctx context.Context, p *domain.Product) error {
	p.ID = uuid.New().String()
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	if p.Images == nil {
		p.Images = domain.Images{}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (id, name, description, price, quantity, category, images, offer_id, is_featured, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	`, p.ID, p.Name, p.Description, p.Price, p.Quantity, p.Category, p.Images, p.OfferID, p.IsFeatured, now)
	return err
}

func (r *Repository) UpdateProduct(ctx context.Context, id string, patch domain.ProductPatch) (*domain.Product, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	sets := []string{"updated_at = NOW()"}
	args := []any{id}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.Price != nil {
		add("price", *patch.Price)
	}
	if patch.Category != nil {
		add("category", *patch.Category)
	}
	if patch.Quantity != nil {
		add("quantity", *patch.Quantity)
	}
	if patch.IsFeatured != nil {
		add("is_featured", *patch.IsFeatured)
	}
	if patch.OfferID != nil {
		add("offer_id", sql.NullString{String: *patch.OfferID, Valid: *patch.OfferID != ""})
	}

	p, err := scanProduct(tx.QueryRowContext(ctx, `
		UPDATE products SET `+strings.Join(sets, ", ")+`
		WHERE id = $1
		RETURNING `+productColumns, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	if patch.OfferID != nil && *patch.OfferID != "" {
		if _, err := linkOffer(ctx, tx, *patch.OfferID, id); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return p, nil
}

func linkOffer(ctx context.Context, tx *sql.Tx, offerID, productID string) (bool, error) {
	result, err := tx.ExecContext(ctx, `
		INSERT INTO offer_products (offer_id, product_id)
		SELECT id, $2 FROM offers WHERE id = $1
		ON CONFLICT (offer_id, product_id) DO NOTHING
	`, offerID, productID)
	if err != nil {
		return false, fmt.Errorf("link offer %s: %w", offerID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Repository) ToggleFeatured(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, `
		UPDATE products SET is_featured = NOT is_featured, updated_at = NOW()
		WHERE id = $1
		RETURNING `+productColumns, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %s: %w", id, domain.ErrNotFound)
	}
	return p, err
}

func (r *Repository) DeleteProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, `
		DELETE FROM products
		WHERE id = $1
		RETURNING `+productColumns, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %s: %w", id, domain.ErrNotFound)
	}
	return p, err
}

func scanOffer(row rowScanner) (*domain.Offer, error) {
	var o domain.Offer
	var products pq.StringArray
	if err := row.Scan(&o.ID, &o.Title, &o.DiscountPercentage, &o.StartDate, &o.EndDate, &o.IsActive, &products); err != nil {
		return nil, err
	}
	o.ApplicableProducts = []string(products)
	if o.ApplicableProducts == nil {
		o.ApplicableProducts = []string{}
	}
	return &o, nil
}

func (r *Repository) ListValidOffers(ctx context.Context, at time.Time) ([]domain.Offer, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+offerColumns+`
		FROM offers o
		WHERE o.is_active AND o.start_date <= $1 AND o.end_date >= $1
		ORDER BY o.end_date
	`, at)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	offers := []domain.Offer{}
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		offers = append(offers, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return offers, nil
}

func (r *Repository) GetOffer(ctx context.Context, id string) (*domain.Offer, error) {
	o, err := scanOffer(r.db.QueryRowContext(ctx, `
		SELECT `+offerColumns+`
		FROM offers o
		WHERE o.id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("offer %s: %w", id, domain.ErrNotFound)
	}
	return o, err
}

func (r *Repository) CreateOffer(ctx context.Context, o *domain.Offer) error {
	o.ID = uuid.New().String()
	o.IsActive = true
	if o.ApplicableProducts == nil {
		o.ApplicableProducts = []string{}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO offers (id, title, discount_percentage, start_date, end_date, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, o.ID, o.Title, o.DiscountPercentage, o.StartDate, o.EndDate, o.IsActive)
	return err
}

func (r *Repository) UpdateOffer(ctx context.Context, id string, patch domain.OfferPatch) (*domain.Offer, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE offers SET
			title = COALESCE($2, title),
			discount_percentage = COALESCE($3, discount_percentage),
			start_date = COALESCE($4, start_date),
			end_date = COALESCE($5, end_date),
			is_active = COALESCE($6, is_active)
		WHERE id = $1
	`, id, patch.Title, patch.DiscountPercentage, patch.StartDate, patch.EndDate, patch.IsActive)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}

	if rowsAffected == 0 {
		return nil, fmt.Errorf("offer %s: %w", id, domain.ErrNotFound)
	}

	return r.GetOffer(ctx, id)
}

func (r *Repository) DeleteOffer(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `DELETE FROM offers WHERE id = $1`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return fmt.Errorf("offer %s: %w", id, domain.ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM offer_products WHERE offer_id = $1`, id); err != nil {
		return err
	}

	return tx.Commit()
}

// Decrement removes quantity units of the product using the caller's
// transaction. It fails with ErrInsufficientStock instead of going negative.
func Decrement(ctx context.Context, tx *sql.Tx, productID string, quantity int) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE products
		SET quantity = quantity - $2, updated_at = NOW()
		WHERE id = $1 AND quantity >= $2
	`, productID, quantity)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return fmt.Errorf("product %s: %w", productID, domain.ErrInsufficientStock)
	}

	return nil
}
