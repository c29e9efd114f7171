package checkout

import (
	"context"
	"database/sql"

	"github.com/joao-fontenele/storefront/internal/catalog"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/orders"
	"github.com/joao-fontenele/storefront/internal/users"
)

// PostgresStore reads through the catalog and user repositories and commits
// orders in a single transaction.
type PostgresStore struct {
	db       *sql.DB
	products *catalog.Repository
	users    *users.Repository
}

func NewPostgresStore(db *sql.DB, products *catalog.Repository, users *users.Repository) *PostgresStore {
	return &PostgresStore{db: db, products: products, users: users}
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *PostgresStore) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return s.products.GetProduct(ctx, id)
}

func (s *PostgresStore) PlaceOrder(ctx context.Context, order *domain.Order) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, item := range order.Items {
		if err := catalog.Decrement(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return err
		}
	}

	if err := orders.Insert(ctx, tx, order); err != nil {
		return err
	}

	if err := users.AppendOrder(ctx, tx, order.UserID, order.ID); err != nil {
		return err
	}

	return tx.Commit()
}
