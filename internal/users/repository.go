package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/joao-fontenele/storefront/internal/domain"
)

const userColumns = `id, username, email, password_hash, phone, is_admin, order_history, created_at`

const uniqueViolation = "23505"

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func isUniqueViolation(err error) (*pq.Error, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return pqErr, true
	}
	return nil, false
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var u domain.User
	var history pq.StringArray
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Phone, &u.IsAdmin, &history, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	u.OrderHistory = []string(history)
	if u.OrderHistory == nil {
		u.OrderHistory = []string{}
	}
	return &u, nil
}

func (r *Repository) Create(ctx context.Context, u *domain.User) error {
	u.ID = uuid.New().String()
	u.CreatedAt = time.Now().UTC()
	u.OrderHistory = []string{}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, phone, is_admin, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, u.ID, u.Username, u.Email, u.PasswordHash, u.Phone, u.IsAdmin, u.CreatedAt)
	if pqErr, ok := isUniqueViolation(err); ok {
		if pqErr.Constraint == "users_email_key" {
			return fmt.Errorf("%w: %s", domain.ErrConflict, msgEmailRegistered)
		}
		return fmt.Errorf("%w: %s", domain.ErrConflict, msgUsernameTaken)
	}
	return err
}

func (r *Repository) getBy(ctx context.Context, column, value string) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE `+column+` = $1
	`, value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", value, domain.ErrNotFound)
	}
	return u, err
}

func (r *Repository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getBy(ctx, "id", id)
}

func (r *Repository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getBy(ctx, "username", username)
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getBy(ctx, "email", email)
}

func (r *Repository) List(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	users := []domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return users, nil
}

func (r *Repository) ToggleAdmin(ctx context.Context, id string) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `
		UPDATE users SET is_admin = NOT is_admin
		WHERE id = $1
		RETURNING `+userColumns, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	return u, err
}

func AppendOrder(ctx context.Context, tx *sql.Tx, userID, orderID string) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE users SET order_history = array_append(order_history, $2)
		WHERE id = $1
	`, userID, orderID)
	if err != nil {
		return fmt.Errorf("append order history: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	return nil
}

func (r *Repository) CreateReset(ctx context.Context, reset domain.PasswordReset) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO password_resets (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
	`, reset.TokenHash, reset.UserID, reset.ExpiresAt)
	return err
}

// ResetPassword consumes the reset token and sets the user's password hash.
// The token is removed even when it has expired.
func (r *Repository) ResetPassword(ctx context.Context, tokenHash, passwordHash string, now time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var reset domain.PasswordReset
	err = tx.QueryRowContext(ctx, `
		DELETE FROM password_resets
		WHERE token_hash = $1
		RETURNING token_hash, user_id, expires_at
	`, tokenHash).Scan(&reset.TokenHash, &reset.UserID, &reset.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return errInvalidResetToken
	}
	if err != nil {
		return err
	}

	if !now.Before(reset.ExpiresAt) {
		if err := tx.Commit(); err != nil {
			return err
		}
		return errInvalidResetToken
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE users SET password_hash = $2
		WHERE id = $1
	`, reset.UserID, passwordHash); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *Repository) PurgeExpiredResets(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM password_resets WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *Repository) Subscribe(ctx context.Context, email string) (*domain.Subscriber, error) {
	s := &domain.Subscriber{Email: email, SubscribedAt: time.Now().UTC()}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subscribers (email, subscribed_at)
		VALUES ($1, $2)
	`, s.Email, s.SubscribedAt)
	if _, ok := isUniqueViolation(err); ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrConflict, msgAlreadySubscribed)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *Repository) ListSubscribers(ctx context.Context) ([]domain.Subscriber, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT email, subscribed_at
		FROM subscribers
		ORDER BY subscribed_at
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	subscribers := []domain.Subscriber{}
	for rows.Next() {
		var s domain.Subscriber
		if err := rows.Scan(&s.Email, &s.SubscribedAt); err != nil {
			return nil, err
		}
		subscribers = append(subscribers, s)
	}

	return subscribers, rows.Err()
}
