package domain

import (
	"fmt"
	"net/mail"
	"time"
)

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Phone        string    `json:"phone"`
	IsAdmin      bool      `json:"isAdmin"`
	OrderHistory []string  `json:"orderHistory"`
	CreatedAt    time.Time `json:"createdAt"`
}

// PasswordReset is a single-use token issued by forgot-password. Only the
// hash of the token is persisted.
type PasswordReset struct {
	TokenHash string
	UserID    string
	ExpiresAt time.Time
}

// PasswordResetTTL is how long a reset token stays usable.
const PasswordResetTTL = 10 * time.Minute

type Subscriber struct {
	Email        string    `json:"email"`
	SubscribedAt time.Time `json:"subscribedAt"`
}

func ValidateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("%w: invalid email address", ErrValidation)
	}
	return nil
}
