// Package auth issues and verifies session tokens and guards routes that
// need a buyer or an admin session.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/joao-fontenele/storefront/internal/domain"
)

const CookieName = "jwt"

type Claims struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"isAdmin"`
	jwt.RegisteredClaims
}

type Issuer struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration, secureCookie bool) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, secure: secureCookie, now: time.Now}
}

func (i *Issuer) Issue(user *domain.User) (string, error) {
	now := i.now()
	claims := Claims{
		ID:       user.ID,
		Username: user.Username,
		IsAdmin:  user.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

func (i *Issuer) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid session token", domain.ErrUnauthorized)
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("%w: session token has no subject", domain.ErrUnauthorized)
	}
	return claims, nil
}

// SetCookie issues a token for user and attaches it as an HTTP-only cookie.
func (i *Issuer) SetCookie(w http.ResponseWriter, user *domain.User) error {
	token, err := i.Issue(user)
	if err != nil {
		return fmt.Errorf("sign session token: %w", err)
	}
	http.SetCookie(w, i.cookie(token, int(i.ttl.Seconds())))
	return nil
}

func (i *Issuer) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, i.cookie("", -1))
}

func (i *Issuer) cookie(value string, maxAge int) *http.Cookie {
	c := &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   i.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if i.secure {
		c.SameSite = http.SameSiteNoneMode
	}
	return c
}

var errNoToken = errors.New("no session token")

func tokenFromRequest(r *http.Request) (string, error) {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}
	const prefix = "Bearer "
	if h := r.Header.Get("Authorization"); len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):], nil
	}
	return "", errNoToken
}
