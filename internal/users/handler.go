package users

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/notify"
	"github.com/joao-fontenele/storefront/internal/web"
)

const (
	msgUsernameTaken     = "the username is already taken!"
	msgEmailRegistered   = "the email is already registered!"
	msgAlreadySubscribed = "this email is already subscribed"
	msgBadCredentials    = "incorrect username or password"

	broadcastLimit = 8
)

var errInvalidResetToken = fmt.Errorf("%w: the reset link is invalid or has expired", domain.ErrValidation)

type Store interface {
	Create(ctx context.Context, u *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	ToggleAdmin(ctx context.Context, id string) (*domain.User, error)

	CreateReset(ctx context.Context, reset domain.PasswordReset) error
	ResetPassword(ctx context.Context, tokenHash, passwordHash string, now time.Time) error

	Subscribe(ctx context.Context, email string) (*domain.Subscriber, error)
	ListSubscribers(ctx context.Context) ([]domain.Subscriber, error)
}

type Handler struct {
	store    Store
	issuer   *auth.Issuer
	sender   notify.Sender
	resetURL string
	logger   *slog.Logger
	hashCost int
	now      func() time.Time
}

func NewHandler(store Store, issuer *auth.Issuer, sender notify.Sender, resetURL string, logger *slog.Logger) *Handler {
	return &Handler{
		store:    store,
		issuer:   issuer,
		sender:   sender,
		resetURL: resetURL,
		logger:   logger,
		hashCost: bcrypt.DefaultCost,
		now:      time.Now,
	}
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.Fail(w, h.logger, err, "rejected registration")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Username == "" || req.Password == "" || req.Email == "" || req.Phone == "" {
		web.WriteError(w, h.logger, http.StatusBadRequest, "please enter all the details!")
		return
	}
	if err := domain.ValidateEmail(req.Email); err != nil {
		web.Fail(w, h.logger, err, "rejected registration")
		return
	}

	taken, err := h.exists(r.Context(), h.store.GetByUsername, req.Username)
	if err != nil {
		web.Fail(w, h.logger, err, "failed to look up username")
		return
	}
	if taken {
		web.WriteError(w, h.logger, http.StatusConflict, msgUsernameTaken)
		return
	}

	taken, err = h.exists(r.Context(), h.store.GetByEmail, req.Email)
	if err != nil {
		web.Fail(w, h.logger, err, "failed to look up email")
		return
	}
	if taken {
		web.WriteError(w, h.logger, http.StatusConflict, msgEmailRegistered)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.hashCost)
	if err != nil {
		web.Fail(w, h.logger, err, "failed to hash password")
		return
	}

	user := &domain.User{
		Username:     req.Username,
		Email:        req.Email,
		Phone:        req.Phone,
		PasswordHash: string(hash),
	}
	if err := h.store.Create(r.Context(), user); err != nil {
		web.Fail(w, h.logger, err, "failed to create user")
		return
	}

	if err := h.issuer.SetCookie(w, user); err != nil {
		web.Fail(w, h.logger, err, "failed to issue session", "user_id", user.ID)
		return
	}

	h.logger.Info("user registered", "user_id", user.ID, "username", user.Username)
	web.WriteJSON(w, h.logger, http.StatusCreated, user)
}

func (h *Handler) exists(ctx context.Context, get func(context.Context, string) (*domain.User, error), key string) (bool, error) {
	_, err := get(ctx, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.Fail(w, h.logger, err, "rejected login")
		return
	}

	user, err := h.store.GetByUsername(r.Context(), strings.TrimSpace(req.Username))
	if errors.Is(err, domain.ErrNotFound) {
		web.WriteError(w, h.logger, http.StatusUnauthorized, msgBadCredentials)
		return
	}
	if err != nil {
		web.Fail(w, h.logger, err, "failed to look up user")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		h.logger.Warn("login failed", "username", user.Username)
		web.WriteError(w, h.logger, http.StatusUnauthorized, msgBadCredentials)
		return
	}

	if err := h.issuer.SetCookie(w, user); err != nil {
		web.Fail(w, h.logger, err, "failed to issue session", "user_id", user.ID)
		return
	}

	h.logger.Info("user logged in", "user_id", user.ID)
	web.WriteJSON(w, h.logger, http.StatusOK, user)
}

func (h *Handler) HandleLogout(w http.ResponseWriter, _ *http.Request) {
	h.issuer.ClearCookie(w)
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.List(r.Context())
	if err != nil {
		web.Fail(w, h.logger, err, "failed to list users")
		return
	}

	web.WriteJSON(w, h.logger, http.StatusOK, users)
}

func (h *Handler) HandleChangeRole(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	user, err := h.store.ToggleAdmin(r.Context(), id)
	if err != nil {
		web.Fail(w, h.logger, err, "failed to change role", "user_id", id)
		return
	}

	h.logger.Info("user role changed", "user_id", id, "is_admin", user.IsAdmin)
	web.WriteJSON(w, h.logger, http.StatusOK, user)
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// HandleForgotPassword mails a single-use reset link. Only the SHA-256 of the
// token is stored.
func (h *Handler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.Fail(w, h.logger, err, "rejected password reset request")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := domain.ValidateEmail(email); err != nil {
		web.Fail(w, h.logger, err, "rejected password reset request")
		return
	}

	user, err := h.store.GetByEmail(r.Context(), email)
	if errors.Is(err, domain.ErrNotFound) {
		web.WriteError(w, h.logger, http.StatusNotFound, "no account is registered with this email")
		return
	}
	if err != nil {
		web.Fail(w, h.logger, err, "failed to look up user")
		return
	}

	token := uuid.NewString()
	reset := domain.PasswordReset{
		TokenHash: hashToken(token),
		UserID:    user.ID,
		ExpiresAt: h.now().UTC().Add(domain.PasswordResetTTL),
	}
	if err := h.store.CreateReset(r.Context(), reset); err != nil {
		web.Fail(w, h.logger, err, "failed to store reset token", "user_id", user.ID)
		return
	}

	msg, err := notify.PasswordReset(user, h.resetURL+"?token="+url.QueryEscape(token))
	if err != nil {
		web.Fail(w, h.logger, err, "failed to render reset mail", "user_id", user.ID)
		return
	}
	if err := h.sender.Send(r.Context(), msg); err != nil {
		web.Fail(w, h.logger, err, "failed to send reset mail", "user_id", user.ID)
		return
	}

	h.logger.Info("password reset issued", "user_id", user.ID)
	web.WriteJSON(w, h.logger, http.StatusOK, map[string]string{"message": "a reset link has been sent to your email"})
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (h *Handler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.Fail(w, h.logger, err, "rejected password reset")
		return
	}
	if req.Token == "" || req.Password == "" {
		web.WriteError(w, h.logger, http.StatusBadRequest, "token and password are required")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.hashCost)
	if err != nil {
		web.Fail(w, h.logger, err, "failed to hash password")
		return
	}

	if err := h.store.ResetPassword(r.Context(), hashToken(req.Token), string(hash), h.now().UTC()); err != nil {
		web.Fail(w, h.logger, err, "failed to reset password")
		return
	}

	h.logger.Info("password reset completed")
	web.WriteJSON(w, h.logger, http.StatusOK, map[string]string{"message": "your password has been updated"})
}

type subscribeRequest struct {
	Email string `json:"email"`
}

func (h *Handler) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.Fail(w, h.logger, err, "rejected subscription")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := domain.ValidateEmail(email); err != nil {
		web.Fail(w, h.logger, err, "rejected subscription")
		return
	}

	sub, err := h.store.Subscribe(r.Context(), email)
	if errors.Is(err, domain.ErrConflict) {
		web.WriteError(w, h.logger, http.StatusConflict, msgAlreadySubscribed)
		return
	}
	if err != nil {
		web.Fail(w, h.logger, err, "failed to subscribe")
		return
	}

	h.logger.Info("newsletter subscription added")
	web.WriteJSON(w, h.logger, http.StatusCreated, sub)
}

type broadcastRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type broadcastResult struct {
	Sent   int64 `json:"sent"`
	Failed int64 `json:"failed"`
}

func (h *Handler) HandleBroadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.Fail(w, h.logger, err, "rejected newsletter")
		return
	}
	if strings.TrimSpace(req.Subject) == "" || strings.TrimSpace(req.Body) == "" {
		web.WriteError(w, h.logger, http.StatusBadRequest, "subject and body are required")
		return
	}

	subscribers, err := h.store.ListSubscribers(r.Context())
	if err != nil {
		web.Fail(w, h.logger, err, "failed to list subscribers")
		return
	}

	var sent, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(broadcastLimit)
	for _, sub := range subscribers {
		g.Go(func() error {
			if err := h.sender.Send(r.Context(), notify.Newsletter(sub.Email, req.Subject, req.Body)); err != nil {
				h.logger.Warn("newsletter send failed", "error", err, "email", sub.Email)
				failed.Add(1)
				return nil
			}
			sent.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	result := broadcastResult{Sent: sent.Load(), Failed: failed.Load()}
	h.logger.Info("newsletter sent", "sent", result.Sent, "failed", result.Failed)
	web.WriteJSON(w, h.logger, http.StatusOK, result)
}
