// Package auth implements the local account flows: registration and login
// with hashed passwords, and the password-reset email flow. The Google
// handshake lives in internal/handshake; both funnel into the same
// credential store and token issuer.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sizzle-game/server/internal/mailer"
	"github.com/sizzle-game/server/internal/password"
	"github.com/sizzle-game/server/internal/token"
	"github.com/sizzle-game/server/internal/user"
)

// resetTokenTTL is how long a password-reset link stays valid.
const resetTokenTTL = 15 * time.Minute

var (
	// ErrInvalidCredentials is returned for any login failure; it never
	// reveals whether the account exists.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrDuplicateAccount is returned when the email or username is taken.
	ErrDuplicateAccount = errors.New("email or username already registered")

	// ErrInvalidResetToken covers unknown and expired reset tokens alike.
	ErrInvalidResetToken = errors.New("invalid or expired reset token")
)

// ValidationError reports a rejected input field with a client-safe message.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Service implements the account flows over the credential store.
type Service struct {
	users  user.Repository
	hasher *password.Hasher
	issuer *token.Issuer
	mail   mailer.Mailer
	// baseURL is the public origin used to build reset links.
	baseURL string
}

// NewService wires the account flows.
func NewService(users user.Repository, hasher *password.Hasher, issuer *token.Issuer, mail mailer.Mailer, baseURL string) *Service {
	return &Service{
		users:   users,
		hasher:  hasher,
		issuer:  issuer,
		mail:    mail,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Register creates a local account and returns the user with a session
// token.
func (s *Service) Register(ctx context.Context, username, email, pw string) (*user.User, string, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if username == "" || email == "" || pw == "" {
		return nil, "", &ValidationError{Msg: "missing fields"}
	}
	if n := len([]rune(username)); n < 3 || n > 32 {
		return nil, "", &ValidationError{Msg: "username must be 3-32 characters"}
	}
	if !emailPattern.MatchString(email) {
		return nil, "", &ValidationError{Msg: "invalid email"}
	}
	if n := len(pw); n < 4 || n > 100 {
		return nil, "", &ValidationError{Msg: "password must be 4-100 characters"}
	}

	hash, err := s.hasher.Hash(pw)
	if err != nil {
		return nil, "", fmt.Errorf("auth: hash password: %w", err)
	}

	u, err := s.users.Create(ctx, &user.User{Username: username, Email: email, PasswordHash: hash})
	if err != nil {
		if errors.Is(err, user.ErrDuplicate) {
			return nil, "", ErrDuplicateAccount
		}
		return nil, "", fmt.Errorf("auth: create user: %w", err)
	}

	tok, err := s.issuer.Sign(*u)
	if err != nil {
		return nil, "", fmt.Errorf("auth: issue token: %w", err)
	}
	return u, tok, nil
}

// Login authenticates by email or username and returns the user with a
// session token.
func (s *Service) Login(ctx context.Context, emailOrUsername, pw string) (*user.User, string, error) {
	emailOrUsername = strings.ToLower(strings.TrimSpace(emailOrUsername))
	if emailOrUsername == "" || pw == "" {
		return nil, "", &ValidationError{Msg: "missing credentials"}
	}

	u, err := s.users.FindByEmailOrUsername(ctx, emailOrUsername)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("auth: lookup user: %w", err)
	}

	// OAuth-created accounts have no password hash; they cannot log in
	// locally until they set one through the reset flow.
	if u.PasswordHash == "" || s.hasher.Compare(u.PasswordHash, pw) != nil {
		return nil, "", ErrInvalidCredentials
	}

	tok, err := s.issuer.Sign(*u)
	if err != nil {
		return nil, "", fmt.Errorf("auth: issue token: %w", err)
	}
	return u, tok, nil
}

// RequestPasswordReset issues a reset token and emails the reset link.
// Unknown emails succeed silently so the endpoint cannot be used to probe
// which accounts exist.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return &ValidationError{Msg: "missing email"}
	}

	resetToken := uuid.NewString()
	u, err := s.users.SetResetToken(ctx, email, resetToken, time.Now().Add(resetTokenTTL))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			slog.InfoContext(ctx, "password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("auth: set reset token: %w", err)
	}

	link := s.baseURL + "/password/reset/" + resetToken
	if err := s.mail.SendPasswordReset(ctx, u.Email, link); err != nil {
		return fmt.Errorf("auth: send reset mail: %w", err)
	}
	return nil
}

// ResetPassword consumes a reset token and stores the new password hash.
func (s *Service) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	if resetToken == "" || newPassword == "" {
		return &ValidationError{Msg: "missing fields"}
	}
	if n := len(newPassword); n < 4 || n > 100 {
		return &ValidationError{Msg: "password must be 4-100 characters"}
	}

	u, err := s.users.FindByResetToken(ctx, resetToken)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return fmt.Errorf("auth: lookup reset token: %w", err)
	}
	if time.Now().After(u.ResetExpires) {
		return ErrInvalidResetToken
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("auth: hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, u.ID, hash); err != nil {
		return fmt.Errorf("auth: update password: %w", err)
	}
	return nil
}
