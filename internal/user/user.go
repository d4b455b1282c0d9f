// Package user defines the credential store: user records keyed by id with
// unique email, optional linked Google subject id, password hash and
// password-reset token fields.
package user

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no user matches the lookup.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicate is returned when a create would violate email/username
	// uniqueness.
	ErrDuplicate = errors.New("user already exists")
)

// User is a stored user record.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	// GoogleID is the OAuth subject id, empty when no Google account is
	// linked.
	GoogleID string

	ResetToken   string
	ResetExpires time.Time
}

// Public is the client-safe view of a user.
type Public struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Public returns the client-safe view.
func (u User) Public() Public {
	return Public{ID: u.ID, Name: u.Username, Email: u.Email}
}

// dedupedUsername makes a provider display name safe for the unique username
// column when it collides with an unrelated account.
func dedupedUsername(username string) string {
	return username + "-" + uuid.NewString()[:8]
}

// Repository is the credential store port. Implementations: Postgres for
// production, in-memory for tests.
type Repository interface {
	// Create inserts u and returns it with the assigned id. Returns
	// ErrDuplicate on email/username collision.
	Create(ctx context.Context, u *User) (*User, error)

	// FindByEmailOrUsername matches either column against value.
	FindByEmailOrUsername(ctx context.Context, value string) (*User, error)

	// FindByEmail matches the unique email column.
	FindByEmail(ctx context.Context, email string) (*User, error)

	// FindByGoogleID matches the linked subject id.
	FindByGoogleID(ctx context.Context, googleID string) (*User, error)

	// LinkGoogleID attaches a subject id to an existing user.
	LinkGoogleID(ctx context.Context, userID int64, googleID string) error

	// UpsertByAssertion atomically resolves a verified provider assertion to
	// a user: it creates the user when the email is unknown, and links the
	// subject id when the email already exists. This is the serialization
	// point that keeps concurrent resolutions of the same identity from
	// creating duplicates.
	UpsertByAssertion(ctx context.Context, googleID, email, username string) (*User, error)

	// SetResetToken stores a password-reset token and its expiry on the user
	// with the given email. Returns ErrNotFound for unknown emails.
	SetResetToken(ctx context.Context, email, token string, expires time.Time) (*User, error)

	// FindByResetToken matches a previously issued reset token.
	FindByResetToken(ctx context.Context, token string) (*User, error)

	// UpdatePassword replaces the password hash and clears any reset token.
	UpdatePassword(ctx context.Context, userID int64, hash string) error
}
