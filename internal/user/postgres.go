package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const userColumns = `id, username, email, password_hash, COALESCE(google_id, ''),
	COALESCE(reset_token, ''), COALESCE(reset_expires, 'epoch'::timestamptz)`

// PostgresRepository implements Repository on a *sql.DB opened with the pgx
// stdlib driver.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository wraps an open database handle.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, u *User) (*User, error) {
	const q = `
		INSERT INTO users (username, email, password_hash, google_id)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		RETURNING ` + userColumns

	row := r.db.QueryRowContext(ctx, q, u.Username, u.Email, u.PasswordHash, u.GoogleID)
	created, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("users: create: %w", err)
	}
	return created, nil
}

func (r *PostgresRepository) FindByEmailOrUsername(ctx context.Context, value string) (*User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE email = $1 OR username = $1 LIMIT 1`
	return r.findOne(ctx, q, value)
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE email = $1 LIMIT 1`
	return r.findOne(ctx, q, email)
}

func (r *PostgresRepository) FindByGoogleID(ctx context.Context, googleID string) (*User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE google_id = $1 LIMIT 1`
	return r.findOne(ctx, q, googleID)
}

func (r *PostgresRepository) LinkGoogleID(ctx context.Context, userID int64, googleID string) error {
	const q = `UPDATE users SET google_id = $1 WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, q, googleID, userID); err != nil {
		return fmt.Errorf("users: link google id: %w", err)
	}
	return nil
}

// UpsertByAssertion relies on the unique constraints on email, google_id and
// username: the insert either creates the user or, on email conflict, links
// the subject id to the existing row. A google_id conflict means another
// resolution won the race with the same subject; that winner is returned. A
// username conflict means the provider display name collides with an
// unrelated account, in which case the insert is retried once with a
// suffixed username.
func (r *PostgresRepository) UpsertByAssertion(ctx context.Context, googleID, email, username string) (*User, error) {
	u, err := r.insertAssertion(ctx, googleID, email, username)
	if err == nil {
		return u, nil
	}
	if !isUniqueViolation(err) {
		return nil, fmt.Errorf("users: upsert by assertion: %w", err)
	}

	if winner, findErr := r.FindByGoogleID(ctx, googleID); findErr == nil {
		return winner, nil
	} else if !errors.Is(findErr, ErrNotFound) {
		return nil, findErr
	}

	u, err = r.insertAssertion(ctx, googleID, email, dedupedUsername(username))
	if err != nil {
		return nil, fmt.Errorf("users: upsert by assertion: %w", err)
	}
	return u, nil
}

func (r *PostgresRepository) insertAssertion(ctx context.Context, googleID, email, username string) (*User, error) {
	const q = `
		INSERT INTO users (username, email, password_hash, google_id)
		VALUES ($1, $2, '', $3)
		ON CONFLICT (email) DO UPDATE SET google_id = EXCLUDED.google_id
		RETURNING ` + userColumns

	return scanUser(r.db.QueryRowContext(ctx, q, username, email, googleID))
}

func (r *PostgresRepository) SetResetToken(ctx context.Context, email, token string, expires time.Time) (*User, error) {
	const q = `
		UPDATE users SET reset_token = $1, reset_expires = $2
		WHERE email = $3
		RETURNING ` + userColumns

	row := r.db.QueryRowContext(ctx, q, token, expires.UTC(), email)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("users: set reset token: %w", err)
	}
	return u, nil
}

func (r *PostgresRepository) FindByResetToken(ctx context.Context, token string) (*User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE reset_token = $1 LIMIT 1`
	return r.findOne(ctx, q, token)
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, userID int64, hash string) error {
	const q = `
		UPDATE users SET password_hash = $1, reset_token = NULL, reset_expires = NULL
		WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, q, hash, userID); err != nil {
		return fmt.Errorf("users: update password: %w", err)
	}
	return nil
}

func (r *PostgresRepository) findOne(ctx context.Context, q string, args ...any) (*User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("users: query: %w", err)
	}
	return u, nil
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.GoogleID,
		&u.ResetToken,
		&u.ResetExpires,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
