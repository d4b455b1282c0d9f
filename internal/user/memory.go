package user

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryRepository is an in-memory Repository for tests. The single mutex
// gives it the same atomic upsert semantics the Postgres unique constraints
// provide.
type MemoryRepository struct {
	mu     sync.Mutex
	nextID int64
	users  []*User
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{nextID: 1}
}

func (r *MemoryRepository) Create(_ context.Context, u *User) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.Email == u.Email || existing.Username == u.Username {
			return nil, ErrDuplicate
		}
	}
	stored := *u
	stored.ID = r.nextID
	r.nextID++
	r.users = append(r.users, &stored)
	copied := stored
	return &copied, nil
}

func (r *MemoryRepository) FindByEmailOrUsername(_ context.Context, value string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(func(u *User) bool {
		return strings.EqualFold(u.Email, value) || u.Username == value
	})
}

func (r *MemoryRepository) FindByEmail(_ context.Context, email string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(func(u *User) bool { return strings.EqualFold(u.Email, email) })
}

func (r *MemoryRepository) FindByGoogleID(_ context.Context, googleID string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(func(u *User) bool { return u.GoogleID != "" && u.GoogleID == googleID })
}

func (r *MemoryRepository) LinkGoogleID(_ context.Context, userID int64, googleID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ID == userID {
			u.GoogleID = googleID
			return nil
		}
	}
	return ErrNotFound
}

func (r *MemoryRepository) UpsertByAssertion(_ context.Context, googleID, email, username string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.GoogleID != "" && u.GoogleID == googleID {
			copied := *u
			return &copied, nil
		}
	}
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			u.GoogleID = googleID
			copied := *u
			return &copied, nil
		}
	}

	for _, u := range r.users {
		if u.Username == username {
			username = dedupedUsername(username)
			break
		}
	}

	stored := User{ID: r.nextID, Username: username, Email: email, GoogleID: googleID}
	r.nextID++
	r.users = append(r.users, &stored)
	copied := stored
	return &copied, nil
}

func (r *MemoryRepository) SetResetToken(_ context.Context, email, token string, expires time.Time) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			u.ResetToken = token
			u.ResetExpires = expires
			copied := *u
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRepository) FindByResetToken(_ context.Context, token string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(func(u *User) bool { return u.ResetToken != "" && u.ResetToken == token })
}

func (r *MemoryRepository) UpdatePassword(_ context.Context, userID int64, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ID == userID {
			u.PasswordHash = hash
			u.ResetToken = ""
			u.ResetExpires = time.Time{}
			return nil
		}
	}
	return ErrNotFound
}

// find must be called with the mutex held.
func (r *MemoryRepository) find(match func(*User) bool) (*User, error) {
	for _, u := range r.users {
		if match(u) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}
