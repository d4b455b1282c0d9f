package user

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertByAssertionIsIdempotent(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	first, err := repo.UpsertByAssertion(ctx, "sub-1", "ana@example.com", "Ana")
	require.NoError(t, err)
	second, err := repo.UpsertByAssertion(ctx, "sub-1", "ana@example.com", "Ana")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestUpsertByAssertionLinksExistingEmail(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	local, err := repo.Create(ctx, &User{Username: "ana", Email: "ana@example.com", PasswordHash: "hash"})
	require.NoError(t, err)

	linked, err := repo.UpsertByAssertion(ctx, "sub-1", "ana@example.com", "Ana From Google")
	require.NoError(t, err)
	assert.Equal(t, local.ID, linked.ID)
	assert.Equal(t, "ana", linked.Username, "existing username is kept")
	assert.Equal(t, "sub-1", linked.GoogleID)
}

func TestUpsertByAssertionDedupesCollidingUsername(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	existing, err := repo.Create(ctx, &User{Username: "Ana", Email: "ana@example.com", PasswordHash: "hash"})
	require.NoError(t, err)

	// Same display name, unrelated email: must create a second account with a
	// username that does not collide with the first.
	created, err := repo.UpsertByAssertion(ctx, "sub-1", "other@example.com", "Ana")
	require.NoError(t, err)
	assert.NotEqual(t, existing.ID, created.ID)
	assert.NotEqual(t, existing.Username, created.Username)
	assert.True(t, strings.HasPrefix(created.Username, "Ana-"), created.Username)

	// Username logins keep resolving each account to itself.
	got, err := repo.FindByEmailOrUsername(ctx, "Ana")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, got.ID)
}

func TestCreateDuplicate(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	_, err := repo.Create(ctx, &User{Username: "ana", Email: "ana@example.com"})
	require.NoError(t, err)

	_, err = repo.Create(ctx, &User{Username: "other", Email: "ana@example.com"})
	require.ErrorIs(t, err, ErrDuplicate)
	_, err = repo.Create(ctx, &User{Username: "ana", Email: "other@example.com"})
	require.ErrorIs(t, err, ErrDuplicate)
}

func TestUpdatePasswordClearsResetToken(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	u, err := repo.Create(ctx, &User{Username: "ana", Email: "ana@example.com"})
	require.NoError(t, err)

	_, err = repo.SetResetToken(ctx, "ana@example.com", "tok-1", time.Now().Add(time.Minute))
	require.NoError(t, err)

	require.NoError(t, repo.UpdatePassword(ctx, u.ID, "new-hash"))

	_, err = repo.FindByResetToken(ctx, "tok-1")
	require.ErrorIs(t, err, ErrNotFound, "a consumed token must stop resolving")
}
