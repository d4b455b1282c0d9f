package handshake

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sizzle-game/server/internal/user"
)

type fakeProvider struct {
	mu          sync.Mutex
	assertion   Assertion
	exchangeErr error
	calls       int
}

func (p *fakeProvider) AuthCodeURL(state string) string {
	return "https://provider.test/auth?state=" + state
}

func (p *fakeProvider) Exchange(_ context.Context, code string) (Assertion, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.exchangeErr != nil {
		return Assertion{}, p.exchangeErr
	}
	return p.assertion, nil
}

type fakeIssuer struct{}

func (fakeIssuer) Sign(u user.User) (string, error) {
	return fmt.Sprintf("token-for-%d", u.ID), nil
}

func newTestService(p Provider) (*Service, *user.MemoryRepository) {
	users := user.NewMemoryRepository()
	svc := NewService(NewMemoryStore(), p, users, fakeIssuer{}, nil)
	return svc, users
}

func TestBeginGeneratesKeyWhenEmpty(t *testing.T) {
	svc, _ := newTestService(&fakeProvider{})

	authURL, key, err := svc.Begin(context.Background(), "")
	require.NoError(t, err)
	require.NotEmpty(t, key)
	assert.GreaterOrEqual(t, len(key), 22)
	assert.Contains(t, authURL, "state="+key)

	rec := svc.Status(context.Background(), key)
	assert.Equal(t, StatusPending, rec.Status)
}

func TestBeginAcceptsClientKey(t *testing.T) {
	svc, _ := newTestService(&fakeProvider{})
	clientKey := strings.Repeat("k", 30)

	_, key, err := svc.Begin(context.Background(), clientKey)
	require.NoError(t, err)
	assert.Equal(t, clientKey, key)
}

func TestBeginRejectsWeakKey(t *testing.T) {
	svc, _ := newTestService(&fakeProvider{})

	_, _, err := svc.Begin(context.Background(), "short")
	require.ErrorIs(t, err, ErrWeakKey)

	// A rejected key must not leave a record behind.
	rec := svc.Status(context.Background(), "short")
	assert.Equal(t, StatusPending, rec.Status)
	assert.Nil(t, rec.Data)
}

func TestStatusUnknownKeyReadsPending(t *testing.T) {
	svc, _ := newTestService(&fakeProvider{})

	rec := svc.Status(context.Background(), "never-seen-before-key-xyz")
	assert.Equal(t, StatusPending, rec.Status)
	assert.Nil(t, rec.Data)
	assert.Empty(t, rec.Error)
}

func TestResolveRejectsMissingInputs(t *testing.T) {
	provider := &fakeProvider{}
	svc, _ := newTestService(provider)

	require.ErrorIs(t, svc.Resolve(context.Background(), "", "some-key"), ErrBadRequest)
	require.ErrorIs(t, svc.Resolve(context.Background(), "some-code", ""), ErrBadRequest)
	assert.Zero(t, provider.calls, "missing inputs must not reach the provider")
}

func TestResolveSuccessCreatesUserAndSettlesRecord(t *testing.T) {
	provider := &fakeProvider{assertion: Assertion{
		Subject: "google-sub-1",
		Email:   "ana@example.com",
		Name:    "Ana",
	}}
	svc, users := newTestService(provider)

	_, key, err := svc.Begin(context.Background(), "")
	require.NoError(t, err)

	require.NoError(t, svc.Resolve(context.Background(), "auth-code", key))

	rec := svc.Status(context.Background(), key)
	require.Equal(t, StatusOK, rec.Status)
	require.NotNil(t, rec.Data)
	assert.Equal(t, "Ana", rec.Data.User.Name)
	assert.Equal(t, "ana@example.com", rec.Data.User.Email)
	assert.Equal(t, "token-for-1", rec.Data.Token)

	u, err := users.FindByGoogleID(context.Background(), "google-sub-1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", u.Username)
}

func TestResolveFailureExposesOnlyReasonCode(t *testing.T) {
	provider := &fakeProvider{exchangeErr: errors.New("upstream said: invalid_grant, secret detail")}
	svc, _ := newTestService(provider)

	_, key, err := svc.Begin(context.Background(), "")
	require.NoError(t, err)

	require.ErrorIs(t, svc.Resolve(context.Background(), "bad-code", key), ErrUpstreamAuth)

	rec := svc.Status(context.Background(), key)
	assert.Equal(t, StatusError, rec.Status)
	assert.Equal(t, "google_oauth_failed", rec.Error)
	assert.NotContains(t, rec.Error, "invalid_grant")
	assert.Nil(t, rec.Data)
}

func TestResolveLinksExistingLocalAccountByEmail(t *testing.T) {
	provider := &fakeProvider{assertion: Assertion{
		Subject: "google-sub-2",
		Email:   "bela@example.com",
		Name:    "Bela G",
	}}
	svc, users := newTestService(provider)

	existing, err := users.Create(context.Background(), &user.User{
		Username:     "bela",
		Email:        "bela@example.com",
		PasswordHash: "$2a$10$something",
	})
	require.NoError(t, err)

	_, key, err := svc.Begin(context.Background(), "")
	require.NoError(t, err)
	require.NoError(t, svc.Resolve(context.Background(), "auth-code", key))

	rec := svc.Status(context.Background(), key)
	require.Equal(t, StatusOK, rec.Status)
	assert.Equal(t, existing.ID, rec.Data.User.ID)
	assert.Equal(t, "bela", rec.Data.User.Name, "existing username wins over the provider name")

	linked, err := users.FindByGoogleID(context.Background(), "google-sub-2")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, linked.ID)
}

func TestResolveSameIdentityTwiceReturnsSameUser(t *testing.T) {
	provider := &fakeProvider{assertion: Assertion{
		Subject: "google-sub-3",
		Email:   "cleo@example.com",
		Name:    "Cleo",
	}}
	svc, _ := newTestService(provider)

	_, key1, err := svc.Begin(context.Background(), "")
	require.NoError(t, err)
	_, key2, err := svc.Begin(context.Background(), "")
	require.NoError(t, err)

	require.NoError(t, svc.Resolve(context.Background(), "code-1", key1))
	require.NoError(t, svc.Resolve(context.Background(), "code-2", key2))

	rec1 := svc.Status(context.Background(), key1)
	rec2 := svc.Status(context.Background(), key2)
	require.Equal(t, StatusOK, rec1.Status)
	require.Equal(t, StatusOK, rec2.Status)
	assert.Equal(t, rec1.Data.User.ID, rec2.Data.User.ID)
}

func TestResolveConcurrentNewIdentityCreatesOneUser(t *testing.T) {
	provider := &fakeProvider{assertion: Assertion{
		Subject: "google-sub-4",
		Email:   "dara@example.com",
		Name:    "Dara",
	}}
	svc, users := newTestService(provider)

	const n = 16
	keys := make([]string, n)
	for i := range keys {
		_, key, err := svc.Begin(context.Background(), "")
		require.NoError(t, err)
		keys[i] = key
	}

	var wg sync.WaitGroup
	for _, key := range keys {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			_ = svc.Resolve(context.Background(), "code", key)
		}(key)
	}
	wg.Wait()

	ids := make(map[int64]struct{})
	for _, key := range keys {
		rec := svc.Status(context.Background(), key)
		require.Equal(t, StatusOK, rec.Status)
		ids[rec.Data.User.ID] = struct{}{}
	}
	assert.Len(t, ids, 1, "all resolutions must land on the same user")

	_, err := users.FindByGoogleID(context.Background(), "google-sub-4")
	require.NoError(t, err)
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty falls back", "", "Player"},
		{"short kept", "Ana", "Ana"},
		{"long truncated", strings.Repeat("a", 50), strings.Repeat("a", 32)},
		{"multibyte truncated by runes", strings.Repeat("ü", 50), strings.Repeat("ü", 32)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, displayName(tt.in))
		})
	}
}

func TestResolveDoesNotExtendRetention(t *testing.T) {
	provider := &fakeProvider{assertion: Assertion{Subject: "s", Email: "e@example.com"}}
	svc, _ := newTestService(provider)
	svc.retention = 200 * time.Millisecond

	_, key, err := svc.Begin(context.Background(), "")
	require.NoError(t, err)

	// Settle halfway through the window; the deadline set by Begin stands.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, svc.Resolve(context.Background(), "code", key))
	require.Equal(t, StatusOK, svc.Status(context.Background(), key).Status)

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, StatusPending, svc.Status(context.Background(), key).Status,
		"record must expire at the deadline set when the handshake began")
}

func TestResolveAfterExpirySettlesNothing(t *testing.T) {
	provider := &fakeProvider{assertion: Assertion{Subject: "s", Email: "e@example.com"}}
	svc, _ := newTestService(provider)
	svc.retention = 20 * time.Millisecond

	_, key, err := svc.Begin(context.Background(), "")
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)
	require.NoError(t, svc.Resolve(context.Background(), "code", key))

	rec := svc.Status(context.Background(), key)
	assert.Equal(t, StatusPending, rec.Status, "the window closed; nothing to settle")
	assert.Nil(t, rec.Data)
}

func TestRecordExpiresAfterRetention(t *testing.T) {
	provider := &fakeProvider{assertion: Assertion{Subject: "s", Email: "e@example.com"}}
	svc, _ := newTestService(provider)
	svc.retention = 30 * time.Millisecond

	_, key, err := svc.Begin(context.Background(), "")
	require.NoError(t, err)
	require.NoError(t, svc.Resolve(context.Background(), "code", key))
	require.Equal(t, StatusOK, svc.Status(context.Background(), key).Status)

	assert.Eventually(t, func() bool {
		return svc.Status(context.Background(), key).Status == StatusPending
	}, time.Second, 10*time.Millisecond, "expired record must read as pending again")
}
