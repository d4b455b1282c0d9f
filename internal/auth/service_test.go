package auth

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sizzle-game/server/internal/password"
	"github.com/sizzle-game/server/internal/token"
	"github.com/sizzle-game/server/internal/user"
)

type capturingMailer struct {
	mu    sync.Mutex
	to    string
	link  string
	sends int
}

func (m *capturingMailer) SendPasswordReset(_ context.Context, to, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.to = to
	m.link = link
	m.sends++
	return nil
}

func newTestService(t *testing.T) (*Service, *user.MemoryRepository, *capturingMailer) {
	t.Helper()
	users := user.NewMemoryRepository()
	mail := &capturingMailer{}
	svc := NewService(
		users,
		password.NewHasher(4), // min cost keeps the tests fast
		token.NewIssuer("test-secret", time.Hour),
		mail,
		"https://game.example.com/",
	)
	return svc, users, mail
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	u, tok, err := svc.Register(ctx, "ana", "Ana@Example.com", "hunter2")
	require.NoError(t, err)
	require.NotEmpty(t, tok)
	assert.Equal(t, "ana", u.Username)
	assert.Equal(t, "ana@example.com", u.Email, "email is normalized to lower case")
	assert.NotEqual(t, "hunter2", u.PasswordHash)

	got, tok2, err := svc.Login(ctx, "ana@example.com", "hunter2")
	require.NoError(t, err)
	require.NotEmpty(t, tok2)
	assert.Equal(t, u.ID, got.ID)

	// Username works as the login handle too.
	_, _, err = svc.Login(ctx, "ana", "hunter2")
	require.NoError(t, err)
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		username string
		email    string
		pw       string
	}{
		{"missing fields", "", "", ""},
		{"username too short", "ab", "a@b.co", "hunter2"},
		{"username too long", strings.Repeat("a", 33), "a@b.co", "hunter2"},
		{"email without at", "ana", "not-an-email", "hunter2"},
		{"email without tld", "ana", "a@b", "hunter2"},
		{"email with spaces", "ana", "a b@c.co", "hunter2"},
		{"password too short", "ana", "a@b.co", "abc"},
		{"password too long", "ana", "a@b.co", strings.Repeat("p", 101)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.Register(ctx, tt.username, tt.email, tt.pw)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
		})
	}
}

func TestRegisterDuplicate(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.Register(ctx, "ana", "ana@example.com", "hunter2")
	require.NoError(t, err)

	_, _, err = svc.Register(ctx, "ana2", "ana@example.com", "hunter2")
	require.ErrorIs(t, err, ErrDuplicateAccount)

	_, _, err = svc.Register(ctx, "ana", "other@example.com", "hunter2")
	require.ErrorIs(t, err, ErrDuplicateAccount)
}

func TestLoginFailures(t *testing.T) {
	svc, users, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.Register(ctx, "ana", "ana@example.com", "hunter2")
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "ana@example.com", "wrong-password")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "nobody@example.com", "hunter2")
	require.ErrorIs(t, err, ErrInvalidCredentials, "unknown account reads the same as a bad password")

	// A Google-created account has no hash and cannot log in locally.
	_, err = users.UpsertByAssertion(ctx, "google-sub", "gina@example.com", "Gina")
	require.NoError(t, err)
	_, _, err = svc.Login(ctx, "gina@example.com", "anything")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestPasswordResetFlow(t *testing.T) {
	svc, _, mail := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.Register(ctx, "ana", "ana@example.com", "old-password")
	require.NoError(t, err)

	require.NoError(t, svc.RequestPasswordReset(ctx, "ana@example.com"))
	require.Equal(t, 1, mail.sends)
	assert.Equal(t, "ana@example.com", mail.to)
	require.True(t, strings.HasPrefix(mail.link, "https://game.example.com/password/reset/"), mail.link)

	resetToken := strings.TrimPrefix(mail.link, "https://game.example.com/password/reset/")
	require.NoError(t, svc.ResetPassword(ctx, resetToken, "new-password"))

	_, _, err = svc.Login(ctx, "ana@example.com", "old-password")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, "ana@example.com", "new-password")
	require.NoError(t, err)

	// The token is single use.
	require.ErrorIs(t, svc.ResetPassword(ctx, resetToken, "another-password"), ErrInvalidResetToken)
}

func TestPasswordResetUnknownEmailIsSilent(t *testing.T) {
	svc, _, mail := newTestService(t)

	require.NoError(t, svc.RequestPasswordReset(context.Background(), "ghost@example.com"))
	assert.Zero(t, mail.sends)
}

func TestPasswordResetExpiredToken(t *testing.T) {
	svc, users, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.Register(ctx, "ana", "ana@example.com", "old-password")
	require.NoError(t, err)

	_, err = users.SetResetToken(ctx, "ana@example.com", "expired-token", time.Now().Add(-time.Minute))
	require.NoError(t, err)

	require.ErrorIs(t, svc.ResetPassword(ctx, "expired-token", "new-password"), ErrInvalidResetToken)
}

func TestPasswordResetInvalidToken(t *testing.T) {
	svc, _, _ := newTestService(t)

	require.ErrorIs(t, svc.ResetPassword(context.Background(), "no-such-token", "new-password"), ErrInvalidResetToken)
}
