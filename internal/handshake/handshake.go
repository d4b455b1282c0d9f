package handshake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/sizzle-game/server/internal/authlog"
	"github.com/sizzle-game/server/internal/user"
)

const (
	// Retention is how long a transaction record survives before the store
	// destroys it, measured from Begin regardless of later transitions.
	Retention = 5 * time.Minute

	// minKeyLength rejects client-supplied keys too short to act as a
	// capability token. Polling needs no other authentication, so the key
	// must be unguessable; a UUID string is 36 characters.
	minKeyLength = 22

	// maxDisplayName truncates provider display names before they become
	// usernames.
	maxDisplayName = 32

	// fallbackName is used when the provider sends no display name.
	fallbackName = "Player"

	// reasonOAuthFailed is the only failure reason ever exposed to a polling
	// client; provider internals stay server-side.
	reasonOAuthFailed = "google_oauth_failed"
)

var (
	// ErrBadRequest means the callback arrived without a code or state.
	ErrBadRequest = errors.New("handshake: missing code or state")

	// ErrWeakKey means a client supplied a correlation key with too little
	// entropy to serve as a capability token.
	ErrWeakKey = errors.New("handshake: correlation key too short")

	// ErrUpstreamAuth means the resolve leg failed; the transaction record
	// has already been moved to its terminal error state.
	ErrUpstreamAuth = errors.New("handshake: provider exchange failed")
)

// Assertion is the verified identity a provider returns for an authorization
// code.
type Assertion struct {
	Subject string
	Email   string
	Name    string
}

// Provider abstracts the external OAuth provider.
type Provider interface {
	// AuthCodeURL builds the authorization-request URL embedding state.
	AuthCodeURL(state string) string
	// Exchange trades an authorization code for a verified assertion.
	Exchange(ctx context.Context, code string) (Assertion, error)
}

// TokenIssuer mints the session credential embedded in a successful record.
type TokenIssuer interface {
	Sign(u user.User) (string, error)
}

// Service is the polling handshake core: it correlates an OAuth flow with a
// client-chosen opaque key, stores the outcome, and serves status to the
// polling client until the record expires.
type Service struct {
	store     Store
	provider  Provider
	users     user.Repository
	issuer    TokenIssuer
	audit     authlog.Repository // nil-safe: auditing skipped if nil
	retention time.Duration
}

// NewService wires the handshake core. audit may be nil.
func NewService(store Store, provider Provider, users user.Repository, issuer TokenIssuer, audit authlog.Repository) *Service {
	return &Service{
		store:     store,
		provider:  provider,
		users:     users,
		issuer:    issuer,
		audit:     audit,
		retention: Retention,
	}
}

// Begin opens a handshake. An empty key means the server generates one; a
// client-supplied key below the entropy floor is rejected with ErrWeakKey.
// On return the record for key is pending and the caller should redirect the
// user agent to authURL.
func (s *Service) Begin(ctx context.Context, key string) (authURL, outKey string, err error) {
	if key != "" && len(key) < minKeyLength {
		return "", "", ErrWeakKey
	}
	if key == "" {
		key = uuid.NewString()
	}

	if err := s.store.Put(ctx, key, Record{Status: StatusPending}, s.retention); err != nil {
		return "", "", fmt.Errorf("handshake: begin: %w", err)
	}
	s.logAudit(ctx, key, authlog.EventStarted, "")

	return s.provider.AuthCodeURL(key), key, nil
}

// Resolve is the provider-callback leg: it exchanges the code, resolves the
// identity to a user, issues a session token and settles the record under
// key. Every failure past input validation moves the record to its terminal
// error state with a fixed reason code and returns ErrUpstreamAuth; the
// underlying cause is logged but never surfaced to a client. Settling never
// extends the retention window: the record expires at the deadline Begin set,
// and a callback arriving after that deadline settles nothing.
func (s *Service) Resolve(ctx context.Context, code, key string) error {
	if code == "" || key == "" {
		return ErrBadRequest
	}

	ctx, span := otel.Tracer("handshake").Start(ctx, "handshake.resolve")
	defer span.End()

	result, err := s.resolve(ctx, code)
	if err != nil {
		slog.ErrorContext(ctx, "handshake resolve failed", "key", key, "error", err)
		span.SetStatus(codes.Error, "resolve failed")

		if putErr := s.store.Update(ctx, key, Record{Status: StatusError, Error: reasonOAuthFailed}); putErr != nil {
			slog.ErrorContext(ctx, "failed to record handshake error", "key", key, "error", putErr)
		}
		s.logAudit(ctx, key, authlog.EventFailed, reasonOAuthFailed)
		return ErrUpstreamAuth
	}

	span.SetAttributes(attribute.Int64("user.id", result.User.ID))

	if err := s.store.Update(ctx, key, Record{Status: StatusOK, Data: result}); err != nil {
		// The client keeps polling pending until the window closes; there is
		// nothing safer to report without a working store.
		slog.ErrorContext(ctx, "failed to record handshake result", "key", key, "error", err)
		s.logAudit(ctx, key, authlog.EventFailed, reasonOAuthFailed)
		return fmt.Errorf("handshake: store result: %w", err)
	}
	s.logAudit(ctx, key, authlog.EventCompleted, "")
	return nil
}

// Status returns the record for key. Unknown and expired keys both read as
// pending: a poller probing keys cannot distinguish "never existed" from
// "expired".
func (s *Service) Status(ctx context.Context, key string) Record {
	rec, err := s.store.Get(ctx, key)
	if err != nil {
		slog.ErrorContext(ctx, "handshake status lookup failed", "key", key, "error", err)
		return Record{Status: StatusPending}
	}
	if rec == nil {
		return Record{Status: StatusPending}
	}
	return *rec
}

func (s *Service) resolve(ctx context.Context, code string) (*Result, error) {
	assertion, err := s.provider.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	u, err := s.resolveUser(ctx, assertion)
	if err != nil {
		return nil, fmt.Errorf("resolve identity: %w", err)
	}

	tok, err := s.issuer.Sign(*u)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	return &Result{User: u.Public(), Token: tok}, nil
}

// resolveUser maps a verified assertion to a user: subject-id match first,
// then email match (linking the subject for future lookups), else an atomic
// create-or-link upsert. The upsert is what keeps two concurrent resolutions
// of the same brand-new identity from creating two users.
func (s *Service) resolveUser(ctx context.Context, a Assertion) (*user.User, error) {
	u, err := s.users.FindByGoogleID(ctx, a.Subject)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, user.ErrNotFound) {
		return nil, err
	}

	if u, err = s.users.FindByEmail(ctx, a.Email); err == nil {
		if err := s.users.LinkGoogleID(ctx, u.ID, a.Subject); err != nil {
			return nil, err
		}
		u.GoogleID = a.Subject
		return u, nil
	}
	if !errors.Is(err, user.ErrNotFound) {
		return nil, err
	}

	return s.users.UpsertByAssertion(ctx, a.Subject, a.Email, displayName(a.Name))
}

func (s *Service) logAudit(ctx context.Context, key string, event authlog.Event, reason string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Save(ctx, authlog.NewEntry(ctx, key, event, reason)); err != nil {
		slog.WarnContext(ctx, "audit log write failed", "key", key, "event", string(event), "error", err)
	}
}

func displayName(name string) string {
	if name == "" {
		return fallbackName
	}
	if runes := []rune(name); len(runes) > maxDisplayName {
		return string(runes[:maxDisplayName])
	}
	return name
}
