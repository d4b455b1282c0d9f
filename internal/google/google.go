// Package google exchanges an OAuth authorization code for a verified
// identity assertion against Google's endpoints. The id_token signature is
// checked against Google's published JWKS; nothing in the token response is
// trusted before that check passes.
package google

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sizzle-game/server/internal/handshake"
)

const (
	defaultAuthEndpoint  = "https://accounts.google.com/o/oauth2/v2/auth"
	defaultTokenEndpoint = "https://oauth2.googleapis.com/token"
	defaultJWKSEndpoint  = "https://www.googleapis.com/oauth2/v3/certs"

	defaultIssuer = "https://accounts.google.com"
)

// Config configures the client. Endpoint fields default to Google's public
// endpoints and exist so tests can point at a fake provider.
type Config struct {
	ClientID     string
	ClientSecret string
	// RedirectURL is the callback this server registered with Google.
	RedirectURL string

	AuthEndpoint  string
	TokenEndpoint string
	JWKSEndpoint  string
	Issuer        string

	HTTPClient *http.Client
}

// Client implements handshake.Provider against Google OAuth.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient builds a Client, filling endpoint defaults.
func NewClient(cfg Config) *Client {
	if cfg.AuthEndpoint == "" {
		cfg.AuthEndpoint = defaultAuthEndpoint
	}
	if cfg.TokenEndpoint == "" {
		cfg.TokenEndpoint = defaultTokenEndpoint
	}
	if cfg.JWKSEndpoint == "" {
		cfg.JWKSEndpoint = defaultJWKSEndpoint
	}
	if cfg.Issuer == "" {
		cfg.Issuer = defaultIssuer
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 8 * time.Second}
	}
	return &Client{cfg: cfg, httpClient: httpClient}
}

// AuthCodeURL builds the authorization-request URL with state as the
// round-trip correlation key.
func (c *Client) AuthCodeURL(state string) string {
	q := url.Values{}
	q.Set("client_id", c.cfg.ClientID)
	q.Set("redirect_uri", c.cfg.RedirectURL)
	q.Set("response_type", "code")
	q.Set("scope", "openid email profile")
	q.Set("access_type", "online")
	q.Set("prompt", "consent")
	q.Set("state", state)
	return c.cfg.AuthEndpoint + "?" + q.Encode()
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Exchange trades code for tokens at the token endpoint and validates the
// returned id_token into an identity assertion.
func (c *Client) Exchange(ctx context.Context, code string) (handshake.Assertion, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("redirect_uri", c.cfg.RedirectURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return handshake.Assertion{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return handshake.Assertion{}, fmt.Errorf("google: token exchange: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return handshake.Assertion{}, fmt.Errorf("google: token exchange failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return handshake.Assertion{}, fmt.Errorf("google: decode token response: %w", err)
	}
	if tr.IDToken == "" {
		return handshake.Assertion{}, errors.New("google: id_token missing in token response")
	}

	keys, err := c.fetchJWKS(ctx)
	if err != nil {
		return handshake.Assertion{}, err
	}

	return c.validateIDToken(tr.IDToken, keys)
}

type jwksDocument struct {
	Keys []struct {
		Kty string `json:"kty"`
		Kid string `json:"kid"`
		N   string `json:"n"`
		E   string `json:"e"`
	} `json:"keys"`
}

func (c *Client) fetchJWKS(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.JWKSEndpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google: fetch jwks: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("google: fetch jwks: status=%d", resp.StatusCode)
	}

	var doc jwksDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("google: decode jwks: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey)
	for _, k := range doc.Keys {
		if !strings.EqualFold(k.Kty, "RSA") {
			continue
		}
		nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
		if err != nil {
			return nil, fmt.Errorf("google: decode jwks modulus: %w", err)
		}
		eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
		if err != nil {
			return nil, fmt.Errorf("google: decode jwks exponent: %w", err)
		}
		e := new(big.Int).SetBytes(eBytes)
		if !e.IsInt64() || e.Int64() <= 1 {
			return nil, fmt.Errorf("google: invalid jwks exponent for key %s", k.Kid)
		}
		keys[k.Kid] = &rsa.PublicKey{
			N: new(big.Int).SetBytes(nBytes),
			E: int(e.Int64()),
		}
	}
	if len(keys) == 0 {
		return nil, errors.New("google: no RSA keys in jwks")
	}
	return keys, nil
}

func (c *Client) validateIDToken(raw string, keys map[string]*rsa.PublicKey) (handshake.Assertion, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(
		raw,
		claims,
		func(t *jwt.Token) (any, error) {
			kid, _ := t.Header["kid"].(string)
			if key, ok := keys[kid]; ok {
				return key, nil
			}
			if len(keys) == 1 {
				for _, key := range keys {
					return key, nil
				}
			}
			return nil, fmt.Errorf("unknown key id: %s", kid)
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(c.cfg.ClientID),
		jwt.WithIssuer(c.cfg.Issuer),
		jwt.WithLeeway(30*time.Second),
	)
	if err != nil {
		return handshake.Assertion{}, fmt.Errorf("google: validate id_token: %w", err)
	}
	if !parsed.Valid {
		return handshake.Assertion{}, errors.New("google: invalid id_token")
	}

	sub := stringClaim(claims, "sub")
	if sub == "" {
		return handshake.Assertion{}, errors.New("google: id_token missing sub")
	}

	return handshake.Assertion{
		Subject: sub,
		Email:   strings.ToLower(strings.TrimSpace(stringClaim(claims, "email"))),
		Name:    strings.TrimSpace(stringClaim(claims, "name")),
	}, nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return s
}
