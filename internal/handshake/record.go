// Package handshake implements the polling handshake that bridges a
// redirect-based OAuth flow to a client that cannot host a redirect listener
// (the game client). The client tags the flow with an opaque correlation key,
// the provider round-trips it as OAuth state, and the client polls the key
// until it observes a terminal outcome.
package handshake

import "github.com/sizzle-game/server/internal/user"

// Status is the lifecycle state of a transaction record.
type Status string

const (
	// StatusPending is the initial state, and also what Status() reports for
	// keys that were never seen or have expired.
	StatusPending Status = "pending"
	// StatusOK is terminal: the flow resolved to a user and session token.
	StatusOK Status = "ok"
	// StatusError is terminal: the flow failed; Error carries a fixed reason
	// code, never provider internals.
	StatusError Status = "error"
)

// Result is the payload of a successful handshake.
type Result struct {
	User  user.Public `json:"user"`
	Token string      `json:"token"`
}

// Record is the transaction record kept per correlation key. Its JSON shape
// is exactly what the polling endpoint returns.
type Record struct {
	Status Status  `json:"status"`
	Data   *Result `json:"data,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// Terminal reports whether the record can no longer transition.
func (r Record) Terminal() bool {
	return r.Status == StatusOK || r.Status == StatusError
}
