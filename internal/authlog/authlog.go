// Package authlog defines the audit trail of handshake lifecycle events.
//
// Each begin/resolve transition appends one immutable row, tagged with the
// OTel trace that was active when it was written, so a stuck or failed login
// can be traced from the log straight to the distributed trace.
package authlog

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Event is a handshake lifecycle transition.
type Event string

const (
	EventStarted   Event = "STARTED"
	EventCompleted Event = "COMPLETED"
	EventFailed    Event = "FAILED"
)

// Entry is a single row in the auth_log table.
type Entry struct {
	// Key is the correlation key of the handshake this event belongs to.
	Key string

	// Event is the transition being recorded.
	Event Event

	// Reason carries the failure reason code on FAILED rows, empty otherwise.
	Reason string

	// TraceID and SpanID identify the OTel span active when the entry was
	// written. Empty when no span was active (e.g. unit tests).
	TraceID string
	SpanID  string

	// CreatedAt is the wall-clock time of the event.
	CreatedAt time.Time
}

// Repository is the port for persisting audit entries. The handshake core
// depends on this abstraction, not on SQLite directly.
type Repository interface {
	// Save appends a row; the log is append-only, never an upsert.
	Save(ctx context.Context, entry *Entry) error
}

// NewEntry builds an Entry with trace identifiers extracted from ctx.
func NewEntry(ctx context.Context, key string, event Event, reason string) *Entry {
	entry := &Entry{
		Key:       key,
		Event:     event,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		entry.TraceID = sc.TraceID().String()
		entry.SpanID = sc.SpanID().String()
	}
	return entry
}
