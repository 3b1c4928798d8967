package ports

import (
	"context"
	"time"

	"github.com/enlacemx/recordkit/internal/domain/model"
)

// TokenSource yields the bearer token attached to every portal request.
// An empty token means the request goes out unauthenticated.
type TokenSource interface {
	Token() string
}

// SessionEnder tears the local session down after the portal reports 401.
type SessionEnder interface {
	EndSession(ctx context.Context)
}

// LoadSignaler toggles a caller-visible loading indicator around a request.
// End is always called, on success and failure alike.
type LoadSignaler interface {
	Begin()
	End()
}

// Notifier is the UI surface for request outcomes: blocking dialogs for
// failures, transient toasts for successful mutations.
type Notifier interface {
	Dialog(notice model.Notice)
	Toast(message string)
}

// ResponseCache stores serialized list/get responses for a short TTL so
// repeated reads skip the round trip.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	// Clear drops every entry whose key starts with prefix. An empty
	// prefix drops everything.
	Clear(ctx context.Context, prefix string) error
}
