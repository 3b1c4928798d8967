// Package idempotency issues and validates the keys attached to portal
// mutations, so a retried POST or PUT is deduplicated server side.
package idempotency

import (
	"context"
	"errors"
	"regexp"

	"github.com/google/uuid"
)

const (
	MinKeyLength = 16
	MaxKeyLength = 128
)

var (
	ErrKeyTooShort = errors.New("idempotency key must be at least 16 characters")
	ErrKeyTooLong  = errors.New("idempotency key must not exceed 128 characters")
	ErrKeyInvalid  = errors.New("idempotency key contains invalid characters")

	validKeyPattern = regexp.MustCompile(`^[a-zA-Z0-9\-_]+$`)
)

type contextKey string

const ctxKey contextKey = "idempotencyKey"

// NewKey generates a fresh key for one logical mutation. Callers that
// retry the same mutation must reuse the key, not generate a new one.
func NewKey() string {
	return uuid.NewString()
}

// Validate checks that a caller-supplied key is acceptable.
func Validate(key string) error {
	if len(key) < MinKeyLength {
		return ErrKeyTooShort
	}

	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}

	if !validKeyPattern.MatchString(key) {
		return ErrKeyInvalid
	}

	return nil
}

// WithKey pins an explicit key on the context. The portal client prefers
// a pinned key over generating one.
func WithKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, ctxKey, key)
}

// FromContext retrieves a pinned key, if any.
func FromContext(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(ctxKey).(string)

	return key, ok && key != ""
}
