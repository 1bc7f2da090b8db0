package contract

import (
	"context"
	"time"
)

// ConversationLockRepository guards a conversation against concurrent chat streams.
type ConversationLockRepository interface {
	// Acquire returns ok=false without error when the key is already held.
	// The token identifies this holder and must be passed to Release.
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	// Release frees key only while token still holds it. Releasing a lock that
	// expired and was taken by someone else is a no-op.
	Release(ctx context.Context, key, token string) error
}
