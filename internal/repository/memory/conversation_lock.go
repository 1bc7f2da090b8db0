package memory

import (
	"context"
	"sync"
	"time"

	"dermascan-be/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// ConversationLockRepository is the single-instance lock, used when redis is not configured.
type ConversationLockRepository struct {
	mu    sync.Mutex
	cache *cache.Cache
}

var _ contract.ConversationLockRepository = (*ConversationLockRepository)(nil)

func NewConversationLockRepository() *ConversationLockRepository {
	// Expired locks are purged every minute
	c := cache.New(5*time.Minute, time.Minute)
	return &ConversationLockRepository{
		cache: c,
	}
}

func (r *ConversationLockRepository) Acquire(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	token := uuid.NewString()
	// Add fails when an unexpired item exists
	if err := r.cache.Add(key, token, ttl); err != nil {
		return "", false, nil
	}
	return token, true, nil
}

func (r *ConversationLockRepository) Release(_ context.Context, key, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if held, ok := r.cache.Get(key); ok && held == token {
		r.cache.Delete(key)
	}
	return nil
}
