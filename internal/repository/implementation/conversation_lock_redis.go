package implementation

import (
	"context"
	"fmt"
	"time"

	"dermascan-be/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const conversationLockPrefix = "dermascan:chat-lock:"

// releaseLockScript deletes the key only if it still holds the caller's token.
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisConversationLockRepository shares conversation locks across instances.
type RedisConversationLockRepository struct {
	client *redis.Client
}

func NewRedisConversationLockRepository(client *redis.Client) contract.ConversationLockRepository {
	return &RedisConversationLockRepository{client: client}
}

func (r *RedisConversationLockRepository) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, conversationLockPrefix+key, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("acquire conversation lock: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (r *RedisConversationLockRepository) Release(ctx context.Context, key, token string) error {
	if err := releaseLockScript.Run(ctx, r.client, []string{conversationLockPrefix + key}, token).Err(); err != nil {
		return fmt.Errorf("release conversation lock: %w", err)
	}
	return nil
}
