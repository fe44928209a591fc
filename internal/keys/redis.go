package keys

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis resolves credentials from a redis hash-free key space, one key per
// provider under Prefix. Missing keys are not errors.
type Redis struct {
	Client *redis.Client
	Prefix string
}

func (r *Redis) key(providerID string) string {
	prefix := r.Prefix
	if prefix == "" {
		prefix = "relay:keys:"
	}
	return prefix + providerID
}

func (r *Redis) GetAPIKey(ctx context.Context, providerID string) (string, error) {
	val, err := r.Client.Get(ctx, r.key(providerID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis key lookup for %s: %w", providerID, err)
	}
	return val, nil
}
