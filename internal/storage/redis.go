package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces the variable keys in Redis
const DefaultKeyPrefix = "nusantara:vars:"

// RedisVariables stores variables as Redis hashes: one hash for the global
// scope, one per entity, and a set indexing the entity ids.
type RedisVariables struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

var _ VariableStore = (*RedisVariables)(nil)

// NewRedisVariables connects to redisURL and verifies the connection
func NewRedisVariables(ctx context.Context, redisURL, prefix string, logger *slog.Logger) (*RedisVariables, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	r := NewRedisVariablesWithClient(redis.NewClient(opt), prefix, logger)
	if err := r.Ping(ctx); err != nil {
		_ = r.client.Close()
		return nil, err
	}
	logger.Info("Connected to Redis for variables", "prefix", r.prefix)
	return r, nil
}

// NewRedisVariablesWithClient wraps an existing client
func NewRedisVariablesWithClient(client *redis.Client, prefix string, logger *slog.Logger) *RedisVariables {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisVariables{client: client, prefix: prefix, logger: logger}
}

func (r *RedisVariables) globalKey() string          { return r.prefix + "global" }
func (r *RedisVariables) indexKey() string           { return r.prefix + "entities" }
func (r *RedisVariables) entityKey(id string) string { return r.prefix + "entity:" + id }

func (r *RedisVariables) Load(ctx context.Context) (map[string]string, map[string]map[string]string, error) {
	global, err := r.client.HGetAll(ctx, r.globalKey()).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("redis load global variables failed: %w", err)
	}

	ids, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("redis load entity index failed: %w", err)
	}

	entities := make(map[string]map[string]string, len(ids))
	for _, id := range ids {
		values, err := r.client.HGetAll(ctx, r.entityKey(id)).Result()
		if err != nil {
			return nil, nil, fmt.Errorf("redis load variables for %s failed: %w", id, err)
		}
		if len(values) > 0 {
			entities[id] = values
		}
	}

	r.logger.Debug("Redis variables loaded", "global", len(global), "entities", len(entities))
	return global, entities, nil
}

// Save replaces every stored scope in one MULTI/EXEC transaction
func (r *RedisVariables) Save(ctx context.Context, global map[string]string, entities map[string]map[string]string) error {
	oldIDs, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return fmt.Errorf("redis read entity index failed: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		stale := []string{r.globalKey(), r.indexKey()}
		for _, id := range oldIDs {
			stale = append(stale, r.entityKey(id))
		}
		pipe.Del(ctx, stale...)

		if len(global) > 0 {
			pipe.HSet(ctx, r.globalKey(), toArgs(global)...)
		}
		for id, values := range entities {
			if len(values) == 0 {
				continue
			}
			pipe.HSet(ctx, r.entityKey(id), toArgs(values)...)
			pipe.SAdd(ctx, r.indexKey(), id)
		}
		return nil
	})
	if err != nil {
		r.logger.Error("Redis variable save failed", "error", err)
		return fmt.Errorf("redis save variables failed: %w", err)
	}
	return nil
}

func (r *RedisVariables) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisVariables) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection retries Ping until Redis answers or ctx ends
func (r *RedisVariables) WaitForConnection(ctx context.Context) error {
	maxRetries := 30
	retryDelay := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		if err := r.Ping(ctx); err != nil {
			r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}
		return nil
	}
	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}

func toArgs(m map[string]string) []any {
	args := make([]any, 0, len(m)*2)
	for k, v := range m {
		args = append(args, k, v)
	}
	return args
}
