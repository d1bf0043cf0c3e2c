package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Key prefixes for namespacing in Redis
const (
	keyPrefixClaimed     = "drop:claimed:"
	keySchemaVersion     = "drop:metadata:schema_version"
	currentSchemaVersion = "v1"

	opTimeout = 5 * time.Second
)

// RedisLedger is a Redis-backed ClaimLedger for deployments where the
// claimed set must be shared across replicas or survive host loss.
type RedisLedger struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string
	mu        sync.RWMutex
	closed    bool
}

// RedisConfig holds the configuration for connecting to Redis
type RedisConfig struct {
	// Address is the Redis server address (host:port)
	Address string
	// Password is the optional Redis password
	Password string
	// DB is the Redis database number (0-15)
	DB int
	// KeyPrefix is an optional custom prefix for all keys, for running
	// several campaigns against one Redis. "spring24:" yields keys like
	// "spring24:drop:claimed:0xabc...". Empty uses the default "drop:".
	KeyPrefix string
}

// NewRedisLedger creates a Redis-backed claim ledger and verifies the
// connection with a ping.
func NewRedisLedger(cfg *RedisConfig, logger *zap.Logger) (*RedisLedger, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	rl := &RedisLedger{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
	}

	if err := rl.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Sugar().Infow("Redis claim ledger initialized", "address", cfg.Address, "db", cfg.DB)

	return rl, nil
}

// initSchema sets or validates the schema version key.
func (r *RedisLedger) initSchema(ctx context.Context) error {
	key := r.keyPrefix + keySchemaVersion

	existing, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		if err := r.client.Set(ctx, key, currentSchemaVersion, 0).Err(); err != nil {
			return fmt.Errorf("failed to set schema version: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if existing != currentSchemaVersion {
		return fmt.Errorf("schema version mismatch: found %s, expected %s", existing, currentSchemaVersion)
	}
	return nil
}

func (r *RedisLedger) claimKey(account common.Address) string {
	return r.keyPrefix + keyPrefixClaimed + account.Hex()
}

// HasClaimed reports whether the account's claim has been recorded.
func (r *RedisLedger) HasClaimed(account common.Address) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return false, fmt.Errorf("ledger is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	n, err := r.client.Exists(ctx, r.claimKey(account)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to read claim record for %s: %w", account.Hex(), err)
	}
	return n > 0, nil
}

// MarkClaimed records the account's claim. Uses SETNX so a concurrent
// double-mark loses deterministically and surfaces as an error.
func (r *RedisLedger) MarkClaimed(account common.Address) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("ledger is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	set, err := r.client.SetNX(ctx, r.claimKey(account), "1", 0).Result()
	if err != nil {
		return fmt.Errorf("failed to write claim record for %s: %w", account.Hex(), err)
	}
	if !set {
		return fmt.Errorf("account %s already marked claimed", account.Hex())
	}
	return nil
}

// Unmark erases the account's claim record. Idempotent.
func (r *RedisLedger) Unmark(account common.Address) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("ledger is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := r.client.Del(ctx, r.claimKey(account)).Err(); err != nil {
		return fmt.Errorf("failed to delete claim record for %s: %w", account.Hex(), err)
	}
	return nil
}

// Close shuts down the Redis client. Idempotent.
func (r *RedisLedger) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	return r.client.Close()
}

// HealthCheck pings Redis.
func (r *RedisLedger) HealthCheck() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("ledger is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis unreachable: %w", err)
	}
	return nil
}
