package idempotency

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cleaner removes idempotency records whose TTL was lost (e.g. a crash
// between HSet and Expire) and would otherwise linger forever.
type Cleaner struct {
	client *redis.Client
	log    *slog.Logger
}

func NewCleaner(client *redis.Client, log *slog.Logger) *Cleaner {
	if log == nil {
		log = slog.Default()
	}

	return &Cleaner{client: client, log: log}
}

// Sweep walks the idempotency keyspace once and deletes keys with no TTL
// or an implausibly long one.
func (c *Cleaner) Sweep(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}

	var (
		cursor  uint64
		removed int
		err     error
	)

	for {
		var keys []string
		keys, cursor, err = c.client.Scan(ctx, cursor, "idempotency:*", 100).Result()
		if err != nil {
			c.log.Error("idempotency sweep scan failed", slog.Any("error", err))
			return err
		}

		for _, key := range keys {
			ttl, err := c.client.TTL(ctx, key).Result()
			if err != nil {
				c.log.Warn("failed to get key ttl", slog.String("key", key), slog.Any("error", err))
				continue
			}

			if ttl < 0 || ttl > 25*time.Hour {
				if err := c.client.Del(ctx, key).Err(); err != nil {
					c.log.Warn("failed to delete stale idempotency key", slog.String("key", key), slog.Any("error", err))
					continue
				}
				removed++
			}
		}

		if cursor == 0 {
			break
		}
	}

	if removed > 0 {
		c.log.Info("idempotency sweep removed stale keys", slog.Int("removed", removed))
	}

	return nil
}
