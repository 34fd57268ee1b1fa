package participant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/metals-desk/quotes-bot/internal/domain"
)

const cacheTTL = 5 * time.Minute

// Cache provides Redis-backed caching for participant records, sparing the
// record store a lookup on every update.
type Cache struct {
	client *redis.Client
}

// NewCache constructs a participant cache backed by the provided Redis client.
func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Get fetches a cached participant if present. A nil cache or a miss
// returns nil without error.
func (c *Cache) Get(ctx context.Context, telegramID int64) (*domain.Participant, error) {
	if c == nil || c.client == nil {
		return nil, nil
	}

	data, err := c.client.Get(ctx, cacheKey(telegramID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cached participant: %w", err)
	}

	var p domain.Participant
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode cached participant: %w", err)
	}

	return &p, nil
}

// Set stores the participant with a short TTL.
func (c *Cache) Set(ctx context.Context, p *domain.Participant) error {
	if c == nil || c.client == nil || p == nil {
		return nil
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode participant: %w", err)
	}

	if err := c.client.Set(ctx, cacheKey(p.TelegramID), data, cacheTTL).Err(); err != nil {
		return fmt.Errorf("cache participant: %w", err)
	}

	return nil
}

func cacheKey(telegramID int64) string {
	return fmt.Sprintf("participant:%d", telegramID)
}
