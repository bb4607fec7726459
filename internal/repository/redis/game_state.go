package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key patterns for Redis season state.
func stateKey(seasonID string) string   { return "season:" + seasonID + ":state" }
func summaryKey(seasonID string) string { return "season:" + seasonID + ":summary" }

// SetGameState stores the live serialized game state for a season.
func (c *Client) SetGameState(ctx context.Context, seasonID string, state json.RawMessage) error {
	return c.rdb.Set(ctx, stateKey(seasonID), []byte(state), 0).Err()
}

// GetGameState retrieves the live game state, or nil if not cached.
func (c *Client) GetGameState(ctx context.Context, seasonID string) (json.RawMessage, error) {
	data, err := c.rdb.Get(ctx, stateKey(seasonID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get game state: %w", err)
	}
	return json.RawMessage(data), nil
}

// SetLastSummary stores the most recent resolution summary so late-connecting
// clients can catch up. A zero TTL keeps it until the season is deleted.
func (c *Client) SetLastSummary(ctx context.Context, seasonID, summary string, ttl time.Duration) error {
	return c.rdb.Set(ctx, summaryKey(seasonID), summary, ttl).Err()
}

// GetLastSummary retrieves the most recent resolution summary, or "" if none.
func (c *Client) GetLastSummary(ctx context.Context, seasonID string) (string, error) {
	val, err := c.rdb.Get(ctx, summaryKey(seasonID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get last summary: %w", err)
	}
	return val, nil
}

// DeleteSeasonData removes all Redis data for a season (on season end).
func (c *Client) DeleteSeasonData(ctx context.Context, seasonID string) error {
	return c.rdb.Del(ctx, stateKey(seasonID), summaryKey(seasonID)).Err()
}
