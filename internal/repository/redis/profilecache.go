package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ekoval/pairbot/internal/domain"
)

const (
	profileCachePrefix = "profile:"
	profileCacheTTL    = 15 * time.Minute
)

// ProfileCache keeps recently fetched directory profiles in Redis so a
// resumed dialog does not re-query the directory on every inbound message.
type ProfileCache struct {
	client *Client
}

// NewProfileCache creates a new profile cache
func NewProfileCache(client *Client) *ProfileCache {
	return &ProfileCache{client: client}
}

// Get retrieves a cached profile; a miss returns (nil, nil).
func (c *ProfileCache) Get(ctx context.Context, personID int64) (domain.Profile, error) {
	key := fmt.Sprintf("%s%d", profileCachePrefix, personID)

	data, err := c.client.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return nil, nil // Cache miss
	}

	var profile domain.Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}
	return profile, nil
}

// Set caches a profile for a person.
func (c *ProfileCache) Set(ctx context.Context, personID int64, profile domain.Profile) error {
	key := fmt.Sprintf("%s%d", profileCachePrefix, personID)

	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	return c.client.rdb.Set(ctx, key, data, profileCacheTTL).Err()
}

// Invalidate removes a cached profile.
func (c *ProfileCache) Invalidate(ctx context.Context, personID int64) error {
	key := fmt.Sprintf("%s%d", profileCachePrefix, personID)
	return c.client.rdb.Del(ctx, key).Err()
}
