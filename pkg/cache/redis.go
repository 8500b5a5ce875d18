package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/medreza/honcho-benefit-service/pkg/models"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultKeyPrefix = "benefits:catalog"
	scanBatch        = 200
)

// Redis shares cached listings between service instances, so invalidation after a
// redemption is visible to all of them.
type Redis struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedis(client redis.UniversalClient, prefix string, ttl time.Duration) *Redis {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

var (
	// Ids may contain the ":" separator, so it is percent encoded inside a segment.
	segmentEscaper = strings.NewReplacer("%", "%25", ":", "%3A")
	globEscaper    = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`)
)

func (c *Redis) redisKey(key Key) string {
	return fmt.Sprintf("%s:%s:%s", c.prefix,
		segmentEscaper.Replace(key.AssociationID), segmentEscaper.Replace(key.MemberID))
}

// associationPattern matches every member key of one association and nothing else.
func (c *Redis) associationPattern(associationID string) string {
	return fmt.Sprintf("%s:%s:*", globEscaper.Replace(c.prefix),
		globEscaper.Replace(segmentEscaper.Replace(associationID)))
}

func (c *Redis) Get(ctx context.Context, key Key) ([]models.Benefit, bool, error) {
	raw, err := c.client.Get(ctx, c.redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var benefits []models.Benefit
	if err := json.Unmarshal(raw, &benefits); err != nil {
		return nil, false, fmt.Errorf("decode cached benefits: %w", err)
	}
	return benefits, true, nil
}

func (c *Redis) Set(ctx context.Context, key Key, benefits []models.Benefit) error {
	raw, err := json.Marshal(benefits)
	if err != nil {
		return fmt.Errorf("encode benefits: %w", err)
	}
	if err := c.client.Set(ctx, c.redisKey(key), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *Redis) InvalidateAssociation(ctx context.Context, associationID string) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.associationPattern(associationID), scanBatch).Result()
		if err != nil {
			return fmt.Errorf("redis scan: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis del: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
