// Package cache holds the optional Redis-backed share token cache.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/server/models"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix     = "gophdrive:share:"
	revokedPrefix = "gophdrive:revoked:"
)

// client is the part of *redis.Client the cache uses.
type client interface {
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// ShareCache stores share records under their token until they expire.
// Revoked tokens carry a tombstone that hides any record written after the
// revoke.
type ShareCache struct {
	rdb client
}

// NewShareCache connects to addr and verifies the connection with a ping.
func NewShareCache(ctx context.Context, addr, password string, db int) (*ShareCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &ShareCache{rdb: rdb}, nil
}

func key(token string) string {
	return keyPrefix + token
}

func revokedKey(token string) string {
	return revokedPrefix + token
}

// Get returns common.ErrNotFound on a miss or for a revoked token.
func (c *ShareCache) Get(ctx context.Context, token string) (*models.Share, error) {
	vals, err := c.rdb.MGet(ctx, key(token), revokedKey(token)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}
	if len(vals) != 2 || vals[0] == nil || vals[1] != nil {
		return nil, common.ErrNotFound
	}
	val, ok := vals[0].(string)
	if !ok {
		return nil, fmt.Errorf("unexpected cached value %T", vals[0])
	}

	var share models.Share
	if err := json.Unmarshal([]byte(val), &share); err != nil {
		return nil, fmt.Errorf("decode cached share: %w", err)
	}
	return &share, nil
}

func (c *ShareCache) Set(ctx context.Context, share *models.Share, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	val, err := json.Marshal(share)
	if err != nil {
		return fmt.Errorf("encode share: %w", err)
	}
	if err := c.rdb.Set(ctx, key(share.Token), val, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Revoke writes a tombstone for token that lives for ttl and drops the
// cached record. A non-positive ttl only drops the record.
func (c *ShareCache) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if ttl > 0 {
		if err := c.rdb.Set(ctx, revokedKey(token), "1", ttl).Err(); err != nil {
			return fmt.Errorf("redis set tombstone: %w", err)
		}
	}
	if err := c.rdb.Del(ctx, key(token)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Ping reports whether Redis answers.
func (c *ShareCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *ShareCache) Close() error {
	return c.rdb.Close()
}
