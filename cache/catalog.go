/*
Package cache keeps each gym's package catalog in Redis.

PURPOSE:
  The catalog is read on every sale screen and changes a few times a
  month. Listings are cached per tenant as JSON and invalidated whenever a
  package is written. A nil *Catalog is a valid, always-missing cache so
  the server runs without Redis.

KEYS:
  gymdesk:catalog:<tenant>  JSON array of factory.PackageJSON

  InvalidateAll SCANs the gymdesk:catalog:* prefix after a full reset.
*/
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/warp/gym-desk/factory"
	"github.com/warp/gym-desk/generic"
)

const (
	keyPrefix = "gymdesk:catalog:"
	scanCount = 100
)

// Catalog caches package listings per tenant.
type Catalog struct {
	db  redis.Cmdable
	ttl time.Duration
}

func NewCatalog(db redis.Cmdable, ttl time.Duration) *Catalog {
	return &Catalog{db: db, ttl: ttl}
}

// Connect opens a client and pings it.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	const op = "cache.Connect"
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return client, nil
}

func Key(tenantID generic.TenantID) string { return keyPrefix + string(tenantID) }

// Get returns the cached listing and whether it was present.
func (c *Catalog) Get(ctx context.Context, tenantID generic.TenantID) ([]factory.PackageJSON, bool, error) {
	const op = "cache.Get"
	if c == nil {
		return nil, false, nil
	}
	val, err := c.db.Get(ctx, Key(tenantID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	var out []factory.PackageJSON
	if err := json.Unmarshal([]byte(val), &out); err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	return out, true, nil
}

// Set stores a listing for the configured TTL.
func (c *Catalog) Set(ctx context.Context, tenantID generic.TenantID, pkgs []factory.PackageJSON) error {
	if c == nil {
		return nil
	}
	data, err := json.Marshal(pkgs)
	if err != nil {
		return err
	}
	return c.db.Set(ctx, Key(tenantID), string(data), c.ttl).Err()
}

// Invalidate drops a tenant's listing.
func (c *Catalog) Invalidate(ctx context.Context, tenantID generic.TenantID) error {
	if c == nil {
		return nil
	}
	return c.db.Del(ctx, Key(tenantID)).Err()
}

// InvalidateAll drops every tenant's listing.
func (c *Catalog) InvalidateAll(ctx context.Context) error {
	const op = "cache.InvalidateAll"
	if c == nil {
		return nil
	}
	var cursor uint64
	for {
		keys, next, err := c.db.Scan(ctx, cursor, keyPrefix+"*", scanCount).Result()
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if len(keys) > 0 {
			if err := c.db.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
