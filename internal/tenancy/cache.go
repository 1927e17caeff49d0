package tenancy

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/scholaris-erp/scholaris-erp/internal/shared"
)

const subdomainKeyPrefix = "tenancy:subdomain:"

// negative cache entry for unknown subdomains, kept short so newly
// provisioned institutions become reachable quickly.
const missMarker = "-"

// CachedRepository wraps a Repository with a Redis read-through cache for
// subdomain lookups. Resolution happens on every request, so the hot path
// must not hit Postgres each time.
type CachedRepository struct {
	inner  Repository
	client *redis.Client
	ttl    time.Duration
}

// NewCachedRepository decorates repo with caching. A nil client disables
// caching entirely.
func NewCachedRepository(inner Repository, client *redis.Client, ttl time.Duration) *CachedRepository {
	return &CachedRepository{inner: inner, client: client, ttl: ttl}
}

func (c *CachedRepository) FindBySubdomain(ctx context.Context, subdomain string) (Tenant, error) {
	if c.client == nil {
		return c.inner.FindBySubdomain(ctx, subdomain)
	}
	key := subdomainKeyPrefix + subdomain
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		if string(raw) == missMarker {
			return Tenant{}, shared.ErrNotFound
		}
		var t Tenant
		if err := json.Unmarshal(raw, &t); err == nil {
			return t, nil
		}
		// Corrupt entry, fall through to storage.
	} else if !errors.Is(err, redis.Nil) {
		// Redis unavailable should not break resolution.
		return c.inner.FindBySubdomain(ctx, subdomain)
	}

	t, err := c.inner.FindBySubdomain(ctx, subdomain)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			_ = c.client.Set(ctx, key, missMarker, c.ttl/2+time.Second).Err()
		}
		return Tenant{}, err
	}
	if payload, err := json.Marshal(t); err == nil {
		_ = c.client.Set(ctx, key, payload, c.ttl).Err()
	}
	return t, nil
}

func (c *CachedRepository) SubdomainByTenant(ctx context.Context, tenantID int64) (string, error) {
	return c.inner.SubdomainByTenant(ctx, tenantID)
}

func (c *CachedRepository) ListActiveIDs(ctx context.Context) ([]int64, error) {
	return c.inner.ListActiveIDs(ctx)
}
