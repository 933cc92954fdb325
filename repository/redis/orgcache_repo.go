package redis

import (
	"context"
	"fmt"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/sagebright/gateway/domain"
	"github.com/sagebright/gateway/repository"
)

type orgSlugCache struct {
	client *redislib.Client
	prefix string
	ttl    time.Duration
}

// NewOrgSlugCache creates a Redis-backed id->slug cache in front of the
// membership table. Entries are written once per resolution; the mapping is
// stable, so a generous TTL is fine.
func NewOrgSlugCache(client *redislib.Client, ttl time.Duration) repository.OrgSlugCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &orgSlugCache{
		client: client,
		prefix: "org_slug:",
		ttl:    ttl,
	}
}

func (c *orgSlugCache) GetSlug(ctx context.Context, orgID string) (string, error) {
	slug, err := c.client.Get(ctx, c.key(orgID)).Result()
	if err != nil {
		if err == redislib.Nil {
			return "", domain.ErrOrgNotFound
		}
		return "", err
	}
	return slug, nil
}

func (c *orgSlugCache) SetSlug(ctx context.Context, orgID, slug string) error {
	if orgID == "" || slug == "" {
		return domain.ErrInvalidPayload
	}
	return c.client.Set(ctx, c.key(orgID), slug, c.ttl).Err()
}

func (c *orgSlugCache) key(orgID string) string {
	return fmt.Sprintf("%s%s", c.prefix, orgID)
}
