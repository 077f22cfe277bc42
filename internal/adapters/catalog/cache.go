package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const cachePrefix = "syncroom:search:"

// CachedSearcher keeps search results in Redis for ttl. Redis failures fall
// through to the wrapped searcher.
type CachedSearcher struct {
	next Searcher
	rdb  redis.Cmdable
	ttl  time.Duration
}

func NewCachedSearcher(next Searcher, rdb redis.Cmdable, ttl time.Duration) *CachedSearcher {
	return &CachedSearcher{next: next, rdb: rdb, ttl: ttl}
}

func cacheKey(query string, limit int) string {
	return fmt.Sprintf("%s%d:%s", cachePrefix, limit, strings.ToLower(strings.TrimSpace(query)))
}

func (c *CachedSearcher) Search(ctx context.Context, query string, limit int) ([]Video, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	key := cacheKey(query, limit)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached []Video
		if err := json.Unmarshal(raw, &cached); err == nil {
			log.Debug().Str("module", "adapters.catalog").Str("key", key).Msg("cache hit")
			return cached, nil
		}
		log.Warn().Str("module", "adapters.catalog").Str("key", key).Msg("corrupt cache entry")
	case !errors.Is(err, redis.Nil):
		log.Warn().Err(err).Str("module", "adapters.catalog").Msg("cache get")
	}

	videos, err := c.next.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(videos); err == nil {
		if err := c.rdb.Set(ctx, key, b, c.ttl).Err(); err != nil {
			log.Warn().Err(err).Str("module", "adapters.catalog").Msg("cache set")
		}
	}
	return videos, nil
}
