// Package cache stores fetched revision content so re-crawls and parent lookups skip the API
package cache

import (
	"fmt"
	"net/url"
	"time"

	"github.com/ppiankov/wikiedits/internal/model"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// ContentKey builds the key of a revision's content on one wiki.
// Revision ids are immutable, so content never goes stale for a key.
func ContentKey(apiURL string, revID int64) string {
	host := apiURL
	if u, err := url.Parse(apiURL); err == nil && u.Host != "" {
		host = u.Host
	}
	return fmt.Sprintf("wikiedits:v1:%s:rev:%d", host, revID)
}

// New builds the cache described by cfg, or nil when caching is disabled
func New(cfg model.Config) Cache {
	if !cfg.Cache.Enabled {
		return nil
	}
	if cfg.Cache.DiskTTL <= 0 {
		return NewMemoryCache(cfg.Cache.MemoryTTL, 10*time.Minute)
	}
	return NewLayeredCache(cfg.Cache.MemoryTTL, cfg.CacheDir(), cfg.Cache.DiskTTL)
}
