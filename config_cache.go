package customfit

import (
	"encoding/json"

	"github.com/customfit/customfit-go-sdk/customfitcache"
)

// ConfigCache is Component G: a single on-disk blob of {configs,
// Last-Modified, ETag} per installation, persisted through a KVStore. Load
// happens once at Config Manager startup and seeds the ConfigMap before
// the first server response arrives.
type ConfigCache struct {
	store    KVStore
	cacheKey string
}

func NewConfigCache(store KVStore, clientKey string) *ConfigCache {
	return &ConfigCache{
		store:    store,
		cacheKey: customfitcache.ProduceCacheKey(clientKey, customfitcache.ConfigCacheVersion),
	}
}

// Save persists configs alongside the validators that produced them.
func (c *ConfigCache) Save(configs ConfigMap, lastModified, etag string) error {
	body, err := json.Marshal(configs)
	if err != nil {
		return NewError(CategorySerialization, "encoding config cache blob", err)
	}
	blob := customfitcache.CacheSegmentsToBytes(lastModified, etag, body)
	if err := c.store.Set(c.cacheKey, string(blob)); err != nil {
		return NewError(CategoryState, "persisting config cache blob", err)
	}
	return nil
}

// Load reads back the persisted configs and validators, if any. ok is
// false on first run or when the stored blob can't be parsed (treated the
// same as "no cache" rather than a hard failure).
func (c *ConfigCache) Load() (configs ConfigMap, lastModified, etag string, ok bool) {
	raw, present := c.store.Get(c.cacheKey)
	if !present {
		return nil, "", "", false
	}
	lastModified, etag, body, err := customfitcache.CacheSegmentsFromBytes([]byte(raw))
	if err != nil {
		return nil, "", "", false
	}
	var m ConfigMap
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, "", "", false
	}
	return m, lastModified, etag, true
}
