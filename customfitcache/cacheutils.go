// Package customfitcache holds the wire format for the single on-disk
// config cache blob described by Component G: configs JSON, Last-Modified,
// and ETag, newline-delimited the same way the SDK's older cache format
// packed fetch time, ETag, and config body.
package customfitcache

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

const newLineByte byte = '\n'

// CacheSegmentsFromBytes deserializes a cache blob into its three logical
// segments: the Last-Modified validator, the ETag validator, and the
// ConfigMap JSON body.
func CacheSegmentsFromBytes(cacheBytes []byte) (lastModified, etag string, configJSON []byte, err error) {
	lastModifiedIdx := bytes.IndexByte(cacheBytes, newLineByte)
	if lastModifiedIdx == -1 {
		return "", "", nil, fmt.Errorf("customfitcache: number of values is fewer than expected")
	}
	rest := cacheBytes[lastModifiedIdx+1:]
	etagIdx := bytes.IndexByte(rest, newLineByte)
	if etagIdx == -1 {
		return "", "", nil, fmt.Errorf("customfitcache: number of values is fewer than expected")
	}

	lastModified = string(cacheBytes[:lastModifiedIdx])
	etag = string(rest[:etagIdx])
	configJSON = rest[etagIdx+1:]
	if len(configJSON) == 0 {
		return "", "", nil, fmt.Errorf("customfitcache: empty config JSON")
	}
	return lastModified, etag, configJSON, nil
}

// CacheSegmentsToBytes serializes the three segments into the blob format
// persisted under the config_cache_blob key.
func CacheSegmentsToBytes(lastModified, etag string, configJSON []byte) []byte {
	out := make([]byte, 0, len(lastModified)+len(etag)+len(configJSON)+2)
	out = append(out, lastModified...)
	out = append(out, newLineByte)
	out = append(out, etag...)
	out = append(out, newLineByte)
	out = append(out, configJSON...)
	return out
}

// ConfigCacheVersion bumps whenever the ConfigMap JSON shape changes in a
// way that makes an old cached blob unreadable by a new SDK version.
const ConfigCacheVersion = "v1"

// ProduceCacheKey derives the KV store key for a given client key's config
// cache blob, namespaced by version so incompatible cache formats from a
// prior SDK version are never fed to the new parser.
func ProduceCacheKey(clientKey, cacheVersion string) string {
	h := sha1.New()
	h.Write([]byte(clientKey + "_config_cache_blob_" + cacheVersion))
	return hex.EncodeToString(h.Sum(nil))
}
