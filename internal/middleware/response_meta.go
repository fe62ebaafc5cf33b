package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/church-news-api/pkg/middleware/requestid"
)

const (
	responseMetaKey = "response_meta"
	requestStartKey = "response_meta_started"
	cacheHitKey     = "cache_hit"
)

// WithResponseMeta starts the per-request metadata handlers attach to the envelope.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(requestStartKey, time.Now())
		c.Set(responseMetaKey, map[string]any{})
		c.Next()
	}
}

// SetCacheHit records whether the payload was served from the stats cache.
func SetCacheHit(c *gin.Context, hit bool) {
	SetMeta(c, cacheHitKey, hit)
}

// SetMeta attaches one key to the response metadata.
func SetMeta(c *gin.Context, key string, value any) {
	if c == nil {
		return
	}
	ensureMeta(c)[key] = value
}

// ExtractMeta returns the metadata collected so far, stamped with the request id
// and the time spent since WithResponseMeta ran. Nil when nothing was recorded.
func ExtractMeta(c *gin.Context) map[string]any {
	if c == nil {
		return nil
	}
	raw, exists := c.Get(responseMetaKey)
	if !exists {
		return nil
	}
	meta, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	if started, ok := c.Get(requestStartKey); ok {
		if at, ok := started.(time.Time); ok {
			meta["processing_time_ms"] = time.Since(at).Milliseconds()
		}
	}
	if id := requestid.Value(c); id != "" {
		meta["request_id"] = id
	}
	return meta
}

func ensureMeta(c *gin.Context) map[string]any {
	if raw, exists := c.Get(responseMetaKey); exists {
		if meta, ok := raw.(map[string]any); ok {
			return meta
		}
	}
	meta := make(map[string]any)
	c.Set(responseMetaKey, meta)
	return meta
}
