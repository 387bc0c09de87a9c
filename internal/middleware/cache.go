package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	requestStartKey = "request_start"

	// CacheHeader tells clients whether a lesson view or catalog page came from cache.
	CacheHeader = "X-Cache"
)

// WithResponseMeta stamps the request start so cached reads can report their processing time.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(requestStartKey, time.Now())
		c.Next()
	}
}

// CacheMeta sets the X-Cache header for a read-through view and returns the envelope meta
// describing it. family names the cached key family, e.g. "lesson" or "catalog".
func CacheMeta(c *gin.Context, family string, hit bool) map[string]interface{} {
	outcome := "MISS"
	if hit {
		outcome = "HIT"
	}
	c.Header(CacheHeader, outcome)

	meta := map[string]interface{}{
		"cache":     family,
		"cache_hit": hit,
	}
	if value, ok := c.Get(requestStartKey); ok {
		if start, ok := value.(time.Time); ok {
			meta["processing_time_ms"] = time.Since(start).Milliseconds()
		}
	}
	return meta
}
