package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	responseMetaKey = "response_meta"
	startedAtKey    = "response_meta_started_at"

	// MetaCacheHit marks responses served from the summary/calendar cache.
	MetaCacheHit = "cache_hit"
	// MetaProcessingTime is the handler time in milliseconds.
	MetaProcessingTime = "processing_time_ms"
)

// ResponseMeta prepares a per-request metadata map that handlers merge into
// the envelope's meta block.
func ResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(responseMetaKey, map[string]interface{}{})
		c.Set(startedAtKey, time.Now())
		c.Next()
	}
}

// SetMeta records one metadata value for the current response.
func SetMeta(c *gin.Context, key string, value interface{}) {
	if c == nil {
		return
	}
	meta(c)[key] = value
}

// SetCacheHit records whether the payload came from cache.
func SetCacheHit(c *gin.Context, hit bool) {
	SetMeta(c, MetaCacheHit, hit)
}

// Meta returns the metadata gathered so far, stamping the elapsed time since
// ResponseMeta ran (or since fallback when the middleware is absent).
func Meta(c *gin.Context, fallback time.Time) map[string]interface{} {
	if c == nil {
		return map[string]interface{}{}
	}
	m := meta(c)
	started := fallback
	if v, ok := c.Get(startedAtKey); ok {
		if t, ok := v.(time.Time); ok {
			started = t
		}
	}
	m[MetaProcessingTime] = time.Since(started).Milliseconds()
	return m
}

func meta(c *gin.Context) map[string]interface{} {
	if v, ok := c.Get(responseMetaKey); ok {
		if m, ok := v.(map[string]interface{}); ok {
			return m
		}
	}
	m := make(map[string]interface{})
	c.Set(responseMetaKey, m)
	return m
}
