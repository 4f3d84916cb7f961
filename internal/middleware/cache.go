package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sfd-aulas-api/pkg/middleware/requestid"
)

const responseMetaKey = "response_meta"

// WithResponseMeta prepares the meta block handlers attach to list envelopes.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(responseMetaKey, map[string]interface{}{})
		c.Set(responseMetaKey+".start", time.Now())
		c.Next()
	}
}

// SetMeta adds one entry to the response meta block.
func SetMeta(c *gin.Context, key string, value interface{}) {
	ensureMeta(c)[key] = value
}

// ExtractMeta returns the meta block with request id and elapsed time filled in.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	meta := ensureMeta(c)
	if id := requestid.Value(c); id != "" {
		meta["request_id"] = id
	}
	if v, ok := c.Get(responseMetaKey + ".start"); ok {
		if start, ok := v.(time.Time); ok {
			meta["processing_time_ms"] = time.Since(start).Milliseconds()
		}
	}
	return meta
}

func ensureMeta(c *gin.Context) map[string]interface{} {
	if meta, exists := c.Get(responseMetaKey); exists {
		if typed, ok := meta.(map[string]interface{}); ok {
			return typed
		}
	}
	meta := make(map[string]interface{})
	c.Set(responseMetaKey, meta)
	return meta
}
