package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// SecurityHeaders sets the baseline headers for a JSON API and exposes
// X-Request-ID to browsers. With noStore, responses are marked uncacheable;
// player state changes under the client's feet.
func SecurityHeaders(noStore bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		if noStore {
			h.Set("Cache-Control", "no-store")
		}

		const expose = "Access-Control-Expose-Headers"
		if cur := h.Get(expose); cur == "" {
			h.Set(expose, requestIDHeader)
		} else if !strings.Contains(cur, requestIDHeader) {
			h.Set(expose, cur+", "+requestIDHeader)
		}
		c.Next()
	}
}
