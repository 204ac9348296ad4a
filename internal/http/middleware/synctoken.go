package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/chatsync/internal/syncproto"
)

// SyncToken guards the packet endpoints. When token is empty the check is
// disabled; otherwise X-Sync-Token must match and X-Sync-Node must be set.
func SyncToken(token string) gin.HandlerFunc {
	want := []byte(token)
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		got := []byte(c.GetHeader(syncproto.HeaderToken))
		if subtle.ConstantTimeCompare(got, want) != 1 || c.GetHeader(syncproto.HeaderNode) == "" {
			LoggerFrom(c).Warn().Msg("rejected packet: bad sync token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "unauthorized",
				"message":    "invalid sync token",
			})
			return
		}
		c.Next()
	}
}
