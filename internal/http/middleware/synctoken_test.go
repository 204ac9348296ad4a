package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/chatsync/internal/syncproto"
)

func TestSyncToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name   string
		token  string
		header string
		node   string
		want   int
	}{
		{"disabled", "", "", "", http.StatusNoContent},
		{"match", "s3cret", "s3cret", "lobby", http.StatusNoContent},
		{"mismatch", "s3cret", "guess", "lobby", http.StatusUnauthorized},
		{"missing node", "s3cret", "s3cret", "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.Use(SyncToken(tc.token))
			r.POST("/p", func(c *gin.Context) { c.Status(http.StatusNoContent) })

			req := httptest.NewRequest(http.MethodPost, "/p", nil)
			if tc.header != "" {
				req.Header.Set(syncproto.HeaderToken, tc.header)
			}
			if tc.node != "" {
				req.Header.Set(syncproto.HeaderNode, tc.node)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tc.want {
				t.Fatalf("status = %d; want %d", w.Code, tc.want)
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), SecurityHeaders(true))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	h := w.Header()
	if h.Get("X-Content-Type-Options") != "nosniff" || h.Get("X-Frame-Options") != "DENY" {
		t.Fatalf("baseline headers missing: %v", h)
	}
	if h.Get("Cache-Control") != "no-store" {
		t.Fatalf("Cache-Control = %q", h.Get("Cache-Control"))
	}
	if h.Get("Access-Control-Expose-Headers") != "X-Request-ID" {
		t.Fatalf("expose = %q", h.Get("Access-Control-Expose-Headers"))
	}
}
