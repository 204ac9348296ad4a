// Package httpapi wires the Gin transport of a node and of the relay:
// middleware, packet endpoints and the node API.
//
// Middleware order matters:
//  1. OpenTelemetry
//  2. RequestID
//  3. Logger
//  4. Recovery
//  5. Body size limit
//  6. Metrics (+ /metrics)
//  7. Rate limiter, keyed by origin node or IP
//  8. CORS and security headers
//
// Packet endpoints additionally require the shared sync token; the API
// group is gzip-compressed.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	_ "github.com/tbourn/chatsync/docs"
	"github.com/tbourn/chatsync/internal/config"
	"github.com/tbourn/chatsync/internal/http/handlers"
	"github.com/tbourn/chatsync/internal/http/middleware"
	"github.com/tbourn/chatsync/internal/node"
	"github.com/tbourn/chatsync/internal/relay"
	"github.com/tbourn/chatsync/internal/syncproto"
)

const maxBody = 1 << 20

// RegisterNodeRoutes mounts the packet ingest endpoint and the node API.
func RegisterNodeRoutes(r *gin.Engine, n *node.Node, cfg config.Config) {
	base(r, cfg)

	h := handlers.New(handlers.Services{
		Sessions: n.Sessions,
		Profiles: n.Profiles,
		Mail:     n.Mail,
		Replies:  n.Replies,
		Server:   n.Server,
		Network:  n.Network,
		Packets:  n,
	})

	r.POST(syncproto.IngestPath, middleware.SyncToken(cfg.Sync.Token), h.IngestPacket)

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(gzip.Gzip(gzip.DefaultCompression), middleware.SecurityHeaders(true))
	{
		// Players
		api.GET("/players", h.ListPlayers)
		api.GET("/players/:key", h.GetPlayer)
		api.PUT("/players/:key/mute", h.Mute)
		api.DELETE("/players/:key/mute", h.Unmute)
		api.PUT("/players/:key/ignored/:target", h.Ignore)
		api.DELETE("/players/:key/ignored/:target", h.Unignore)
		api.PUT("/players/:key/tags/:kind", h.SetTag)
		api.DELETE("/players/:key/tags/:kind", h.ClearTag)
		api.POST("/players/:key/warnings", h.AddWarning)
		api.PUT("/players/:key/color", h.SetColor)
		api.PUT("/players/:key/channels/:channel", h.JoinChannel)
		api.DELETE("/players/:key/channels/:channel", h.LeaveChannel)
		api.GET("/players/:key/mail", h.MailInbox)

		// Sessions
		api.GET("/sessions", h.ListSessions)
		api.POST("/sessions", h.Join)
		api.DELETE("/sessions/:id", h.Quit)
		api.GET("/sessions/:id/inbox", h.Inbox)
		api.PUT("/sessions/:id/location", h.Move)
		api.POST("/sessions/:id/history", h.Record)
		api.GET("/sessions/:id/history", h.History)
		api.POST("/sessions/:id/code", h.IssueCode)
		api.POST("/sessions/:id/code/answer", h.SolveCode)
		api.DELETE("/sessions/:id/code/answer", h.ResetCode)
		api.GET("/sessions/:id/reply", h.GetReply)
		api.PUT("/sessions/:id/selection", h.Select)
		api.POST("/sessions/:id/regions", h.CreateRegion)

		// Mail
		api.POST("/mail", h.SendMail)
		api.GET("/mail/:id", h.ReadMail)
		api.DELETE("/mail/:id", h.DeleteMail)

		// Replies
		api.POST("/replies", h.SetReply)

		// Server record
		api.GET("/server", h.ServerStatus)
		api.PUT("/server/mute", h.GlobalMute)
		api.POST("/server/tour", h.CompleteTour)
		api.GET("/server/regions", h.ListRegions)
		api.POST("/server/regions", h.AddRegion)
		api.DELETE("/server/regions/:name", h.RemoveRegion)

		// Network
		api.GET("/network", h.Network)
		api.GET("/network/stats", h.NetworkStats)
	}
}

// RegisterRelayRoutes mounts the relay's packet endpoint and a roster view.
func RegisterRelayRoutes(r *gin.Engine, rl *relay.Relay, cfg config.Config) {
	base(r, cfg)
	r.POST(syncproto.RelayPath, middleware.SyncToken(cfg.Sync.Token), handlers.RelayPacket(rl))
	r.GET("/relay/nodes", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"nodes": rl.Nodes(), "players": rl.Snapshot().Players})
	})
}

// base installs the shared middleware, fallbacks, /health and /metrics.
func base(r *gin.Engine, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBody))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByOriginOrIP())
	r.Use(rl.Handler())

	r.Use(corsPolicy(cfg.CORS.AllowedOrigins))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "node": cfg.NodeName})
	})
}

// corsPolicy allows every origin when no allowlist is configured.
func corsPolicy(origins []string) gin.HandlerFunc {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", middleware.HeaderActor, "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return cors.New(c)
}

// limitBody caps request bodies; reads past maxBytes fail.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
