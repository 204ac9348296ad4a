package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/chatsync/internal/cache/sender"
	"github.com/tbourn/chatsync/internal/cache/server"
	"github.com/tbourn/chatsync/internal/domain"
	"github.com/tbourn/chatsync/internal/http/middleware"
	"github.com/tbourn/chatsync/internal/presence"
	"github.com/tbourn/chatsync/internal/services"
	"github.com/tbourn/chatsync/internal/syncproto"
)

//
// Service contracts
//

// SessionService covers the lifecycle of connections on this node.
type SessionService interface {
	Join(ctx context.Context, req services.JoinRequest) (services.JoinResult, error)
	Quit(ctx context.Context, id uuid.UUID) error
	Inbox(ctx context.Context, id uuid.UUID) ([]presence.Notice, error)
	Sessions(ctx context.Context) []presence.Session
	Move(ctx context.Context, id uuid.UUID, at domain.Point) (bool, error)
	Record(ctx context.Context, id uuid.UUID, category sender.Category, text, channel string) error
	History(ctx context.Context, id uuid.UUID, category sender.Category, channel string, limit int, since *time.Time) ([]sender.Record, error)
	IssueCode(ctx context.Context, id uuid.UUID) (string, error)
	SolveCode(ctx context.Context, id uuid.UUID, answer string) (bool, error)
	ResetCode(ctx context.Context, id uuid.UUID) error
}

// ProfileService reads and mutates durable player documents. actor is the
// identity on whose behalf the call is made ("" for the console).
type ProfileService interface {
	Lookup(ctx context.Context, actor, key string) (services.Profile, error)
	List(ctx context.Context, actor string) ([]services.Profile, error)
	Mute(ctx context.Context, actor, key string, d time.Duration, reason string) (services.Profile, error)
	Unmute(ctx context.Context, actor, key string) (services.Profile, error)
	Ignore(ctx context.Context, actor, key, target string, ignore bool) (services.Profile, error)
	SetTag(ctx context.Context, actor, key, kind, value string) (services.Profile, error)
	AddWarning(ctx context.Context, actor, key, set string, points int) (services.Profile, error)
	SetChatColor(ctx context.Context, actor, key, color, decoration string) (services.Profile, error)
	JoinChannel(ctx context.Context, actor, key, channel string, mode domain.ChannelMode) (services.Profile, error)
	LeaveChannel(ctx context.Context, actor, key, channel string) (services.Profile, error)
}

// MailService sends and reads network-wide mail.
type MailService interface {
	Send(ctx context.Context, actor string, req services.SendMail) (server.Mail, error)
	Inbox(ctx context.Context, actor, key string) ([]server.Mail, error)
	Read(ctx context.Context, id, reader uuid.UUID) (server.Mail, error)
	Delete(ctx context.Context, id, reader uuid.UUID) error
}

// ReplyService tracks private-message reply targets.
type ReplyService interface {
	SetReply(ctx context.Context, actor, target, replied string) (sender.ReplyTarget, error)
	Reply(ctx context.Context, id uuid.UUID) (sender.ReplyTarget, bool, error)
}

// ServerService manages the node-wide record.
type ServerService interface {
	Status(ctx context.Context) (services.ServerStatus, error)
	SetGlobalMute(ctx context.Context, d time.Duration) error
	MarkTourCompleted(ctx context.Context) error
	Regions(ctx context.Context, at *domain.Point) ([]server.Region, error)
	AddRegion(ctx context.Context, r server.Region) (server.Region, error)
	RemoveRegion(ctx context.Context, name string) error
	Select(ctx context.Context, id uuid.UUID, primary bool, at domain.Point) (sender.Selection, error)
	CreateRegion(ctx context.Context, id uuid.UUID, name string) (server.Region, error)
}

// NetworkService exposes the fleet view.
type NetworkService interface {
	Snapshot(ctx context.Context) (services.Network, error)
	Stats(ctx context.Context) (services.StoreStats, error)
}

// PacketSink applies an inbound sync packet and reports whether it was
// applied (false for a duplicate).
type PacketSink interface {
	Ingest(ctx context.Context, p syncproto.Packet) (bool, error)
}

//
// Handler wiring
//

// Services bundles the collaborators of Handlers. Nil members leave their
// routes answering 500.
type Services struct {
	Sessions SessionService
	Profiles ProfileService
	Mail     MailService
	Replies  ReplyService
	Server   ServerService
	Network  NetworkService
	Packets  PacketSink
}

// Handlers groups the HTTP endpoints of a node.
type Handlers struct {
	sessions SessionService
	profiles ProfileService
	mail     MailService
	replies  ReplyService
	server   ServerService
	network  NetworkService
	packets  PacketSink
}

// New binds the handlers to their services.
func New(s Services) *Handlers {
	return &Handlers{
		sessions: s.Sessions,
		profiles: s.Profiles,
		mail:     s.Mail,
		replies:  s.Replies,
		server:   s.Server,
		network:  s.Network,
		packets:  s.Packets,
	}
}

// actor returns the identity named by X-Actor; empty means the console.
func actor(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader(middleware.HeaderActor))
}

// uuidParam parses the named path parameter, answering 400 when it is not a
// UUID.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, name+" must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// bind decodes the JSON body into v, answering 400 on failure.
func bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return false
	}
	return true
}
