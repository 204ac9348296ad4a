package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/chatsync/internal/http/middleware"
	"github.com/tbourn/chatsync/internal/syncproto"
)

// IngestResponse acknowledges a packet.
type IngestResponse struct {
	// Applied is false when the packet was a duplicate.
	Applied bool `json:"applied"`
}

// Network godoc
// @ID       network
// @Summary  Fleet view from this node
// @Tags     Network
// @Produce  json
// @Success  200  {object}  services.Network
// @Router   /network [get]
func (h *Handlers) Network(c *gin.Context) {
	snap, err := h.network.Snapshot(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, snap)
}

// NetworkStats godoc
// @ID       networkStats
// @Summary  Backing store row counts
// @Tags     Network
// @Produce  json
// @Success  200  {object}  services.StoreStats
// @Failure  500  {object}  handlers.ErrorResponse
// @Router   /network/stats [get]
func (h *Handlers) NetworkStats(c *gin.Context) {
	st, err := h.network.Stats(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, st)
}

// IngestPacket applies one packet delivered by the relay. Unknown types are
// a protocol mismatch between builds and answer 422.
func (h *Handlers) IngestPacket(c *gin.Context) {
	p, okP := bindPacket(c)
	if !okP {
		return
	}
	applied, err := h.packets.Ingest(c.Request.Context(), p)
	if err != nil {
		packetErr(c, p, err)
		return
	}
	ok(c, http.StatusAccepted, IngestResponse{Applied: applied})
}

// PacketAcceptor takes packets on the relay side.
type PacketAcceptor interface {
	Accept(ctx context.Context, p syncproto.Packet) error
}

// RelayPacket returns the handler for the relay's packet endpoint.
func RelayPacket(r PacketAcceptor) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, okP := bindPacket(c)
		if !okP {
			return
		}
		if err := r.Accept(c.Request.Context(), p); err != nil {
			packetErr(c, p, err)
			return
		}
		ok(c, http.StatusAccepted, IngestResponse{Applied: true})
	}
}

// bindPacket decodes the envelope. A missing server is filled from the
// origin header.
func bindPacket(c *gin.Context) (syncproto.Packet, bool) {
	var p syncproto.Packet
	if !bind(c, &p) {
		return p, false
	}
	if p.Server == "" {
		p.Server = c.GetHeader(syncproto.HeaderNode)
	}
	if p.Type == "" || p.Server == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "packet type and server are required")
		return p, false
	}
	return p, true
}

func packetErr(c *gin.Context, p syncproto.Packet, err error) {
	lg := middleware.LoggerFrom(c)
	if errors.Is(err, syncproto.ErrUnknownPacket) {
		lg.Error().Err(err).Str("type", string(p.Type)).Str("server", p.Server).Msg("protocol mismatch")
		fail(c, http.StatusUnprocessableEntity, ErrCodeProtocolMismatch, err.Error())
		return
	}
	if status, code := classify(err); status != http.StatusInternalServerError {
		fail(c, status, code, err.Error())
		return
	}
	lg.Warn().Err(err).Str("type", string(p.Type)).Str("server", p.Server).Msg("packet rejected")
	fail(c, http.StatusBadRequest, ErrCodePacketRejected, err.Error())
}
