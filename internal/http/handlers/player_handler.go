package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/chatsync/internal/domain"
	"github.com/tbourn/chatsync/internal/services"
	"github.com/tbourn/chatsync/internal/utils"
)

// MuteRequest mutes a player. Duration is a Go duration or seconds.
type MuteRequest struct {
	Duration string `json:"duration" binding:"required" example:"1h"`
	Reason   string `json:"reason,omitempty" example:"spam"`
}

// TagRequest sets a tag value; an empty value clears it.
type TagRequest struct {
	Value string `json:"value" example:"[VIP]"`
}

// WarningRequest adds warning points to a set.
type WarningRequest struct {
	Set    string `json:"set" binding:"required" example:"chat"`
	Points int    `json:"points" example:"1"`
}

// ColorRequest sets the chat color and decoration.
type ColorRequest struct {
	Color      string `json:"color" example:"gold"`
	Decoration string `json:"decoration,omitempty" example:"bold"`
}

// ChannelRequest selects the membership mode for a channel.
type ChannelRequest struct {
	Mode domain.ChannelMode `json:"mode" binding:"required" example:"write"`
}

// key is the player reference in the path: a name, alias or UUID.
func key(c *gin.Context) string { return strings.TrimSpace(c.Param("key")) }

// ListPlayers godoc
// @ID          listPlayers
// @Summary     List every known player
// @Description Resolves every stored player document. Slow on large stores.
// @Tags        Players
// @Produce     json
// @Param       X-Actor  header  string  false  "Acting player (default console)"
// @Success     200  {array}   services.Profile
// @Failure     429  {object}  handlers.ErrorResponse  "Actor busy"
// @Router      /players [get]
func (h *Handlers) ListPlayers(c *gin.Context) {
	out, err := h.profiles.List(c.Request.Context(), actor(c))
	if err != nil {
		failErr(c, err)
		return
	}
	if out == nil {
		out = []services.Profile{}
	}
	ok(c, http.StatusOK, out)
}

// GetPlayer godoc
// @ID       getPlayer
// @Summary  Resolve one player
// @Tags     Players
// @Produce  json
// @Param    X-Actor  header  string  false  "Acting player (default console)"
// @Param    key      path    string  true   "Name, alias or UUID"  example(Notch)
// @Success  200  {object}  services.Profile
// @Failure  404  {object}  handlers.ErrorResponse
// @Failure  429  {object}  handlers.ErrorResponse  "Actor busy"
// @Router   /players/{key} [get]
func (h *Handlers) GetPlayer(c *gin.Context) {
	p, err := h.profiles.Lookup(c.Request.Context(), actor(c), key(c))
	h.profile(c, p, err)
}

// Mute godoc
// @ID       mutePlayer
// @Summary  Mute a player
// @Tags     Players
// @Accept   json
// @Produce  json
// @Param    X-Actor  header  string                false  "Acting player (default console)"
// @Param    key      path    string                true   "Name, alias or UUID"
// @Param    body     body    handlers.MuteRequest  true   "Mute"
// @Success  200  {object}  services.Profile
// @Failure  400  {object}  handlers.ErrorResponse
// @Failure  404  {object}  handlers.ErrorResponse
// @Router   /players/{key}/mute [put]
func (h *Handlers) Mute(c *gin.Context) {
	var req MuteRequest
	if !bind(c, &req) {
		return
	}
	d, err := utils.ParseDuration(req.Duration)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "duration must be a Go duration or seconds")
		return
	}
	p, err := h.profiles.Mute(c.Request.Context(), actor(c), key(c), d, strings.TrimSpace(req.Reason))
	h.profile(c, p, err)
}

// Unmute godoc
// @ID       unmutePlayer
// @Summary  Lift a mute
// @Tags     Players
// @Produce  json
// @Param    X-Actor  header  string  false  "Acting player (default console)"
// @Param    key      path    string  true   "Name, alias or UUID"
// @Success  200  {object}  services.Profile
// @Failure  404  {object}  handlers.ErrorResponse
// @Router   /players/{key}/mute [delete]
func (h *Handlers) Unmute(c *gin.Context) {
	p, err := h.profiles.Unmute(c.Request.Context(), actor(c), key(c))
	h.profile(c, p, err)
}

// Ignore godoc
// @ID       ignorePlayer
// @Summary  Ignore another player
// @Tags     Players
// @Produce  json
// @Param    X-Actor  header  string  false  "Acting player (default console)"
// @Param    key      path    string  true   "Ignoring player"
// @Param    target   path    string  true   "Ignored player"
// @Success  200  {object}  services.Profile
// @Failure  404  {object}  handlers.ErrorResponse
// @Router   /players/{key}/ignored/{target} [put]
func (h *Handlers) Ignore(c *gin.Context) { h.ignore(c, true) }

// Unignore godoc
// @ID       unignorePlayer
// @Summary  Stop ignoring another player
// @Tags     Players
// @Produce  json
// @Param    X-Actor  header  string  false  "Acting player (default console)"
// @Param    key      path    string  true   "Ignoring player"
// @Param    target   path    string  true   "Ignored player"
// @Success  200  {object}  services.Profile
// @Failure  404  {object}  handlers.ErrorResponse
// @Router   /players/{key}/ignored/{target} [delete]
func (h *Handlers) Unignore(c *gin.Context) { h.ignore(c, false) }

func (h *Handlers) ignore(c *gin.Context, on bool) {
	p, err := h.profiles.Ignore(c.Request.Context(), actor(c), key(c), c.Param("target"), on)
	h.profile(c, p, err)
}

// SetTag godoc
// @ID       setTag
// @Summary  Set a tag
// @Tags     Players
// @Accept   json
// @Produce  json
// @Param    X-Actor  header  string               false  "Acting player (default console)"
// @Param    key      path    string               true   "Name, alias or UUID"
// @Param    kind     path    string               true   "Tag kind"  example(prefix)
// @Param    body     body    handlers.TagRequest  true   "Value"
// @Success  200  {object}  services.Profile
// @Failure  404  {object}  handlers.ErrorResponse
// @Router   /players/{key}/tags/{kind} [put]
func (h *Handlers) SetTag(c *gin.Context) {
	var req TagRequest
	if !bind(c, &req) {
		return
	}
	p, err := h.profiles.SetTag(c.Request.Context(), actor(c), key(c), c.Param("kind"), req.Value)
	h.profile(c, p, err)
}

// ClearTag godoc
// @ID       clearTag
// @Summary  Clear a tag
// @Tags     Players
// @Produce  json
// @Param    X-Actor  header  string  false  "Acting player (default console)"
// @Param    key      path    string  true   "Name, alias or UUID"
// @Param    kind     path    string  true   "Tag kind"
// @Success  200  {object}  services.Profile
// @Router   /players/{key}/tags/{kind} [delete]
func (h *Handlers) ClearTag(c *gin.Context) {
	p, err := h.profiles.SetTag(c.Request.Context(), actor(c), key(c), c.Param("kind"), "")
	h.profile(c, p, err)
}

// AddWarning godoc
// @ID       addWarning
// @Summary  Add warning points
// @Tags     Players
// @Accept   json
// @Produce  json
// @Param    X-Actor  header  string                   false  "Acting player (default console)"
// @Param    key      path    string                   true   "Name, alias or UUID"
// @Param    body     body    handlers.WarningRequest  true   "Points"
// @Success  200  {object}  services.Profile
// @Router   /players/{key}/warnings [post]
func (h *Handlers) AddWarning(c *gin.Context) {
	var req WarningRequest
	if !bind(c, &req) {
		return
	}
	p, err := h.profiles.AddWarning(c.Request.Context(), actor(c), key(c), req.Set, req.Points)
	h.profile(c, p, err)
}

// SetColor godoc
// @ID       setChatColor
// @Summary  Set chat color
// @Tags     Players
// @Accept   json
// @Produce  json
// @Param    X-Actor  header  string                 false  "Acting player (default console)"
// @Param    key      path    string                 true   "Name, alias or UUID"
// @Param    body     body    handlers.ColorRequest  true   "Color"
// @Success  200  {object}  services.Profile
// @Router   /players/{key}/color [put]
func (h *Handlers) SetColor(c *gin.Context) {
	var req ColorRequest
	if !bind(c, &req) {
		return
	}
	p, err := h.profiles.SetChatColor(c.Request.Context(), actor(c), key(c), req.Color, req.Decoration)
	h.profile(c, p, err)
}

// JoinChannel godoc
// @ID       joinChannel
// @Summary  Join a channel
// @Tags     Players
// @Accept   json
// @Produce  json
// @Param    X-Actor  header  string                   false  "Acting player (default console)"
// @Param    key      path    string                   true   "Name, alias or UUID"
// @Param    channel  path    string                   true   "Channel"  example(global)
// @Param    body     body    handlers.ChannelRequest  true   "Mode"
// @Success  200  {object}  services.Profile
// @Failure  403  {object}  handlers.ErrorResponse  "Access denied"
// @Router   /players/{key}/channels/{channel} [put]
func (h *Handlers) JoinChannel(c *gin.Context) {
	var req ChannelRequest
	if !bind(c, &req) {
		return
	}
	if req.Mode != domain.ModeRead && req.Mode != domain.ModeWrite {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "mode must be read or write")
		return
	}
	p, err := h.profiles.JoinChannel(c.Request.Context(), actor(c), key(c), c.Param("channel"), req.Mode)
	h.profile(c, p, err)
}

// LeaveChannel godoc
// @ID       leaveChannel
// @Summary  Leave a channel
// @Tags     Players
// @Produce  json
// @Param    X-Actor  header  string  false  "Acting player (default console)"
// @Param    key      path    string  true   "Name, alias or UUID"
// @Param    channel  path    string  true   "Channel"
// @Success  200  {object}  services.Profile
// @Router   /players/{key}/channels/{channel} [delete]
func (h *Handlers) LeaveChannel(c *gin.Context) {
	p, err := h.profiles.LeaveChannel(c.Request.Context(), actor(c), key(c), c.Param("channel"))
	h.profile(c, p, err)
}

func (h *Handlers) profile(c *gin.Context, p services.Profile, err error) {
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}
