package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/chatsync/internal/cache/sender"
)

// SetReplyRequest records that Target should reply to Replied.
type SetReplyRequest struct {
	Target  string `json:"target" binding:"required" example:"Notch"`
	Replied string `json:"replied" binding:"required" example:"jeb_"`
}

// ReplyResponse is the reply target of a session.
type ReplyResponse struct {
	Set    bool               `json:"set"`
	Target sender.ReplyTarget `json:"target"`
}

// SetReply godoc
// @ID          setReply
// @Summary     Set a reply target
// @Description Updates the local session when the target is online here and publishes the target to every node.
// @Tags        Replies
// @Accept      json
// @Produce     json
// @Param       X-Actor  header  string                    false  "Acting player (default console)"
// @Param       body     body    handlers.SetReplyRequest  true   "Reply"
// @Success     200  {object}  sender.ReplyTarget
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /replies [post]
func (h *Handlers) SetReply(c *gin.Context) {
	var req SetReplyRequest
	if !bind(c, &req) {
		return
	}
	rt, err := h.replies.SetReply(c.Request.Context(), actor(c), req.Target, req.Replied)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, rt)
}

// GetReply godoc
// @ID       getReply
// @Summary  Reply target of a session
// @Tags     Replies
// @Produce  json
// @Param    id   path  string  true  "Player UUID"  format(uuid)
// @Success  200  {object}  handlers.ReplyResponse
// @Failure  409  {object}  handlers.ErrorResponse  "Not online"
// @Router   /sessions/{id}/reply [get]
func (h *Handlers) GetReply(c *gin.Context) {
	id, okID := uuidParam(c, "id")
	if !okID {
		return
	}
	rt, set, err := h.replies.Reply(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ReplyResponse{Set: set, Target: rt})
}
