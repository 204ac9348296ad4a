package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/chatsync/internal/cache/sender"
	"github.com/tbourn/chatsync/internal/domain"
	"github.com/tbourn/chatsync/internal/presence"
	"github.com/tbourn/chatsync/internal/services"
	"github.com/tbourn/chatsync/internal/utils"
)

// JoinRequest is the payload announcing a connection on this node.
type JoinRequest struct {
	UUID        string          `json:"uuid" binding:"required" example:"069a79f4-44e9-4726-a5be-fca90e38aaf5"`
	Name        string          `json:"name" binding:"required" example:"Notch"`
	Nick        string          `json:"nick,omitempty"`
	Vanished    bool            `json:"vanished"`
	AFK         bool            `json:"afk"`
	IgnoringAll bool            `json:"ignoring_all"`
	Access      presence.Access `json:"access"`
	Location    *domain.Point   `json:"location,omitempty"`
}

// RecordRequest appends to a session's interaction history.
type RecordRequest struct {
	Category sender.Category `json:"category" binding:"required" example:"chat"`
	Text     string          `json:"text" binding:"required"`
	Channel  string          `json:"channel,omitempty" example:"global"`
}

// MoveResponse reports whether the session left its join location.
type MoveResponse struct {
	Moved bool `json:"moved"`
}

// CodeResponse carries an issued verification code.
type CodeResponse struct {
	Code string `json:"code"`
}

// SolveRequest is an answer to a verification code.
type SolveRequest struct {
	Answer string `json:"answer"`
}

// SolveResponse reports whether the code is solved.
type SolveResponse struct {
	Solved bool `json:"solved"`
}

// Join godoc
// @ID          joinSession
// @Summary     Open a session
// @Description Announces a connection, loads the player document and reconciles channel memberships with the granted access.
// @Tags        Sessions
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.JoinRequest  true  "Connection"
// @Success     201   {object}  services.JoinResult
// @Failure     400   {object}  handlers.ErrorResponse
// @Failure     500   {object}  handlers.ErrorResponse
// @Router      /sessions [post]
func (h *Handlers) Join(c *gin.Context) {
	var req JoinRequest
	if !bind(c, &req) {
		return
	}
	id, err := uuid.Parse(req.UUID)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "uuid must be a UUID")
		return
	}
	res, err := h.sessions.Join(c.Request.Context(), services.JoinRequest{
		Identity:    domain.Identity{UUID: id, Name: req.Name, Nick: req.Nick},
		Vanished:    req.Vanished,
		AFK:         req.AFK,
		IgnoringAll: req.IgnoringAll,
		Access:      req.Access,
		Location:    req.Location,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, res)
}

// Quit godoc
// @ID       quitSession
// @Summary  Close a session
// @Tags     Sessions
// @Param    id   path  string  true  "Player UUID"  format(uuid)
// @Success  204  {string}  string  "No Content"
// @Failure  404  {object}  handlers.ErrorResponse
// @Failure  409  {object}  handlers.ErrorResponse  "Not online"
// @Router   /sessions/{id} [delete]
func (h *Handlers) Quit(c *gin.Context) {
	id, okID := uuidParam(c, "id")
	if !okID {
		return
	}
	if err := h.sessions.Quit(c.Request.Context(), id); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// ListSessions godoc
// @ID       listSessions
// @Summary  Sessions connected to this node
// @Tags     Sessions
// @Produce  json
// @Success  200  {array}  presence.Session
// @Router   /sessions [get]
func (h *Handlers) ListSessions(c *gin.Context) {
	ok(c, http.StatusOK, h.sessions.Sessions(c.Request.Context()))
}

// Inbox godoc
// @ID       sessionInbox
// @Summary  Notifications delivered to a session
// @Tags     Sessions
// @Produce  json
// @Param    id   path  string  true  "Player UUID"  format(uuid)
// @Success  200  {array}   presence.Notice
// @Failure  409  {object}  handlers.ErrorResponse  "Not online"
// @Router   /sessions/{id}/inbox [get]
func (h *Handlers) Inbox(c *gin.Context) {
	id, okID := uuidParam(c, "id")
	if !okID {
		return
	}
	notes, err := h.sessions.Inbox(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	if notes == nil {
		notes = []presence.Notice{}
	}
	ok(c, http.StatusOK, notes)
}

// Move godoc
// @ID       moveSession
// @Summary  Report a new position
// @Tags     Sessions
// @Accept   json
// @Produce  json
// @Param    id    path  string        true  "Player UUID"  format(uuid)
// @Param    body  body  domain.Point  true  "Position"
// @Success  200   {object}  handlers.MoveResponse
// @Failure  409   {object}  handlers.ErrorResponse  "Not online"
// @Router   /sessions/{id}/location [put]
func (h *Handlers) Move(c *gin.Context) {
	id, okID := uuidParam(c, "id")
	if !okID {
		return
	}
	var at domain.Point
	if !bind(c, &at) {
		return
	}
	moved, err := h.sessions.Move(c.Request.Context(), id, at)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, MoveResponse{Moved: moved})
}

// Record godoc
// @ID       recordHistory
// @Summary  Append to a session's history
// @Tags     Sessions
// @Accept   json
// @Param    id    path  string                  true  "Player UUID"  format(uuid)
// @Param    body  body  handlers.RecordRequest  true  "Interaction"
// @Success  204  {string}  string  "No Content"
// @Failure  400   {object}  handlers.ErrorResponse
// @Failure  409   {object}  handlers.ErrorResponse  "Not online"
// @Router   /sessions/{id}/history [post]
func (h *Handlers) Record(c *gin.Context) {
	id, okID := uuidParam(c, "id")
	if !okID {
		return
	}
	var req RecordRequest
	if !bind(c, &req) {
		return
	}
	if err := h.sessions.Record(c.Request.Context(), id, req.Category, req.Text, req.Channel); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// History godoc
// @ID       sessionHistory
// @Summary  Query a session's history
// @Tags     Sessions
// @Produce  json
// @Param    id        path   string  true   "Player UUID"  format(uuid)
// @Param    category  query  string  true   "Category"     example(chat)
// @Param    channel   query  string  false  "Channel filter"
// @Param    limit     query  int     false  "Max records"  minimum(1) maximum(500) default(50)
// @Param    since     query  string  false  "RFC 3339 lower bound"
// @Success  200  {array}   sender.Record
// @Failure  400  {object}  handlers.ErrorResponse
// @Failure  409  {object}  handlers.ErrorResponse  "Not online"
// @Router   /sessions/{id}/history [get]
func (h *Handlers) History(c *gin.Context) {
	id, okID := uuidParam(c, "id")
	if !okID {
		return
	}
	category := sender.Category(strings.TrimSpace(c.Query("category")))
	if category == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "category is required")
		return
	}
	limit := utils.Clamp(utils.AtoiDefault(c.Query("limit"), 50), 1, 500)

	var since *time.Time
	if s := c.Query("since"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "since must be RFC 3339")
			return
		}
		since = &t
	}

	recs, err := h.sessions.History(c.Request.Context(), id, category, c.Query("channel"), limit, since)
	if err != nil {
		failErr(c, err)
		return
	}
	if recs == nil {
		recs = []sender.Record{}
	}
	ok(c, http.StatusOK, recs)
}

// IssueCode godoc
// @ID       issueCode
// @Summary  Issue a verification code
// @Tags     Sessions
// @Produce  json
// @Param    id   path  string  true  "Player UUID"  format(uuid)
// @Success  201  {object}  handlers.CodeResponse
// @Failure  409  {object}  handlers.ErrorResponse  "Not online"
// @Router   /sessions/{id}/code [post]
func (h *Handlers) IssueCode(c *gin.Context) {
	id, okID := uuidParam(c, "id")
	if !okID {
		return
	}
	code, err := h.sessions.IssueCode(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, CodeResponse{Code: code})
}

// SolveCode godoc
// @ID       solveCode
// @Summary  Answer a verification code
// @Tags     Sessions
// @Accept   json
// @Produce  json
// @Param    id    path  string                 true  "Player UUID"  format(uuid)
// @Param    body  body  handlers.SolveRequest  true  "Answer"
// @Success  200   {object}  handlers.SolveResponse
// @Failure  409   {object}  handlers.ErrorResponse  "Not online or no code issued"
// @Router   /sessions/{id}/code/answer [post]
func (h *Handlers) SolveCode(c *gin.Context) {
	id, okID := uuidParam(c, "id")
	if !okID {
		return
	}
	var req SolveRequest
	if !bind(c, &req) {
		return
	}
	solved, err := h.sessions.SolveCode(c.Request.Context(), id, req.Answer)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, SolveResponse{Solved: solved})
}

// ResetCode godoc
// @ID       resetCode
// @Summary  Clear the solved flag of a verification code
// @Tags     Sessions
// @Param    id   path  string  true  "Player UUID"  format(uuid)
// @Success  204  {string}  string  "No Content"
// @Failure  409  {object}  handlers.ErrorResponse  "Not online"
// @Router   /sessions/{id}/code/answer [delete]
func (h *Handlers) ResetCode(c *gin.Context) {
	id, okID := uuidParam(c, "id")
	if !okID {
		return
	}
	if err := h.sessions.ResetCode(c.Request.Context(), id); err != nil {
		failErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
