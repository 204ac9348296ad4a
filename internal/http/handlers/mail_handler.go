package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/chatsync/internal/cache/server"
	"github.com/tbourn/chatsync/internal/domain"
	"github.com/tbourn/chatsync/internal/services"
)

// SendMailRequest addresses mail to players by name, alias or UUID.
type SendMailRequest struct {
	To      []string `json:"to" binding:"required" example:"Notch,jeb_"`
	Subject string   `json:"subject,omitempty" example:"Welcome"`
	Body    string   `json:"body" binding:"required" example:"See you at spawn."`
}

// reader is the recipient acting on a mail, from the reader query
// parameter. Absent means the console, which never marks mail read.
func reader(c *gin.Context) (uuid.UUID, bool) {
	s := c.Query("reader")
	if s == "" {
		return domain.ConsoleID, true
	}
	id, err := uuid.Parse(s)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "reader must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// SendMail godoc
// @ID          sendMail
// @Summary     Send mail
// @Description Stores the mail in the server record, syncs it to every node and notifies connected recipients.
// @Tags        Mail
// @Accept      json
// @Produce     json
// @Param       X-Actor  header  string                    false  "Sender (default console)"
// @Param       body     body    handlers.SendMailRequest  true   "Mail"
// @Success     201  {object}  server.Mail
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown recipient"
// @Router      /mail [post]
func (h *Handlers) SendMail(c *gin.Context) {
	var req SendMailRequest
	if !bind(c, &req) {
		return
	}
	m, err := h.mail.Send(c.Request.Context(), actor(c), services.SendMail{To: req.To, Subject: req.Subject, Body: req.Body})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, m)
}

// MailInbox godoc
// @ID       mailInbox
// @Summary  Mail addressed to a player
// @Tags     Mail
// @Produce  json
// @Param    X-Actor  header  string  false  "Acting player (default console)"
// @Param    key      path    string  true   "Name, alias or UUID"
// @Success  200  {array}   server.Mail
// @Failure  404  {object}  handlers.ErrorResponse
// @Router   /players/{key}/mail [get]
func (h *Handlers) MailInbox(c *gin.Context) {
	out, err := h.mail.Inbox(c.Request.Context(), actor(c), key(c))
	if err != nil {
		failErr(c, err)
		return
	}
	if out == nil {
		out = []server.Mail{}
	}
	ok(c, http.StatusOK, out)
}

// ReadMail godoc
// @ID       readMail
// @Summary  Open a mail
// @Tags     Mail
// @Produce  json
// @Param    id      path   string  true   "Mail ID"  format(uuid)
// @Param    reader  query  string  false  "Recipient UUID; marks the mail read"  format(uuid)
// @Success  200  {object}  server.Mail
// @Failure  404  {object}  handlers.ErrorResponse
// @Router   /mail/{id} [get]
func (h *Handlers) ReadMail(c *gin.Context) {
	id, okID := uuidParam(c, "id")
	if !okID {
		return
	}
	who, okR := reader(c)
	if !okR {
		return
	}
	m, err := h.mail.Read(c.Request.Context(), id, who)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, m)
}

// DeleteMail godoc
// @ID       deleteMail
// @Summary  Delete a mail for one recipient
// @Tags     Mail
// @Param    id      path   string  true  "Mail ID"         format(uuid)
// @Param    reader  query  string  true  "Recipient UUID"  format(uuid)
// @Success  204  {string}  string  "No Content"
// @Failure  404  {object}  handlers.ErrorResponse
// @Router   /mail/{id} [delete]
func (h *Handlers) DeleteMail(c *gin.Context) {
	id, okID := uuidParam(c, "id")
	if !okID {
		return
	}
	who, okR := reader(c)
	if !okR {
		return
	}
	if err := h.mail.Delete(c.Request.Context(), id, who); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}
