package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/chatsync/internal/cache/server"
	"github.com/tbourn/chatsync/internal/domain"
	"github.com/tbourn/chatsync/internal/utils"
)

// GlobalMuteRequest mutes chat for everyone; "0" lifts the mute.
type GlobalMuteRequest struct {
	Duration string `json:"duration" binding:"required" example:"15m"`
}

// SelectRequest sets one corner of a session's region selection.
type SelectRequest struct {
	Primary bool         `json:"primary"`
	At      domain.Point `json:"at"`
}

// CreateRegionRequest names the region built from a selection.
type CreateRegionRequest struct {
	Name string `json:"name" binding:"required" example:"spawn"`
}

// ServerStatus godoc
// @ID       serverStatus
// @Summary  Server record summary
// @Tags     Server
// @Produce  json
// @Success  200  {object}  services.ServerStatus
// @Router   /server [get]
func (h *Handlers) ServerStatus(c *gin.Context) {
	st, err := h.server.Status(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, st)
}

// GlobalMute godoc
// @ID       globalMute
// @Summary  Mute chat for everyone
// @Tags     Server
// @Accept   json
// @Param    body  body  handlers.GlobalMuteRequest  true  "Duration"
// @Success  204  {string}  string  "No Content"
// @Failure  400  {object}  handlers.ErrorResponse
// @Router   /server/mute [put]
func (h *Handlers) GlobalMute(c *gin.Context) {
	var req GlobalMuteRequest
	if !bind(c, &req) {
		return
	}
	d, err := utils.ParseDuration(req.Duration)
	if err != nil || d < 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "duration must be a Go duration or seconds")
		return
	}
	if err := h.server.SetGlobalMute(c.Request.Context(), d); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// CompleteTour godoc
// @ID       completeTour
// @Summary  Mark the server tour as completed
// @Tags     Server
// @Success  204  {string}  string  "No Content"
// @Router   /server/tour [post]
func (h *Handlers) CompleteTour(c *gin.Context) {
	if err := h.server.MarkTourCompleted(c.Request.Context()); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// ListRegions godoc
// @ID          listRegions
// @Summary     List regions
// @Description With world, x, y and z the list is restricted to regions containing that point.
// @Tags        Server
// @Produce     json
// @Param       world  query  string  false  "World"
// @Param       x      query  number  false  "X"
// @Param       y      query  number  false  "Y"
// @Param       z      query  number  false  "Z"
// @Success     200  {array}   server.Region
// @Failure     400  {object}  handlers.ErrorResponse
// @Router      /server/regions [get]
func (h *Handlers) ListRegions(c *gin.Context) {
	var at *domain.Point
	if world := c.Query("world"); world != "" {
		xyz, err := utils.ParseFloats(c.Query("x"), c.Query("y"), c.Query("z"))
		if err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "x, y and z must be numbers")
			return
		}
		at = &domain.Point{World: world, X: xyz[0], Y: xyz[1], Z: xyz[2]}
	}
	out, err := h.server.Regions(c.Request.Context(), at)
	if err != nil {
		failErr(c, err)
		return
	}
	if out == nil {
		out = []server.Region{}
	}
	ok(c, http.StatusOK, out)
}

// AddRegion godoc
// @ID       addRegion
// @Summary  Define a region
// @Tags     Server
// @Accept   json
// @Produce  json
// @Param    body  body  server.Region  true  "Region"
// @Success  201  {object}  server.Region
// @Failure  400  {object}  handlers.ErrorResponse
// @Failure  409  {object}  handlers.ErrorResponse  "Name taken"
// @Router   /server/regions [post]
func (h *Handlers) AddRegion(c *gin.Context) {
	var r server.Region
	if !bind(c, &r) {
		return
	}
	out, err := h.server.AddRegion(c.Request.Context(), r)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, out)
}

// RemoveRegion godoc
// @ID       removeRegion
// @Summary  Remove a region
// @Tags     Server
// @Param    name  path  string  true  "Region name"
// @Success  204  {string}  string  "No Content"
// @Failure  404  {object}  handlers.ErrorResponse
// @Router   /server/regions/{name} [delete]
func (h *Handlers) RemoveRegion(c *gin.Context) {
	if err := h.server.RemoveRegion(c.Request.Context(), c.Param("name")); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// Select godoc
// @ID       selectCorner
// @Summary  Set a selection corner
// @Tags     Server
// @Accept   json
// @Produce  json
// @Param    id    path  string                  true  "Player UUID"  format(uuid)
// @Param    body  body  handlers.SelectRequest  true  "Corner"
// @Success  200  {object}  sender.Selection
// @Failure  409  {object}  handlers.ErrorResponse  "Not online"
// @Router   /sessions/{id}/selection [put]
func (h *Handlers) Select(c *gin.Context) {
	id, okID := uuidParam(c, "id")
	if !okID {
		return
	}
	var req SelectRequest
	if !bind(c, &req) {
		return
	}
	sel, err := h.server.Select(c.Request.Context(), id, req.Primary, req.At)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, sel)
}

// CreateRegion godoc
// @ID       createRegion
// @Summary  Turn a selection into a region
// @Tags     Server
// @Accept   json
// @Produce  json
// @Param    id    path  string                        true  "Player UUID"  format(uuid)
// @Param    body  body  handlers.CreateRegionRequest  true  "Name"
// @Success  201  {object}  server.Region
// @Failure  400  {object}  handlers.ErrorResponse  "Incomplete selection"
// @Failure  409  {object}  handlers.ErrorResponse
// @Router   /sessions/{id}/regions [post]
func (h *Handlers) CreateRegion(c *gin.Context) {
	id, okID := uuidParam(c, "id")
	if !okID {
		return
	}
	var req CreateRegionRequest
	if !bind(c, &req) {
		return
	}
	r, err := h.server.CreateRegion(c.Request.Context(), id, req.Name)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, r)
}
