package handlers

import (
	"github.com/gin-gonic/gin"

	"docjournal/internal/domain/ledger"
	"docjournal/internal/domain/reservation"
	"docjournal/internal/infrastructure/http/v1/dto"
)

// SessionHandler serves the reservation session lifecycle.
type SessionHandler struct {
	*BaseHandler
	service *reservation.Service
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(base *BaseHandler, service *reservation.Service) *SessionHandler {
	return &SessionHandler{BaseHandler: base, service: service}
}

// Start handles POST /sessions
func (h *SessionHandler) Start(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}

	var req dto.StartSessionRequest
	if !h.BindJSON(c, &req) {
		return
	}

	res, err := h.service.StartSession(c.Request.Context(), actor, req.ToDomain())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromReservation(res, h.Format(), h.now()))
}

// Get handles GET /sessions/:id
func (h *SessionHandler) Get(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}

	sess, err := h.service.GetSession(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromSession(sess, h.now()))
}

// Reserved handles GET /sessions/:id/reserved
func (h *SessionHandler) Reserved(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}

	sessionID := c.Param("id")
	entries, err := h.service.GetReserved(c.Request.Context(), actor, sessionID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromReserved(sessionID, entries, h.Format()))
}

// AddNumbers handles POST /sessions/:id/numbers
func (h *SessionHandler) AddNumbers(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}

	var req dto.AddNumbersRequest
	if !h.BindJSON(c, &req) {
		return
	}

	res, err := h.service.AddNumbers(c.Request.Context(), actor, c.Param("id"), req.ToDomain())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromReservation(res, h.Format(), h.now()))
}

// Cancel handles POST /sessions/:id/cancel
func (h *SessionHandler) Cancel(c *gin.Context) {
	h.finish(c, ledger.SessionCancelled)
}

// Complete handles POST /sessions/:id/complete
func (h *SessionHandler) Complete(c *gin.Context) {
	h.finish(c, ledger.SessionCompleted)
}

func (h *SessionHandler) finish(c *gin.Context, status ledger.SessionStatus) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}

	sessionID := c.Param("id")
	finish := h.service.CancelSession
	if status == ledger.SessionCompleted {
		finish = h.service.CompleteSession
	}

	released, err := finish(c.Request.Context(), actor, sessionID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FinishResponse{SessionID: sessionID, Status: string(status), Released: released})
}
