package handlers

import (
	"github.com/gin-gonic/gin"

	"docjournal/internal/domain/reservation"
	"docjournal/internal/infrastructure/http/v1/dto"
)

// AdminHandler serves golden and specific-number operations.
// Routes are mounted behind middleware.RequireAdmin; the engine checks again.
type AdminHandler struct {
	*BaseHandler
	service *reservation.Service
}

// NewAdminHandler creates an admin handler.
func NewAdminHandler(base *BaseHandler, service *reservation.Service) *AdminHandler {
	return &AdminHandler{BaseHandler: base, service: service}
}

// ReserveGolden handles POST /admin/golden/reserve
func (h *AdminHandler) ReserveGolden(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}

	var req dto.GoldenReserveRequest
	if !h.BindJSON(c, &req) {
		return
	}

	res, err := h.service.ReserveGolden(c.Request.Context(), actor, req.ToDomain())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromReservation(res, h.Format(), h.now()))
}

// ReserveSpecific handles POST /admin/reserve-specific
func (h *AdminHandler) ReserveSpecific(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}

	var req dto.SpecificReserveRequest
	if !h.BindJSON(c, &req) {
		return
	}

	res, err := h.service.ReserveSpecific(c.Request.Context(), actor, req.ToDomain())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromReservation(res, h.Format(), h.now()))
}

// SuggestGolden handles GET /admin/golden-suggest?limit=
func (h *AdminHandler) SuggestGolden(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}

	numerics, err := h.service.SuggestGolden(c.Request.Context(), actor, h.ParseIntQuery(c, "limit", 0))
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.SuggestResponse{Numbers: dto.FromNumerics(h.Format(), numerics)})
}

// Counter handles GET /admin/counter
func (h *AdminHandler) Counter(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}

	counter, err := h.service.CounterState(c.Request.Context(), actor)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromCounter(counter, h.Format()))
}
