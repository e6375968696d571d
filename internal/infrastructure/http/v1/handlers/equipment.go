package handlers

import (
	"github.com/gin-gonic/gin"

	"docjournal/internal/domain/registry"
	"docjournal/internal/infrastructure/http/v1/dto"
)

// EquipmentHandler serves equipment records.
type EquipmentHandler struct {
	*BaseHandler
	service *registry.Service
}

// NewEquipmentHandler creates an equipment handler.
func NewEquipmentHandler(base *BaseHandler, service *registry.Service) *EquipmentHandler {
	return &EquipmentHandler{BaseHandler: base, service: service}
}

// Create handles POST /equipment
func (h *EquipmentHandler) Create(c *gin.Context) {
	var req dto.CreateEquipmentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	eq := req.ToEntity()
	if err := h.service.CreateEquipment(c.Request.Context(), eq); err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, eq)
}

// Get handles GET /equipment/:id
func (h *EquipmentHandler) Get(c *gin.Context) {
	eqID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	eq, err := h.service.GetEquipment(c.Request.Context(), eqID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, eq)
}
