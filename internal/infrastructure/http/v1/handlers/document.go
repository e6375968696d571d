package handlers

import (
	"github.com/gin-gonic/gin"

	"docjournal/internal/domain/registry"
	"docjournal/internal/infrastructure/http/v1/dto"
)

// DocumentHandler serves the assignment step and document reads.
type DocumentHandler struct {
	*BaseHandler
	service *registry.Service
}

// NewDocumentHandler creates a document handler.
func NewDocumentHandler(base *BaseHandler, service *registry.Service) *DocumentHandler {
	return &DocumentHandler{BaseHandler: base, service: service}
}

// Assign handles POST /documents/assign
func (h *DocumentHandler) Assign(c *gin.Context) {
	actor, ok := h.Actor(c)
	if !ok {
		return
	}

	var req dto.AssignRequest
	if !h.BindJSON(c, &req) {
		return
	}

	assignReq, err := req.ToDomain()
	if err != nil {
		h.Error(c, err)
		return
	}

	res, err := h.service.Assign(c.Request.Context(), actor, assignReq)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromAssign(res, h.Format()))
}

// Get handles GET /documents/:id
func (h *DocumentHandler) Get(c *gin.Context) {
	docID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	doc, err := h.service.GetDocument(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromDocument(doc, h.Format()))
}
