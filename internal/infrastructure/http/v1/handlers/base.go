package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"docjournal/internal/core/apperror"
	appctx "docjournal/internal/core/context"
	"docjournal/internal/core/numerator"
	"docjournal/internal/domain/ledger"
	"docjournal/internal/infrastructure/http/v1/dto"
)

// BaseHandler provides common handler utilities.
type BaseHandler struct {
	format numerator.Config
	now    func() time.Time
}

// NewBaseHandler creates a new base handler. format renders numerics in responses.
func NewBaseHandler(format numerator.Config) *BaseHandler {
	return &BaseHandler{format: format, now: time.Now}
}

// Format returns the document number format.
func (h *BaseHandler) Format() numerator.Config {
	return h.format
}

// BindJSON binds and validates JSON request body.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid request body").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// Error registers error on Gin context and aborts request.
// Actual JSON response is produced by middleware.ErrorHandler (single source of truth).
func (h *BaseHandler) Error(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// ParseIntQuery parses integer query parameter with default value.
func (h *BaseHandler) ParseIntQuery(c *gin.Context, key string, defaultVal int) int {
	val := c.Query(key)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return parsed
}

// ParseIDParam parses a positive int64 path parameter.
func (h *BaseHandler) ParseIDParam(c *gin.Context, key string) (int64, bool) {
	parsed, err := strconv.ParseInt(c.Param(key), 10, 64)
	if err != nil || parsed <= 0 {
		h.Error(c, apperror.NewValidation("invalid id format").WithDetail("field", key))
		return 0, false
	}
	return parsed, true
}

// Actor builds the caller identity from the authenticated user.
func (h *BaseHandler) Actor(c *gin.Context) (ledger.Actor, bool) {
	user := appctx.GetUser(c.Request.Context())
	if user == nil || user.UserID == "" {
		h.Error(c, apperror.NewUnauthorized("authentication required"))
		return ledger.Actor{}, false
	}
	return ledger.Actor{UserID: user.UserID, IsAdmin: user.IsAdmin}, true
}

// Created sends 201 response with data.
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

// OK sends 200 response with data.
func (h *BaseHandler) OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// Success sends success response.
func (h *BaseHandler) Success(c *gin.Context, message string) {
	c.JSON(http.StatusOK, dto.SuccessResponse{Success: true, Message: message})
}
