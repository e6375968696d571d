package v1

import (
	"github.com/gin-gonic/gin"

	"docjournal/internal/infrastructure/http/v1/middleware"
)

// SessionRouteHandler defines the session lifecycle endpoints.
type SessionRouteHandler interface {
	Start(c *gin.Context)
	Get(c *gin.Context)
	Reserved(c *gin.Context)
	AddNumbers(c *gin.Context)
	Cancel(c *gin.Context)
	Complete(c *gin.Context)
}

// AdminRouteHandler defines the administrator endpoints.
type AdminRouteHandler interface {
	ReserveGolden(c *gin.Context)
	ReserveSpecific(c *gin.Context)
	SuggestGolden(c *gin.Context)
	Counter(c *gin.Context)
}

// RegisterSessionRoutes registers the session lifecycle under group.
func RegisterSessionRoutes(group *gin.RouterGroup, handler SessionRouteHandler) {
	group.POST("", handler.Start)
	group.GET("/:id", handler.Get)
	group.GET("/:id/reserved", handler.Reserved)
	group.POST("/:id/numbers", handler.AddNumbers)
	group.POST("/:id/cancel", handler.Cancel)
	group.POST("/:id/complete", handler.Complete)
}

// RegisterAdminRoutes registers administrator endpoints under group, all
// behind RequireAdmin.
func RegisterAdminRoutes(group *gin.RouterGroup, handler AdminRouteHandler) {
	group.Use(middleware.RequireAdmin())

	group.POST("/golden/reserve", handler.ReserveGolden)
	group.GET("/golden-suggest", handler.SuggestGolden)
	group.POST("/reserve-specific", handler.ReserveSpecific)
	group.GET("/counter", handler.Counter)
}
