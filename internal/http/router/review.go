package router

import (
	"github.com/gin-gonic/gin"

	"basegraph.app/assist/internal/http/handler"
)

func ReviewRouter(rg *gin.RouterGroup, h *handler.ReviewHandler) {
	rg.GET("/pending", h.Pending)
	rg.POST("/:id/submit", h.Submit)
	rg.POST("/:id/approve", h.Approve)
	rg.POST("/:id/reject", h.Reject)
}
