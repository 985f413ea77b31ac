package router

import (
	"github.com/gin-gonic/gin"

	"basegraph.app/assist/internal/http/handler"
)

func InspectionRouter(rg *gin.RouterGroup, h *handler.InspectionHandler) {
	rg.POST("/parse", h.Parse)
	rg.POST("/transcribe", h.Transcribe)
	rg.POST("/inspect", h.Inspect)
	rg.POST("/batch", h.Batch)
	rg.GET("/reports/:id", h.Report)
	rg.POST("/summary", h.Summary)
}
