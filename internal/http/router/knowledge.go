package router

import (
	"github.com/gin-gonic/gin"

	"basegraph.app/assist/internal/http/handler"
)

func KnowledgeRouter(rg *gin.RouterGroup, h *handler.KnowledgeHandler) {
	rg.POST("", h.Add)
	rg.POST("/search", h.Search)
	rg.DELETE("", h.Delete)
	rg.POST("/extract-questions", h.ExtractQuestions)
	rg.POST("/classify-intent", h.ClassifyQuery)
	rg.POST("/generate-questions", h.GenerateQuestions)
	rg.POST("/generate-scripts", h.GenerateScripts)
}
