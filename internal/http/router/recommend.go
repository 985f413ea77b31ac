package router

import (
	"github.com/gin-gonic/gin"

	"basegraph.app/assist/internal/http/handler"
)

func RecommendRouter(rg *gin.RouterGroup, h *handler.RecommendHandler) {
	rg.POST("/analyze-context", h.AnalyzeContext)
	rg.POST("/recognize-intent", h.RecognizeIntent)
	rg.POST("/next-intent", h.PredictNextIntent)
	rg.POST("/emotion", h.ExtractEmotion)
	rg.POST("/scripts", h.Scripts)
	rg.POST("/personalize", h.Personalize)
	rg.POST("/greeting", h.Greeting)
	rg.GET("/sessions/:id", h.Session)
	rg.DELETE("/sessions/:id", h.EndSession)
}
