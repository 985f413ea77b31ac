package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"basegraph.app/assist/internal/http/handler"
	"basegraph.app/assist/internal/service"
)

type RouterConfig struct {
	// Metrics is served on /metrics when set.
	Metrics *prometheus.Registry
}

func SetupRoutes(router *gin.Engine, services *service.Services, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Metrics, promhttp.HandlerOpts{Registry: cfg.Metrics})))
	}

	v1 := router.Group("/api/v1")
	{
		KnowledgeRouter(v1.Group("/knowledge"), handler.NewKnowledgeHandler(services.Knowledge(), services.Assistant()))
		RecommendRouter(v1.Group("/recommend"), handler.NewRecommendHandler(services.Recommender()))
		InspectionRouter(v1.Group("/inspection"), handler.NewInspectionHandler(services.Inspection()))
		ReviewRouter(v1.Group("/reviews"), handler.NewReviewHandler(services.Reviews()))
	}
}
