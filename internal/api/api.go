package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Daniel-Humberto/Micron-Linealytics/internal/api/handlers"
	"github.com/Daniel-Humberto/Micron-Linealytics/internal/api/middleware"
	"github.com/Daniel-Humberto/Micron-Linealytics/internal/config"
	"github.com/Daniel-Humberto/Micron-Linealytics/internal/service"
)

type Services struct {
	Planning *service.PlanningService
	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
}

func NewRouter(services *Services, cfg config.ServerConfig) *gin.Engine {
	router := gin.New()

	// Add middleware
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(cfg.AllowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	if cfg.MaxUploadMB > 0 {
		router.MaxMultipartMemory = int64(cfg.MaxUploadMB) << 20
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	gatherer := prometheus.DefaultGatherer
	if services != nil && services.Gatherer != nil {
		gatherer = services.Gatherer
	}
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	apiGroup := router.Group("/api/v1")

	if services != nil && services.Planning != nil {
		planHandler := handlers.NewPlanHandler(services.Planning)
		planGroup := apiGroup.Group("/plans")
		{
			planGroup.POST("", planHandler.CreatePlan)
			planGroup.POST("/upload", planHandler.UploadPlan)
			planGroup.GET("", planHandler.ListPlans)
			planGroup.GET("/:id", planHandler.GetPlan)
			planGroup.GET("/:id/export", planHandler.ExportPlan)
		}
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		parts := strings.Split(origin, ",")
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
