package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine, handler *Handler, metrics http.Handler) {
	api := router.Group("/api")
	{
		api.GET("/historical/:symbol", handler.GetHistorical)

		api.GET("/assets", handler.ListAssets)
		api.GET("/assets/search", handler.SearchAssets)
		api.GET("/assets/lookup", handler.LookupAsset)
		api.GET("/assets/summary", handler.GetSummary)

		api.POST("/ingest/refresh", handler.RefreshQuotes)
	}

	router.GET("/health", handler.Health)
	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}
}

// CORSMiddleware allows a single browser origin to call the API.
func CORSMiddleware(allowedOrigin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if allowedOrigin != "" {
			c.Header("Access-Control-Allow-Origin", allowedOrigin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type")
			c.Header("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
