package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/andresuchdata/s3-permanent-deletes/internal/api/handlers"
	"github.com/andresuchdata/s3-permanent-deletes/internal/api/middleware"
	"github.com/andresuchdata/s3-permanent-deletes/internal/cache"
)

type Services struct {
	Reports cache.ReportCache
}

func NewRouter(services *Services, allowedOrigins []string, log zerolog.Logger) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))

	corsConfig := cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		AllowMethods:     []string{"GET", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiGroup := router.Group("/api/v1")

	reports := cache.NewNoopReportCache()
	if services != nil && services.Reports != nil {
		reports = services.Reports
	}
	reportHandler := handlers.NewReportHandler(reports, log)
	reportGroup := apiGroup.Group("/reports")
	{
		reportGroup.GET("/latest", reportHandler.GetLatest)
		reportGroup.GET("/:bucket", reportHandler.GetBucket)
	}

	return router
}

// normalizeAllowedOrigins splits comma-separated entries; "*" allows any origin.
func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		for _, part := range strings.Split(origin, ",") {
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
