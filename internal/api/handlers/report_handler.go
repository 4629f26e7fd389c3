package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/andresuchdata/s3-permanent-deletes/internal/cache"
)

// ReportHandler serves lifecycle reports stored by the monitor.
type ReportHandler struct {
	reports cache.ReportCache
	log     zerolog.Logger
}

func NewReportHandler(reports cache.ReportCache, log zerolog.Logger) *ReportHandler {
	return &ReportHandler{reports: reports, log: log}
}

func (h *ReportHandler) GetLatest(c *gin.Context) {
	payload, ok, err := h.reports.LatestReport(c.Request.Context())
	h.respond(c, payload, ok, err)
}

func (h *ReportHandler) GetBucket(c *gin.Context) {
	bucket := strings.TrimSpace(c.Param("bucket"))
	if bucket == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bucket is required"})
		return
	}
	payload, ok, err := h.reports.BucketReport(c.Request.Context(), bucket)
	h.respond(c, payload, ok, err)
}

func (h *ReportHandler) respond(c *gin.Context, payload []byte, ok bool, err error) {
	if err != nil {
		h.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Failed to read report")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "report cache unavailable"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no report available"})
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
}
