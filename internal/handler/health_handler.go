package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthCheck handles health check requests
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Database:  "ok",
		Scheduler: "stopped",
		Metrics:   make(map[string]string),
	}

	if err := h.db.Raw("SELECT 1").Error; err != nil {
		response.Status = "error"
		response.Database = "error"
		h.logger.WithError(err).Error("Database health check failed")
	}

	if h.scheduler.IsRunning() {
		response.Scheduler = "running"
		for name, job := range h.scheduler.Status().Jobs {
			response.Metrics[name+"_next_run"] = job.NextRun.Format(time.RFC3339)
		}
	}

	statusCode := http.StatusOK
	if response.Status == "error" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, response)
}
