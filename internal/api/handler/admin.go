package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jon4hz/appmonitor/internal/scheduler"
)

// ListJobs returns the state of the background jobs.
func (h *Handler) ListJobs(c *gin.Context) {
	jsonData(c, http.StatusOK, h.engine.Jobs())
}

// RunJob triggers a background job immediately.
func (h *Handler) RunJob(c *gin.Context) {
	id := c.Param("id")
	if err := h.engine.RunJob(id); err != nil {
		if errors.Is(err, scheduler.ErrJobNotFound) {
			jsonError(c, http.StatusNotFound, "Job not found")
			return
		}
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"success": true, "message": "Job " + id + " triggered"})
}
