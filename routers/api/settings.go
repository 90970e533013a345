package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"MotionWeaver-server/config"
)

func (h *Handler) GetGenerationSettings(c *gin.Context) {
	ok(c, h.Settings.Generation())
}

// UpdateGenerationSettings swaps the live generation knobs. The new
// snapshot applies to tasks started after this call; running tasks keep
// the values they launched with.
func (h *Handler) UpdateGenerationSettings(c *gin.Context) {
	var req config.Generation
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if req.MaxRetries < 0 || req.RetryDelaySec < 0 || req.TimeoutSec <= 0 {
		fail(c, http.StatusBadRequest, "retry and timeout values must be non-negative, timeout positive")
		return
	}
	h.Settings.UpdateGeneration(req)
	ok(c, h.Settings.Generation())
}
