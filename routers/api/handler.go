package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"MotionWeaver-server/config"
	"MotionWeaver-server/models"
	"MotionWeaver-server/service"
)

// Handler carries every dependency the HTTP endpoints need. Wired once
// by the composition root; no endpoint reaches for a global.
type Handler struct {
	DB       *gorm.DB
	Pipeline *service.Pipeline
	Notifier *service.Notifier
	Settings *config.SettingsStore
	LLM      *service.LLMClient // nil in mock mode
	Metrics  func() map[string]service.GenMetrics
}

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"code": 0, "data": data})
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"code": status, "msg": msg})
}

// failFrom maps service errors to HTTP statuses: unknown ids are 404,
// transition and concurrency conflicts are 409, the rest 500.
func failFrom(c *gin.Context, err error) {
	var invalid *models.InvalidTransitionError
	var blocked *service.AggregateBlockedError
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		fail(c, http.StatusNotFound, "not found")
	case errors.As(err, &invalid):
		fail(c, http.StatusConflict, invalid.Error())
	case errors.As(err, &blocked):
		fail(c, http.StatusConflict, blocked.Error())
	case errors.Is(err, service.ErrDuplicateWork):
		fail(c, http.StatusConflict, err.Error())
	default:
		fail(c, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) Health(c *gin.Context) {
	ok(c, gin.H{"status": "up"})
}

func (h *Handler) LLMHealth(c *gin.Context) {
	if h.LLM == nil {
		ok(c, gin.H{"status": "mock"})
		return
	}
	ok(c, h.LLM.CheckHealth(c.Request.Context()))
}

func (h *Handler) GenerationMetrics(c *gin.Context) {
	if h.Metrics == nil {
		ok(c, gin.H{})
		return
	}
	ok(c, h.Metrics())
}
