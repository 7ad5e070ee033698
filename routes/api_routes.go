package routes

import (
	"github.com/gin-gonic/gin"
)

func (h *Handler) HandlePing(c *gin.Context) {
	if _, _, ok := h.touchSession(c); !ok {
		return
	}
	h.Metrics.Pings.Inc()
	c.JSON(200, gin.H{"ok": true})
}

func (h *Handler) HandleStats(c *gin.Context) {
	_, online, ok := h.touchSession(c)
	if !ok {
		return
	}

	total, err := h.Store.TotalViews(c.Request.Context())
	if err != nil {
		h.storageFailed(c, "read", err)
		return
	}

	c.JSON(200, StatsResponse{Online: online, TotalViews: total})
}

func SetupAPIRoutes(r *gin.Engine, h *Handler) {
	r.POST("/ping", h.HandlePing)
	r.GET("/stats", h.HandleStats)
}
