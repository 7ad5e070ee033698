package routes

import (
	"github.com/gin-gonic/gin"
)

// HandleHome counts one page view and renders the static home page.
func (h *Handler) HandleHome(c *gin.Context) {
	if _, _, ok := h.touchSession(c); !ok {
		return
	}

	if _, err := h.Store.IncrementTotalViews(c.Request.Context()); err != nil {
		h.storageFailed(c, "increment", err)
		return
	}
	h.Metrics.PageViews.Inc()

	c.HTML(200, "index.html", nil)
}

func (h *Handler) HandleHealth(c *gin.Context) {
	if err := h.Store.Ping(c.Request.Context()); err != nil {
		h.Log.WithError(err).Warn("Health check failed")
		c.JSON(503, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(200, gin.H{"status": "ok"})
}

func SetupRegularRoutes(r *gin.Engine, h *Handler) {
	r.GET("/", h.HandleHome)
	r.GET("/healthz", h.HandleHealth)
	r.GET("/metrics", gin.WrapH(h.Metrics.Handler()))
}
