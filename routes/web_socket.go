package routes

import (
	"net/http"
	"time"

	"visitstats/session"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const socketWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleStatsSocket streams StatsResponse frames every PushInterval. The
// connection keeps its session online for as long as it stays open.
func (h *Handler) HandleStatsSocket(c *gin.Context) {
	sid, err := session.FromRequest(c)
	if err != nil {
		h.Log.WithError(err).Error("Failed to issue session id")
		c.JSON(500, gin.H{"error": "Failed to create session"})
		return
	}

	header := http.Header{}
	header.Add("Set-Cookie", session.NewCookie(sid, h.SecureCookies).String())

	conn, err := upgrader.Upgrade(c.Writer, c.Request, header)
	if err != nil {
		h.Log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	// Client frames are ignored; reading only detects the close.
	disconnected := make(chan struct{})
	go func() {
		defer close(disconnected)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	interval := h.PushInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := h.pushStats(c, conn, sid); err != nil {
			h.Log.WithError(err).Debug("Stats socket write failed")
			return
		}

		select {
		case <-disconnected:
			return
		case <-h.closing:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(time.Second))
			return
		case <-ticker.C:
		}
	}
}

func (h *Handler) pushStats(c *gin.Context, conn *websocket.Conn, sid string) error {
	online := h.Presence.MarkSeen(sid, h.now())
	h.Metrics.OnlineSessions.Set(float64(online))

	if err := conn.SetWriteDeadline(time.Now().Add(socketWriteTimeout)); err != nil {
		return err
	}

	total, err := h.Store.TotalViews(c.Request.Context())
	if err != nil {
		h.Metrics.StorageErrors.WithLabelValues("read").Inc()
		h.Log.WithError(err).Error("Counter store failure")
		return conn.WriteJSON(gin.H{"error": "Database error"})
	}
	return conn.WriteJSON(StatsResponse{Online: online, TotalViews: total})
}

func SetupWebSocketRoutes(r *gin.Engine, h *Handler) {
	r.GET("/ws/stats", h.HandleStatsSocket)
}
