package routes

import (
	"context"
	"sync"
	"time"

	"visitstats/metrics"
	"visitstats/presence"
	"visitstats/session"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// CounterStore is the part of counter.Store the handlers use.
type CounterStore interface {
	IncrementTotalViews(ctx context.Context) (int64, error)
	TotalViews(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}

type StatsResponse struct {
	Online     int   `json:"online"`
	TotalViews int64 `json:"total_views"`
}

type Handler struct {
	Store    CounterStore
	Presence *presence.Tracker
	Metrics  *metrics.Metrics
	Log      logrus.FieldLogger

	SecureCookies bool
	PushInterval  time.Duration
	// Now defaults to time.Now.
	Now func() time.Time

	closeOnce sync.Once
	closing   chan struct{}
}

func NewHandler(store CounterStore, tracker *presence.Tracker, m *metrics.Metrics, log logrus.FieldLogger) *Handler {
	return &Handler{
		Store:        store,
		Presence:     tracker,
		Metrics:      m,
		Log:          log,
		PushInterval: 5 * time.Second,
		Now:          time.Now,
		closing:      make(chan struct{}),
	}
}

// Close ends every open live-stats socket. http.Server.Shutdown does not
// track hijacked connections.
func (h *Handler) Close() {
	h.closeOnce.Do(func() { close(h.closing) })
}

func (h *Handler) now() time.Time {
	if h.Now == nil {
		return time.Now()
	}
	return h.Now()
}

// touchSession resolves the caller's session, marks it seen and refreshes the
// sid cookie. On failure it has already answered the request.
func (h *Handler) touchSession(c *gin.Context) (string, int, bool) {
	sid, err := session.FromRequest(c)
	if err != nil {
		h.Log.WithError(err).Error("Failed to issue session id")
		c.JSON(500, gin.H{"error": "Failed to create session"})
		return "", 0, false
	}

	online := h.Presence.MarkSeen(sid, h.now())
	h.Metrics.OnlineSessions.Set(float64(online))
	session.WriteCookie(c, sid, h.SecureCookies)
	return sid, online, true
}

func (h *Handler) storageFailed(c *gin.Context, op string, err error) {
	h.Metrics.StorageErrors.WithLabelValues(op).Inc()
	h.Log.WithError(err).WithField("operation", op).Error("Counter store failure")
	_ = c.Error(err)
	c.JSON(500, gin.H{"error": "Database error"})
}

func Setup(r *gin.Engine, h *Handler) {
	SetupRegularRoutes(r, h)
	SetupAPIRoutes(r, h)
	SetupWebSocketRoutes(r, h)
}
