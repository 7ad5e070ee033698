package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"visitstats/config"
	"visitstats/counter"
	"visitstats/db"
	"visitstats/logger"
	"visitstats/metrics"
	"visitstats/middleware"
	"visitstats/presence"
	"visitstats/routes"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("info", "json").WithError(err).Fatal("Invalid configuration")
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Init DB
	conn, err := db.InitSQLite(cfg.DBFile)
	if err != nil {
		log.WithError(err).Fatal("Error opening stats database")
	}
	defer db.CloseDB(conn)

	initCtx, cancelInit := context.WithTimeout(context.Background(), 10*time.Second)
	store := counter.NewStore(conn, log)
	err = store.Initialize(initCtx)
	cancelInit()
	if err != nil {
		log.WithError(err).Fatal("Error initializing counter store")
	}

	tracker := presence.NewTracker(cfg.OnlineWindow)
	m := metrics.New()

	handler := routes.NewHandler(store, tracker, m, log)
	handler.SecureCookies = cfg.IsProduction()
	handler.PushInterval = cfg.StatsPushInterval

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.RateLimiter(cfg.RateLimit))
	r.Use(cors.Default())
	r.LoadHTMLGlob(filepath.Join(cfg.TemplatesDir, "*"))
	routes.Setup(r, handler)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	if cfg.SweepInterval > 0 {
		go tracker.RunSweeper(ctx, cfg.SweepInterval, func(removed int) {
			m.SweptSessions.Add(float64(removed))
			if removed > 0 {
				log.WithField("removed", removed).Debug("Swept stale sessions")
			}
		})
	}

	server := &http.Server{Addr: cfg.Addr(), Handler: r}

	go func() {
		log.WithField("addr", server.Addr).Info("Starting visitstats server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("ListenAndServe error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	stop()
	handler.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	log.Info("Server exited cleanly.")
}
