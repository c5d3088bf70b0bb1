package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/termctl/internal/metrics"
	"github.com/loykin/termctl/internal/session"
)

// Debug is an optional HTTP sidecar exposing health and Prometheus metrics.
// It deliberately exposes no registry state: the registry is owned by the
// session loop alone, and this server runs on its own goroutines.
type Debug struct {
	listen string
}

func NewDebug(listen string) *Debug {
	return &Debug{listen: listen}
}

// Handler returns the gin handler so it can be mounted in an existing mux.
func (d *Debug) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	g := gin.New()
	g.Use(gin.Recovery())
	g.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	g.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"name":     session.ServerName,
			"version":  session.ServerVersion,
			"protocol": session.ProtocolVersion,
		})
	})
	g.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// Start runs the sidecar in the background and returns the http.Server so
// the caller can Close it on shutdown.
func (d *Debug) Start() *http.Server {
	srv := &http.Server{
		Addr:              d.listen,
		Handler:           d.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
