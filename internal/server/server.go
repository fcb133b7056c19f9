// Package server exposes the HTTP surface: the SMS provider webhook, a
// health check and a read-only incident listing.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/zulandar/watchtower/internal/catalog"
	"github.com/zulandar/watchtower/internal/models"
	"github.com/zulandar/watchtower/internal/reporting"
	"github.com/zulandar/watchtower/internal/sms"
)

// Status reports live conversation state for the health check.
type Status interface {
	ActiveCount(ctx context.Context) (int, error)
	Catalog() *catalog.Catalog
}

// IncidentLister lists recorded incidents.
type IncidentLister interface {
	ListIncidents(ctx context.Context, opts reporting.ListOpts) ([]models.Incident, error)
}

// Opts holds configuration for the HTTP server.
type Opts struct {
	Addr      string // listen address, default ":3000"
	Version   string
	Webhook   sms.WebhookReceiver
	Status    Status
	Incidents IncidentLister // optional; /api/incidents is not served without it
	ImagesDir string         // optional; served under /images
	Logger    zerolog.Logger
	Out       io.Writer
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(opts Opts) (*gin.Engine, error) {
	if opts.Webhook == nil {
		return nil, fmt.Errorf("server: webhook receiver is required")
	}
	if opts.Status == nil {
		return nil, fmt.Errorf("server: status is required")
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(opts.Logger))
	registerRoutes(router, opts)
	return router, nil
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully.
func Start(ctx context.Context, opts Opts) error {
	gin.SetMode(gin.ReleaseMode)
	router, err := NewRouter(opts)
	if err != nil {
		return err
	}
	addr := opts.Addr
	if addr == "" {
		addr = ":3000"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "WatchTower listening on %s (webhook: POST /webhook)\n", addr)
	}
	opts.Logger.Info().Str("addr", addr).Msg("http server started")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// requestLogger logs one line per request at debug level, and warns on
// server errors.
func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		ev := log.Debug()
		if status >= http.StatusInternalServerError {
			ev = log.Warn()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("http request")
	}
}
