// Package httpapi exposes the swap engine over REST with gin.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/roach88/slotswap/internal/auth"
	"github.com/roach88/slotswap/internal/engine"
	"github.com/roach88/slotswap/internal/query"
)

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the handlers call.
type Deps struct {
	Engine *engine.Engine
	Query  *query.Facade
	Auth   *auth.Service
	DB     Pinger
}

// Config tunes the router.
type Config struct {
	RequestTimeout time.Duration
	CORSOrigins    []string
}

type handler struct {
	engine *engine.Engine
	query  *query.Facade
	auth   *auth.Service
	db     Pinger
	now    func() time.Time
}

// NewRouter builds the gin engine with every route and middleware.
func NewRouter(d Deps, cfg Config) *gin.Engine {
	h := &handler{engine: d.Engine, query: d.Query, auth: d.Auth, db: d.DB, now: time.Now}

	r := gin.New()
	r.Use(
		recovery(),
		requestID(),
		tracing(),
		accessLog(),
		cors(cfg.CORSOrigins),
		timeout(cfg.RequestTimeout),
	)
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorBody{Detail: "Not Found", Code: "NOT_FOUND"})
	})

	r.GET("/", h.home)
	r.GET("/healthz", h.healthz)
	r.GET("/readyz", h.readyz)

	r.POST("/signup", h.signup)
	r.POST("/login", h.login)

	secured := r.Group("")
	secured.Use(requireAuth(d.Auth))
	{
		secured.GET("/me", h.me)
		secured.GET("/dashboard", h.dashboard)

		secured.POST("/events", h.createEvent)
		secured.GET("/events", h.listEvents)
		secured.GET("/events/swappable", h.swappable)
		secured.GET("/swappable-slots", h.swappable)
		secured.GET("/events.ics", h.exportICS)
		secured.PATCH("/events/:id", h.setEventStatus)
		secured.PUT("/events/:id", h.updateEvent)
		secured.DELETE("/events/:id", h.deleteEvent)

		secured.POST("/swap-request", h.requestSwap)
		secured.POST("/swap/request", h.requestSwap)
		secured.GET("/swap/incoming", h.incoming)
		secured.GET("/swap/outgoing", h.outgoing)
		secured.POST("/swap/respond/:id", h.respondSwap)
		secured.POST("/swap/cancel/:id", h.cancelSwap)
	}

	return r
}

// Serve runs handler on addr until ctx is cancelled, then shuts down
// gracefully, giving in-flight requests up to five seconds.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	slog.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (h *handler) home(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "SlotSwapper backend is running"})
}

func (h *handler) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handler) readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		slog.Warn("readiness check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
