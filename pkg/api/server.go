// Package api implements the REST/SSE gateway: JWT validation,
// If-Match/Idempotency-Key/If-Modified-Since header handling, error
// taxonomy serialization, and SSE event streaming — a thin layer over
// storage, search, secrets, directory, and events.
package api

import (
	"context"
	"net"
	"net/http"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/rcrt-io/rcrt/pkg/auth"
	"github.com/rcrt-io/rcrt/pkg/config"
	"github.com/rcrt-io/rcrt/pkg/directory"
	"github.com/rcrt-io/rcrt/pkg/events"
	"github.com/rcrt-io/rcrt/pkg/search"
	"github.com/rcrt-io/rcrt/pkg/secrets"
	"github.com/rcrt-io/rcrt/pkg/storage"
)

// Server is the HTTP API server wrapping every service the gateway
// dispatches to. Every dependency is mandatory and available at
// construction time, so NewServer takes them all directly.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server

	cfg       *config.Config
	store     *storage.Store
	planner   *search.Planner
	secretsSv *secrets.Service
	directory *directory.Directory
	manager   *events.Manager
	issuer    *auth.Issuer
}

// NewServer constructs a Server and registers every route.
func NewServer(
	cfg *config.Config,
	store *storage.Store,
	planner *search.Planner,
	secretsSv *secrets.Service,
	dir *directory.Directory,
	manager *events.Manager,
	issuer *auth.Issuer,
) *Server {
	e := echo.New()
	s := &Server{
		echo:      e,
		cfg:       cfg,
		store:     store,
		planner:   planner,
		secretsSv: secretsSv,
		directory: dir,
		manager:   manager,
		issuer:    issuer,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.echo.Use(securityHeaders())
	s.echo.Use(middleware.BodyLimit(int(s.cfg.HTTP.MaxPayloadBytes)))

	s.echo.GET("/health", s.healthHandler)
	s.echo.POST("/auth/token", s.mintTokenHandler)

	api := s.echo.Group("")
	api.Use(requireAuth(s.issuer))

	api.POST("/breadcrumbs", s.createBreadcrumbHandler)
	api.GET("/breadcrumbs", s.listBreadcrumbsHandler)
	api.GET("/breadcrumbs/search", s.searchBreadcrumbsHandler)
	api.GET("/breadcrumbs/:id", s.getBreadcrumbHandler)
	api.GET("/breadcrumbs/:id/full", s.getBreadcrumbFullHandler)
	api.GET("/breadcrumbs/:id/history", s.historyBreadcrumbHandler)
	api.PATCH("/breadcrumbs/:id", s.patchBreadcrumbHandler)
	api.DELETE("/breadcrumbs/:id", s.deleteBreadcrumbHandler)
	api.POST("/breadcrumbs/:id/tags/add", s.addTagsHandler)
	api.POST("/breadcrumbs/:id/tags/remove", s.removeTagsHandler)
	api.POST("/breadcrumbs/:id/context/merge", s.mergeContextHandler)
	api.POST("/breadcrumbs/:id/approve", s.approveHandler)
	api.POST("/breadcrumbs/:id/reject", s.rejectHandler)

	api.POST("/secrets", s.createSecretHandler)
	api.GET("/secrets", s.listSecretsHandler)
	api.POST("/secrets/:id/decrypt", s.decryptSecretHandler)
	api.POST("/secrets/:id/rotate", s.rotateSecretHandler)

	api.GET("/events/stream", s.eventsStreamHandler)

	api.POST("/admin/schemas/:name/backfill-keywords", s.backfillKeywordsHandler)

	api.GET("/agents", s.listAgentsHandler)
	api.POST("/agents/:id", s.createAgentHandler)
	api.DELETE("/agents/:id", s.deleteAgentHandler)
	api.GET("/subscriptions", s.listSubscriptionsHandler)
	api.POST("/subscriptions", s.createSubscriptionHandler)
	api.DELETE("/subscriptions/:id", s.deleteSubscriptionHandler)
}

// healthHandler handles GET /health.
func (s *Server) healthHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

// Start starts the HTTP server on addr (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener,
// used by test infrastructure to serve on a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
