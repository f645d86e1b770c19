// Package api is a thin HTTP layer for manual job triggers, health
// checks, and the verifyInvoice query, on top of the recurring
// scheduler. It uses the go-pkgz/rest + routegroup middleware stack and
// a swaggo handler mount for the upload/batch/submit/verify route
// groups this pipeline needs.
package api

import (
	"fmt"
	"net/http"
	"time"

	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/routegroup"

	"github.com/andrey/invoice-pipeline/internal/api/handlers"
	"github.com/andrey/invoice-pipeline/internal/api/middleware"
	"github.com/andrey/invoice-pipeline/internal/pipeline"
)

// Config holds the address the server binds to.
type Config struct {
	Host string
	Port int
}

// Server is the HTTP control surface.
type Server struct {
	kernel      *pipeline.Kernel
	logger      lgr.L
	cfg         Config
	healthCheck func() error
}

// NewServer builds a Server over a wired pipeline Kernel. healthCheck, if
// non-nil, backs the /health endpoint (typically the store's db ping).
func NewServer(kernel *pipeline.Kernel, logger lgr.L, cfg Config, healthCheck func() error) *Server {
	return &Server{kernel: kernel, logger: logger, cfg: cfg, healthCheck: healthCheck}
}

// SetupRoutes configures all HTTP routes and middleware.
func (s *Server) SetupRoutes() http.Handler {
	healthHandler := handlers.NewHealthHandler(s.logger, s.healthCheck)
	jobsHandler := handlers.NewJobsHandler(s.kernel, s.logger)
	verifyHandler := handlers.NewVerifyHandler(s.kernel, s.logger)

	router := routegroup.New(http.NewServeMux())

	router.Use(rest.RealIP)
	router.Use(rest.Trace)
	router.Use(rest.SizeLimit(1024 * 1024))
	router.Use(middleware.Logging(s.logger))
	router.Use(middleware.Recovery(s.logger))
	router.Use(rest.AppInfo("invoice-pipeline", "andrey", "1.0.0"))
	router.Use(rest.Ping)

	router.HandleFunc("GET /health", healthHandler.HandleHealth)
	router.HandleFunc("GET /swagger/*", httpSwagger.Handler())

	router.Group().Mount("/api").Route(func(apiRouter *routegroup.Bundle) {
		apiRouter.Group().Mount("/jobs").Route(func(jobRouter *routegroup.Bundle) {
			jobRouter.HandleFunc("POST /upload", jobsHandler.HandleTriggerUpload)
			jobRouter.HandleFunc("POST /create-batch", jobsHandler.HandleTriggerBatch)
			jobRouter.HandleFunc("POST /submit", jobsHandler.HandleTriggerSubmit)
			jobRouter.HandleFunc("POST /sweep", jobsHandler.HandleTriggerSweep)
		})

		apiRouter.Group().Mount("/invoices").Route(func(invoiceRouter *routegroup.Bundle) {
			invoiceRouter.HandleFunc("GET /{id}/verify", verifyHandler.HandleVerifyInvoice)
		})
	})

	return router
}

// Start starts the HTTP server with request timeouts, blocking until it
// stops or fails.
func (s *Server) Start() error {
	handler := s.SetupRoutes()
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.logger.Logf("INFO starting server on %s", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return server.ListenAndServe()
}
