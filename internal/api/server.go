package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP server for budgetd. It binds the chi router to the
// configured address and provides graceful shutdown support.
type Server struct {
	router  chi.Router
	handler *BudgetHandler
	addr    string
	httpSrv *http.Server
}

// NewServer creates a new Server with the given BudgetHandler, listen
// address, and HTTP timeout durations. Zero-value timeouts leave the
// corresponding http.Server field at its default (no timeout).
func NewServer(handler *BudgetHandler, addr string, readTimeout, writeTimeout, idleTimeout time.Duration) *Server {
	r := chi.NewRouter()

	// Standard chi middleware.
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/health", handler.HandleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/ok", handler.HandleOK)

		r.Route("/project/budget", func(r chi.Router) {
			r.Post("/currency", handler.HandleListWithCurrency)
			r.Post("/", handler.HandleCreate)
			r.Get("/{id}", handler.HandleGet)
			r.Put("/{id}", handler.HandleUpdate)
			r.Delete("/{id}", handler.HandleDelete)
		})
	})

	// Not-found conditions carry no body.
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	srv := &Server{
		router:  r,
		handler: handler,
		addr:    addr,
	}

	srv.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	return srv
}

// Router returns the underlying chi.Router, useful for testing or
// additional route mounting by the caller.
func (s *Server) Router() chi.Router {
	return s.router
}

// Start begins listening for HTTP connections on the configured address.
// It blocks until the server is shut down or encounters a fatal error.
func (s *Server) Start() error {
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully stops the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}
