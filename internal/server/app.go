package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/catx/internal/auth"
	"github.com/desertthunder/catx/internal/shared"
)

const shutdownTimeout = 5 * time.Second

// SessionManager is satisfied by [auth.Manager].
type SessionManager interface {
	Sessions
	auth.SessionChecker
}

type Opts struct {
	Addr     string
	Sessions SessionManager
	Albums   AlbumLister
	Logger   *log.Logger // defaults to [shared.NewLogger]
}

// Server is the local companion HTTP service.
type Server struct {
	addr   string
	router *BasicRouter
	logger *log.Logger
}

// New wires the routes:
//
//	POST /login    start a session (returnUrl honoured in the response)
//	POST /logout   end the session
//	GET  /session  session status
//	GET  /albums   one page of albums; requires a session
//	GET  /login    login instructions; redirects home when a session exists
func New(opts Opts) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	logger = shared.WithLogger(logger, "component", "server")

	guard := auth.NewGuard(opts.Sessions)
	router := NewBasicRouter()
	router.Use(RequestID(), Logging(logger))

	router.Handler(NewSessionHandler(opts.Sessions))
	router.Handle(http.MethodGet, auth.HomeRoute, AlbumsHandler(opts.Albums), RequireAuth(guard))
	router.Handle(http.MethodGet, auth.LoginRoute, LoginPage(), LoginOnly(guard))

	return &Server{addr: opts.Addr, router: router, logger: logger}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx ends, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is [Server.ListenAndServe] on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errs := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", ln.Addr().String())
		errs <- srv.Serve(ln)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	if err := <-errs; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("stopped")
	return nil
}
