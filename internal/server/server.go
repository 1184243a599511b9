package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/alpha216/dwroadmap/internal/utils"
	"github.com/alpha216/dwroadmap/pkg/storage"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	DB       *storage.DB
	Username string
	Password string
}

func New(db *storage.DB, user, pass string) *Server {
	return &Server{
		DB:       db,
		Username: user,
		Password: pass,
	}
}

// Handler returns the routed API. Every route sits behind basic auth when
// credentials are configured.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/stats", s.basicAuth(s.handleStats))
	mux.HandleFunc("GET /api/snapshots", s.basicAuth(s.handleSnapshots))
	mux.HandleFunc("GET /api/snapshot", s.basicAuth(s.handleSnapshot))
	mux.HandleFunc("GET /api/roadmap", s.basicAuth(s.handleRoadmap))
	mux.HandleFunc("GET /api/summary", s.basicAuth(s.handleSummary))
	mux.HandleFunc("GET /api/courses/{code}", s.basicAuth(s.handleCourse))
	return mux
}

// Start listens on addr and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	utils.Log.Infof("Starting server on %s", ln.Addr())
	return s.Serve(ctx, ln)
}

// Serve handles requests on ln. Cancelling ctx stops accepting connections
// and waits up to shutdownTimeout for in-flight requests; that path returns
// nil.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan struct{})
	defer close(done)
	shutdownErr := make(chan error, 1)
	go func() {
		select {
		case <-ctx.Done():
			utils.Log.Info("Shutting down server...")
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			shutdownErr <- srv.Shutdown(sctx)
		case <-done:
			shutdownErr <- nil
		}
	}()

	err := srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return <-shutdownErr
	}
	return err
}

func (s *Server) basicAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Username == "" && s.Password == "" {
			next(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.Username || pass != s.Password {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
