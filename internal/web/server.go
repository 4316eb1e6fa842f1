// Package web serves the cafeteira status page: an HTML view, the JSON
// status document and a plain-text mirror of the panel.
package web

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/cafeteira/internal/display"
	"github.com/sweeney/cafeteira/internal/status"
)

// Source supplies the status shown on every request.
type Source interface {
	Snapshot() status.Snapshot
}

// Server serves status views over HTTP.
type Server struct {
	source Source
	http   *http.Server
}

// New creates a Server for addr. Nothing listens until ListenAndServe or
// Serve.
func New(addr string, source Source) *Server {
	s := &Server{source: source}
	s.http = &http.Server{Addr: addr, Handler: s.Handler()}
	return s
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	for path, view := range s.routes() {
		mux.HandleFunc(path, s.serve(path, view))
	}
	return mux
}

// view writes one representation of a snapshot.
type view struct {
	contentType string
	write       func(w http.ResponseWriter, snap status.Snapshot) error
}

func (s *Server) routes() map[string]view {
	page := view{"text/html; charset=utf-8", func(w http.ResponseWriter, snap status.Snapshot) error {
		return renderHTML(w, snap)
	}}
	return map[string]view{
		"/":           page,
		"/index.html": page,
		"/index.json": {"application/json", func(w http.ResponseWriter, snap status.Snapshot) error {
			_, err := w.Write(status.FormatJSON(snap))
			return err
		}},
		"/display.txt": {"text/plain; charset=utf-8", func(w http.ResponseWriter, snap status.Snapshot) error {
			l := display.FormatLines(snap.Device)
			_, err := w.Write([]byte(strings.Join(l[:], "\n") + "\n"))
			return err
		}},
	}
}

// serve binds a view to its exact path; "/" would otherwise match
// everything.
func (s *Server) serve(path string, v view) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != path {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", v.contentType)
		if err := v.write(w, s.source.Snapshot()); err != nil {
			logrus.Warnf("web: serve %s: %v", path, err)
		}
	}
}

// ListenAndServe blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.http.ListenAndServe()
}

// Serve accepts connections on ln.
func (s *Server) Serve(ln net.Listener) error {
	return s.http.Serve(ln)
}

// Shutdown stops the server, waiting for in-flight requests until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
