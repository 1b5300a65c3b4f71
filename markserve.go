// Package markserve serves a directory of markdown pages as HTML, with a
// directory of static assets alongside it.
package markserve

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/livebud/mux"
	"github.com/matthewmueller/markserve/internal/content"
	"github.com/matthewmueller/markserve/internal/markdown"
	"github.com/matthewmueller/markserve/internal/page"
	"github.com/matthewmueller/markserve/livereload"
	"github.com/matthewmueller/socket"
)

const (
	homePage   = "index"
	homeTitle  = "Home"
	staticPath = "/static/"
	notFound   = "Not Found"
)

// New server from the config. Close the server to release the content and
// static directories.
func New(log *slog.Logger, config *Config) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	layout, err := page.Load(config.Template)
	if err != nil {
		return nil, err
	}
	md := markdown.New(config.UnsafeHTML)
	missing, err := md.Render([]byte(notFound))
	if err != nil {
		return nil, err
	}
	contentRoot, err := os.OpenRoot(config.Content)
	if err != nil {
		return nil, fmt.Errorf("markserve: unable to open content directory: %w", err)
	}
	staticRoot, err := os.OpenRoot(config.Static)
	if err != nil {
		contentRoot.Close()
		return nil, fmt.Errorf("markserve: unable to open static directory: %w", err)
	}
	s := &Server{
		config:   config,
		log:      log,
		layout:   layout,
		resolver: content.New(contentRoot.FS(), config.Extension, md),
		static:   staticRoot.FS(),
		missing:  template.HTML(missing),
		roots:    []*os.Root{contentRoot, staticRoot},
	}
	router := mux.New()
	if err := router.Get("/", s.home); err != nil {
		s.Close()
		return nil, err
	}
	if err := router.Get(staticPath+"{path*}", s.asset); err != nil {
		s.Close()
		return nil, err
	}
	if err := router.Get("/{page*}", s.page); err != nil {
		s.Close()
		return nil, err
	}
	handler := router.Middleware(http.HandlerFunc(s.notFound))
	if config.Live {
		s.reloader = livereload.New(log)
		handler = s.reloader.Middleware(handler)
	}
	s.handler = accessLog(log, s.methods(handler))
	return s, nil
}

// Server maps request paths onto markdown pages, static assets or the
// not-found page
type Server struct {
	config   *Config
	log      *slog.Logger
	layout   *page.Renderer
	resolver *content.Resolver
	static   fs.FS
	missing  template.HTML
	reloader *livereload.Reloader
	handler  http.Handler
	roots    []*os.Root
}

var _ http.Handler = (*Server)(nil)

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe until the context is cancelled
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.log.Info("markserve: listening", "address", "http://"+s.config.Address)
	return socket.ListenAndServe(ctx, s.config.Address, s)
}

// Watch the content, static and layout files, reloading connected browsers
// on change. Blocks until the context is cancelled. Without live reload this
// returns immediately.
func (s *Server) Watch(ctx context.Context) error {
	if s.reloader == nil {
		return nil
	}
	dirs := []string{s.config.Content, s.config.Static}
	if s.config.Template != "" {
		dirs = append(dirs, filepath.Dir(s.config.Template))
	}
	return s.reloader.Watch(ctx, dirs...)
}

// Close the content and static directories
func (s *Server) Close() (err error) {
	for _, root := range s.roots {
		err = errors.Join(err, root.Close())
	}
	return err
}

// methods only lets reads through. HEAD is answered as a GET, net/http drops
// the body.
func (s *Server) methods(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			next.ServeHTTP(w, r)
		case http.MethodHead:
			r = r.Clone(r.Context())
			r.Method = http.MethodGet
			next.ServeHTTP(w, r)
		default:
			s.notFound(w, r)
		}
	})
}

func (s *Server) home(w http.ResponseWriter, r *http.Request) {
	view := &page.View{Title: homeTitle, Body: s.resolve(homePage)}
	s.render(w, http.StatusOK, view)
}

// page renders the named markdown page. Missing pages render the not-found
// body with a 200.
func (s *Server) page(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, staticPath) {
		s.asset(w, r)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/")
	if name == "" {
		s.home(w, r)
		return
	}
	view := &page.View{Body: s.missing}
	if p, err := s.resolver.Resolve(name); err == nil {
		view.Title = p.Title
		view.Body = template.HTML(p.HTML)
	} else {
		s.log.Debug("markserve: page not found", "page", name, "error", err)
	}
	s.render(w, http.StatusOK, view)
}

func (s *Server) resolve(name string) template.HTML {
	p, err := s.resolver.Resolve(name)
	if err != nil {
		s.log.Debug("markserve: page not found", "page", name, "error", err)
		return s.missing
	}
	return template.HTML(p.HTML)
}

func (s *Server) asset(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, staticPath)
	if !fs.ValidPath(name) || name == "." {
		s.notFound(w, r)
		return
	}
	file, err := s.static.Open(name)
	if err != nil {
		s.notFound(w, r)
		return
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil || info.IsDir() {
		s.notFound(w, r)
		return
	}
	// ServeFileFS redirects */index.html, so serve the content directly
	content, ok := file.(io.ReadSeeker)
	if !ok {
		s.notFound(w, r)
		return
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), content)
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusNotFound, &page.View{Title: "404", Body: s.missing})
}

// render the view in the layout. Rendering failures become a plain-text 500.
func (s *Server) render(w http.ResponseWriter, status int, view *page.View) {
	html, err := s.layout.Render(view)
	if err != nil {
		s.log.Error("markserve: unable to render page", "title", view.Title, "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintf(w, "Failed to render template. Error: %s", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(html)
}
