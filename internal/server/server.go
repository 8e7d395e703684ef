// internal/server/server.go
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"pagehtml/internal/logging"
	"pagehtml/internal/plugin"
	"pagehtml/internal/render"
	"pagehtml/internal/rewrite"
	"pagehtml/internal/util"

	"github.com/fsnotify/fsnotify"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

const debounceDuration = 500 * time.Millisecond

// Server is the dev server of one plugin instance.
type Server struct {
	pc      *plugin.Context
	fs      afero.Fs
	log     logrus.FieldLogger
	hub     *Hub
	bundles *bundleStore
	metrics *metrics
	handler http.Handler
}

// New bundles the page entries once and wires the router. A failing first
// bundle is an error; later failures keep the last good bundle.
func New(pc *plugin.Context, fs afero.Fs, log logrus.FieldLogger) (*Server, error) {
	if log == nil {
		log = logging.Discard()
	}
	s := &Server{
		pc:      pc,
		fs:      fs,
		log:     log,
		hub:     newHub(log),
		bundles: newBundleStore(pc),
		metrics: newMetrics(),
	}
	err := s.bundles.rebuild()
	s.metrics.bundleBuilt(err)
	if err != nil {
		return nil, fmt.Errorf("initial build failed: %w", err)
	}
	if s.handler, err = s.routes(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() (http.Handler, error) {
	cfg := s.pc.Options()
	proxy, err := newProxy(cfg.Server.Proxy, s.log)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)
	r.Use(stripBase(cfg.Base))
	r.Use(proxy)
	r.Use(rewrite.Fallback(rewrite.FallbackOptions{
		Rewrites: s.pc.Rewrites(),
		Logger:   s.log,
		OnRewrite: func(_ *http.Request, rule rewrite.Rule, _ string) {
			s.metrics.rewrites.WithLabelValues(rule.Kind).Inc()
		},
	}))

	r.Get("/ws", s.hub.serveWs)
	r.Handle(MetricsPath, s.metrics.handler())
	r.Handle(BundlePrefix+"*", s.bundles)
	r.Handle("/*", s.pageHandler(liveReloadWrapper(s.staticHandler())))
	return r, nil
}

// stripBase removes the public base from request paths so rewrite rules see
// page paths.
func stripBase(base string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if base == "" || base == "/" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := util.StripBase(r.URL.Path, base)
			if p == r.URL.Path {
				next.ServeHTTP(w, r)
				return
			}
			r2 := r.Clone(r.Context())
			r2.URL.Path = p
			r2.URL.RawPath = ""
			r2.RequestURI = r2.URL.RequestURI()
			next.ServeHTTP(w, r2)
		})
	}
}

// staticHandler serves the public directory on top of the project root.
func (s *Server) staticHandler() http.Handler {
	cfg := s.pc.Options()
	layered := afero.NewReadOnlyFs(afero.NewCopyOnWriteFs(
		afero.NewBasePathFs(s.fs, cfg.Root),
		afero.NewBasePathFs(s.fs, cfg.PublicPath()),
	))
	return http.FileServer(afero.NewHttpFs(layered))
}

// pageHandler transforms HTML files under the root through the plugin hook
// and hands everything else to next.
func (s *Server) pageHandler(next http.Handler) http.Handler {
	cfg := s.pc.Options()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := util.StripBase(r.URL.Path, cfg.Base)
		if strings.HasSuffix(p, "/") {
			p += "index.html"
		}
		if !strings.HasSuffix(p, ".html") {
			next.ServeHTTP(w, r)
			return
		}
		src, err := afero.ReadFile(s.fs, filepath.Join(cfg.Root, filepath.FromSlash(path.Clean(p))))
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		original, ok := rewrite.OriginalURL(r.Context())
		if !ok {
			original = r.URL.RequestURI()
		}
		label := "none"
		if item, ok := s.pc.Lookup(original); ok {
			label = item.Path
		}

		start := time.Now()
		res, err := s.pc.Hook().Func()(string(src), plugin.HookContext{
			OriginalURL: original,
			Assets:      s.bundles.current(),
		})
		if err != nil {
			s.log.WithError(err).Errorf("transform %s", original)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		html, err := render.InjectTags(res.HTML, res.Tags)
		if err != nil {
			s.log.WithField("page", label).Warn(err)
		}
		s.metrics.renders.WithLabelValues(label).Observe(time.Since(start).Seconds())

		html = injectLiveReload(html)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Length", fmt.Sprint(len(html)))
		if r.Method == http.MethodHead {
			return
		}
		io.WriteString(w, html)
	})
}

// Run serves until ctx is done, rebuilding bundles and reloading browsers
// whenever a file under the root changes.
func (s *Server) Run(ctx context.Context, port int) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("could not create file watcher: %w", err)
	}
	defer watcher.Close()
	if err := s.addWatches(watcher); err != nil {
		return err
	}
	go s.watchForChanges(ctx, watcher)

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: s.handler}
	go func() {
		<-ctx.Done()
		s.hub.closeAll()
		srv.Shutdown(context.Background())
	}()

	s.log.Infof("serving on http://localhost:%d%s", port, s.pc.Options().Base)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// addWatches watches every directory under the root except the output
// directory and hidden or dependency directories.
func (s *Server) addWatches(watcher *fsnotify.Watcher) error {
	cfg := s.pc.Options()
	skip := map[string]bool{
		filepath.Clean(cfg.OutPath()): true,
		filepath.Clean(s.bundles.outDir): true,
	}
	watched := make(map[string]bool)
	return filepath.Walk(cfg.Root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		p = filepath.Clean(p)
		name := info.Name()
		if skip[p] || name == "node_modules" || (p != filepath.Clean(cfg.Root) && strings.HasPrefix(name, ".")) {
			return filepath.SkipDir
		}
		if watched[p] {
			return nil
		}
		if err := watcher.Add(p); err != nil {
			s.log.WithError(err).Warnf("could not watch %s", p)
			return nil
		}
		watched[p] = true
		s.log.Debugf("watching %s", p)
		return nil
	})
}

func (s *Server) watchForChanges(ctx context.Context, watcher *fsnotify.Watcher) {
	var lastBuildTime time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			// Create, remove and rename cover editors that save via swap files.
			if !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)) {
				continue
			}
			if time.Since(lastBuildTime) > debounceDuration {
				time.Sleep(100 * time.Millisecond)
				s.onChange(event.Name)
				lastBuildTime = time.Now()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.log.WithError(err).Warn("watcher error")
		}
	}
}

// onChange rebuilds the bundles and tells every browser to reload.
func (s *Server) onChange(name string) {
	s.log.Infof("change detected in %s, rebuilding", name)
	err := s.bundles.rebuild()
	s.metrics.bundleBuilt(err)
	if err != nil {
		s.log.WithError(err).Error("rebuild failed")
		return
	}
	s.hub.broadcastMessage([]byte("reload"))
}

// liveReloadWrapper adds the live-reload client to static HTML responses.
func liveReloadWrapper(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		isHTML := strings.HasSuffix(r.URL.Path, ".html") || strings.HasSuffix(r.URL.Path, "/")
		if !isHTML {
			next.ServeHTTP(w, r)
			return
		}

		iw := newInterceptingWriter(w)
		next.ServeHTTP(iw, r)

		for key, values := range iw.Header() {
			for _, value := range values {
				w.Header().Add(key, value)
			}
		}
		body := iw.body.Bytes()
		if iw.statusCode != http.StatusOK {
			w.WriteHeader(iw.statusCode)
			w.Write(body)
			return
		}

		injected := []byte(injectLiveReload(string(body)))
		w.Header().Set("Content-Length", fmt.Sprint(len(injected)))
		w.WriteHeader(iw.statusCode)
		w.Write(injected)
	})
}

func injectLiveReload(html string) string {
	return strings.Replace(html, "</body>", liveReloadScript+"</body>", 1)
}

type interceptingWriter struct {
	http.ResponseWriter
	body       *bytes.Buffer
	statusCode int
	header     http.Header
}

func newInterceptingWriter(w http.ResponseWriter) *interceptingWriter {
	return &interceptingWriter{
		ResponseWriter: w,
		body:           new(bytes.Buffer),
		header:         make(http.Header),
		statusCode:     http.StatusOK,
	}
}

func (iw *interceptingWriter) Header() http.Header {
	return iw.header
}

func (iw *interceptingWriter) Write(b []byte) (int, error) {
	return iw.body.Write(b)
}

func (iw *interceptingWriter) WriteHeader(statusCode int) {
	iw.statusCode = statusCode
}

const liveReloadScript = `
<script>
  (function() {
    let socket = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
    socket.onmessage = function(event) {
      if (event.data === "reload") {
        window.location.reload();
      }
    };
    socket.onerror = function() {
      console.error("Live reload connection error. Please restart 'pagehtml serve'.");
    };
  })();
</script>
`
