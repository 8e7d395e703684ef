package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pagehtml/internal/config"
	"pagehtml/internal/plugin"

	"github.com/gorilla/websocket"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const indexTemplate = `<!DOCTYPE html>
<html>
<head><title>{{ .PageHtml.Title }}</title></head>
<body><div id="app"></div><script type="module" src="/src/main.ts"></script></body>
</html>
`

func newTestServer(t *testing.T) *Server {
	t.Helper()
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "pong "+r.URL.Path)
	}))
	t.Cleanup(backend.Close)

	root := t.TempDir()
	files := map[string]string{
		"index.html":        indexTemplate,
		"src/main.ts":       "console.log('main')\n",
		"src/user.ts":       "console.log('user')\n",
		"public/robots.txt": "User-agent: *\n",
	}
	for p, content := range files {
		full := filepath.Join(root, filepath.FromSlash(p))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0644))
	}

	yml := `
page:
  index: src/main.ts
  user/profile:
    entry: src/user.ts
    title: Profile
inject:
  tags:
    - tag: meta
      attrs: {name: description, content: demo}
server:
  proxy:
    /api: ` + backend.URL + "\n"
	opts, err := config.Parse([]byte(yml))
	require.NoError(t, err)
	opts.ApplyDefaults(root)

	fs := afero.NewOsFs()
	pc, err := plugin.New(opts, plugin.CommandServe, nil, fs, nil)
	require.NoError(t, err)
	s, err := New(pc, fs, nil)
	require.NoError(t, err)
	return s
}

func get(t *testing.T, h http.Handler, method, target string, html bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if html {
		req.Header.Set("Accept", "text/html,application/xhtml+xml,*/*;q=0.8")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServePages(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	rec := get(t, h, http.MethodGet, "/user/profile", true)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<title>Profile</title>")
	assert.Contains(t, body, `<script type="module" src="/@bundle/assets/userProfile.js"></script>`)
	assert.NotContains(t, body, "/src/main.ts")
	assert.Contains(t, body, `<meta content="demo" name="description"/>`)
	assert.Contains(t, body, `+ "/ws"`)
	assert.Contains(t, rec.Header().Get("Cache-Control"), "no-cache")

	rec = get(t, h, http.MethodGet, "/", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<title>Vite App</title>")
	assert.Contains(t, rec.Body.String(), `src="/@bundle/assets/index.js"`)

	rec = get(t, h, http.MethodGet, "/user/profile/", true)
	assert.Contains(t, rec.Body.String(), "<title>Profile</title>")
}

func TestServeBundlesAndStatic(t *testing.T) {
	h := newTestServer(t).Handler()

	rec := get(t, h, http.MethodGet, "/@bundle/assets/userProfile.js", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `console.log("user")`)
	assert.Contains(t, rec.Header().Get("Content-Type"), "javascript")

	rec = get(t, h, http.MethodGet, "/@bundle/nope.js", false)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(t, h, http.MethodGet, "/robots.txt", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "User-agent: *\n", rec.Body.String())
}

func TestServeProxyBeforeFallback(t *testing.T) {
	h := newTestServer(t).Handler()
	rec := get(t, h, http.MethodGet, "/api/ping", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong /api/ping", rec.Body.String())
}

func TestServeOnlyRewritesNavigations(t *testing.T) {
	h := newTestServer(t).Handler()
	assert.Equal(t, http.StatusNotFound, get(t, h, http.MethodPost, "/user/profile", true).Code)
	assert.Equal(t, http.StatusNotFound, get(t, h, http.MethodGet, "/user/profile", false).Code)
}

func TestServeMetrics(t *testing.T) {
	h := newTestServer(t).Handler()
	get(t, h, http.MethodGet, "/user/profile", true)
	get(t, h, http.MethodGet, "/", true)

	rec := get(t, h, http.MethodGet, MetricsPath, true)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `pagehtml_rewrites_total{kind="page"} 1`)
	assert.Contains(t, body, `pagehtml_rewrites_total{kind="root"} 1`)
	assert.Contains(t, body, `pagehtml_bundle_builds_total{result="ok"} 1`)
	assert.Contains(t, body, `pagehtml_render_duration_seconds_count{page="user/profile"} 1`)
}

func TestLiveReload(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return s.hub.clientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	s.onChange("src/main.ts")
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "reload", string(msg))
}

func TestLiveReloadWrapper(t *testing.T) {
	static := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html><body>static</body></html>")
	})
	rec := get(t, liveReloadWrapper(static), http.MethodGet, "/about.html", false)
	assert.Contains(t, rec.Body.String(), liveReloadScript+"</body>")

	rec = get(t, liveReloadWrapper(static), http.MethodGet, "/data.json", false)
	assert.NotContains(t, rec.Body.String(), "WebSocket")
}

func TestStripBase(t *testing.T) {
	var seen string
	h := stripBase("/app/")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.URL.Path
	}))
	get(t, h, http.MethodGet, "/app/user/profile", false)
	assert.Equal(t, "/user/profile", seen)
	get(t, h, http.MethodGet, "/other", false)
	assert.Equal(t, "/other", seen)
}
