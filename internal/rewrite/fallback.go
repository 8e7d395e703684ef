// internal/rewrite/fallback.go
package rewrite

import (
	"context"
	"net/http"
	"strings"

	"pagehtml/internal/logging"

	"github.com/sirupsen/logrus"
)

// DefaultHTMLAcceptHeaders are the Accept values that mark a request as a
// page navigation.
var DefaultHTMLAcceptHeaders = []string{"text/html", "application/xhtml+xml"}

// FallbackOptions configure the history fallback middleware.
type FallbackOptions struct {
	Rewrites          []Rule
	HTMLAcceptHeaders []string
	// Index is the target for navigations no rule matched. Default "/index.html".
	Index string
	// DisableDotRule rewrites paths whose last segment contains a dot too.
	DisableDotRule bool
	// OnRewrite is called for every request a rule rewrote.
	OnRewrite func(r *http.Request, rule Rule, target string)
	Logger    logrus.FieldLogger
}

type originalURLKey struct{}

// OriginalURL returns the request URI as it was before the fallback
// rewrote it. ok is false when the request was not rewritten.
func OriginalURL(ctx context.Context) (string, bool) {
	u, ok := ctx.Value(originalURLKey{}).(string)
	return u, ok
}

// WithOriginalURL records uri as the pre-rewrite URL of a request context.
func WithOriginalURL(ctx context.Context, uri string) context.Context {
	return context.WithValue(ctx, originalURLKey{}, uri)
}

// Fallback returns a middleware that rewrites page navigations to their
// template using the first matching rule.
func Fallback(opts FallbackOptions) func(http.Handler) http.Handler {
	accept := opts.HTMLAcceptHeaders
	if len(accept) == 0 {
		accept = DefaultHTMLAcceptHeaders
	}
	index := opts.Index
	if index == "" {
		index = "/index.html"
	}
	log := logging.Plugin(opts.Logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				log.Debugf("not rewriting %s %s: method is not GET or HEAD", r.Method, r.URL.Path)
				next.ServeHTTP(w, r)
				return
			}
			if !acceptsHTML(r.Header.Get("Accept"), accept) {
				log.Debugf("not rewriting %s %s: client does not accept HTML", r.Method, r.URL.Path)
				next.ServeHTTP(w, r)
				return
			}

			pathname := r.URL.Path
			req := Request{Path: r.URL.RequestURI(), Pathname: pathname}
			for _, rule := range opts.Rewrites {
				m := rule.From.FindStringSubmatch(pathname)
				if m == nil {
					continue
				}
				req.Match = m
				target := rule.To(req)
				if !strings.HasPrefix(target, "/") {
					log.Warnf("rewrite target %q for %s should be an absolute path", target, pathname)
				}
				log.Debugf("rewriting %s %s to %s", r.Method, r.URL.Path, target)
				if opts.OnRewrite != nil {
					opts.OnRewrite(r, rule, target)
				}
				next.ServeHTTP(w, rewriteTo(r, target))
				return
			}

			if !opts.DisableDotRule && strings.LastIndex(pathname, ".") > strings.LastIndex(pathname, "/") {
				log.Debugf("not rewriting %s %s: path includes a dot", r.Method, r.URL.Path)
				next.ServeHTTP(w, r)
				return
			}

			log.Debugf("rewriting %s %s to %s", r.Method, r.URL.Path, index)
			next.ServeHTTP(w, rewriteTo(r, index))
		})
	}
}

func acceptsHTML(header string, accept []string) bool {
	if header == "" {
		return false
	}
	for _, a := range accept {
		if strings.Contains(header, a) {
			return true
		}
	}
	return false
}

func rewriteTo(r *http.Request, target string) *http.Request {
	ctx := r.Context()
	if _, ok := OriginalURL(ctx); !ok {
		ctx = WithOriginalURL(ctx, r.URL.RequestURI())
	}
	r2 := r.Clone(ctx)
	p, q, _ := strings.Cut(target, "?")
	r2.URL.Path = p
	r2.URL.RawPath = ""
	r2.URL.RawQuery = q
	r2.RequestURI = r2.URL.RequestURI()
	return r2
}
