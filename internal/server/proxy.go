// internal/server/proxy.go
package server

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

type proxyRoute struct {
	key   string
	match func(string) bool
	proxy *httputil.ReverseProxy
}

// newProxy forwards requests whose path starts with a configured key to its
// target. Keys starting with "^" are regular expressions. Longer keys win.
func newProxy(routes map[string]string, log logrus.FieldLogger) (func(http.Handler) http.Handler, error) {
	keys := make([]string, 0, len(routes))
	for k := range routes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	var table []proxyRoute
	for _, k := range keys {
		target, err := url.Parse(routes[k])
		if err != nil || target.Host == "" {
			return nil, fmt.Errorf("invalid proxy target %q for %s", routes[k], k)
		}
		rt := proxyRoute{key: k, proxy: httputil.NewSingleHostReverseProxy(target)}
		if strings.HasPrefix(k, "^") {
			re, err := regexp.Compile(k)
			if err != nil {
				return nil, fmt.Errorf("invalid proxy pattern %s: %w", k, err)
			}
			rt.match = re.MatchString
		} else {
			prefix := "/" + strings.TrimPrefix(k, "/")
			rt.match = func(p string) bool { return strings.HasPrefix(p, prefix) }
		}
		key := k
		rt.proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
			log.WithError(err).Errorf("proxy %s: %s", key, r.URL.Path)
			w.WriteHeader(http.StatusBadGateway)
		}
		table = append(table, rt)
	}

	return func(next http.Handler) http.Handler {
		if len(table) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, rt := range table {
				if rt.match(r.URL.Path) {
					rt.proxy.ServeHTTP(w, r)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}, nil
}
