// internal/util/util.go
package util

import (
	"path"
	"regexp"
	"strings"
)

var (
	queryRE     = regexp.MustCompile(`(?s)\?.*$`)
	hashRE      = regexp.MustCompile(`(?s)#.*$`)
	edgeSlashRE = regexp.MustCompile(`(^/)|(/$)`)

	// HTMLSuffixRE matches a trailing .htm or .html, case-insensitive.
	HTMLSuffixRE = regexp.MustCompile(`(?i)\.htm(l)?$`)
)

// CleanURL removes the query and hash parts of a URL.
// An empty URL is treated as the root path "/".
func CleanURL(url string) string {
	if url == "" {
		return "/"
	}
	return queryRE.ReplaceAllString(hashRE.ReplaceAllString(url, ""), "")
}

// CleanPageURL strips a single leading and trailing "/" from a page path and
// then removes the suffix matched by suffix. A nil suffix means HTMLSuffixRE.
func CleanPageURL(p string, suffix *regexp.Regexp) string {
	if suffix == nil {
		suffix = HTMLSuffixRE
	}
	return suffix.ReplaceAllString(edgeSlashRE.ReplaceAllString(p, ""), "")
}

// PageName turns a page path such as "path/to/page" into "pathToPage".
func PageName(p string) string {
	parts := strings.Split(p, "/")
	if len(parts) == 1 {
		return p
	}
	var b strings.Builder
	for _, part := range parts {
		if part == "" {
			continue
		}
		if b.Len() == 0 {
			b.WriteString(part)
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}

// ResolveURL joins ref onto base the way a bundler resolves public paths:
// absolute refs (leading "/" or a scheme) are returned as-is, relative refs
// are joined under base. The result always starts with "/".
func ResolveURL(base, ref string) string {
	if strings.Contains(ref, "://") || strings.HasPrefix(ref, "//") {
		return ref
	}
	if strings.HasPrefix(ref, "/") {
		return path.Clean(ref)
	}
	if base == "" {
		base = "/"
	}
	return path.Join("/", base, ref)
}

// NormalizeBase makes sure base starts and ends with "/".
func NormalizeBase(base string) string {
	if base == "" || base == "/" || base == "./" {
		return "/"
	}
	if !strings.HasPrefix(base, "/") {
		base = "/" + strings.TrimPrefix(base, "./")
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base
}

// StripBase removes base from the start of p, keeping a leading "/".
func StripBase(p, base string) string {
	if base == "" || base == "/" {
		return p
	}
	if strings.HasPrefix(p, base) {
		return "/" + strings.TrimPrefix(p, base)
	}
	if strings.TrimSuffix(base, "/") == p {
		return "/"
	}
	return p
}
