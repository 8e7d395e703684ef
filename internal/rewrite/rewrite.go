// internal/rewrite/rewrite.go
package rewrite

import (
	"fmt"
	"regexp"
	"strings"

	"pagehtml/internal/page"
	"pagehtml/internal/util"

	"gopkg.in/yaml.v3"
)

// Rule kinds, used for logging and metrics.
const (
	KindPage      = "page"
	KindIndex     = "index"
	KindInternal  = "internal"
	KindWhitelist = "whitelist"
	KindRoot      = "root"
)

// Request is what a rule resolver sees of an incoming request.
type Request struct {
	// Path is the request path including the query string.
	Path string
	// Pathname is the request path without the query string.
	Pathname string
	// Match holds the submatches of the rule pattern against Pathname.
	Match []string
}

// Rule maps requests matching From to the path returned by To.
type Rule struct {
	From *regexp.Regexp
	To   func(Request) string
	Kind string
}

// Context is the runtime information the resolvers need.
type Context struct {
	// Base is the public base path, "/" when empty.
	Base string
	// ProxyPrefixes are the path prefixes forwarded to a backend. A prefix that
	// starts with "^" is treated as a regular expression.
	ProxyPrefixes []string
}

// Options tune rule compilation.
type Options struct {
	Whitelist []Pattern
}

// Pattern is a whitelist entry. Either Prefix or Regexp is set.
type Pattern struct {
	Prefix string
	Regexp *regexp.Regexp
}

// Prefix exempts every path that starts with p.
func Prefix(p string) Pattern {
	return Pattern{Prefix: p}
}

// Regexp exempts every path matched by re.
func Regexp(re *regexp.Regexp) Pattern {
	return Pattern{Regexp: re}
}

func (p Pattern) compile() *regexp.Regexp {
	if p.Regexp != nil {
		return p.Regexp
	}
	return regexp.MustCompile("^" + regexp.QuoteMeta(p.Prefix))
}

// UnmarshalYAML accepts a plain string (prefix) or {regexp: "..."}.
func (p *Pattern) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		*p = Prefix(n.Value)
		return nil
	}
	var raw struct {
		Prefix string `yaml:"prefix"`
		Regexp string `yaml:"regexp"`
	}
	if err := n.Decode(&raw); err != nil {
		return err
	}
	if raw.Regexp == "" {
		*p = Prefix(raw.Prefix)
		return nil
	}
	re, err := regexp.Compile(raw.Regexp)
	if err != nil {
		return fmt.Errorf("line %d: invalid whitelist pattern: %w", n.Line, err)
	}
	*p = Regexp(re)
	return nil
}

var (
	indexRE    = regexp.MustCompile(`(\S+)(/index/?)$`)
	internalRE = regexp.MustCompile(`^/__\w+/$`)
)

// Create compiles the page table into an ordered rule list. The consumer must
// apply the first matching rule.
func Create(pages *page.Table, ctx Context, opts Options) []Rule {
	base := util.NormalizeBase(ctx.Base)
	proxies := compileProxies(ctx.ProxyPrefixes)

	var rules []Rule
	for _, item := range pages.Items() {
		// `/x`, `/x/`, `/x.html`, `/x/index.html`
		rules = append(rules, pageRule(regexp.QuoteMeta(item.Path)+`((/)|(\.html?)|(/index\.html?))?`, item, base, proxies, KindPage))
		// `/x/index` is also reachable as `/x`
		if indexRE.MatchString(item.Path) {
			prefix := indexRE.ReplaceAllString(item.Path, "$1")
			rules = append(rules, pageRule(regexp.QuoteMeta(prefix)+`(/)?`, item, base, proxies, KindIndex))
		}
	}

	rules = append(rules, Rule{From: internalRE, To: passPathname, Kind: KindInternal})
	for _, w := range opts.Whitelist {
		rules = append(rules, Rule{From: w.compile(), To: passPathname, Kind: KindWhitelist})
	}

	if index, ok := pages.Get(page.DefaultPage); ok {
		rules = append(rules, pageRule("", index, base, proxies, KindRoot))
	} else {
		rules = append(rules, Rule{From: regexp.MustCompile(`^/$`), To: func(Request) string { return "/" }, Kind: KindRoot})
	}
	return rules
}

func pageRule(pattern string, item *page.Item, base string, proxies []proxyMatcher, kind string) Rule {
	template := util.ResolveURL(base, item.Template)
	return Rule{
		From: regexp.MustCompile(`(?i)^/` + pattern + `$`),
		To: func(req Request) string {
			p := util.StripBase(req.Path, base)
			for _, match := range proxies {
				if match(p) {
					return req.Path
				}
			}
			return template
		},
		Kind: kind,
	}
}

func passPathname(req Request) string {
	return req.Pathname
}

type proxyMatcher func(string) bool

func compileProxies(prefixes []string) []proxyMatcher {
	out := make([]proxyMatcher, 0, len(prefixes))
	for _, prefix := range prefixes {
		if strings.HasPrefix(prefix, "^") {
			if re, err := regexp.Compile(prefix); err == nil {
				out = append(out, re.MatchString)
				continue
			}
		}
		prefix := "/" + strings.TrimPrefix(prefix, "/")
		out = append(out, func(p string) bool { return strings.HasPrefix(p, prefix) })
	}
	return out
}
