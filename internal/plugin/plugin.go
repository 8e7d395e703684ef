// internal/plugin/plugin.go
package plugin

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"pagehtml/internal/config"
	"pagehtml/internal/files"
	"pagehtml/internal/logging"
	"pagehtml/internal/minify"
	"pagehtml/internal/page"
	"pagehtml/internal/render"
	"pagehtml/internal/rewrite"
	"pagehtml/internal/util"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

const (
	CommandServe = "serve"
	CommandBuild = "build"
)

// Input is one bundler input: a page key and the HTML file it is built from.
type Input struct {
	Key  string
	Path string
}

// Context is one plugin instance. Everything but the virtual file list is
// resolved in New and read-only afterwards.
type Context struct {
	opts     *config.Options
	command  string
	fs       afero.Fs
	log      logrus.FieldLogger
	pages    *page.Table
	found    map[string]files.Found
	renderer *render.Renderer
	minifier *minify.Minifier
	hook     Hook

	mu      sync.Mutex
	virtual []string
}

// New resolves opts for command. env is merged into the template data.
func New(opts *config.Options, command string, env map[string]any, fs afero.Fs, log logrus.FieldLogger) (*Context, error) {
	if command != CommandServe && command != CommandBuild {
		return nil, fmt.Errorf("unknown command %q", command)
	}
	c := &Context{
		opts:    opts,
		command: command,
		fs:      fs,
		log:     logging.Plugin(log),
		renderer: render.New(render.Options{
			Base:   opts.Base,
			Extend: env,
			Unsafe: opts.Unsafe,
			Logger: log,
		}),
		minifier: minify.New(opts.MinifySetting()),
	}
	if opts.IncludeMode() {
		if err := c.discover(); err != nil {
			return nil, err
		}
	} else {
		c.pages = page.Create(opts.Options, log)
	}
	c.hook = newHook(opts.HostMajor, c.transformHook)
	c.log.Debugf("resolved %d pages for %s", c.pages.Len(), command)
	return c, nil
}

// discover builds the page table from the include globs. Every page shares
// the global defaults and is rendered from its own file.
func (c *Context) discover() error {
	found, err := files.Discover(c.fs, c.opts.Root, c.opts.BaseDir, c.opts.Include)
	if err != nil {
		return err
	}
	global := c.opts.Options
	global.Page = page.Spec{}
	defaults, _ := page.Create(global, c.log).Get(page.DefaultPage)

	c.pages = page.NewTable()
	c.found = make(map[string]files.Found, len(found))
	for _, f := range found {
		item := *defaults
		item.Path = f.Key
		item.Template = f.File
		item.Entry = ""
		c.pages.Set(f.Key, &item)
		c.found[f.Key] = f
	}
	if len(found) == 0 {
		c.log.Warnf("no html files matched %s", strings.Join(c.opts.Include, ", "))
	}
	return nil
}

func (c *Context) Pages() *page.Table {
	return c.pages
}

func (c *Context) Options() *config.Options {
	return c.opts
}

func (c *Context) Command() string {
	return c.command
}

// Hook is the HTML transform hook in the shape the host expects.
func (c *Context) Hook() Hook {
	return c.hook
}

// Input maps page keys to the HTML files the bundler starts from. During a
// build pages read their virtual copy at <root>/<path>.html.
func (c *Context) Input() []Input {
	out := make([]Input, 0, c.pages.Len())
	for _, item := range c.pages.Items() {
		out = append(out, Input{Key: item.Path, Path: c.sourceOf(item)})
	}
	return out
}

func (c *Context) sourceOf(item *page.Item) string {
	if f, ok := c.found[item.Path]; ok {
		return filepath.Join(c.opts.Root, filepath.FromSlash(f.File))
	}
	if c.command == CommandBuild {
		return files.VirtualPath(c.opts.Root, item)
	}
	return filepath.Join(c.opts.Root, filepath.FromSlash(item.Template))
}

// Rewrites compiles the dev server rewrite rules.
func (c *Context) Rewrites() []rewrite.Rule {
	return rewrite.Create(c.pages, rewrite.Context{
		Base:          c.opts.Base,
		ProxyPrefixes: c.opts.ProxyPrefixes(),
	}, rewrite.Options{Whitelist: c.opts.RewriteWhitelist})
}

// Lookup finds the page serving a request URL. Escaped URLs are decoded
// first; a URL that does not decode is used as is.
func (c *Context) Lookup(rawURL string) (*page.Item, bool) {
	p := util.CleanURL(rawURL)
	if decoded, err := url.PathUnescape(p); err == nil {
		p = decoded
	}
	p = util.StripBase(p, c.opts.Base)
	key := util.CleanPageURL(p, nil)
	if key == "" {
		key = page.DefaultPage
	}
	return c.pages.Lookup(key)
}

// TransformHTML renders html as the page serving originalURL and returns the
// tags still to be injected. Unknown URLs are logged and html is returned
// unchanged.
func (c *Context) TransformHTML(html, originalURL string, assets Assets) (string, []page.Tag) {
	item, ok := c.Lookup(originalURL)
	if !ok {
		c.log.Warnf("no page found for %s", originalURL)
		return html, nil
	}
	return c.renderPage(html, item, assets)
}

func (c *Context) renderPage(html string, item *page.Item, assets Assets) (string, []page.Tag) {
	it := *item
	tags := it.Inject.Tags
	if it.Entry != "" {
		if a, ok := assets.lookup(it.Entry); ok {
			it.Entry = a.JS
			if a.CSS != "" {
				tags = append(append([]page.Tag(nil), tags...), stylesheet(a.CSS))
			}
		}
	}
	out := c.renderer.Render(html, &it)
	if c.opts.ReplaceDefineEnabled() {
		out = render.ReplaceDefine(out, c.opts.Define)
	}
	return out, tags
}

func stylesheet(href string) page.Tag {
	return page.Tag{
		Tag:      "link",
		Attrs:    map[string]any{"rel": "stylesheet", "href": href},
		InjectTo: render.InjectHead,
	}
}

// entryKey normalizes an entry module path for asset lookups.
func entryKey(entry string) string {
	return strings.TrimPrefix(path.Clean("/"+filepath.ToSlash(entry)), "/")
}
