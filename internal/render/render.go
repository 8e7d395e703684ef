// internal/render/render.go
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"regexp"
	"strings"

	"pagehtml/internal/logging"
	"pagehtml/internal/page"
	"pagehtml/internal/util"

	"github.com/sirupsen/logrus"
)

var (
	bodyCloseRE   = regexp.MustCompile(`</body>`)
	scriptBlockRE = regexp.MustCompile(`(?is)<script(\s[^>]*)?>.*?</script>`)
	moduleTypeRE  = regexp.MustCompile(`(?i)\stype=["']module["']`)
	srcAttrRE     = regexp.MustCompile(`(?i)\ssrc=["'][^"']*["']`)
)

// PageData is exposed to templates as .PageHtml.
type PageData struct {
	Title string
	Entry string
	Data  map[string]any
}

// Options configure a Renderer.
type Options struct {
	// Base is the public base path used to resolve page entries.
	Base string
	// Extend is merged into the top level of the template data, e.g. env values.
	Extend map[string]any
	// Unsafe disables sanitizing of the markdown template function.
	Unsafe bool
	Logger logrus.FieldLogger
}

// Renderer renders page templates. It is safe for concurrent use.
type Renderer struct {
	base   string
	extend map[string]any
	funcs  template.FuncMap
	log    logrus.FieldLogger
}

func New(opts Options) *Renderer {
	md := newMarkdown(opts.Unsafe)
	return &Renderer{
		base:   util.NormalizeBase(opts.Base),
		extend: opts.Extend,
		funcs: template.FuncMap{
			"markdown": md.toHTML,
		},
		log: logging.Plugin(opts.Logger),
	}
}

// Render executes src as a template for item. When item has an entry, any
// module script with a src is dropped and a script for the entry is added
// before </body>. Failures are logged and yield "".
func (r *Renderer) Render(src string, item *page.Item) string {
	out, err := r.execute(src, item)
	if err != nil {
		name := ""
		if item != nil {
			name = item.Path
		}
		r.log.WithField("page", name).Errorf("render failed: %v", err)
		return ""
	}
	if item != nil && item.Entry != "" {
		out = RemoveModuleScripts(out)
		out = InjectEntry(out, util.ResolveURL(r.base, item.Entry))
	}
	return out
}

func (r *Renderer) execute(src string, item *page.Item) (string, error) {
	var opts page.TemplateOptions
	data := make(map[string]any, len(r.extend)+1)
	for k, v := range r.extend {
		data[k] = v
	}
	pd := PageData{}
	if item != nil {
		pd = PageData{Title: item.Title, Entry: item.Entry, Data: item.Inject.Data}
		opts = item.TemplateOptions
	}
	data["PageHtml"] = pd

	tmpl := template.New("page").Funcs(r.funcs)
	if left, right := opts.Delims(); left != "" {
		tmpl = tmpl.Delims(left, right)
	}
	if opts.MissingKey != "" {
		tmpl = tmpl.Option("missingkey=" + opts.MissingKey)
	}
	tmpl, err := tmpl.Parse(src)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	return buf.String(), nil
}

// RemoveModuleScripts drops every <script type="module" src="..."> element.
func RemoveModuleScripts(html string) string {
	return scriptBlockRE.ReplaceAllStringFunc(html, func(block string) string {
		open := block[:strings.Index(block, ">")]
		if moduleTypeRE.MatchString(open) && srcAttrRE.MatchString(open) {
			return ""
		}
		return block
	})
}

// InjectEntry adds a module script for src before the first </body>.
func InjectEntry(html, src string) string {
	loc := bodyCloseRE.FindStringIndex(html)
	if loc == nil {
		return html
	}
	tag := fmt.Sprintf(`<script type="module" src="%s"></script>`+"\n", template.HTMLEscapeString(src))
	return html[:loc[0]] + tag + html[loc[0]:]
}
