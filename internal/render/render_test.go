package render

import (
	"strings"
	"testing"

	"pagehtml/internal/page"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pageTemplate = `<!DOCTYPE html>
<html>
<head>
  <title>{{ .PageHtml.Title }}</title>
</head>
<body>
  <h1>{{ .PageHtml.Data.heading }}</h1>
  <p>{{ .APP_NAME }}</p>
  <script type="module" src="/src/old.ts"></script>
  <script type="module">console.log("inline")</script>
  <script src="/legacy.js"></script>
</body>
</html>`

func newRenderer(t *testing.T, base string) (*Renderer, *logtest.Hook) {
	t.Helper()
	log, hook := logtest.NewNullLogger()
	return New(Options{Base: base, Extend: map[string]any{"APP_NAME": "demo"}, Logger: log}), hook
}

func TestRenderInjectsEntry(t *testing.T) {
	r, _ := newRenderer(t, "/")
	item := &page.Item{
		Path:   "index",
		Title:  "Home",
		Entry:  "src/main.ts",
		Inject: page.Inject{Data: map[string]any{"heading": "Welcome"}},
	}
	out := r.Render(pageTemplate, item)

	assert.Contains(t, out, "<title>Home</title>")
	assert.Contains(t, out, "<h1>Welcome</h1>")
	assert.Contains(t, out, "<p>demo</p>")
	assert.NotContains(t, out, "/src/old.ts")
	assert.Contains(t, out, `console.log("inline")`)
	assert.Contains(t, out, `<script src="/legacy.js"></script>`)
	assert.Contains(t, out, "<script type=\"module\" src=\"/src/main.ts\"></script>\n</body>")
	assert.Equal(t, 1, strings.Count(out, `type="module" src=`))
}

func TestRenderResolvesEntryAgainstBase(t *testing.T) {
	r, _ := newRenderer(t, "/app/")
	out := r.Render("<body></body>", &page.Item{Entry: "src/main.ts"})
	assert.Contains(t, out, `src="/app/src/main.ts"`)

	out = r.Render("<body></body>", &page.Item{Entry: "/src/main.ts"})
	assert.Contains(t, out, `src="/src/main.ts"`)
}

func TestRenderWithoutEntryKeepsScripts(t *testing.T) {
	r, _ := newRenderer(t, "/")
	out := r.Render(pageTemplate, &page.Item{Title: "x"})
	assert.Contains(t, out, `src="/src/old.ts"`)
}

func TestRenderFailureReturnsEmpty(t *testing.T) {
	r, hook := newRenderer(t, "/")
	out := r.Render("<p>{{ .PageHtml.Title </p>", &page.Item{Path: "broken"})
	assert.Empty(t, out)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, "broken", hook.LastEntry().Data["page"])
}

func TestRenderMissingKeyError(t *testing.T) {
	r, _ := newRenderer(t, "/")
	item := &page.Item{TemplateOptions: page.TemplateOptions{MissingKey: "error"}}
	assert.Empty(t, r.Render("{{ .nope }}", item))
}

func TestRenderCustomDelimiters(t *testing.T) {
	r, _ := newRenderer(t, "/")
	item := &page.Item{Title: "EJS", TemplateOptions: page.TemplateOptions{Delimiter: "%"}}
	out := r.Render("<title><% .PageHtml.Title %></title>{{ literal }}", item)
	assert.Equal(t, "<title>EJS</title>{{ literal }}", out)
}

func TestRenderMarkdownFunc(t *testing.T) {
	r, _ := newRenderer(t, "/")
	item := &page.Item{Inject: page.Inject{Data: map[string]any{
		"intro": "# Hi\n\nSee [guide](guide.md).\n\n<script>alert(1)</script>",
	}}}
	out := r.Render(`<main>{{ markdown .PageHtml.Data.intro }}</main>`, item)
	assert.Contains(t, out, `<h1 id="hi">Hi</h1>`)
	assert.Contains(t, out, `href="guide.html"`)
	assert.NotContains(t, out, "alert(1)")
}

func TestRemoveModuleScripts(t *testing.T) {
	in := `<script type='module' src='/a.ts'></script><SCRIPT src="/b.ts" type="module"></SCRIPT><script type="module">x()</script>`
	assert.Equal(t, `<script type="module">x()</script>`, RemoveModuleScripts(in))
}

func TestInjectEntryWithoutBody(t *testing.T) {
	assert.Equal(t, "<div></div>", InjectEntry("<div></div>", "/main.js"))
}

func TestInjectTags(t *testing.T) {
	doc := "<html><head><title>t</title></head><body><p>x</p></body></html>"
	out, err := InjectTags(doc, []page.Tag{
		{Tag: "meta", Attrs: map[string]any{"name": "robots", "content": "noindex"}},
		{Tag: "link", Attrs: map[string]any{"rel": "icon", "href": "/favicon.ico"}, InjectTo: InjectHead},
		{Tag: "div", Attrs: map[string]any{"id": "top"}, InjectTo: InjectBodyPrepend},
		{Tag: "script", Attrs: map[string]any{"defer": true, "async": false}, Children: page.Children{Text: "if (a < b) go()"}, InjectTo: InjectBody},
	})
	require.NoError(t, err)

	assert.Contains(t, out, "<head>\n"+`<meta content="noindex" name="robots"/>`+"<title>")
	assert.Contains(t, out, `<link href="/favicon.ico" rel="icon"/>`+"\n</head>")
	assert.Contains(t, out, "<body>\n"+`<div id="top"></div>`+"<p>")
	assert.Contains(t, out, `<script defer="">if (a < b) go()</script>`+"\n</body>")
	assert.NotContains(t, out, "async")
}

func TestInjectTagsNested(t *testing.T) {
	s, err := SerializeTag(page.Tag{
		Tag: "noscript",
		Children: page.Children{Tags: []page.Tag{
			{Tag: "p", Children: page.Children{Text: "enable <js>"}},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, "<noscript><p>enable &lt;js&gt;</p></noscript>", s)
}

func TestInjectTagsWithoutDocumentTags(t *testing.T) {
	out, err := InjectTags("<p>fragment</p>", []page.Tag{
		{Tag: "meta", Attrs: map[string]any{"charset": "utf-8"}},
		{Tag: "span", InjectTo: InjectBody},
	})
	require.NoError(t, err)
	assert.Equal(t, "<meta charset=\"utf-8\"/>\n<p>fragment</p>\n<span></span>", out)
}

func TestReplaceDefine(t *testing.T) {
	doc := `<p>__APP_VERSION__ / __APP_VERSION_NAME__ / __MODE__ / __MODE__</p>`
	out := ReplaceDefine(doc, map[string]string{
		"__APP_VERSION__":      "1.2.0",
		"__APP_VERSION_NAME__": `"aurora"`,
		"__MODE__":             `"production"`,
	})
	assert.Equal(t, `<p>1.2.0 / aurora / production / production</p>`, out)
	assert.Equal(t, doc, ReplaceDefine(doc, nil))
}
