// internal/render/markdown.go
package render

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// markdown backs the "markdown" template function, so inject.data can carry
// markdown snippets that end up as HTML in the page.
type markdown struct {
	md        goldmark.Markdown
	sanitizer *bluemonday.Policy
}

func newMarkdown(unsafe bool) *markdown {
	m := &markdown{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM, extension.Footnote),
			goldmark.WithParserOptions(
				parser.WithAutoHeadingID(),
				parser.WithASTTransformers(
					util.Prioritized(&mdLinkTransformer{}, 100),
				),
			),
			goldmark.WithRendererOptions(html.WithUnsafe()),
		),
	}
	if !unsafe {
		m.sanitizer = bluemonday.UGCPolicy()
	}
	return m
}

func (m *markdown) toHTML(v any) (template.HTML, error) {
	var src string
	switch s := v.(type) {
	case nil:
		return "", nil
	case string:
		src = s
	case template.HTML:
		src = string(s)
	default:
		src = fmt.Sprint(s)
	}

	var buf bytes.Buffer
	if err := m.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("markdown: %w", err)
	}
	if m.sanitizer != nil {
		return template.HTML(m.sanitizer.SanitizeBytes(buf.Bytes())), nil
	}
	return template.HTML(buf.String()), nil
}

// mdLinkTransformer rewrites links to .md files so they point at the .html
// page of the same name.
type mdLinkTransformer struct{}

func (t *mdLinkTransformer) Transform(node *ast.Document, reader text.Reader, pc parser.Context) {
	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		link, ok := n.(*ast.Link)
		if !ok {
			return ast.WalkContinue, nil
		}
		if bytes.HasSuffix(link.Destination, []byte(".md")) {
			dest := bytes.TrimSuffix(link.Destination, []byte(".md"))
			link.Destination = append(append([]byte(nil), dest...), ".html"...)
		}
		return ast.WalkContinue, nil
	})
}
