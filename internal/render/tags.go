// internal/render/tags.go
package render

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"pagehtml/internal/page"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	InjectHead        = "head"
	InjectHeadPrepend = "head-prepend"
	InjectBody        = "body"
	InjectBodyPrepend = "body-prepend"
)

var (
	headOpenRE  = regexp.MustCompile(`(?i)<head(\s[^>]*)?>`)
	headCloseRE = regexp.MustCompile(`(?i)</head>`)
	bodyOpenRE  = regexp.MustCompile(`(?i)<body(\s[^>]*)?>`)
	bodyEndRE   = regexp.MustCompile(`(?i)</body>`)
	htmlOpenRE  = regexp.MustCompile(`(?i)<html(\s[^>]*)?>`)
	doctypeRE   = regexp.MustCompile(`(?i)^\s*<!doctype[^>]*>`)
)

// SerializeTag renders a single tag descriptor as HTML.
func SerializeTag(t page.Tag) (string, error) {
	var b strings.Builder
	if err := html.Render(&b, tagNode(t)); err != nil {
		return "", fmt.Errorf("render tag %s: %w", t.Tag, err)
	}
	return b.String(), nil
}

func tagNode(t page.Tag) *html.Node {
	n := &html.Node{Type: html.ElementNode, Data: t.Tag, DataAtom: atom.Lookup([]byte(t.Tag))}
	keys := make([]string, 0, len(t.Attrs))
	for k := range t.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch v := t.Attrs[k].(type) {
		case nil:
		case bool:
			if v {
				n.Attr = append(n.Attr, html.Attribute{Key: k})
			}
		default:
			n.Attr = append(n.Attr, html.Attribute{Key: k, Val: fmt.Sprint(v)})
		}
	}
	if t.Children.Text != "" {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: t.Children.Text})
	}
	for _, c := range t.Children.Tags {
		n.AppendChild(tagNode(c))
	}
	return n
}

// InjectTags splices tags into doc according to their InjectTo position.
// Tags that fail to serialize are skipped and reported in the returned error.
func InjectTags(doc string, tags []page.Tag) (string, error) {
	if len(tags) == 0 {
		return doc, nil
	}
	groups := map[string][]string{}
	var errs []string
	for _, t := range tags {
		s, err := SerializeTag(t)
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		pos := t.InjectTo
		if pos == "" {
			pos = InjectHeadPrepend
		}
		groups[pos] = append(groups[pos], s)
	}

	if g := groups[InjectHeadPrepend]; len(g) > 0 {
		doc = prependTo(doc, headOpenRE, g)
	}
	if g := groups[InjectHead]; len(g) > 0 {
		doc = appendTo(doc, headCloseRE, g, false)
	}
	if g := groups[InjectBodyPrepend]; len(g) > 0 {
		doc = prependTo(doc, bodyOpenRE, g)
	}
	if g := groups[InjectBody]; len(g) > 0 {
		doc = appendTo(doc, bodyEndRE, g, true)
	}

	if len(errs) > 0 {
		return doc, fmt.Errorf("inject tags: %s", strings.Join(errs, "; "))
	}
	return doc, nil
}

// prependTo inserts tags right after the opening tag matched by open. Without
// it the tags go after <html> or the doctype, or at the very start.
func prependTo(doc string, open *regexp.Regexp, tags []string) string {
	block := strings.Join(tags, "\n")
	for _, re := range []*regexp.Regexp{open, htmlOpenRE, doctypeRE} {
		if loc := re.FindStringIndex(doc); loc != nil {
			return doc[:loc[1]] + "\n" + block + doc[loc[1]:]
		}
	}
	return block + "\n" + doc
}

// appendTo inserts tags right before the closing tag matched by close. Without
// it head tags fall back to prepending and body tags to the end of doc.
func appendTo(doc string, close *regexp.Regexp, tags []string, atEnd bool) string {
	block := strings.Join(tags, "\n")
	if loc := close.FindStringIndex(doc); loc != nil {
		return doc[:loc[0]] + block + "\n" + doc[loc[0]:]
	}
	if atEnd {
		return doc + "\n" + block
	}
	return prependTo(doc, headOpenRE, tags)
}
