// internal/minify/minify.go
package minify

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	nethtml "golang.org/x/net/html"
	"gopkg.in/yaml.v3"
)

const (
	htmlType = "text/html"
	cssType  = "text/css"
)

var doctypeRE = regexp.MustCompile(`(?i)^\s*<!doctype[^>]*>`)

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// Options mirror the recognized html-minifier switches. A nil field means
// the default, which is true for all of them.
type Options struct {
	CollapseWhitespace            *bool `yaml:"collapseWhitespace"`
	KeepClosingSlash              *bool `yaml:"keepClosingSlash"`
	RemoveComments                *bool `yaml:"removeComments"`
	RemoveRedundantAttributes     *bool `yaml:"removeRedundantAttributes"`
	RemoveScriptTypeAttributes    *bool `yaml:"removeScriptTypeAttributes"`
	RemoveStyleLinkTypeAttributes *bool `yaml:"removeStyleLinkTypeAttributes"`
	UseShortDoctype               *bool `yaml:"useShortDoctype"`
	MinifyCSS                     *bool `yaml:"minifyCSS"`
}

func on(b *bool) bool {
	return b == nil || *b
}

// Setting is the "minify" option: false, true, or a set of options.
type Setting struct {
	Enabled bool
	Options Options
}

// Enabled returns a Setting with all defaults switched on.
func Enabled() Setting {
	return Setting{Enabled: true}
}

func (s *Setting) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		var b bool
		if err := n.Decode(&b); err != nil {
			return fmt.Errorf("line %d: minify must be a boolean or a mapping", n.Line)
		}
		*s = Setting{Enabled: b}
		return nil
	}
	var opts Options
	if err := n.Decode(&opts); err != nil {
		return err
	}
	*s = Setting{Enabled: true, Options: opts}
	return nil
}

// Minifier minifies HTML documents. The zero value is not usable; use New.
type Minifier struct {
	enabled bool
	opts    Options
	m       *minify.M
}

func New(s Setting) *Minifier {
	mz := &Minifier{enabled: s.Enabled, opts: s.Options}
	if !s.Enabled {
		return mz
	}
	o := s.Options
	mz.m = minify.New()
	mz.m.Add(htmlType, &html.Minifier{
		KeepWhitespace: !on(o.CollapseWhitespace),
		KeepComments:   !on(o.RemoveComments),
		// tdewolff drops default type attributes together with other
		// redundant attribute values, so any of the three switches keeps them.
		KeepDefaultAttrVals: !on(o.RemoveRedundantAttributes) ||
			!on(o.RemoveScriptTypeAttributes) ||
			!on(o.RemoveStyleLinkTypeAttributes),
		KeepDocumentTags: true,
		KeepEndTags:      true,
		KeepQuotes:       true,
	})
	if on(o.MinifyCSS) {
		mz.m.AddFunc(cssType, css.Minify)
	}
	return mz
}

// Enabled reports whether HTML is actually minified.
func (mz *Minifier) Enabled() bool {
	return mz.enabled
}

// HTML minifies doc. A disabled Minifier returns doc unchanged.
func (mz *Minifier) HTML(doc string) (string, error) {
	if !mz.enabled {
		return doc, nil
	}
	out, err := mz.m.String(htmlType, doc)
	if err != nil {
		return "", fmt.Errorf("minify html: %w", err)
	}
	if on(mz.opts.KeepClosingSlash) {
		if out, err = closeVoidElements(out); err != nil {
			return "", fmt.Errorf("minify html: %w", err)
		}
	}
	if !on(mz.opts.UseShortDoctype) {
		if orig := doctypeRE.FindString(doc); orig != "" {
			out = doctypeRE.ReplaceAllLiteralString(out, strings.TrimSpace(orig))
		}
	}
	return out, nil
}

// closeVoidElements writes void elements as "<br/>" again. The minifier
// always drops the slash; every other byte of doc is kept as is.
func closeVoidElements(doc string) (string, error) {
	var buf bytes.Buffer
	buf.Grow(len(doc) + 16)
	z := nethtml.NewTokenizer(strings.NewReader(doc))
	for {
		tt := z.Next()
		raw := append([]byte(nil), z.Raw()...)
		switch tt {
		case nethtml.ErrorToken:
			buf.Write(raw)
			if errors.Is(z.Err(), io.EOF) {
				return buf.String(), nil
			}
			return "", z.Err()
		case nethtml.StartTagToken:
			name, _ := z.TagName()
			if voidElements[string(name)] && bytes.HasSuffix(raw, []byte(">")) {
				raw = append(raw[:len(raw)-1], "/>"...)
			}
		}
		buf.Write(raw)
	}
}
