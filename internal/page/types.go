// internal/page/types.go
package page

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Options is the page-related part of the plugin configuration.
type Options struct {
	// Page is either a single page path or an ordered set of named pages.
	Page     Spec   `yaml:"page"`
	Entry    string `yaml:"entry"`
	Template string `yaml:"template"`
	Title    string `yaml:"title"`
	// Data is the legacy spelling of Inject.Data.
	Data            map[string]any  `yaml:"data"`
	TemplateOptions TemplateOptions `yaml:"ejsOptions"`
	Inject          *Inject         `yaml:"inject"`
}

// Config is the configuration of one page in multi-page mode.
type Config struct {
	Entry    string `yaml:"entry"`
	Template string `yaml:"template,omitempty"`
	Title    string `yaml:"title,omitempty"`
	// Data is the legacy spelling of Inject.Data.
	Data   map[string]any `yaml:"data,omitempty"`
	Inject *Inject        `yaml:"inject,omitempty"`
}

// Inject carries template data and extra HTML tags for a page.
type Inject struct {
	Data map[string]any `yaml:"data,omitempty"`
	Tags []Tag          `yaml:"tags,omitempty"`
}

// Tag describes an HTML element spliced into the rendered document.
// InjectTo is one of "head", "head-prepend" (default), "body" or "body-prepend".
type Tag struct {
	Tag      string         `yaml:"tag"`
	Attrs    map[string]any `yaml:"attrs,omitempty"`
	Children Children       `yaml:"children,omitempty"`
	InjectTo string         `yaml:"injectTo,omitempty"`
}

// Children is either raw text or nested tags.
type Children struct {
	Text string
	Tags []Tag
}

func (c Children) IsZero() bool {
	return c.Text == "" && len(c.Tags) == 0
}

func (c Children) MarshalYAML() (any, error) {
	if len(c.Tags) > 0 {
		return c.Tags, nil
	}
	return c.Text, nil
}

func (c *Children) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		c.Text = n.Value
		return nil
	case yaml.SequenceNode:
		return n.Decode(&c.Tags)
	default:
		return fmt.Errorf("line %d: tag children must be a string or a list of tags", n.Line)
	}
}

// TemplateOptions configure the template engine. The EJS delimiter options map
// onto Go template delimiters: OpenDelimiter+Delimiter and Delimiter+CloseDelimiter.
type TemplateOptions struct {
	Delimiter      string `yaml:"delimiter"`
	OpenDelimiter  string `yaml:"openDelimiter"`
	CloseDelimiter string `yaml:"closeDelimiter"`
	// MissingKey is passed to template.Option as "missingkey=<value>".
	MissingKey string `yaml:"missingKey"`
}

// Delims returns the left and right template delimiters. Empty strings select
// the engine defaults.
func (o TemplateOptions) Delims() (string, string) {
	if o.Delimiter == "" && o.OpenDelimiter == "" && o.CloseDelimiter == "" {
		return "", ""
	}
	d, open, close := o.Delimiter, o.OpenDelimiter, o.CloseDelimiter
	if d == "" {
		d = "%"
	}
	if open == "" {
		open = "<"
	}
	if close == "" {
		close = ">"
	}
	return open + d, d + close
}

// Spec is the value of the "page" option.
type Spec struct {
	Single  string
	Entries []Entry
	multi   bool
}

// Entry is one named page. A nil Config marks a page that cannot be used.
type Entry struct {
	Name   string
	Config *Config
}

// Single returns a single-page Spec.
func Single(p string) Spec {
	return Spec{Single: p}
}

// Multi returns a multi-page Spec in the given order.
func Multi(entries ...Entry) Spec {
	return Spec{Entries: entries, multi: true}
}

// EntryOf is the shorthand form `name: entry`.
func EntryOf(name, entry string) Entry {
	return Entry{Name: name, Config: &Config{Entry: entry}}
}

func (s Spec) IsMulti() bool {
	return s.multi
}

func (s *Spec) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			*s = Spec{}
			return nil
		}
		*s = Single(n.Value)
		return nil
	case yaml.MappingNode:
		entries := make([]Entry, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, val := n.Content[i], n.Content[i+1]
			e := Entry{Name: key.Value}
			switch {
			case val.Kind == yaml.ScalarNode && val.Tag != "!!null":
				e.Config = &Config{Entry: val.Value}
			case val.Kind == yaml.MappingNode:
				var cfg Config
				if err := val.Decode(&cfg); err != nil {
					return fmt.Errorf("page %q: %w", key.Value, err)
				}
				e.Config = &cfg
			}
			entries = append(entries, e)
		}
		*s = Multi(entries...)
		return nil
	default:
		return fmt.Errorf("line %d: page must be a string or a mapping", n.Line)
	}
}

func (s Spec) MarshalYAML() (any, error) {
	if !s.multi {
		return s.Single, nil
	}
	n := &yaml.Node{Kind: yaml.MappingNode}
	for _, e := range s.Entries {
		val := &yaml.Node{}
		if err := val.Encode(e.Config); err != nil {
			return nil, err
		}
		n.Content = append(n.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: e.Name}, val)
	}
	return n, nil
}
