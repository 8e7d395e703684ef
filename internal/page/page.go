// internal/page/page.go
package page

import (
	"pagehtml/internal/logging"
	"pagehtml/internal/util"

	"github.com/sirupsen/logrus"
)

const (
	DefaultPage     = "index"
	DefaultTemplate = "index.html"
	DefaultTitle    = "Vite App"
)

// Item is a page with every default applied.
type Item struct {
	// Path is the page key: no leading or trailing slash, no .htm(l) suffix.
	Path            string
	Template        string
	Entry           string
	Title           string
	TemplateOptions TemplateOptions
	Inject          Inject
}

func (it Item) clone() *Item {
	c := it
	c.Inject.Tags = append([]Tag(nil), it.Inject.Tags...)
	return &c
}

// Table maps page keys to items and remembers declaration order.
type Table struct {
	keys  []string
	items map[string]*Item
}

func NewTable() *Table {
	return &Table{items: make(map[string]*Item)}
}

// Set stores item under key. Re-setting a key replaces the item but keeps
// its original position.
func (t *Table) Set(key string, item *Item) {
	if _, ok := t.items[key]; !ok {
		t.keys = append(t.keys, key)
	}
	t.items[key] = item
}

func (t *Table) Get(key string) (*Item, bool) {
	it, ok := t.items[key]
	return it, ok
}

// Lookup finds the page for a cleaned page URL, falling back to "<url>/index".
func (t *Table) Lookup(pageURL string) (*Item, bool) {
	if it, ok := t.items[pageURL]; ok {
		return it, true
	}
	it, ok := t.items[pageURL+"/index"]
	return it, ok
}

func (t *Table) Len() int {
	return len(t.keys)
}

func (t *Table) Keys() []string {
	return append([]string(nil), t.keys...)
}

// Items returns the items in declaration order.
func (t *Table) Items() []*Item {
	out := make([]*Item, 0, len(t.keys))
	for _, k := range t.keys {
		out = append(out, t.items[k])
	}
	return out
}

// Create resolves the page options into a Table. Invalid pages are logged
// and skipped; Create never fails.
func Create(opts Options, log logrus.FieldLogger) *Table {
	log = logging.Plugin(log)

	var inject Inject
	if opts.Inject != nil {
		inject = *opts.Inject
	}
	defaults := Item{
		Entry:           opts.Entry,
		Template:        orDefault(opts.Template, DefaultTemplate),
		Title:           orDefault(opts.Title, DefaultTitle),
		TemplateOptions: opts.TemplateOptions,
		Inject: Inject{
			Data: resolveData(opts.Data, inject.Data, "global", log),
			Tags: inject.Tags,
		},
	}
	if defaults.Inject.Data == nil {
		defaults.Inject.Data = map[string]any{}
	}
	if defaults.Inject.Tags == nil {
		defaults.Inject.Tags = []Tag{}
	}

	table := NewTable()
	if !opts.Page.IsMulti() {
		key := pageKey(orDefault(opts.Page.Single, DefaultPage))
		item := defaults.clone()
		item.Path = key
		table.Set(key, item)
		return table
	}

	for _, e := range opts.Page.Entries {
		cfg := e.Config
		if cfg == nil || cfg.Entry == "" {
			log.WithField("page", e.Name).Errorf("page %s is invalid: missing entry", e.Name)
			continue
		}
		key := pageKey(e.Name)
		item := defaults.clone()
		item.Path = key
		item.Entry = cfg.Entry
		item.Template = orDefault(cfg.Template, item.Template)
		item.Title = orDefault(cfg.Title, item.Title)

		var pageInject Inject
		if cfg.Inject != nil {
			pageInject = *cfg.Inject
		}
		if data := resolveData(cfg.Data, pageInject.Data, e.Name, log); data != nil {
			item.Inject.Data = data
		}
		if pageInject.Tags != nil {
			item.Inject.Tags = pageInject.Tags
		}
		table.Set(key, item)
	}
	return table
}

// resolveData applies the legacy "data" fallback for one scope.
func resolveData(legacy, injected map[string]any, scope string, log logrus.FieldLogger) map[string]any {
	switch {
	case legacy != nil && injected == nil:
		log.WithField("page", scope).Warnf("option `data` is deprecated, use `inject.data` instead (page: %s)", scope)
		return legacy
	case legacy != nil && injected != nil:
		log.WithField("page", scope).Warnf("option `data` is deprecated and ignored because `inject.data` is set (page: %s)", scope)
		return injected
	default:
		return injected
	}
}

// pageKey cleans name until it is stable so keys like "//a//" or "a.html.html"
// still satisfy the key invariant.
func pageKey(name string) string {
	key := util.CleanPageURL(name, nil)
	for next := util.CleanPageURL(key, nil); next != key; next = util.CleanPageURL(key, nil) {
		key = next
	}
	if key == "" {
		return DefaultPage
	}
	return key
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
