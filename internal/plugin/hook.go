// internal/plugin/hook.go
package plugin

import "pagehtml/internal/page"

// HookContext is what the host passes to the HTML transform hook.
type HookContext struct {
	// OriginalURL is the request URL before any fallback rewrite.
	OriginalURL string
	Assets      Assets
}

// HookResult is the transformed HTML plus the tags the host should inject.
type HookResult struct {
	HTML string
	Tags []page.Tag
}

type TransformFunc func(html string, ctx HookContext) (HookResult, error)

// Hook is an HTML transform hook. Hosts before major version 5 read Enforce
// and Transform; later ones read Order and Handler. Only one pair is set.
type Hook struct {
	Enforce   string
	Transform TransformFunc
	Order     string
	Handler   TransformFunc
}

// Func returns whichever transform is set.
func (h Hook) Func() TransformFunc {
	if h.Handler != nil {
		return h.Handler
	}
	return h.Transform
}

// Legacy reports whether h uses the pre-5 shape.
func (h Hook) Legacy() bool {
	return h.Transform != nil
}

func newHook(hostMajor int, fn TransformFunc) Hook {
	if hostMajor > 0 && hostMajor < 5 {
		return Hook{Enforce: "pre", Transform: fn}
	}
	return Hook{Order: "pre", Handler: fn}
}

func (c *Context) transformHook(html string, ctx HookContext) (HookResult, error) {
	out, tags := c.TransformHTML(html, ctx.OriginalURL, ctx.Assets)
	return HookResult{HTML: out, Tags: tags}, nil
}
