// internal/plugin/esbuild.go
package plugin

import (
	"context"
	"fmt"
	"path/filepath"

	"pagehtml/internal/files"
	"pagehtml/internal/logging"
	"pagehtml/internal/page"
	"pagehtml/internal/render"
	"pagehtml/internal/util"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// EntryPoints lists each distinct page entry once, named after the first
// page that uses it.
func (c *Context) EntryPoints() []api.EntryPoint {
	seen := map[string]bool{}
	var out []api.EntryPoint
	for _, item := range c.pages.Items() {
		if item.Entry == "" {
			continue
		}
		k := entryKey(item.Entry)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, api.EntryPoint{
			InputPath:  filepath.Join(c.opts.Root, filepath.FromSlash(k)),
			OutputPath: "assets/" + util.PageName(item.Path),
		})
	}
	return out
}

// BuildStart creates the virtual HTML inputs of a build.
func (c *Context) BuildStart(ctx context.Context) {
	if c.command != CommandBuild || c.opts.IncludeMode() {
		return
	}
	created := files.CreateVirtualHTML(ctx, c.fs, c.pages, c.opts.Root, c.log)
	c.mu.Lock()
	c.virtual = append(c.virtual, created...)
	c.mu.Unlock()
}

// Cleanup removes the virtual HTML created so far. It is safe to call more
// than once.
func (c *Context) Cleanup() {
	c.mu.Lock()
	paths := c.virtual
	c.virtual = nil
	c.mu.Unlock()
	files.RemoveVirtualHTML(c.fs, paths, c.log)
}

// BuildEnd writes every page into the output dir, removes the virtual HTML
// and, in include mode, moves pages out of the base dir.
func (c *Context) BuildEnd(ctx context.Context, assets Assets) error {
	defer c.Cleanup()

	g, _ := errgroup.WithContext(ctx)
	for _, item := range c.pages.Items() {
		g.Go(func() error {
			return c.emit(item, assets)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	c.Cleanup()

	if !c.opts.IncludeMode() {
		return nil
	}
	found := make([]files.Found, 0, len(c.found))
	for _, key := range c.pages.Keys() {
		found = append(found, c.found[key])
	}
	return files.Move(ctx, c.fs, c.opts.OutPath(), files.RelocationFor(found, c.opts.BaseDir), files.MoveOptions{
		Overwrite:      true,
		CleanEmptyDirs: true,
	})
}

func (c *Context) emit(item *page.Item, assets Assets) error {
	src := c.sourceOf(item)
	b, err := afero.ReadFile(c.fs, src)
	if err != nil {
		return fmt.Errorf("read html for page %s: %w", item.Path, err)
	}
	out, tags := c.renderPage(string(b), item, assets)
	if out, err = render.InjectTags(out, tags); err != nil {
		c.log.WithField("page", item.Path).Warn(err)
	}
	if out, err = c.minifier.HTML(out); err != nil {
		return fmt.Errorf("page %s: %w", item.Path, err)
	}
	dest := c.OutputOf(item)
	if err := c.fs.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	if err := afero.WriteFile(c.fs, dest, []byte(out), 0644); err != nil {
		return fmt.Errorf("write page %s: %w", item.Path, err)
	}
	c.log.Debugf("emitted %s", dest)
	return nil
}

// OutputOf is where a page is first written during a build.
func (c *Context) OutputOf(item *page.Item) string {
	if f, ok := c.found[item.Path]; ok {
		return filepath.Join(c.opts.OutPath(), filepath.FromSlash(f.File))
	}
	return filepath.Join(c.opts.OutPath(), filepath.FromSlash(item.Path)+".html")
}

// ESBuildPlugin hooks the page lifecycle into an esbuild build. The build
// must enable Metafile for entry scripts to be linked.
func (c *Context) ESBuildPlugin() api.Plugin {
	return api.Plugin{
		Name: logging.PluginName,
		Setup: func(b api.PluginBuild) {
			workDir := c.opts.Root
			if b.InitialOptions != nil && b.InitialOptions.AbsWorkingDir != "" {
				workDir = b.InitialOptions.AbsWorkingDir
			}
			b.OnStart(func() (api.OnStartResult, error) {
				c.BuildStart(context.Background())
				return api.OnStartResult{}, nil
			})
			b.OnEnd(func(result *api.BuildResult) (api.OnEndResult, error) {
				if len(result.Errors) > 0 {
					c.Cleanup()
					return api.OnEndResult{}, nil
				}
				var assets Assets
				if result.Metafile != "" {
					var err error
					if assets, err = AssetsFromMetafile(result.Metafile, workDir, c.opts.OutPath(), c.opts.Base); err != nil {
						c.Cleanup()
						return api.OnEndResult{Errors: []api.Message{c.message(err)}}, nil
					}
				}
				if err := c.BuildEnd(context.Background(), assets); err != nil {
					return api.OnEndResult{Errors: []api.Message{c.message(err)}}, nil
				}
				return api.OnEndResult{}, nil
			})
			b.OnDispose(c.Cleanup)
		},
	}
}

func (c *Context) message(err error) api.Message {
	return api.Message{PluginName: logging.PluginName, Text: err.Error()}
}
