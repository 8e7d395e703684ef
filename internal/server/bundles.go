// internal/server/bundles.go
package server

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"pagehtml/internal/plugin"

	"github.com/evanw/esbuild/pkg/api"
)

// BundlePrefix is where dev bundles are served from.
const BundlePrefix = "/@bundle/"

// bundleStore keeps the latest in-memory esbuild output of every page entry.
type bundleStore struct {
	pc     *plugin.Context
	outDir string

	mu     sync.RWMutex
	files  map[string][]byte
	assets plugin.Assets
}

func newBundleStore(pc *plugin.Context) *bundleStore {
	return &bundleStore{
		pc:     pc,
		outDir: filepath.Join(pc.Options().Root, ".pagehtml"),
		files:  map[string][]byte{},
	}
}

// rebuild bundles all entries again. On failure the previous output stays.
func (b *bundleStore) rebuild() error {
	entries := b.pc.EntryPoints()
	if len(entries) == 0 {
		return nil
	}
	cfg := b.pc.Options()
	result := api.Build(api.BuildOptions{
		EntryPointsAdvanced: entries,
		AbsWorkingDir:       cfg.Root,
		Outdir:              b.outDir,
		EntryNames:          "[dir]/[name]",
		AssetNames:          "assets/[name]-[hash]",
		PublicPath:          BundlePrefix,
		Bundle:              true,
		Format:              api.FormatESModule,
		Platform:            api.PlatformBrowser,
		Sourcemap:           api.SourceMapInline,
		Define:              cfg.Define,
		Metafile:            true,
		Write:               false,
		LogLevel:            api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		msgs := make([]string, 0, len(result.Errors))
		for _, m := range result.Errors {
			msgs = append(msgs, m.Text)
		}
		return errors.New(strings.Join(msgs, "; "))
	}
	assets, err := plugin.AssetsFromMetafile(result.Metafile, cfg.Root, b.outDir, BundlePrefix)
	if err != nil {
		return err
	}
	files := make(map[string][]byte, len(result.OutputFiles))
	for _, f := range result.OutputFiles {
		rel, err := filepath.Rel(b.outDir, f.Path)
		if err != nil {
			return fmt.Errorf("bundle output %s: %w", f.Path, err)
		}
		files[filepath.ToSlash(rel)] = f.Contents
	}

	b.mu.Lock()
	b.files = files
	b.assets = assets
	b.mu.Unlock()
	return nil
}

func (b *bundleStore) current() plugin.Assets {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.assets
}

func (b *bundleStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(path.Clean(r.URL.Path), BundlePrefix)
	b.mu.RLock()
	contents, ok := b.files[name]
	b.mu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Write(contents)
}
