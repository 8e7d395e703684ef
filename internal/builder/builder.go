// internal/builder/builder.go
package builder

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"pagehtml/internal/logging"
	"pagehtml/internal/plugin"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

type BuildOptions struct {
	CleanDestination bool
	// Production turns on esbuild minification of scripts and styles.
	Production bool
	// Write is false in tests that only inspect the page output.
	Write bool
}

// Result summarizes a build.
type Result struct {
	Pages   int
	Entries int
	Assets  int
}

// Build cleans the output directory, copies the public directory into it and
// bundles every page entry with esbuild. Pages are rendered by the plugin
// once the bundle is done; without entries they are rendered directly.
func Build(ctx context.Context, pc *plugin.Context, fs afero.Fs, opts BuildOptions, log logrus.FieldLogger) (Result, error) {
	if log == nil {
		log = logging.Discard()
	}
	cfg := pc.Options()
	outDir := cfg.OutPath()
	res := Result{Pages: pc.Pages().Len()}

	if err := fs.MkdirAll(outDir, 0755); err != nil {
		return res, err
	}
	if opts.CleanDestination {
		log.Debugf("cleaning %s", outDir)
		entries, err := afero.ReadDir(fs, outDir)
		if err != nil {
			return res, err
		}
		for _, entry := range entries {
			if err := fs.RemoveAll(filepath.Join(outDir, entry.Name())); err != nil {
				return res, err
			}
		}
	}

	copied, err := copyStaticAssets(fs, cfg.PublicPath(), outDir)
	if err != nil {
		return res, fmt.Errorf("copy public dir: %w", err)
	}
	res.Assets = copied

	entries := pc.EntryPoints()
	res.Entries = len(entries)
	if len(entries) == 0 {
		pc.BuildStart(ctx)
		if err := pc.BuildEnd(ctx, nil); err != nil {
			return res, err
		}
		return res, nil
	}

	result := api.Build(api.BuildOptions{
		EntryPointsAdvanced: entries,
		AbsWorkingDir:       cfg.Root,
		Outdir:              outDir,
		EntryNames:          "[dir]/[name]-[hash]",
		ChunkNames:          "assets/[name]-[hash]",
		AssetNames:          "assets/[name]-[hash]",
		PublicPath:          cfg.Base,
		Bundle:              true,
		Splitting:           true,
		Format:              api.FormatESModule,
		Platform:            api.PlatformBrowser,
		Target:              api.ES2020,
		MinifyWhitespace:    opts.Production,
		MinifyIdentifiers:   opts.Production,
		MinifySyntax:        opts.Production,
		Define:              cfg.Define,
		Metafile:            true,
		Write:               opts.Write,
		LogLevel:            api.LogLevelSilent,
		Plugins:             []api.Plugin{pc.ESBuildPlugin()},
	})
	if len(result.Errors) > 0 {
		for _, msg := range result.Errors {
			log.Errorf("esbuild: %s", formatMessage(msg))
		}
		return res, fmt.Errorf("esbuild failed with %d errors", len(result.Errors))
	}
	for _, msg := range result.Warnings {
		log.Warnf("esbuild: %s", formatMessage(msg))
	}
	return res, nil
}

func formatMessage(msg api.Message) string {
	if msg.Location == nil {
		return msg.Text
	}
	return fmt.Sprintf("%s:%d:%d: %s", msg.Location.File, msg.Location.Line, msg.Location.Column, msg.Text)
}

// copyStaticAssets copies the public directory verbatim into the output
// directory. A missing public directory is not an error.
func copyStaticAssets(fs afero.Fs, publicDir, outputDir string) (int, error) {
	if ok, _ := afero.DirExists(fs, publicDir); !ok {
		return 0, nil
	}
	copied := 0
	err := afero.Walk(fs, publicDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(publicDir, path)
		if err != nil {
			return err
		}
		dest := filepath.Join(outputDir, rel)
		if err := fs.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return err
		}
		src, err := fs.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()
		dst, err := fs.Create(dest)
		if err != nil {
			return err
		}
		defer dst.Close()
		if _, err := io.Copy(dst, src); err != nil {
			return err
		}
		copied++
		return nil
	})
	return copied, err
}
