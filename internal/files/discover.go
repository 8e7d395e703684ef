// internal/files/discover.go
package files

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"pagehtml/internal/util"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"
)

// DefaultBaseDir is where discovered pages live by default.
const DefaultBaseDir = "src"

// Found is an HTML file matched by an include pattern.
type Found struct {
	// Key is the page key: the file relative to the base dir, cleaned.
	Key string
	// File is the slash path relative to root.
	File string
}

// Discover matches patterns against the files under root and returns one
// entry per distinct file, sorted by file path.
func Discover(fs afero.Fs, root, baseDir string, patterns []string) ([]Found, error) {
	if baseDir == "" {
		baseDir = DefaultBaseDir
	}
	baseDir = strings.Trim(path.Clean("/"+strings.ReplaceAll(baseDir, "\\", "/")), "/")
	fsys := afero.NewIOFS(afero.NewBasePathFs(fs, root))

	seen := map[string]bool{}
	var files []string
	for _, pattern := range patterns {
		pattern = strings.TrimPrefix(path.Clean(pattern), "./")
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("bad include pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	sort.Strings(files)

	found := make([]Found, 0, len(files))
	for _, f := range files {
		rel := f
		if baseDir != "" {
			rel = strings.TrimPrefix(f, baseDir+"/")
		}
		key := util.CleanPageURL(rel, nil)
		if key == "" {
			key = "index"
		}
		found = append(found, Found{Key: key, File: f})
	}
	return found, nil
}

// RelocationFor maps emitted files under the output dir back to their path
// relative to the base dir. Files outside baseDir stay where they are.
func RelocationFor(found []Found, baseDir string) []Transfer {
	if baseDir == "" {
		baseDir = DefaultBaseDir
	}
	prefix := strings.Trim(baseDir, "/") + "/"
	var out []Transfer
	for _, f := range found {
		if to, ok := strings.CutPrefix(f.File, prefix); ok {
			out = append(out, Transfer{From: f.File, To: to})
		}
	}
	return out
}
