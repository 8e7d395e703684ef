// internal/plugin/assets.go
package plugin

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"pagehtml/internal/util"
)

// Asset is the public URL of an entry's bundled script and, when the entry
// imports CSS, its stylesheet.
type Asset struct {
	JS  string
	CSS string
}

// Assets maps normalized entry module paths to their bundled output.
type Assets map[string]Asset

func (a Assets) lookup(entry string) (Asset, bool) {
	if a == nil {
		return Asset{}, false
	}
	as, ok := a[entryKey(entry)]
	return as, ok
}

type metafile struct {
	Outputs map[string]struct {
		EntryPoint string `json:"entryPoint"`
		CSSBundle  string `json:"cssBundle"`
	} `json:"outputs"`
}

// AssetsFromMetafile reads the entry outputs of an esbuild metafile. Paths in
// the metafile are relative to workDir; URLs are built under base relative
// to outDir.
func AssetsFromMetafile(meta, workDir, outDir, base string) (Assets, error) {
	var m metafile
	if err := json.Unmarshal([]byte(meta), &m); err != nil {
		return nil, fmt.Errorf("parse metafile: %w", err)
	}
	toURL := func(out string) (string, error) {
		abs := out
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(workDir, filepath.FromSlash(out))
		}
		rel, err := filepath.Rel(outDir, abs)
		if err != nil {
			return "", err
		}
		return util.ResolveURL(base, filepath.ToSlash(rel)), nil
	}

	assets := Assets{}
	for out, o := range m.Outputs {
		if o.EntryPoint == "" {
			continue
		}
		js, err := toURL(out)
		if err != nil {
			return nil, err
		}
		a := Asset{JS: js}
		if o.CSSBundle != "" {
			if a.CSS, err = toURL(o.CSSBundle); err != nil {
				return nil, err
			}
		}
		assets[entryKey(o.EntryPoint)] = a
	}
	return assets, nil
}
