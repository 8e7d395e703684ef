// internal/config/config.go
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"pagehtml/internal/minify"
	"pagehtml/internal/page"
	"pagehtml/internal/rewrite"
	"pagehtml/internal/util"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

const (
	DefaultFile      = "pagehtml.yaml"
	DefaultOutDir    = "dist"
	DefaultPublicDir = "public"
	DefaultEnvPrefix = "APP_"
	DefaultHostMajor = 5
	DefaultPort      = 5173
)

// Options holds everything read from pagehtml.yaml.
type Options struct {
	page.Options `yaml:",inline"`

	// Include switches to discovery mode: HTML files matching these globs
	// become pages.
	Include []string `yaml:"include"`
	BaseDir string   `yaml:"baseDir"`

	Minify           *minify.Setting   `yaml:"minify"`
	Base             string            `yaml:"base"`
	RewriteWhitelist []rewrite.Pattern `yaml:"rewriteWhitelist"`
	ReplaceDefine    *bool             `yaml:"replaceDefine"`
	Define           map[string]string `yaml:"define"`

	Root      string `yaml:"root"`
	OutDir    string `yaml:"outDir"`
	PublicDir string `yaml:"publicDir"`
	EnvPrefix string `yaml:"envPrefix"`
	HostMajor int    `yaml:"hostMajor"`

	Server Server `yaml:"server"`
	// Unsafe disables sanitizing of the markdown template function.
	Unsafe bool `yaml:"unsafe"`
}

type Server struct {
	Port int `yaml:"port"`
	// Proxy maps a path prefix to a backend URL.
	Proxy map[string]string `yaml:"proxy"`
}

// IncludeMode reports whether pages come from include globs.
func (o *Options) IncludeMode() bool {
	return len(o.Include) > 0
}

// ReplaceDefineEnabled defaults to true.
func (o *Options) ReplaceDefineEnabled() bool {
	return o.ReplaceDefine == nil || *o.ReplaceDefine
}

// MinifySetting returns the minify setting. Without one, minifying is off in
// page mode and on in include mode.
func (o *Options) MinifySetting() minify.Setting {
	if o.Minify != nil {
		return *o.Minify
	}
	if o.IncludeMode() {
		return minify.Enabled()
	}
	return minify.Setting{}
}

// ApplyDefaults fills unset fields. root is resolved against dir.
func (o *Options) ApplyDefaults(dir string) {
	if o.Root == "" {
		o.Root = "."
	}
	if !filepath.IsAbs(o.Root) {
		o.Root = filepath.Join(dir, o.Root)
	}
	o.Base = util.NormalizeBase(o.Base)
	if o.OutDir == "" {
		o.OutDir = DefaultOutDir
	}
	if o.PublicDir == "" {
		o.PublicDir = DefaultPublicDir
	}
	if o.EnvPrefix == "" {
		o.EnvPrefix = DefaultEnvPrefix
	}
	if o.HostMajor == 0 {
		o.HostMajor = DefaultHostMajor
	}
	if o.Server.Port == 0 {
		o.Server.Port = DefaultPort
	}
}

// OutPath resolves outDir against root.
func (o *Options) OutPath() string {
	if filepath.IsAbs(o.OutDir) {
		return o.OutDir
	}
	return filepath.Join(o.Root, o.OutDir)
}

// PublicPath resolves publicDir against root.
func (o *Options) PublicPath() string {
	if filepath.IsAbs(o.PublicDir) {
		return o.PublicDir
	}
	return filepath.Join(o.Root, o.PublicDir)
}

// ProxyPrefixes lists the configured proxy keys.
func (o *Options) ProxyPrefixes() []string {
	out := make([]string, 0, len(o.Server.Proxy))
	for k := range o.Server.Proxy {
		out = append(out, k)
	}
	return out
}

// Load reads and parses the config file at path and applies defaults
// relative to the file's directory.
func Load(fs afero.Fs, path string) (*Options, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("could not read config file at %s: %w", path, err)
	}
	opts, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("could not parse config file %s: %w", path, err)
	}
	opts.ApplyDefaults(filepath.Dir(path))
	return opts, nil
}

// Parse decodes YAML options without applying defaults. Unknown keys are
// rejected.
func Parse(data []byte) (*Options, error) {
	opts := &Options{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(opts); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return opts, nil
}
