// internal/config/env.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
)

// EnvFiles lists the dotenv files read for mode, lowest priority first.
func EnvFiles(mode string) []string {
	files := []string{".env", ".env.local"}
	if mode != "" {
		files = append(files, ".env."+mode, ".env."+mode+".local")
	}
	return files
}

// LoadEnv reads the dotenv files for mode from dir and returns the variables
// exposed to templates: those starting with prefix, plus MODE, BASE_URL, PROD
// and DEV. Variables already set in the process environment win over files.
func LoadEnv(fs afero.Fs, dir, mode, prefix, base string) (map[string]any, error) {
	vars := map[string]string{}
	for _, name := range EnvFiles(mode) {
		p := filepath.Join(dir, name)
		f, err := fs.Open(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("open %s: %w", p, err)
		}
		parsed, err := godotenv.Parse(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", p, err)
		}
		for k, v := range parsed {
			vars[k] = v
		}
	}

	env := map[string]any{}
	for k, v := range vars {
		if prefix != "" && strings.HasPrefix(k, prefix) {
			if pv, ok := os.LookupEnv(k); ok {
				v = pv
			}
			env[k] = v
		}
	}
	for _, kv := range os.Environ() {
		k, v, _ := strings.Cut(kv, "=")
		if prefix != "" && strings.HasPrefix(k, prefix) {
			env[k] = v
		}
	}
	env["MODE"] = mode
	env["BASE_URL"] = base
	env["PROD"] = mode == "production"
	env["DEV"] = mode != "production"
	return env, nil
}
