// internal/scaffold/scaffold.go
package scaffold

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/template"

	"pagehtml/internal/config"
	"pagehtml/internal/page"
	"pagehtml/internal/util"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// CreateProject writes a minimal multi-page project into name.
func CreateProject(fs afero.Fs, name string, out io.Writer) error {
	fmt.Fprintln(out, "Scaffolding new project in:", name)
	if ok, _ := afero.Exists(fs, filepath.Join(name, config.DefaultFile)); ok {
		return fmt.Errorf("%s already contains %s", name, config.DefaultFile)
	}
	mkdir := func(path string) error { return fs.MkdirAll(filepath.Join(name, path), 0755) }
	writeFile := func(path, content string) error {
		return afero.WriteFile(fs, filepath.Join(name, path), []byte(content), 0644)
	}
	dirs := []string{"src", "public"}
	for _, dir := range dirs {
		if err := mkdir(dir); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	files := map[string]string{
		config.DefaultFile:  configContent,
		"index.html":        indexHTMLContent,
		"src/main.ts":       mainTSContent,
		"src/style.css":     styleCSSContent,
		".env":              envContent,
		"public/robots.txt": robotsContent,
	}
	for path, content := range files {
		if err := writeFile(path, content); err != nil {
			return fmt.Errorf("failed to write file %s: %w", path, err)
		}
	}
	fmt.Fprintln(out, "Project scaffolded. You can now:")
	fmt.Fprintln(out, "  cd", name)
	fmt.Fprintln(out, "  pagehtml new page about")
	fmt.Fprintln(out, "  pagehtml serve")
	return nil
}

// CreateNewPage adds a page to the config at configPath and writes its entry
// module next to the config. Existing keys, order and comments are kept.
func CreateNewPage(fs afero.Fs, name, configPath string, out io.Writer) error {
	key := util.CleanPageURL(strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", "-")), nil)
	if key == "" {
		return fmt.Errorf("invalid page name %q", name)
	}
	raw, err := afero.ReadFile(fs, configPath)
	if err != nil {
		return fmt.Errorf("could not read config file at %s: %w", configPath, err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("could not parse config file %s: %w", configPath, err)
	}
	if doc.Kind == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("config file %s is not a mapping", configPath)
	}

	entry := "src/" + key + ".ts"
	pages := mappingValue(root, "page")
	switch {
	case pages == nil:
		pages = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		root.Content = append(root.Content, scalar("page"), pages)
	case pages.Kind == yaml.ScalarNode:
		// a single page becomes the first entry of a multi-page config
		single := pages.Value
		if single == "" {
			single = page.DefaultPage
		}
		mainEntry := scalarValue(root, "entry")
		if mainEntry == "" {
			mainEntry = "src/main.ts"
		}
		*pages = yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", Content: []*yaml.Node{scalar(single), scalar(mainEntry)}}
	case pages.Kind != yaml.MappingNode:
		return fmt.Errorf("config file %s: page must be a string or a mapping", configPath)
	}
	for i := 0; i+1 < len(pages.Content); i += 2 {
		if util.CleanPageURL(pages.Content[i].Value, nil) == key {
			return fmt.Errorf("page %s already exists", key)
		}
	}
	pages.Content = append(pages.Content, scalar(key), &yaml.Node{
		Kind: yaml.MappingNode,
		Tag:  "!!map",
		Content: []*yaml.Node{
			scalar("entry"), scalar(entry),
			scalar("title"), scalar(titleOf(key)),
		},
	})

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	if err := afero.WriteFile(fs, configPath, buf.Bytes(), 0644); err != nil {
		return err
	}

	entryPath := filepath.Join(filepath.Dir(configPath), filepath.FromSlash(entry))
	if ok, _ := afero.Exists(fs, entryPath); !ok {
		tmpl, err := template.New("entry").Parse(entryArchetype)
		if err != nil {
			return fmt.Errorf("failed to parse entry archetype: %w", err)
		}
		style := "./style.css"
		if depth := strings.Count(key, "/"); depth > 0 {
			style = strings.Repeat("../", depth) + "style.css"
		}
		var src bytes.Buffer
		data := struct{ Key, Title, Style string }{Key: key, Title: titleOf(key), Style: style}
		if err := tmpl.Execute(&src, data); err != nil {
			return fmt.Errorf("failed to execute entry archetype: %w", err)
		}
		if err := fs.MkdirAll(filepath.Dir(entryPath), 0755); err != nil {
			return err
		}
		if err := afero.WriteFile(fs, entryPath, src.Bytes(), 0644); err != nil {
			return err
		}
		fmt.Fprintln(out, "Created:", entryPath)
	}
	fmt.Fprintf(out, "Added page %s to %s\n", key, configPath)
	return nil
}

func mappingValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func scalarValue(m *yaml.Node, key string) string {
	if n := mappingValue(m, key); n != nil && n.Kind == yaml.ScalarNode {
		return n.Value
	}
	return ""
}

func scalar(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

// titleOf turns "docs/getting-started" into "Getting Started".
func titleOf(key string) string {
	base := key[strings.LastIndex(key, "/")+1:]
	words := strings.FieldsFunc(base, func(r rune) bool { return r == '-' || r == '_' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

const configContent = `# pagehtml project
base: /
template: index.html
title: My App
inject:
  data:
    description: A new multi-page app.
page:
  index: src/main.ts
`

const indexHTMLContent = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <meta name="description" content="{{ .PageHtml.Data.description }}">
  <title>{{ .PageHtml.Title }}</title>
</head>
<body>
  <div id="app"></div>
  <script type="module" src="/src/main.ts"></script>
</body>
</html>
`

const mainTSContent = `import './style.css'

const app = document.querySelector<HTMLDivElement>('#app')!
app.innerHTML = '<h1>Hello from ' + document.title + '</h1>'
`

const styleCSSContent = `body {
  font-family: sans-serif;
  max-width: 700px;
  margin: 2em auto;
  padding: 0 1em;
  line-height: 1.6;
  color: #222;
  background: #fdfdfd;
}
`

const envContent = `APP_NAME=my-app
`

const robotsContent = `User-agent: *
Allow: /
`

const entryArchetype = `import '{{ .Style }}'

const app = document.querySelector<HTMLDivElement>('#app')!
app.innerHTML = '<h1>{{ .Title }}</h1><p>page: {{ .Key }}</p>'
`
