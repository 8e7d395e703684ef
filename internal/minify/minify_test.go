package minify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const doc = `<!DOCTYPE html PUBLIC "-//W3C//DTD HTML 4.01//EN">
<html>
  <head>
    <!-- page head -->
    <title>Demo</title>
    <style>
      body {  color : red ;  }
    </style>
  </head>
  <body>
    <div>
      <p>Hello</p>
    </div>
  </body>
</html>
`

func TestDisabledIsIdentity(t *testing.T) {
	out, err := New(Setting{}).HTML(doc)
	require.NoError(t, err)
	assert.Equal(t, doc, out)
}

func TestEnabledCollapsesAndStripsComments(t *testing.T) {
	out, err := New(Enabled()).HTML(doc)
	require.NoError(t, err)
	assert.NotContains(t, out, "<!--")
	assert.NotContains(t, out, "page head")
	assert.NotContains(t, out, "\n  ")
	assert.Contains(t, out, "<div><p>Hello</p></div>")
	assert.Contains(t, out, "color:red")
	assert.Less(t, len(out), len(doc))
}

func TestKeepComments(t *testing.T) {
	off := false
	out, err := New(Setting{Enabled: true, Options: Options{RemoveComments: &off}}).HTML(doc)
	require.NoError(t, err)
	assert.Contains(t, out, "page head")
}

func TestKeepClosingSlash(t *testing.T) {
	in := `<html><head><meta charset="utf-8"/><link rel="icon" href="/a.ico"></head>` +
		`<body><p>a<br/>b</p><img src="a.png"/><script>if (a<b) {}</script></body></html>`

	out, err := New(Enabled()).HTML(in)
	require.NoError(t, err)
	assert.Contains(t, out, `<meta charset="utf-8"/>`)
	assert.Contains(t, out, `<link rel="icon" href="/a.ico"/>`)
	assert.Contains(t, out, `a<br/>b`)
	assert.Contains(t, out, `<img src="a.png"/>`)
	assert.Contains(t, out, `<p>`)
	assert.NotContains(t, out, `<p/>`)
	assert.Contains(t, out, `a<b`, "script bodies are left alone")

	off := false
	out, err = New(Setting{Enabled: true, Options: Options{KeepClosingSlash: &off}}).HTML(in)
	require.NoError(t, err)
	assert.NotContains(t, out, "/>")
	assert.Contains(t, out, `a<br>b`)
	assert.Contains(t, out, `<img src="a.png">`)
}

func TestLongDoctype(t *testing.T) {
	off := false
	out, err := New(Setting{Enabled: true, Options: Options{UseShortDoctype: &off}}).HTML(doc)
	require.NoError(t, err)
	assert.Contains(t, out, `<!DOCTYPE html PUBLIC "-//W3C//DTD HTML 4.01//EN">`)
}

func TestSettingUnmarshal(t *testing.T) {
	var cfg struct {
		A Setting `yaml:"a"`
		B Setting `yaml:"b"`
		C Setting `yaml:"c"`
	}
	src := "a: true\nb: false\nc:\n  removeComments: false\n"
	require.NoError(t, yaml.Unmarshal([]byte(src), &cfg))

	assert.True(t, cfg.A.Enabled)
	assert.False(t, cfg.B.Enabled)
	assert.True(t, cfg.C.Enabled)
	require.NotNil(t, cfg.C.Options.RemoveComments)
	assert.False(t, *cfg.C.Options.RemoveComments)
	assert.Nil(t, cfg.C.Options.CollapseWhitespace)
}
