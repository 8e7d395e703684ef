package files

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"pagehtml/internal/page"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, fs afero.Fs, p, content string) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, afero.WriteFile(fs, p, []byte(content), 0644))
}

func readFile(t *testing.T, fs afero.Fs, p string) string {
	t.Helper()
	b, err := afero.ReadFile(fs, p)
	require.NoError(t, err)
	return string(b)
}

func TestCopyOneFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/p/index.html", "tpl")
	log, hook := logtest.NewNullLogger()

	assert.Equal(t, "/p/a", CopyOneFile(fs, "/p/index.html", "/p/a/b.html", log), "created directory is reported")
	assert.Equal(t, "tpl", readFile(t, fs, "/p/a/b.html"))
	assert.Equal(t, "/p/a/c.html", CopyOneFile(fs, "/p/index.html", "/p/a/c.html", log))
	assert.Equal(t, "/p/x", CopyOneFile(fs, "/p/index.html", "/p/x/y/z/d.html", log))

	// existing targets are never claimed
	assert.Equal(t, "", CopyOneFile(fs, "/p/index.html", "/p/a/b.html", log))
	assert.Empty(t, hook.AllEntries())

	assert.Equal(t, "", CopyOneFile(fs, "/p/missing.html", "/p/c.html", log))
	require.NotNil(t, hook.LastEntry())
	assert.Contains(t, hook.LastEntry().Message, "/p/c.html")
}

func TestVirtualHTMLLifecycle(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/p/index.html", "main")
	writeFile(t, fs, "/p/public/admin.html", "admin")

	table := page.NewTable()
	table.Set("index", &page.Item{Path: "index", Template: "index.html"})
	table.Set("user/profile", &page.Item{Path: "user/profile", Template: "index.html"})
	table.Set("admin", &page.Item{Path: "admin", Template: "public/admin.html"})
	table.Set("broken", &page.Item{Path: "broken", Template: "nope.html"})
	table.Set("docs/guide/intro", &page.Item{Path: "docs/guide/intro", Template: "index.html"})
	table.Set("public/extra", &page.Item{Path: "public/extra", Template: "index.html"})

	created := CreateVirtualHTML(context.Background(), fs, table, "/p", nil)
	require.Len(t, created, 6)
	assert.Equal(t, "", created[0], "template itself is the virtual file")
	assert.Equal(t, "/p/user", created[1])
	assert.Equal(t, "/p/admin.html", created[2])
	assert.Equal(t, "", created[3])
	assert.Equal(t, "/p/docs", created[4])
	assert.Equal(t, "/p/public/extra.html", created[5], "existing directories are not claimed")
	assert.Equal(t, "admin", readFile(t, fs, "/p/admin.html"))
	assert.Equal(t, "main", readFile(t, fs, "/p/docs/guide/intro.html"))

	RemoveVirtualHTML(fs, append(created, "/p/admin.html"), nil)
	assert.False(t, CheckExistOfPath(fs, "/p/user/profile.html"))
	assert.False(t, CheckExistOfPath(fs, "/p/user"), "created directories are removed")
	assert.False(t, CheckExistOfPath(fs, "/p/docs"))
	assert.False(t, CheckExistOfPath(fs, "/p/public/extra.html"))
	assert.True(t, CheckExistOfPath(fs, "/p/public/admin.html"))
	assert.False(t, CheckExistOfPath(fs, "/p/admin.html"))
	assert.True(t, CheckExistOfPath(fs, "/p/index.html"))
	assert.False(t, CheckExistOfPath(fs, ""))
}

func TestMove(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/dist/src/pages/a.html", "a")
	writeFile(t, fs, "/dist/src/b.html", "b")
	writeFile(t, fs, "/dist/assets/x.js", "x")

	err := Move(context.Background(), fs, "/dist", []Transfer{
		{From: "src/pages/a.html", To: "pages/a.html"},
		{From: "src/b.html", To: "b.html"},
	}, MoveOptions{CleanEmptyDirs: true})
	require.NoError(t, err)

	assert.Equal(t, "a", readFile(t, fs, "/dist/pages/a.html"))
	assert.Equal(t, "b", readFile(t, fs, "/dist/b.html"))
	assert.False(t, CheckExistOfPath(fs, "/dist/src"))
	assert.True(t, CheckExistOfPath(fs, "/dist/assets/x.js"))
}

func TestMoveConflicts(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/dist/src/a.html", "new")
	writeFile(t, fs, "/dist/a.html", "old")

	err := Move(context.Background(), fs, "/dist", []Transfer{{From: "src/a.html", To: "a.html"}}, MoveOptions{})
	var te *TransferError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "move", te.Op)
	assert.True(t, errors.Is(err, os.ErrExist))

	err = Move(context.Background(), fs, "/dist", []Transfer{{From: "src/a.html", To: "a.html"}}, MoveOptions{Overwrite: true})
	require.NoError(t, err)
	assert.Equal(t, "new", readFile(t, fs, "/dist/a.html"))

	err = Move(context.Background(), fs, "/dist", []Transfer{{From: "gone.html", To: "x.html"}}, MoveOptions{})
	assert.True(t, errors.Is(err, os.ErrNotExist))

	// same source and target is a no-op
	require.NoError(t, Move(context.Background(), fs, "/dist", []Transfer{{From: "a.html", To: "a.html"}}, MoveOptions{}))
}

func TestDiscover(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/proj/src/index.html", "")
	writeFile(t, fs, "/proj/src/about/index.html", "")
	writeFile(t, fs, "/proj/src/blog/post.htm", "")
	writeFile(t, fs, "/proj/src/main.ts", "")
	writeFile(t, fs, "/proj/extra.html", "")

	found, err := Discover(fs, "/proj", "", []string{"src/**/*.{html,htm}", "./extra.html", "src/index.html"})
	require.NoError(t, err)
	assert.Equal(t, []Found{
		{Key: "extra", File: "extra.html"},
		{Key: "about/index", File: "src/about/index.html"},
		{Key: "blog/post", File: "src/blog/post.htm"},
		{Key: "index", File: "src/index.html"},
	}, found)

	assert.Equal(t, []Transfer{
		{From: "src/about/index.html", To: "about/index.html"},
		{From: "src/blog/post.htm", To: "blog/post.htm"},
		{From: "src/index.html", To: "index.html"},
	}, RelocationFor(found, ""))

	_, err = Discover(fs, "/proj", "src", []string{"src/[.html"})
	assert.Error(t, err)
}
