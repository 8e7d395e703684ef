// internal/files/virtual.go
package files

import (
	"context"
	"io"
	"path/filepath"

	"pagehtml/internal/logging"
	"pagehtml/internal/page"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// CheckExistOfPath reports whether p exists on fs. An empty path never exists.
func CheckExistOfPath(fs afero.Fs, p string) bool {
	if p == "" {
		return false
	}
	ok, err := afero.Exists(fs, p)
	return err == nil && ok
}

// CopyOneFile copies src to dest and returns the path to remove on cleanup:
// the highest ancestor of dest that did not exist before the copy, or dest
// itself. It returns "" when dest already exists or the copy fails, so
// callers never remove a file they did not create.
func CopyOneFile(fs afero.Fs, src, dest string, log logrus.FieldLogger) string {
	log = logging.Plugin(log)
	if CheckExistOfPath(fs, dest) {
		return ""
	}
	created := firstMissing(fs, dest)
	if err := copyFile(fs, src, dest); err != nil {
		log.WithError(err).Errorf("could not create virtual html %s", dest)
		return ""
	}
	return created
}

// firstMissing walks up from p and returns the highest path that does not
// exist yet.
func firstMissing(fs afero.Fs, p string) string {
	missing := p
	for dir := filepath.Dir(p); dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
		if CheckExistOfPath(fs, dir) {
			break
		}
		missing = dir
	}
	return missing
}

func copyFile(fs afero.Fs, src, dest string) error {
	in, err := fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	if err := fs.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	out, err := fs.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// VirtualPath is the bundler input for a page: <root>/<path>.html.
func VirtualPath(root string, item *page.Item) string {
	return filepath.Join(root, filepath.FromSlash(item.Path)+".html")
}

// CreateVirtualHTML copies each page's template to its virtual path. The
// result is indexed like table.Items(); entries are "" where nothing was
// created.
func CreateVirtualHTML(ctx context.Context, fs afero.Fs, table *page.Table, root string, log logrus.FieldLogger) []string {
	items := table.Items()
	created := make([]string, len(items))
	g, _ := errgroup.WithContext(ctx)
	for i, item := range items {
		g.Go(func() error {
			src := filepath.Join(root, filepath.FromSlash(item.Template))
			created[i] = CopyOneFile(fs, src, VirtualPath(root, item), log)
			return nil
		})
	}
	_ = g.Wait()
	return created
}

// RemoveVirtualHTML removes every non-empty path once, with anything below it.
func RemoveVirtualHTML(fs afero.Fs, paths []string, log logrus.FieldLogger) {
	log = logging.Plugin(log)
	seen := map[string]bool{}
	for _, p := range paths {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		if err := fs.RemoveAll(p); err != nil {
			log.WithError(err).Warnf("could not remove virtual html %s", p)
		}
	}
}
