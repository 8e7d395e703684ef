// internal/files/move.go
package files

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// Transfer moves one file, both paths relative to the base directory.
type Transfer struct {
	From string
	To   string
}

type MoveOptions struct {
	// Overwrite replaces an existing target instead of failing.
	Overwrite bool
	// CleanEmptyDirs removes source directories left empty, up to the base.
	CleanEmptyDirs bool
}

// TransferError reports which file a relocation step failed on.
type TransferError struct {
	Op   string
	Path string
	Err  error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// Move relocates every transfer under base. Transfers run concurrently; the
// first failure is returned once all of them have finished.
func Move(ctx context.Context, fs afero.Fs, base string, transfers []Transfer, opts MoveOptions) error {
	g, _ := errgroup.WithContext(ctx)
	for _, t := range transfers {
		g.Go(func() error {
			return moveOne(fs, base, t, opts)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if !opts.CleanEmptyDirs {
		return nil
	}
	for _, t := range transfers {
		if err := removeEmptyDirs(fs, base, filepath.Dir(filepath.Join(base, t.From))); err != nil {
			return err
		}
	}
	return nil
}

func moveOne(fs afero.Fs, base string, t Transfer, opts MoveOptions) error {
	src := filepath.Join(base, filepath.FromSlash(t.From))
	dst := filepath.Join(base, filepath.FromSlash(t.To))
	if src == dst {
		return nil
	}
	if !CheckExistOfPath(fs, src) {
		return &TransferError{Op: "move", Path: src, Err: os.ErrNotExist}
	}
	if CheckExistOfPath(fs, dst) {
		if !opts.Overwrite {
			return &TransferError{Op: "move", Path: dst, Err: os.ErrExist}
		}
		if err := fs.RemoveAll(dst); err != nil {
			return &TransferError{Op: "remove", Path: dst, Err: err}
		}
	}
	if err := fs.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return &TransferError{Op: "mkdir", Path: filepath.Dir(dst), Err: err}
	}
	if err := fs.Rename(src, dst); err != nil {
		return &TransferError{Op: "rename", Path: src, Err: err}
	}
	return nil
}

// removeEmptyDirs walks from dir up to (not including) base, removing each
// directory that has become empty.
func removeEmptyDirs(fs afero.Fs, base, dir string) error {
	base = filepath.Clean(base)
	for dir = filepath.Clean(dir); dir != base && strings.HasPrefix(dir, base+string(filepath.Separator)); dir = filepath.Dir(dir) {
		empty, err := afero.IsEmpty(fs, dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return &TransferError{Op: "clean", Path: dir, Err: err}
		}
		if !empty {
			return nil
		}
		if err := fs.Remove(dir); err != nil {
			return &TransferError{Op: "clean", Path: dir, Err: err}
		}
	}
	return nil
}
