package batch

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// ErrDestinationExists is returned by CopyTree when dst is already present.
var ErrDestinationExists = errors.New("destination already exists")

// CopyTree copies the directory src to dst, keeping file modes. It refuses
// to touch an existing dst.
func CopyTree(src, dst string) error {
	if _, err := os.Stat(dst); err == nil {
		return errors.Wrap(ErrDestinationExists, dst)
	} else if !os.IsNotExist(err) {
		return errors.WithStack(err)
	}
	info, err := os.Stat(src)
	if err != nil {
		return errors.WithStack(err)
	}
	if !info.IsDir() {
		return errors.Errorf("%s is not a directory", src)
	}

	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return errors.WithStack(err)
		}
		target := filepath.Join(dst, rel)
		info, err := d.Info()
		if err != nil {
			return errors.WithStack(err)
		}
		if d.IsDir() {
			return errors.WithStack(os.MkdirAll(target, info.Mode().Perm()|0o700))
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		return copyFile(path, target, info.Mode().Perm())
	})
}

func copyFile(src, dst string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.WithStack(err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return errors.WithStack(err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.Wrapf(err, "copy %s", src)
	}
	return errors.WithStack(out.Close())
}
