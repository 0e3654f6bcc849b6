package asset

import (
	"io"
	"os"
	"path/filepath"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/pkg/errors"
)

// CopyRecursive copies a file or directory tree into destDir, applying the
// same segment-stripping rule as archive extraction. Entry paths are taken
// relative to the parent of src, so the base name of src is the first
// segment: copying a directory with strip 1 places its contents directly
// in destDir.
func CopyRecursive(src, destDir string, strip int) error {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}
	root := filepath.Dir(src)
	return filepath.Walk(src, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		name, ok := stripSegments(filepath.ToSlash(rel), strip)
		if !ok {
			return nil
		}
		target, err := securejoin.SecureJoin(destDir, name)
		if err != nil {
			return err
		}
		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		return CopyFile(p, target)
	})
}

// CopyFile copies a single regular file, preserving its mode.
func CopyFile(src, dest string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return errors.Wrapf(err, "copying %s to %s", src, dest)
	}
	return nil
}
