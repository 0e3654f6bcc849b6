package asset

import (
	"context"
	"path/filepath"
)

// LocalFile copies a single file from disk. Local copies are cheap, so the
// asset advertises no version and no cache slot.
type LocalFile struct {
	Path       string
	TargetName string
}

// NewLocalFile returns a local file asset. targetName defaults to the base
// name of path.
func NewLocalFile(path, targetName string) *LocalFile {
	if targetName == "" {
		targetName = filepath.Base(path)
	}
	return &LocalFile{Path: path, TargetName: targetName}
}

func (a *LocalFile) Version(ctx context.Context) (string, error) {
	return "", nil
}

func (a *LocalFile) CacheID(ctx context.Context) (string, error) {
	return "", nil
}

func (a *LocalFile) CopyTo(ctx context.Context, dest string) (string, error) {
	dest, err := DestDir(dest)
	if err != nil {
		return "", err
	}
	target := filepath.Join(dest, a.TargetName)
	if err := CopyFile(a.Path, target); err != nil {
		return "", err
	}
	return target, nil
}
