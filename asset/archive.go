package asset

import (
	"context"
)

// Archive wraps another asset and extracts whatever it materializes.
// Version and CacheID delegate to the subject: the cache identity of an
// archived asset is the identity of its subject, extraction is not cached
// separately.
type Archive struct {
	Subject Asset
	Strip   int
}

func NewArchive(subject Asset, strip int) *Archive {
	return &Archive{Subject: subject, Strip: strip}
}

func (a *Archive) Version(ctx context.Context) (string, error) {
	return a.Subject.Version(ctx)
}

func (a *Archive) CacheID(ctx context.Context) (string, error) {
	return a.Subject.CacheID(ctx)
}

// CopyTo materializes the subject into scratch space, then extracts it
// into dest with the configured strip depth. The scratch space lives only
// for the duration of the call.
func (a *Archive) CopyTo(ctx context.Context, dest string) (string, error) {
	dest, err := DestDir(dest)
	if err != nil {
		return "", err
	}

	scope := &Scope{}
	defer scope.Close()

	scratch, err := scope.TempDir("vsce-helper-archive-")
	if err != nil {
		return "", err
	}
	archivePath, err := a.Subject.CopyTo(ctx, scratch)
	if err != nil {
		return "", err
	}
	if err := ExtractArchive(archivePath, dest, a.Strip); err != nil {
		return "", err
	}
	return dest, nil
}
