package asset

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/pkg/errors"
)

// ExtractArchive unpacks a tar.gz or zip archive into destDir, discarding
// the outermost strip path segments of every entry. Entries whose path has
// no segments left after stripping are dropped. destDir is created if
// absent.
func ExtractArchive(archive, destDir string, strip int) error {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}
	switch kind := archiveKind(archive); kind {
	case "zip":
		return extractZip(archive, destDir, strip)
	case "tar.gz":
		return extractTarGz(archive, destDir, strip)
	default:
		return fmt.Errorf("no extractor for %s", archive)
	}
}

// archiveKind goes by extension first and falls back to the magic bytes,
// since GitHub artifact URLs do not always carry one.
func archiveKind(archive string) string {
	lower := strings.ToLower(archive)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return "zip"
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return "tar.gz"
	}

	f, err := os.Open(archive)
	if err != nil {
		return ""
	}
	defer f.Close()
	magic := make([]byte, 4)
	if _, err := io.ReadFull(f, magic); err != nil {
		return ""
	}
	switch {
	case bytes.HasPrefix(magic, []byte{0x50, 0x4b, 0x03, 0x04}):
		return "zip"
	case bytes.HasPrefix(magic, []byte{0x1f, 0x8b}):
		return "tar.gz"
	}
	return ""
}

// stripSegments applies the strip rule shared by extraction and recursive
// copy. The second return value is false when the entry has nothing left.
func stripSegments(name string, strip int) (string, bool) {
	name = path.Clean(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		return "", false
	}
	parts := strings.Split(strings.TrimPrefix(name, "/"), "/")
	if len(parts) <= strip {
		return "", false
	}
	return path.Join(parts[strip:]...), true
}

func extractTarGz(archive, destDir string, strip int) error {
	f, err := os.Open(archive)
	if err != nil {
		return err
	}
	defer f.Close()

	uncompressed, err := gzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "reading %s", archive)
	}
	defer uncompressed.Close()

	tarReader := tar.NewReader(uncompressed)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrapf(err, "reading %s", archive)
		}

		name, ok := stripSegments(header.Name, strip)
		if !ok {
			continue
		}
		target, err := securejoin.SecureJoin(destDir, name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeEntry(target, tarReader, os.FileMode(header.Mode)); err != nil {
				return err
			}
		}
	}
	return nil
}

func extractZip(archive, destDir string, strip int) error {
	reader, err := zip.OpenReader(archive)
	if err != nil {
		return errors.Wrapf(err, "reading %s", archive)
	}
	defer reader.Close()

	for _, entry := range reader.File {
		name, ok := stripSegments(entry.Name, strip)
		if !ok {
			continue
		}
		target, err := securejoin.SecureJoin(destDir, name)
		if err != nil {
			return err
		}

		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}

		rc, err := entry.Open()
		if err != nil {
			return errors.Wrapf(err, "reading %s", archive)
		}
		err = writeEntry(target, rc, entry.Mode())
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// writeEntry writes one extracted file, creating missing parents since
// archives do not always carry directory entries.
func writeEntry(target string, content io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	perm := mode.Perm()
	if perm == 0 {
		perm = 0o644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, content)
	return err
}
