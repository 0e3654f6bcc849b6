package asset

import (
	"context"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// WebFileOptions tune a WebFile. Filename defaults to the base name of the
// URL path. Version is a caller-supplied upstream hint: the resource
// itself carries no discoverable revision, so without one the asset is
// always considered out of date. Header entries are sent with the request.
type WebFileOptions struct {
	Filename string
	Version  string
	Header   http.Header
}

// WebFile downloads a single file from an arbitrary URL.
type WebFile struct {
	URL  string
	opts WebFileOptions
}

func NewWebFile(rawURL string, opts WebFileOptions) *WebFile {
	return &WebFile{URL: rawURL, opts: opts}
}

func (a *WebFile) Version(ctx context.Context) (string, error) {
	return a.opts.Version, nil
}

// CacheID is derived from the URL host and normalized path, so two
// processes requesting the same URL share a cache slot.
func (a *WebFile) CacheID(ctx context.Context) (string, error) {
	u, err := url.Parse(a.URL)
	if err != nil {
		return "", errors.Wrapf(err, "parsing %s", a.URL)
	}
	slot := u.Host + path.Clean("/"+u.Path)
	return "web-" + strings.ReplaceAll(slot, "/", "-"), nil
}

func (a *WebFile) CopyTo(ctx context.Context, dest string) (string, error) {
	dest, err := DestDir(dest)
	if err != nil {
		return "", err
	}
	name := a.opts.Filename
	if name == "" {
		u, err := url.Parse(a.URL)
		if err != nil {
			return "", errors.Wrapf(err, "parsing %s", a.URL)
		}
		name = path.Base(u.Path)
	}
	return DownloadFile(ctx, a.URL, filepath.Join(dest, name), a.opts.Header)
}
