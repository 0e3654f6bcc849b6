package asset

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/Open-CMSIS-Pack/vsce-helper/log"
)

const userAgent = "vsce-helper"

// httpClient leaves redirect handling to DownloadFile so the caller keeps
// control of the headers sent to the redirect target.
var httpClient = &http.Client{
	CheckRedirect: func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	},
}

// DownloadError is a non-2xx, non-redirect response. The response headers
// are kept because they carry the interesting part of auth and rate-limit
// failures.
type DownloadError struct {
	StatusCode int
	URL        string
	Status     string
	Header     http.Header
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("downloading %s failed: %d %s (headers: %v)", e.URL, e.StatusCode, e.Status, e.Header)
}

// DownloadFile fetches url into dest, following 301/302 redirects with the
// same headers, and returns the destination path.
func DownloadFile(ctx context.Context, url, dest string, header http.Header) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("User-Agent", userAgent)
	for key, values := range header {
		req.Header[http.CanonicalHeaderKey(key)] = values
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusMovedPermanently || resp.StatusCode == http.StatusFound {
		location := resp.Header.Get("Location")
		if location == "" {
			return "", fmt.Errorf("redirect from %s carries no location header", url)
		}
		log.G(ctx).Debugf("following redirect: %s -> %s", url, location)
		return DownloadFile(ctx, location, dest, header)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &DownloadError{
			StatusCode: resp.StatusCode,
			URL:        url,
			Status:     resp.Status,
			Header:     resp.Header,
		}
	}

	out, err := os.Create(dest)
	if err != nil {
		return "", errors.Wrapf(err, "creating %s", dest)
	}
	defer out.Close()

	written, err := io.Copy(out, resp.Body)
	if err != nil {
		return "", errors.Wrapf(err, "writing %s", dest)
	}
	log.G(ctx).Debugf("downloaded %s (%s)", dest, humanize.Bytes(uint64(written)))
	return dest, nil
}
