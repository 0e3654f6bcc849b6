// Package asset models resolvable, materializable units of tool content.
// Every source kind implements the same small contract so the downloader
// can cache and place them uniformly.
package asset

import (
	"context"
	"os"
	"sync"
)

// Asset is a unit of content from some source. Version answers what
// upstream revision the asset represents; an empty version means unknown,
// so the asset is always considered out of date. CacheID names the logical
// cache slot; an empty id means the asset is not cacheable. CopyTo
// materializes the asset below dest and returns the path actually used.
// An empty dest lets the asset pick a scratch destination of its own.
//
// Version and CacheID may need a network round trip. Implementations
// memoize that resolution, so callers are free to query both without
// triggering duplicate requests.
type Asset interface {
	Version(ctx context.Context) (string, error)
	CacheID(ctx context.Context) (string, error)
	CopyTo(ctx context.Context, dest string) (string, error)
}

// Memo caches the outcome of a single resolution for the lifetime of its
// owner. Concurrent callers share one underlying call: the second caller
// blocks on the in-flight resolution instead of re-issuing it, and errors
// are retained just like values.
type Memo[T any] struct {
	once sync.Once
	val  T
	err  error
}

// Do returns the memoized result, running resolve at most once.
func (m *Memo[T]) Do(resolve func() (T, error)) (T, error) {
	m.once.Do(func() {
		m.val, m.err = resolve()
	})
	return m.val, m.err
}

// DestDir normalizes a CopyTo destination: an empty dest becomes a fresh
// directory under the system temp root, anything else is created if
// missing.
func DestDir(dest string) (string, error) {
	if dest == "" {
		return os.MkdirTemp("", "vsce-helper-")
	}
	return dest, os.MkdirAll(dest, 0o755)
}
