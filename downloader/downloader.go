// Package downloader orchestrates tool downloads: it owns the registry of
// downloadable tools, decides per tool whether the cached copy is still
// current, and dispatches batch runs concurrently.
package downloader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/go-yaml/yaml"
	multierror "github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/Open-CMSIS-Pack/vsce-helper/asset"
	"github.com/Open-CMSIS-Pack/vsce-helper/log"
	"github.com/Open-CMSIS-Pack/vsce-helper/models"
)

// Downloadable binds a human label and a short key to a factory producing
// the tool's asset for a target platform.
type Downloadable struct {
	Name    string
	Key     string
	Factory func(models.TargetPlatform) (asset.Asset, error)
}

// Options for a single download or a batch run.
type Options struct {
	// Force skips the cache check and always materializes the asset.
	Force bool
	// Cache overrides the downloader's cache directory.
	Cache string
}

// Downloader holds an immutable registry of downloadables plus the
// destination and cache directories.
type Downloader struct {
	dest  string
	cache string
	tools map[string]Downloadable
	order []string
}

// New builds a downloader over the given tools. Keys must be unique.
func New(dest, cache string, tools []Downloadable) (*Downloader, error) {
	d := &Downloader{
		dest:  dest,
		cache: cache,
		tools: map[string]Downloadable{},
	}
	for _, tool := range tools {
		if _, ok := d.tools[tool.Key]; ok {
			return nil, fmt.Errorf("duplicate tool key %q", tool.Key)
		}
		d.tools[tool.Key] = tool
		d.order = append(d.order, tool.Key)
	}
	return d, nil
}

// Keys lists the registered tool keys in registration order.
func (d *Downloader) Keys() []string {
	keys := make([]string, len(d.order))
	copy(keys, d.order)
	return keys
}

// DefaultCacheDir is the cache location used when none is configured.
func DefaultCacheDir(projectDir string) string {
	return filepath.Join(projectDir, ".vsce-helper", "cache")
}

// marker records the last materialized revision of a tool. A download is
// skipped when both fields still match the asset's current resolution.
type marker struct {
	CacheID string `yaml:"cacheid"`
	Version string `yaml:"version"`
}

// Download materializes one tool into <dest>/<key>, unless the cache
// marker for its key already records the asset's cache id and version.
func (d *Downloader) Download(ctx context.Context, key string, platform models.TargetPlatform, opts Options) (*models.Result, error) {
	tool, ok := d.tools[key]
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", key)
	}

	a, err := tool.Factory(platform)
	if err != nil {
		return nil, errors.Wrapf(err, "configuring %s for %s", tool.Name, platform)
	}
	cacheID, err := a.CacheID(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving cache id of %s", tool.Name)
	}
	version, err := a.Version(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving version of %s", tool.Name)
	}

	// an empty version means the asset cannot tell whether upstream moved,
	// so it is always considered out of date
	markerPath := filepath.Join(d.cacheDir(opts), key+".yaml")
	if !opts.Force && cacheID != "" && version != "" {
		if m, err := readMarker(markerPath); err == nil && m.CacheID == cacheID && m.Version == version {
			log.G(ctx).Infof("%s %s already available", tool.Name, version)
			return &models.Result{Tool: tool.Name, Key: key, Version: version, Status: models.StatusCached}, nil
		}
	}

	log.G(ctx).Infof("## Downloading %s %s", tool.Name, version)
	if _, err := a.CopyTo(ctx, filepath.Join(d.dest, key)); err != nil {
		return nil, errors.Wrapf(err, "downloading %s", tool.Name)
	}

	if cacheID != "" {
		if err := writeMarker(markerPath, marker{CacheID: cacheID, Version: version}); err != nil {
			log.G(ctx).Warnf("could not record cache marker for %s: %v", tool.Name, err)
		}
	}
	return &models.Result{Tool: tool.Name, Key: key, Version: version, Status: models.StatusDownloaded}, nil
}

// Run downloads the selected tools concurrently and waits for all of them
// to settle. One tool failing does not stop the others; all failures are
// collected into the returned error.
func (d *Downloader) Run(ctx context.Context, keys []string, platform models.TargetPlatform, opts Options) ([]*models.Result, error) {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []*models.Result
		merr    *multierror.Error
	)

	for _, key := range keys {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			result, err := d.Download(ctx, key, platform, opts)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.G(ctx).Warnf("Error in handling %s: %v", key, err)
				merr = multierror.Append(merr, errors.Wrap(err, key))
				results = append(results, &models.Result{Tool: key, Key: key, Status: models.StatusFailed})
				return
			}
			results = append(results, result)
		}(key)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool {
		return results[i].Key < results[j].Key
	})
	return results, merr.ErrorOrNil()
}

func (d *Downloader) cacheDir(opts Options) string {
	if opts.Cache != "" {
		return opts.Cache
	}
	return d.cache
}

func readMarker(path string) (marker, error) {
	var m marker
	data, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	err = yaml.Unmarshal(data, &m)
	return m, err
}

func writeMarker(path string, m marker) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
