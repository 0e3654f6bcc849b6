package downloader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/Open-CMSIS-Pack/vsce-helper/asset"
	"github.com/Open-CMSIS-Pack/vsce-helper/models"
)

// fakeAsset counts materializations so the cache decisions are observable.
type fakeAsset struct {
	version string
	cacheID string
	err     error
	copies  int32
}

func (a *fakeAsset) Version(ctx context.Context) (string, error) {
	return a.version, a.err
}

func (a *fakeAsset) CacheID(ctx context.Context) (string, error) {
	return a.cacheID, a.err
}

func (a *fakeAsset) CopyTo(ctx context.Context, dest string) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	atomic.AddInt32(&a.copies, 1)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", err
	}
	return dest, nil
}

func tool(key string, a *fakeAsset) Downloadable {
	return Downloadable{
		Name: strings.ToUpper(key),
		Key:  key,
		Factory: func(models.TargetPlatform) (asset.Asset, error) {
			return a, nil
		},
	}
}

func TestDownloadCaching(t *testing.T) {
	ctx := context.Background()

	t.Run("second download with unchanged revision is a no-op", func(t *testing.T) {
		a := &fakeAsset{version: "1.5.0", cacheID: "github-release-acme-toolbox-v1.5.0"}
		d, err := New(t.TempDir(), t.TempDir(), []Downloadable{tool("toolbox", a)})
		if err != nil {
			t.Fatal(err)
		}

		first, err := d.Download(ctx, "toolbox", models.LinuxX64, Options{})
		if err != nil {
			t.Fatalf("Download() error = %v", err)
		}
		if first.Status != models.StatusDownloaded {
			t.Errorf("first status = %q, want %q", first.Status, models.StatusDownloaded)
		}

		second, err := d.Download(ctx, "toolbox", models.LinuxX64, Options{})
		if err != nil {
			t.Fatalf("Download() error = %v", err)
		}
		if second.Status != models.StatusCached {
			t.Errorf("second status = %q, want %q", second.Status, models.StatusCached)
		}
		if a.copies != 1 {
			t.Errorf("asset materialized %d times, want 1", a.copies)
		}
	})

	t.Run("force bypasses the cache check", func(t *testing.T) {
		a := &fakeAsset{version: "1.5.0", cacheID: "github-release-acme-toolbox-v1.5.0"}
		d, err := New(t.TempDir(), t.TempDir(), []Downloadable{tool("toolbox", a)})
		if err != nil {
			t.Fatal(err)
		}

		if _, err := d.Download(ctx, "toolbox", models.LinuxX64, Options{}); err != nil {
			t.Fatal(err)
		}
		if _, err := d.Download(ctx, "toolbox", models.LinuxX64, Options{Force: true}); err != nil {
			t.Fatal(err)
		}
		if a.copies != 2 {
			t.Errorf("asset materialized %d times, want 2", a.copies)
		}
	})

	t.Run("changed version invalidates the marker", func(t *testing.T) {
		a := &fakeAsset{version: "1.5.0", cacheID: "slot"}
		d, err := New(t.TempDir(), t.TempDir(), []Downloadable{tool("toolbox", a)})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := d.Download(ctx, "toolbox", models.LinuxX64, Options{}); err != nil {
			t.Fatal(err)
		}
		a.version = "1.6.0"
		if _, err := d.Download(ctx, "toolbox", models.LinuxX64, Options{}); err != nil {
			t.Fatal(err)
		}
		if a.copies != 2 {
			t.Errorf("asset materialized %d times, want 2", a.copies)
		}
	})

	t.Run("cache slot without a version hint always materializes", func(t *testing.T) {
		a := &fakeAsset{cacheID: "web-example.com-tool"}
		d, err := New(t.TempDir(), t.TempDir(), []Downloadable{tool("web", a)})
		if err != nil {
			t.Fatal(err)
		}
		for i := 0; i < 2; i++ {
			if _, err := d.Download(ctx, "web", models.LinuxX64, Options{}); err != nil {
				t.Fatal(err)
			}
		}
		if a.copies != 2 {
			t.Errorf("asset materialized %d times, want 2", a.copies)
		}
	})

	t.Run("assets without a cache slot always materialize", func(t *testing.T) {
		a := &fakeAsset{}
		d, err := New(t.TempDir(), t.TempDir(), []Downloadable{tool("local", a)})
		if err != nil {
			t.Fatal(err)
		}
		for i := 0; i < 2; i++ {
			if _, err := d.Download(ctx, "local", models.LinuxX64, Options{}); err != nil {
				t.Fatal(err)
			}
		}
		if a.copies != 2 {
			t.Errorf("asset materialized %d times, want 2", a.copies)
		}
	})

	t.Run("cache override is honored", func(t *testing.T) {
		a := &fakeAsset{version: "1.5.0", cacheID: "slot"}
		d, err := New(t.TempDir(), t.TempDir(), []Downloadable{tool("toolbox", a)})
		if err != nil {
			t.Fatal(err)
		}
		override := t.TempDir()
		if _, err := d.Download(ctx, "toolbox", models.LinuxX64, Options{Cache: override}); err != nil {
			t.Fatal(err)
		}
		if _, err := os.Stat(filepath.Join(override, "toolbox.yaml")); err != nil {
			t.Errorf("marker not written to override cache: %v", err)
		}
	})
}

func TestDownloadUnknownTool(t *testing.T) {
	d, err := New(t.TempDir(), t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.Download(context.Background(), "nope", models.LinuxX64, Options{}); err == nil {
		t.Fatal("Download() expected error")
	}
}

func TestNewRejectsDuplicateKeys(t *testing.T) {
	_, err := New(t.TempDir(), t.TempDir(), []Downloadable{
		tool("toolbox", &fakeAsset{}),
		tool("toolbox", &fakeAsset{}),
	})
	if err == nil {
		t.Fatal("New() expected error for duplicate key")
	}
}

func TestRun(t *testing.T) {
	ctx := context.Background()

	t.Run("one failure does not stop the others", func(t *testing.T) {
		good := &fakeAsset{version: "1.0.0", cacheID: "good"}
		bad := &fakeAsset{err: errors.New("resolution failed")}
		d, err := New(t.TempDir(), t.TempDir(), []Downloadable{
			tool("good", good),
			tool("bad", bad),
		})
		if err != nil {
			t.Fatal(err)
		}

		results, err := d.Run(ctx, d.Keys(), models.LinuxX64, Options{})
		if err == nil {
			t.Fatal("Run() expected aggregated error")
		}
		if !strings.Contains(err.Error(), "bad") {
			t.Errorf("error %q does not name the failing tool", err)
		}
		if good.copies != 1 {
			t.Errorf("surviving tool materialized %d times, want 1", good.copies)
		}
		if len(results) != 2 {
			t.Fatalf("got %d results, want 2", len(results))
		}
		for _, result := range results {
			switch result.Key {
			case "good":
				if result.Status != models.StatusDownloaded {
					t.Errorf("good status = %q", result.Status)
				}
			case "bad":
				if result.Status != models.StatusFailed {
					t.Errorf("bad status = %q", result.Status)
				}
			}
		}
	})

	t.Run("all tools settle concurrently", func(t *testing.T) {
		tools := []Downloadable{}
		assets := []*fakeAsset{}
		for _, key := range []string{"a", "b", "c", "d"} {
			a := &fakeAsset{version: "1.0.0", cacheID: "slot-" + key}
			assets = append(assets, a)
			tools = append(tools, tool(key, a))
		}
		d, err := New(t.TempDir(), t.TempDir(), tools)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := d.Run(ctx, d.Keys(), models.LinuxX64, Options{}); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		for i, a := range assets {
			if a.copies != 1 {
				t.Errorf("asset %d materialized %d times, want 1", i, a.copies)
			}
		}
	})
}

func TestFromConfig(t *testing.T) {
	strip := 1
	tools := FromConfig([]models.ToolConfig{
		{Name: "Extra", Key: "extra", URL: "https://example.com/{platform}/tool.tar.gz", Version: "2.0.0", Strip: &strip},
		{Name: "Plain", Key: "plain", URL: "https://example.com/tool.cfg"},
	})
	if len(tools) != 2 {
		t.Fatalf("got %d tools, want 2", len(tools))
	}

	archive, err := tools[0].Factory(models.LinuxArm64)
	if err != nil {
		t.Fatal(err)
	}
	cacheID, err := archive.CacheID(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	// the platform placeholder lands in the resolved URL and therefore the slot
	if !strings.Contains(cacheID, "linux-arm64") {
		t.Errorf("CacheID() = %q, want the platform in it", cacheID)
	}
	if _, ok := archive.(*asset.Archive); !ok {
		t.Errorf("tool with strip is %T, want *asset.Archive", archive)
	}

	plain, err := tools[1].Factory(models.LinuxArm64)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := plain.(*asset.WebFile); !ok {
		t.Errorf("tool without strip is %T, want *asset.WebFile", plain)
	}
}

func TestToolboxArchive(t *testing.T) {
	tests := []struct {
		platform models.TargetPlatform
		want     string
	}{
		{platform: models.Win32X64, want: "cmsis-toolbox-windows-amd64.zip"},
		{platform: models.Win32Arm64, want: "cmsis-toolbox-windows-arm64.zip"},
		{platform: models.LinuxX64, want: "cmsis-toolbox-linux-amd64.tar.gz"},
		{platform: models.DarwinArm64, want: "cmsis-toolbox-darwin-arm64.tar.gz"},
	}
	for _, tt := range tests {
		t.Run(string(tt.platform), func(t *testing.T) {
			got, err := toolboxArchive(tt.platform)
			if err != nil {
				t.Fatalf("toolboxArchive() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("toolboxArchive() = %q, want %q", got, tt.want)
			}
		})
	}
}
