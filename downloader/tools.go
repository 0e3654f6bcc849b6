package downloader

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Open-CMSIS-Pack/vsce-helper/asset"
	"github.com/Open-CMSIS-Pack/vsce-helper/githubasset"
	"github.com/Open-CMSIS-Pack/vsce-helper/models"
)

var semverTag = regexp.MustCompile(`^v?(\d+\.\d+\.\d+)$`)

// Tools returns the built-in downloadables of the packaging pipeline.
func Tools(pool *githubasset.ClientPool, token string) []Downloadable {
	return []Downloadable{
		{
			Name: "CMSIS-Toolbox",
			Key:  "cmsis-toolbox",
			Factory: func(tp models.TargetPlatform) (asset.Asset, error) {
				archive, err := toolboxArchive(tp)
				if err != nil {
					return nil, err
				}
				release := githubasset.NewRelease(pool, "Open-CMSIS-Pack", "cmsis-toolbox", "", archive,
					githubasset.ReleaseOptions{
						TagPattern:        semverTag,
						Token:             token,
						ExcludePrerelease: true,
					})
				// toolbox archives wrap everything in a versioned directory
				return asset.NewArchive(release, 1), nil
			},
		},
		{
			Name: "Pack-Check",
			Key:  "packchk",
			Factory: func(tp models.TargetPlatform) (asset.Asset, error) {
				artifact := fmt.Sprintf("packchk-%s-%s", vsceOS(tp), tp.Arch())
				return githubasset.NewWorkflowArtifact(pool, "Open-CMSIS-Pack", "devtools",
					"packchk.yml", artifact,
					githubasset.WorkflowArtifactOptions{Token: token}), nil
			},
		},
		{
			Name: "Pack-Schema",
			Key:  "pack-schema",
			Factory: func(tp models.TargetPlatform) (asset.Asset, error) {
				return githubasset.NewRepo(pool, "Open-CMSIS-Pack", "Open-CMSIS-Pack-Spec",
					githubasset.RepoOptions{
						Ref:   "main",
						Paths: []string{"schema"},
						Token: token,
					}), nil
			},
		},
	}
}

// FromConfig turns user-declared web tools into downloadables.
func FromConfig(configs []models.ToolConfig) []Downloadable {
	tools := make([]Downloadable, 0, len(configs))
	for _, cfg := range configs {
		cfg := cfg
		tools = append(tools, Downloadable{
			Name: cfg.Name,
			Key:  cfg.Key,
			Factory: func(tp models.TargetPlatform) (asset.Asset, error) {
				url := strings.ReplaceAll(cfg.URL, "{platform}", string(tp))
				web := asset.NewWebFile(url, asset.WebFileOptions{
					Filename: cfg.Filename,
					Version:  cfg.Version,
				})
				if cfg.Strip != nil {
					return asset.NewArchive(web, *cfg.Strip), nil
				}
				return web, nil
			},
		})
	}
	return tools
}

// toolboxArchive maps a target platform onto the archive name published
// with toolbox releases.
func toolboxArchive(tp models.TargetPlatform) (string, error) {
	arch := map[string]string{"x64": "amd64", "arm64": "arm64"}[tp.Arch()]
	if arch == "" {
		return "", fmt.Errorf("no toolbox archive for %s", tp)
	}
	switch tp.OS() {
	case "win32":
		return fmt.Sprintf("cmsis-toolbox-windows-%s.zip", arch), nil
	case "linux":
		return fmt.Sprintf("cmsis-toolbox-linux-%s.tar.gz", arch), nil
	case "darwin":
		return fmt.Sprintf("cmsis-toolbox-darwin-%s.tar.gz", arch), nil
	}
	return "", fmt.Errorf("no toolbox archive for %s", tp)
}

func vsceOS(tp models.TargetPlatform) string {
	if tp.OS() == "win32" {
		return "windows"
	}
	return tp.OS()
}
