package models

import (
	"fmt"
	"runtime"
	"strings"
)

// TargetPlatform selects the platform-specific coordinates of a tool, in
// the usual {os}-{arch} notation of extension packaging.
type TargetPlatform string

const (
	Win32X64    TargetPlatform = "win32-x64"
	Win32Arm64  TargetPlatform = "win32-arm64"
	LinuxX64    TargetPlatform = "linux-x64"
	LinuxArm64  TargetPlatform = "linux-arm64"
	DarwinX64   TargetPlatform = "darwin-x64"
	DarwinArm64 TargetPlatform = "darwin-arm64"
)

// TargetPlatforms is the closed set of supported platforms.
var TargetPlatforms = []TargetPlatform{
	Win32X64,
	Win32Arm64,
	LinuxX64,
	LinuxArm64,
	DarwinX64,
	DarwinArm64,
}

// ParseTargetPlatform validates s against the supported platform set.
func ParseTargetPlatform(s string) (TargetPlatform, error) {
	for _, tp := range TargetPlatforms {
		if string(tp) == s {
			return tp, nil
		}
	}
	return "", fmt.Errorf("%q is not a supported target platform (supported: %s)", s, joinPlatforms())
}

// HostPlatform maps the running system onto a target platform.
func HostPlatform() (TargetPlatform, error) {
	goos := runtime.GOOS
	if goos == "windows" {
		goos = "win32"
	}
	arch := runtime.GOARCH
	if arch == "amd64" {
		arch = "x64"
	}
	return ParseTargetPlatform(goos + "-" + arch)
}

// OS returns the operating system half of the platform string.
func (tp TargetPlatform) OS() string {
	return strings.SplitN(string(tp), "-", 2)[0]
}

// Arch returns the architecture half of the platform string.
func (tp TargetPlatform) Arch() string {
	parts := strings.SplitN(string(tp), "-", 2)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

func joinPlatforms() string {
	names := make([]string, len(TargetPlatforms))
	for i, tp := range TargetPlatforms {
		names[i] = string(tp)
	}
	return strings.Join(names, ", ")
}

// ToolConfig declares an extra web-served tool in the optional YAML config
// file. A "{platform}" placeholder in the URL is replaced with the resolved
// target platform.
type ToolConfig struct {
	Name     string `yaml:"name"`
	Key      string `yaml:"key"`
	URL      string `yaml:"url"`
	Filename string `yaml:"filename"`
	Version  string `yaml:"version"`
	Strip    *int   `yaml:"strip"`
}

// Status of a single tool after a run.
type Status string

const (
	StatusDownloaded Status = "Downloaded"
	StatusCached     Status = "Already available"
	StatusFailed     Status = "Failed"
)

// Result is one row of a run summary.
type Result struct {
	Tool    string
	Key     string
	Version string
	Status  Status
}
