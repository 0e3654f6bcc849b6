package githubasset

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/blang/semver"
	"github.com/google/go-github/v32/github"

	"github.com/Open-CMSIS-Pack/vsce-helper/asset"
	"github.com/Open-CMSIS-Pack/vsce-helper/log"
)

// ReleaseOptions tune release resolution. TagPattern replaces the default
// pattern built from the literal tag; its first capture group becomes the
// asset version. ExcludePrerelease skips releases flagged as prereleases
// and tags whose captured version carries semver pre components.
type ReleaseOptions struct {
	TagPattern        *regexp.Regexp
	Token             string
	ExcludePrerelease bool
}

// Release is a binary asset attached to a GitHub release. The release is
// picked newest-first by tag pattern: a literal tag like "1.5.0" matches
// with or without a leading "v".
type Release struct {
	source
	tag       string
	assetName string
	opts      ReleaseOptions

	match asset.Memo[releaseMatch]
}

type releaseMatch struct {
	release *github.RepositoryRelease
	tag     string
	version string
}

func NewRelease(pool *ClientPool, owner, repo, tag, assetName string, opts ReleaseOptions) *Release {
	return &Release{
		source:    source{pool: pool, owner: owner, repo: repo, token: opts.Token},
		tag:       tag,
		assetName: assetName,
		opts:      opts,
	}
}

func (a *Release) pattern() *regexp.Regexp {
	if a.opts.TagPattern != nil {
		return a.opts.TagPattern
	}
	return regexp.MustCompile("^v?(" + regexp.QuoteMeta(a.tag) + ")$")
}

// resolve finds the first release, newest first, whose tag matches the
// pattern. The result is memoized for the instance lifetime.
func (a *Release) resolve(ctx context.Context) (releaseMatch, error) {
	return a.match.Do(func() (releaseMatch, error) {
		pattern := a.pattern()
		opt := &github.ListOptions{PerPage: 100}
		for {
			releases, resp, err := a.client(ctx).Repositories.ListReleases(ctx, a.owner, a.repo, opt)
			if err != nil {
				return releaseMatch{}, err
			}
			for _, release := range releases {
				submatch := pattern.FindStringSubmatch(release.GetTagName())
				if submatch == nil {
					continue
				}
				version := ""
				if len(submatch) > 1 {
					version = submatch[1]
				}
				if a.opts.ExcludePrerelease && isPrerelease(release, version) {
					log.G(ctx).Debugf("skipping prerelease %s in %s/%s", release.GetTagName(), a.owner, a.repo)
					continue
				}
				return releaseMatch{release: release, tag: release.GetTagName(), version: version}, nil
			}
			if resp.NextPage == 0 {
				break
			}
			opt.Page = resp.NextPage
		}
		return releaseMatch{}, fmt.Errorf("no release tag in %s/%s matches %s", a.owner, a.repo, a.describePattern())
	})
}

// describePattern names what the caller searched for: the literal tag, or
// the explicit pattern when one was given.
func (a *Release) describePattern() string {
	if a.opts.TagPattern != nil {
		return a.opts.TagPattern.String()
	}
	return a.tag
}

func isPrerelease(release *github.RepositoryRelease, version string) bool {
	if release.GetPrerelease() {
		return true
	}
	v, err := semver.Make(version)
	if err != nil {
		return false
	}
	return len(v.Pre) > 0
}

// Version is the first capture group of the tag match, empty when the
// pattern captures nothing.
func (a *Release) Version(ctx context.Context) (string, error) {
	match, err := a.resolve(ctx)
	if err != nil {
		return "", err
	}
	return match.version, nil
}

func (a *Release) CacheID(ctx context.Context) (string, error) {
	match, err := a.resolve(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("github-release-%s-%s-%s", a.owner, a.repo, match.tag), nil
}

// CopyTo downloads the named release asset to <dest>/<assetName>.
func (a *Release) CopyTo(ctx context.Context, dest string) (string, error) {
	match, err := a.resolve(ctx)
	if err != nil {
		return "", err
	}
	var downloadURL string
	for _, releaseAsset := range match.release.Assets {
		if releaseAsset.GetName() == a.assetName {
			downloadURL = releaseAsset.GetBrowserDownloadURL()
			break
		}
	}
	if downloadURL == "" {
		return "", fmt.Errorf("release %s in %s/%s has no asset named %s (assets: %s)",
			match.tag, a.owner, a.repo, a.assetName, assetNames(match.release))
	}

	dest, err = asset.DestDir(dest)
	if err != nil {
		return "", err
	}
	log.G(ctx).Infof("downloading %s from %s/%s release %s", a.assetName, a.owner, a.repo, match.tag)
	return a.download(ctx, downloadURL, filepath.Join(dest, a.assetName))
}

func assetNames(release *github.RepositoryRelease) string {
	names := make([]string, len(release.Assets))
	for i, releaseAsset := range release.Assets {
		names[i] = releaseAsset.GetName()
	}
	return strings.Join(names, ", ")
}
