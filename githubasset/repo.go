package githubasset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/go-github/v32/github"
	"github.com/pkg/errors"

	"github.com/Open-CMSIS-Pack/vsce-helper/asset"
	"github.com/Open-CMSIS-Pack/vsce-helper/log"
)

// RepoOptions tune a repository snapshot. Ref defaults to "main". Paths
// lists files or folders relative to the repository root to place in the
// destination; empty means the whole tree.
type RepoOptions struct {
	Ref   string
	Paths []string
	Token string
}

// Repo is a snapshot of a repository at a ref, fetched as a tarball.
// Version and cache identity follow the commit the ref resolves to.
type Repo struct {
	source
	opts RepoOptions
}

func NewRepo(pool *ClientPool, owner, repo string, opts RepoOptions) *Repo {
	if opts.Ref == "" {
		opts.Ref = "main"
	}
	return &Repo{
		source: source{pool: pool, owner: owner, repo: repo, token: opts.Token},
		opts:   opts,
	}
}

func (a *Repo) Version(ctx context.Context) (string, error) {
	return a.resolveRef(ctx, a.opts.Ref)
}

func (a *Repo) CacheID(ctx context.Context) (string, error) {
	sha, err := a.resolveRef(ctx, a.opts.Ref)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("github-repo-%s-%s-%s", a.owner, a.repo, sha), nil
}

// CopyTo downloads the snapshot tarball into scratch space, unwraps the
// single top-level directory GitHub puts around the tree, and copies the
// requested paths into dest.
func (a *Repo) CopyTo(ctx context.Context, dest string) (string, error) {
	dest, err := asset.DestDir(dest)
	if err != nil {
		return "", err
	}

	scope := &asset.Scope{}
	defer scope.Close()

	scratch, err := scope.TempDir("vsce-helper-repo-")
	if err != nil {
		return "", err
	}

	getOpts := &github.RepositoryContentGetOptions{Ref: a.opts.Ref}
	link, _, err := a.client(ctx).Repositories.GetArchiveLink(ctx, a.owner, a.repo, github.Tarball, getOpts, true)
	if err != nil {
		return "", errors.Wrapf(err, "requesting snapshot of %s/%s@%s", a.owner, a.repo, a.opts.Ref)
	}

	log.G(ctx).Infof("downloading snapshot of %s/%s@%s", a.owner, a.repo, a.opts.Ref)
	tarball := filepath.Join(scratch, "snapshot.tar.gz")
	if _, err := a.download(ctx, link.String(), tarball); err != nil {
		return "", err
	}

	unpacked := filepath.Join(scratch, "unpacked")
	if err := asset.ExtractArchive(tarball, unpacked, 1); err != nil {
		return "", err
	}

	if len(a.opts.Paths) == 0 {
		if err := asset.CopyRecursive(unpacked, dest, 1); err != nil {
			return "", err
		}
		return dest, nil
	}
	for _, p := range a.opts.Paths {
		src := filepath.Join(unpacked, filepath.FromSlash(p))
		info, err := os.Stat(src)
		if err != nil {
			return "", errors.Wrapf(err, "path %s not present in snapshot of %s/%s@%s", p, a.owner, a.repo, a.opts.Ref)
		}
		if info.IsDir() {
			if err := asset.CopyRecursive(src, dest, 1); err != nil {
				return "", err
			}
			continue
		}
		if err := asset.CopyFile(src, filepath.Join(dest, info.Name())); err != nil {
			return "", err
		}
	}
	return dest, nil
}
