package githubasset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/google/go-github/v32/github"
	"github.com/pkg/errors"

	"github.com/Open-CMSIS-Pack/vsce-helper/asset"
	"github.com/Open-CMSIS-Pack/vsce-helper/log"
)

// WorkflowArtifactOptions tune artifact resolution. ArtifactPattern
// replaces the default exact-name match of the artifact argument.
type WorkflowArtifactOptions struct {
	ArtifactPattern *regexp.Regexp
	Token           string
}

// WorkflowArtifact is an artifact uploaded by the most recent successful
// run of a workflow. Artifact zips come without a wrapping directory and
// are extracted here as-is, so do not wrap this asset in an Archive.
type WorkflowArtifact struct {
	source
	workflow string
	artifact string
	opts     WorkflowArtifactOptions

	run asset.Memo[*github.WorkflowRun]
}

func NewWorkflowArtifact(pool *ClientPool, owner, repo, workflowFile, artifact string, opts WorkflowArtifactOptions) *WorkflowArtifact {
	return &WorkflowArtifact{
		source:   source{pool: pool, owner: owner, repo: repo, token: opts.Token},
		workflow: workflowFile,
		artifact: artifact,
		opts:     opts,
	}
}

func (a *WorkflowArtifact) pattern() *regexp.Regexp {
	if a.opts.ArtifactPattern != nil {
		return a.opts.ArtifactPattern
	}
	return regexp.MustCompile("^" + regexp.QuoteMeta(a.artifact) + "$")
}

// lastSuccessfulRun scans the workflow's runs newest first and memoizes
// the first completed run that concluded successfully.
func (a *WorkflowArtifact) lastSuccessfulRun(ctx context.Context) (*github.WorkflowRun, error) {
	return a.run.Do(func() (*github.WorkflowRun, error) {
		opt := &github.ListWorkflowRunsOptions{ListOptions: github.ListOptions{PerPage: 100}}
		for {
			runs, resp, err := a.client(ctx).Actions.ListWorkflowRunsByFileName(ctx, a.owner, a.repo, a.workflow, opt)
			if err != nil {
				return nil, errors.Wrapf(err, "listing runs of workflow %s in %s/%s", a.workflow, a.owner, a.repo)
			}
			for _, run := range runs.WorkflowRuns {
				if run.GetStatus() == "completed" && run.GetConclusion() == "success" {
					return run, nil
				}
			}
			if resp.NextPage == 0 {
				break
			}
			opt.Page = resp.NextPage
		}
		return nil, fmt.Errorf("workflow %s in %s/%s has no successful run", a.workflow, a.owner, a.repo)
	})
}

func (a *WorkflowArtifact) Version(ctx context.Context) (string, error) {
	run, err := a.lastSuccessfulRun(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d", a.workflow, run.GetID()), nil
}

func (a *WorkflowArtifact) CacheID(ctx context.Context) (string, error) {
	run, err := a.lastSuccessfulRun(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("github-workflow-%s-%s-%s-%d", a.owner, a.repo, a.workflow, run.GetID()), nil
}

// CopyTo downloads the artifact zip and extracts it into dest without
// stripping. The zip is kept at a stable path under the temp root, so a
// payload already fetched for this run is not downloaded again.
func (a *WorkflowArtifact) CopyTo(ctx context.Context, dest string) (string, error) {
	run, err := a.lastSuccessfulRun(ctx)
	if err != nil {
		return "", err
	}

	found, err := a.findArtifact(ctx, run)
	if err != nil {
		return "", err
	}

	cacheDir := filepath.Join(os.TempDir(), "vsce-helper")
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return "", err
	}
	zipPath := filepath.Join(cacheDir, fmt.Sprintf("%s-%s-%d-%s.zip", a.owner, a.repo, run.GetID(), found.GetName()))
	if _, err := os.Stat(zipPath); err == nil {
		log.G(ctx).Debugf("using already downloaded artifact: %s", zipPath)
	} else {
		link, _, err := a.client(ctx).Actions.DownloadArtifact(ctx, a.owner, a.repo, found.GetID(), true)
		if err != nil {
			return "", errors.Wrapf(err, "requesting artifact %s of run %d", found.GetName(), run.GetID())
		}
		log.G(ctx).Infof("downloading artifact %s of %s/%s run %d", found.GetName(), a.owner, a.repo, run.GetID())
		if _, err := a.download(ctx, link.String(), zipPath); err != nil {
			return "", err
		}
	}

	dest, err = asset.DestDir(dest)
	if err != nil {
		return "", err
	}
	if err := asset.ExtractArchive(zipPath, dest, 0); err != nil {
		return "", err
	}
	return dest, nil
}

func (a *WorkflowArtifact) findArtifact(ctx context.Context, run *github.WorkflowRun) (*github.Artifact, error) {
	pattern := a.pattern()
	opt := &github.ListOptions{PerPage: 100}
	for {
		artifacts, resp, err := a.client(ctx).Actions.ListWorkflowRunArtifacts(ctx, a.owner, a.repo, run.GetID(), opt)
		if err != nil {
			return nil, errors.Wrapf(err, "listing artifacts of run %d in %s/%s", run.GetID(), a.owner, a.repo)
		}
		for _, artifact := range artifacts.Artifacts {
			if pattern.MatchString(artifact.GetName()) {
				return artifact, nil
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return nil, fmt.Errorf("run %d of %s/%s has no artifact matching %s", run.GetID(), a.owner, a.repo, pattern)
}
