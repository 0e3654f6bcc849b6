// Package githubasset resolves GitHub-hosted sources into downloadable
// assets: release binaries, repository snapshots and workflow artifacts.
package githubasset

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/go-github/v32/github"
	"golang.org/x/oauth2"

	"github.com/Open-CMSIS-Pack/vsce-helper/asset"
	"github.com/pkg/errors"
)

// ClientPool hands out one API client per distinct access token, so all
// assets sharing a credential share connection and auth setup. The empty
// token maps to an unauthenticated, rate-limited client. Insertion is
// idempotent per token, safe for concurrent use.
type ClientPool struct {
	mu      sync.Mutex
	clients map[string]*github.Client
}

func NewClientPool() *ClientPool {
	return &ClientPool{clients: map[string]*github.Client{}}
}

// Get returns the pooled client for token, constructing it on first use.
func (p *ClientPool) Get(ctx context.Context, token string) *github.Client {
	p.mu.Lock()
	defer p.mu.Unlock()

	if client, ok := p.clients[token]; ok {
		return client
	}
	var client *github.Client
	if token == "" {
		client = github.NewClient(nil)
	} else {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		client = github.NewClient(oauth2.NewClient(ctx, ts))
	}
	p.clients[token] = client
	return client
}

// source carries what all GitHub asset variants share: repository
// coordinates, the credential, and a per-instance memoized ref resolver.
type source struct {
	pool  *ClientPool
	owner string
	repo  string
	token string

	mu   sync.Mutex
	refs map[string]*asset.Memo[string]
}

func (s *source) client(ctx context.Context) *github.Client {
	return s.pool.Get(ctx, s.token)
}

// resolveRef resolves a branch or tag name to a commit SHA, at most once
// per distinct ref for this instance.
func (s *source) resolveRef(ctx context.Context, ref string) (string, error) {
	s.mu.Lock()
	if s.refs == nil {
		s.refs = map[string]*asset.Memo[string]{}
	}
	memo, ok := s.refs[ref]
	if !ok {
		memo = &asset.Memo[string]{}
		s.refs[ref] = memo
	}
	s.mu.Unlock()

	return memo.Do(func() (string, error) {
		sha, _, err := s.client(ctx).Repositories.GetCommitSHA1(ctx, s.owner, s.repo, ref, "")
		if err != nil {
			return "", errors.Wrapf(err, "resolving ref %s in %s/%s", ref, s.owner, s.repo)
		}
		return sha, nil
	})
}

// download fetches a binary through the transfer primitive, attaching the
// bearer token when one was configured.
func (s *source) download(ctx context.Context, url, dest string) (string, error) {
	header := http.Header{}
	if s.token != "" {
		header.Set("Authorization", "Bearer "+s.token)
	}
	return asset.DownloadFile(ctx, url, dest, header)
}
