package knowledge

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-github/v56/github"
	"golang.org/x/oauth2"
)

// GitHubSource reads markdown/text documents from a repository tree.
// Location form: owner/repo[/path][@ref].
type GitHubSource struct {
	client *github.Client
	owner  string
	repo   string
	dir    string
	ref    string
}

func NewGitHubSource(ctx context.Context, location, token string) (*GitHubSource, error) {
	return NewGitHubSourceWithClient(NewGitHubClient(ctx, token), location)
}

// NewGitHubClient returns an API client, authenticated when token is set.
func NewGitHubClient(ctx context.Context, token string) *github.Client {
	if token == "" {
		return github.NewClient(nil)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return github.NewClient(oauth2.NewClient(ctx, ts))
}

func NewGitHubSourceWithClient(client *github.Client, location string) (*GitHubSource, error) {
	location, ref, _ := strings.Cut(location, "@")
	parts := strings.SplitN(strings.Trim(location, "/"), "/", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("github source must look like owner/repo[/path][@ref], got %q", location)
	}
	src := &GitHubSource{client: client, owner: parts[0], repo: parts[1], ref: ref}
	if len(parts) == 3 {
		src.dir = strings.Trim(parts[2], "/")
	}
	return src, nil
}

func (s *GitHubSource) Location() string {
	loc := "github://" + s.owner + "/" + s.repo
	if s.dir != "" {
		loc += "/" + s.dir
	}
	if s.ref != "" {
		loc += "@" + s.ref
	}
	return loc
}

func (s *GitHubSource) resolveRef(ctx context.Context) (string, error) {
	if s.ref != "" {
		return s.ref, nil
	}
	repo, _, err := s.client.Repositories.Get(ctx, s.owner, s.repo)
	if err != nil {
		return "", fmt.Errorf("failed to get repository %s/%s: %w", s.owner, s.repo, err)
	}
	if branch := repo.GetDefaultBranch(); branch != "" {
		return branch, nil
	}
	return "main", nil
}

func (s *GitHubSource) List(ctx context.Context) ([]DocumentRef, error) {
	ref, err := s.resolveRef(ctx)
	if err != nil {
		return nil, err
	}
	tree, _, err := s.client.Git.GetTree(ctx, s.owner, s.repo, ref, true)
	if err != nil {
		return nil, fmt.Errorf("failed to get tree for %s: %w", s.Location(), err)
	}

	prefix := ""
	if s.dir != "" {
		prefix = s.dir + "/"
	}
	var refs []DocumentRef
	for _, entry := range tree.Entries {
		if entry.GetType() != "blob" {
			continue
		}
		p := entry.GetPath()
		if !strings.HasPrefix(p, prefix) || !Supported(p) {
			continue
		}
		refs = append(refs, DocumentRef{Path: strings.TrimPrefix(p, prefix), Key: entry.GetSHA()})
	}
	sortRefs(refs)
	return refs, nil
}

func (s *GitHubSource) Read(ctx context.Context, ref DocumentRef) ([]byte, error) {
	data, _, err := s.client.Git.GetBlobRaw(ctx, s.owner, s.repo, ref.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s from %s: %w", ref.Path, s.Location(), err)
	}
	return data, nil
}
