package download

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// Defaults for the repository hosting lookup.
const (
	defaultGitHubAPI      = "https://api.github.com"
	defaultGitHubCodeload = "https://codeload.github.com"
)

// URLStrategy downloads straight from a component's details URL. Git
// repository URLs are normalized first and, when a version is known,
// resolved to a concrete archive URL through the hosting service's tag
// lookup.
type URLStrategy struct {
	client *Client

	// APIBase and CodeloadBase are overridable for tests.
	APIBase      string
	CodeloadBase string
}

// NewURLStrategy creates the details-URL strategy.
func NewURLStrategy(client *Client) *URLStrategy {
	return &URLStrategy{
		client:       client,
		APIBase:      defaultGitHubAPI,
		CodeloadBase: defaultGitHubCodeload,
	}
}

// Name identifies the strategy in logs.
func (s *URLStrategy) Name() string { return "details-url" }

// CanHandle reports whether the request carries a details URL.
func (s *URLStrategy) CanHandle(req Request) bool { return req.DetailsURL != "" }

// Download fetches the artifact behind the details URL.
func (s *URLStrategy) Download(ctx context.Context, req Request) (string, error) {
	normalized := NormalizeGitURL(req.DetailsURL)

	if owner, repo, ok := splitGitRepoURL(normalized); ok {
		if req.Version == "" {
			return "", fmt.Errorf("git URL %s needs a version to resolve an archive", normalized)
		}
		tag, err := s.resolveTag(ctx, owner, repo, req.Version)
		if err != nil {
			return "", err
		}
		archiveURL := fmt.Sprintf("%s/%s/%s/tar.gz/refs/tags/%s", s.CodeloadBase, owner, repo, tag)
		return s.client.FetchFile(ctx, archiveURL, req.TargetDir, repo+"-"+tag+".tar.gz")
	}

	filename := path.Base(normalized)
	if filename == "" || filename == "." || filename == "/" {
		filename = "artifact"
	}
	return s.client.FetchFile(ctx, normalized, req.TargetDir, filename)
}

// resolveTag finds the repository tag matching version, accepting a
// leading "v" on either side.
func (s *URLStrategy) resolveTag(ctx context.Context, owner, repo, version string) (string, error) {
	var tags []struct {
		Name string `json:"name"`
	}
	lookupURL := fmt.Sprintf("%s/repos/%s/%s/tags?per_page=100", s.APIBase, owner, repo)
	if err := s.client.GetJSON(ctx, lookupURL, &tags); err != nil {
		return "", fmt.Errorf("list tags for %s/%s: %w", owner, repo, err)
	}

	want := strings.TrimPrefix(version, "v")
	for _, tag := range tags {
		if strings.TrimPrefix(tag.Name, "v") == want {
			return tag.Name, nil
		}
	}
	return "", fmt.Errorf("no tag matches version %s in %s/%s", version, owner, repo)
}

// NormalizeGitURL rewrites git+ssh, ssh and shorthand git URLs into
// canonical HTTPS form. Non-git URLs are returned unchanged.
func NormalizeGitURL(rawURL string) string {
	u := rawURL

	// git@host:owner/repo.git shorthand
	if strings.HasPrefix(u, "git@") {
		rest := strings.TrimPrefix(u, "git@")
		rest = strings.Replace(rest, ":", "/", 1)
		return "https://" + rest
	}

	for _, prefix := range []string{"git+ssh://", "ssh://", "git+https://", "git://"} {
		if strings.HasPrefix(u, prefix) {
			u = strings.TrimPrefix(u, prefix)
			// Strip any user portion left over from the ssh form.
			if at := strings.Index(u, "@"); at != -1 && at < strings.IndexAny(u+"/", "/") {
				u = u[at+1:]
			}
			return "https://" + u
		}
	}
	return u
}

// splitGitRepoURL extracts (owner, repo) from an HTTPS git repository
// URL. It recognizes the trailing ".git" form and bare two-segment
// repository paths on known hosting domains.
func splitGitRepoURL(rawURL string) (owner, repo string, ok bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", "", false
	}

	isGit := strings.HasSuffix(u.Path, ".git") || u.Host == "github.com"
	if !isGit {
		return "", "", false
	}

	trimmed := strings.TrimSuffix(strings.Trim(u.Path, "/"), ".git")
	parts := strings.Split(trimmed, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
