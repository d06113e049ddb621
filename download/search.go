package download

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

const defaultMavenSearch = "https://search.maven.org/solrsearch/select"

// SearchStrategy resolves a bare name+version through a registry
// search. It is the last link of the chain: it only needs the
// coordinates every work message carries.
type SearchStrategy struct {
	client *Client

	SearchBase string
	MavenBase  string
}

// NewSearchStrategy creates the name+version search strategy.
func NewSearchStrategy(client *Client) *SearchStrategy {
	return &SearchStrategy{
		client:     client,
		SearchBase: defaultMavenSearch,
		MavenBase:  defaultMavenRepo,
	}
}

// Name identifies the strategy in logs.
func (s *SearchStrategy) Name() string { return "registry-search" }

// CanHandle reports whether the request carries a name and version.
func (s *SearchStrategy) CanHandle(req Request) bool {
	return req.Name != "" && req.Version != ""
}

// Download looks the artifact up by name and version and fetches the
// first match.
func (s *SearchStrategy) Download(ctx context.Context, req Request) (string, error) {
	query := fmt.Sprintf(`a:%q AND v:%q`, req.Name, req.Version)
	searchURL := fmt.Sprintf("%s?q=%s&rows=1&wt=json", s.SearchBase, url.QueryEscape(query))

	var result struct {
		Response struct {
			Docs []struct {
				Group    string `json:"g"`
				Artifact string `json:"a"`
				Version  string `json:"v"`
			} `json:"docs"`
		} `json:"response"`
	}
	if err := s.client.GetJSON(ctx, searchURL, &result); err != nil {
		return "", err
	}
	if len(result.Response.Docs) == 0 {
		return "", fmt.Errorf("no registry match for %s %s", req.Name, req.Version)
	}

	doc := result.Response.Docs[0]
	jarURL := fmt.Sprintf("%s/%s/%s/%s/%s-%s.jar",
		s.MavenBase, strings.ReplaceAll(doc.Group, ".", "/"), doc.Artifact, doc.Version, doc.Artifact, doc.Version)
	return s.client.FetchFile(ctx, jarURL, req.TargetDir, doc.Artifact+"-"+doc.Version+".jar")
}
