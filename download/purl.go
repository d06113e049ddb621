package download

import (
	"context"
	"fmt"
	"strings"

	"github.com/package-url/packageurl-go"
)

// Registry defaults for the purl strategy.
const (
	defaultNpmRegistry  = "https://registry.npmjs.org"
	defaultPypiRegistry = "https://pypi.org/pypi"
	defaultMavenRepo    = "https://repo1.maven.org/maven2"
	defaultGoProxy      = "https://proxy.golang.org"
)

// PurlStrategy downloads an artifact addressed by a package-URL,
// dispatching to the matching registry by purl type.
type PurlStrategy struct {
	client *Client

	NpmBase     string
	PypiBase    string
	MavenBase   string
	GoProxyBase string
}

// NewPurlStrategy creates the package-URL strategy.
func NewPurlStrategy(client *Client) *PurlStrategy {
	return &PurlStrategy{
		client:      client,
		NpmBase:     defaultNpmRegistry,
		PypiBase:    defaultPypiRegistry,
		MavenBase:   defaultMavenRepo,
		GoProxyBase: defaultGoProxy,
	}
}

// Name identifies the strategy in logs.
func (s *PurlStrategy) Name() string { return "package-url" }

// CanHandle reports whether the request carries a package-URL.
func (s *PurlStrategy) CanHandle(req Request) bool { return req.Purl != "" }

// Download fetches the artifact for the request's package-URL.
func (s *PurlStrategy) Download(ctx context.Context, req Request) (string, error) {
	purl, err := packageurl.FromString(req.Purl)
	if err != nil {
		return "", fmt.Errorf("parse purl %q: %w", req.Purl, err)
	}

	version := purl.Version
	if version == "" {
		version = req.Version
	}
	if version == "" {
		return "", fmt.Errorf("purl %q carries no version", req.Purl)
	}

	switch purl.Type {
	case packageurl.TypeNPM:
		return s.downloadNpm(ctx, purl, version, req.TargetDir)
	case packageurl.TypePyPi:
		return s.downloadPypi(ctx, purl, version, req.TargetDir)
	case packageurl.TypeMaven:
		return s.downloadMaven(ctx, purl, version, req.TargetDir)
	case packageurl.TypeGolang:
		return s.downloadGoModule(ctx, purl, version, req.TargetDir)
	default:
		return "", fmt.Errorf("unsupported purl type %q", purl.Type)
	}
}

// NpmTarballURL builds the registry tarball URL for an npm package,
// handling scoped names.
func (s *PurlStrategy) NpmTarballURL(purl packageurl.PackageURL, version string) string {
	full := purl.Name
	if purl.Namespace != "" {
		full = purl.Namespace + "/" + purl.Name
	}
	return fmt.Sprintf("%s/%s/-/%s-%s.tgz", s.NpmBase, full, purl.Name, version)
}

func (s *PurlStrategy) downloadNpm(ctx context.Context, purl packageurl.PackageURL, version, targetDir string) (string, error) {
	url := s.NpmTarballURL(purl, version)
	return s.client.FetchFile(ctx, url, targetDir, purl.Name+"-"+version+".tgz")
}

func (s *PurlStrategy) downloadPypi(ctx context.Context, purl packageurl.PackageURL, version, targetDir string) (string, error) {
	var release struct {
		Urls []struct {
			URL         string `json:"url"`
			Filename    string `json:"filename"`
			PackageType string `json:"packagetype"`
		} `json:"urls"`
	}
	metaURL := fmt.Sprintf("%s/%s/%s/json", s.PypiBase, purl.Name, version)
	if err := s.client.GetJSON(ctx, metaURL, &release); err != nil {
		return "", err
	}
	if len(release.Urls) == 0 {
		return "", fmt.Errorf("no files published for %s %s", purl.Name, version)
	}

	// Prefer the source distribution; fall back to whatever exists.
	pick := release.Urls[0]
	for _, u := range release.Urls {
		if u.PackageType == "sdist" {
			pick = u
			break
		}
	}
	return s.client.FetchFile(ctx, pick.URL, targetDir, pick.Filename)
}

// MavenJarURL builds the repository URL for a Maven artifact.
func (s *PurlStrategy) MavenJarURL(purl packageurl.PackageURL, version string) string {
	group := strings.ReplaceAll(purl.Namespace, ".", "/")
	return fmt.Sprintf("%s/%s/%s/%s/%s-%s.jar", s.MavenBase, group, purl.Name, version, purl.Name, version)
}

func (s *PurlStrategy) downloadMaven(ctx context.Context, purl packageurl.PackageURL, version, targetDir string) (string, error) {
	if purl.Namespace == "" {
		return "", fmt.Errorf("maven purl %q lacks a group id", purl.String())
	}
	url := s.MavenJarURL(purl, version)
	return s.client.FetchFile(ctx, url, targetDir, purl.Name+"-"+version+".jar")
}

func (s *PurlStrategy) downloadGoModule(ctx context.Context, purl packageurl.PackageURL, version, targetDir string) (string, error) {
	module := purl.Name
	if purl.Namespace != "" {
		module = purl.Namespace + "/" + purl.Name
	}
	if !strings.HasPrefix(version, "v") {
		version = "v" + version
	}
	url := fmt.Sprintf("%s/%s/@v/%s.zip", s.GoProxyBase, strings.ToLower(module), version)
	return s.client.FetchFile(ctx, url, targetDir, purl.Name+"-"+version+".zip")
}
