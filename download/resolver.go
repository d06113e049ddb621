// Package download resolves a component reference (a details URL, a
// package-URL, or a plain name and version) into a downloaded
// artifact. Strategies are tried in a fixed priority order; the first
// one that succeeds wins.
package download

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
)

// Request describes the component to resolve and where to put the
// downloaded artifact.
type Request struct {
	DetailsURL string
	Purl       string
	Name       string
	Version    string
	TargetDir  string
}

// Strategy is one way of turning a Request into a downloaded artifact.
// CanHandle is the applicability predicate; Download is only called
// when it returns true.
type Strategy interface {
	Name() string
	CanHandle(req Request) bool
	Download(ctx context.Context, req Request) (string, error)
}

// Resolver tries its strategies in order until one succeeds. New
// strategies are added by appending to the chain.
type Resolver struct {
	strategies []Strategy
	logger     *slog.Logger
}

// NewResolver builds the default strategy chain: details URL first,
// then package-URL, then name+version registry search.
func NewResolver(client *Client, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		strategies: []Strategy{
			NewURLStrategy(client),
			NewPurlStrategy(client),
			NewSearchStrategy(client),
		},
		logger: logger,
	}
}

// NewResolverWithStrategies builds a resolver over an explicit chain.
func NewResolverWithStrategies(logger *slog.Logger, strategies ...Strategy) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{strategies: strategies, logger: logger}
}

// Resolve returns the path of the downloaded artifact, or an error
// wrapping ErrResolutionFailed when no strategy was applicable or all
// applicable strategies failed. Transient failures of one strategy are
// absorbed by moving on to the next.
func (r *Resolver) Resolve(ctx context.Context, req Request) (string, error) {
	if scheme := legacyScheme(req.DetailsURL); scheme != "" {
		return "", fmt.Errorf("%w: %s", ErrLegacyScheme, scheme)
	}

	attempted := 0
	for _, strategy := range r.strategies {
		if !strategy.CanHandle(req) {
			continue
		}
		attempted++

		started := time.Now()
		path, err := strategy.Download(ctx, req)
		if err != nil {
			r.logger.Warn("download strategy failed",
				"strategy", strategy.Name(),
				"name", req.Name,
				"version", req.Version,
				"error", err)
			continue
		}

		r.logger.Info("artifact resolved",
			"strategy", strategy.Name(),
			"path", path,
			"duration", time.Since(started))
		return path, nil
	}

	if attempted == 0 {
		return "", fmt.Errorf("%w: no applicable strategy for %s %s", ErrResolutionFailed, req.Name, req.Version)
	}
	return "", fmt.Errorf("%w: %d strategies failed for %s %s", ErrResolutionFailed, attempted, req.Name, req.Version)
}

// legacyScheme reports the scheme when the URL uses a legacy version
// control protocol, empty otherwise.
func legacyScheme(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	switch strings.ToLower(u.Scheme) {
	case "cvs", "svn", "svn+ssh":
		return u.Scheme
	}
	return ""
}
