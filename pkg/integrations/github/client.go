package github

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/matzehuels/phpvendor/pkg/cache"
	"github.com/matzehuels/phpvendor/pkg/integrations"
)

// DefaultBaseURL is the public GitHub REST API.
const DefaultBaseURL = "https://api.github.com"

// Client provides access to the GitHub releases API.
// It handles HTTP requests with caching, automatic retries, and optional authentication.
type Client struct {
	*integrations.Client
	baseURL string
}

// NewClient creates a GitHub API client with optional authentication.
// Pass an empty string for token to use unauthenticated requests (lower rate limits).
// Release descriptors are cached in c for cacheTTL.
func NewClient(c cache.Cache, token string, cacheTTL time.Duration) *Client {
	headers := map[string]string{"Accept": "application/vnd.github.v3+json"}
	if token != "" {
		headers["Authorization"] = "Bearer " + token
	}

	return &Client{
		Client:  integrations.NewClient(c, "github:", cacheTTL, headers),
		baseURL: DefaultBaseURL,
	}
}

// WithBaseURL points the client at a different API root (GitHub Enterprise, tests).
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = u
	return c
}

// ReleaseURL is the latest-release endpoint of owner/repo.
func (c *Client) ReleaseURL(owner, repo string) string {
	return fmt.Sprintf("%s/repos/%s/%s/releases/latest", c.baseURL, owner, repo)
}

// ReleaseAt fetches a release descriptor from an endpoint URL, usually
// ReleaseURL or a configured mirror of it. A response without tag_name or
// zipball_url is reported as [integrations.ErrMalformed] and is never cached.
func (c *Client) ReleaseAt(ctx context.Context, url string, refresh bool) (*Release, error) {
	var rel Release
	err := c.Cached(ctx, "release:"+url, refresh, &rel, func() error {
		return c.fetchRelease(ctx, url, &rel)
	})
	if err != nil {
		return nil, err
	}
	return &rel, nil
}

func (c *Client) fetchRelease(ctx context.Context, url string, rel *Release) error {
	var data releaseResponse
	if err := c.Get(ctx, url, &data); err != nil {
		if errors.Is(err, integrations.ErrNotFound) {
			return fmt.Errorf("%w: github release %s", err, url)
		}
		return err
	}
	if data.TagName == "" || data.ZipballURL == "" {
		return fmt.Errorf("%w: release at %s lacks tag_name or zipball_url", integrations.ErrMalformed, url)
	}

	*rel = Release{
		TagName:     data.TagName,
		ZipballURL:  data.ZipballURL,
		Name:        data.Name,
		Prerelease:  data.Prerelease,
		PublishedAt: data.PublishedAt,
	}
	return nil
}

// Release is the subset of a GitHub release the archive installer needs.
type Release struct {
	TagName     string    `json:"tag_name"`
	ZipballURL  string    `json:"zipball_url"`
	Name        string    `json:"name,omitempty"`
	Prerelease  bool      `json:"prerelease,omitempty"`
	PublishedAt time.Time `json:"published_at,omitempty"`
}

type releaseResponse struct {
	TagName     string    `json:"tag_name"`
	ZipballURL  string    `json:"zipball_url"`
	Name        string    `json:"name"`
	Prerelease  bool      `json:"prerelease"`
	PublishedAt time.Time `json:"published_at"`
}
