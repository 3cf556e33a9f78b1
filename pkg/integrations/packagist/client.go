package packagist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/matzehuels/phpvendor/pkg/cache"
	"github.com/matzehuels/phpvendor/pkg/integrations"
)

// DefaultBaseURL is the Composer v2 metadata mirror.
const DefaultBaseURL = "https://repo.packagist.org"

// ErrNoMatch is returned when no stable version satisfies a constraint.
var ErrNoMatch = errors.New("no version satisfies constraint")

// PackageInfo holds metadata for a PHP package from Packagist.
//
// Versions lists every stable release, newest first. Dev branches and
// pre-releases are skipped.
type PackageInfo struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	License     string    `json:"license,omitempty"`
	Versions    []Version `json:"versions"`
}

// Version is one stable release of a package.
type Version struct {
	Version string `json:"version"`
	DistURL string `json:"dist_url,omitempty"`
}

// Latest returns the newest stable version, or false when there is none.
func (p *PackageInfo) Latest() (Version, bool) {
	if len(p.Versions) == 0 {
		return Version{}, false
	}
	return p.Versions[0], true
}

// LatestMatching returns the newest stable version satisfying constraint
// (Composer syntax such as "^1.29").
func (p *PackageInfo) LatestMatching(constraint string) (Version, error) {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return Version{}, fmt.Errorf("parse constraint %q: %w", constraint, err)
	}
	for _, v := range p.Versions {
		sv, err := semver.NewVersion(v.Version)
		if err != nil {
			continue
		}
		if c.Check(sv) {
			return v, nil
		}
	}
	return Version{}, fmt.Errorf("%w: %s %s", ErrNoMatch, p.Name, constraint)
}

// Client provides access to the Packagist package registry API.
// It handles HTTP requests with caching and automatic retries.
//
// All methods are safe for concurrent use by multiple goroutines.
type Client struct {
	*integrations.Client
	baseURL string
}

// NewClient creates a Packagist client. Responses are cached in c for cacheTTL.
func NewClient(c cache.Cache, cacheTTL time.Duration) *Client {
	return &Client{
		Client:  integrations.NewClient(c, "packagist:", cacheTTL, nil),
		baseURL: DefaultBaseURL,
	}
}

// WithBaseURL points the client at a different repository (private mirrors, tests).
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = u
	return c
}

// FetchPackage retrieves metadata for a PHP package from Packagist.
//
// The pkg parameter must be in "vendor/package" format (e.g., "phpoffice/phpspreadsheet").
// Package name is normalized to lowercase with whitespace trimmed.
//
// If refresh is true, the cache is bypassed and a fresh API call is made.
//
// Returns:
//   - [integrations.ErrNotFound] if the package doesn't exist
//   - [integrations.ErrNetwork] for HTTP failures (timeout, 5xx, etc.)
//   - [integrations.ErrMalformed] when the body has no usable versions
func (c *Client) FetchPackage(ctx context.Context, pkg string, refresh bool) (*PackageInfo, error) {
	pkg = strings.ToLower(strings.TrimSpace(pkg))

	var info PackageInfo
	err := c.Cached(ctx, pkg, refresh, &info, func() error {
		return c.fetch(ctx, pkg, &info)
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) fetch(ctx context.Context, pkg string, info *PackageInfo) error {
	var data p2Response
	if err := c.Get(ctx, fmt.Sprintf("%s/p2/%s.json", c.baseURL, pkg), &data); err != nil {
		if errors.Is(err, integrations.ErrNotFound) {
			return fmt.Errorf("%w: packagist package %s", err, pkg)
		}
		return err
	}

	entries, ok := data.Packages[pkg]
	if !ok || len(entries) == 0 {
		return fmt.Errorf("%w: no versions found for %s", integrations.ErrMalformed, pkg)
	}
	if data.Minified == "composer/2.0" {
		entries = expand(entries)
	}

	*info = PackageInfo{
		Name:        pkg,
		Description: entries[0].Description,
		Versions:    stableVersions(entries),
	}
	if len(entries[0].License) > 0 {
		info.License = entries[0].License[0]
	}
	return nil
}

// expand undoes Composer 2 minification: each entry only lists the fields
// that changed relative to the entry before it.
func expand(entries []p2Version) []p2Version {
	out := make([]p2Version, len(entries))
	var prev p2Version
	for i, e := range entries {
		if e.Description == "" {
			e.Description = prev.Description
		}
		if e.License == nil {
			e.License = prev.License
		}
		if e.Dist.URL == "" {
			e.Dist = prev.Dist
		}
		out[i] = e
		prev = e
	}
	return out
}

func stableVersions(entries []p2Version) []Version {
	type parsed struct {
		v  Version
		sv *semver.Version
	}
	var list []parsed
	for _, e := range entries {
		sv, err := semver.NewVersion(e.Version)
		if err != nil || sv.Prerelease() != "" {
			continue
		}
		list = append(list, parsed{v: Version{Version: e.Version, DistURL: e.Dist.URL}, sv: sv})
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].sv.GreaterThan(list[j].sv) })

	out := make([]Version, len(list))
	for i, p := range list {
		out[i] = p.v
	}
	return out
}

type p2Response struct {
	Minified string                 `json:"minified"`
	Packages map[string][]p2Version `json:"packages"`
}

type p2Version struct {
	Version     string   `json:"version"`
	Description string   `json:"description"`
	License     []string `json:"license"`
	Dist        struct {
		URL string `json:"url"`
	} `json:"dist"`
}

func (v *p2Version) UnmarshalJSON(b []byte) error {
	type raw struct {
		Version     string          `json:"version"`
		Description string          `json:"description"`
		License     json.RawMessage `json:"license"`
		Dist        json.RawMessage `json:"dist"`
	}

	var r raw
	if err := json.Unmarshal(b, &r); err != nil {
		return err
	}

	v.Version = r.Version
	v.Description = r.Description

	if len(r.License) > 0 && string(r.License) != "null" && string(r.License) != `"__unset"` {
		if err := json.Unmarshal(r.License, &v.License); err != nil {
			var single string
			if json.Unmarshal(r.License, &single) == nil && single != "" {
				v.License = []string{single}
			}
		}
	}

	// dist is "__unset" for versions without an archive.
	if len(r.Dist) > 0 && r.Dist[0] == '{' {
		_ = json.Unmarshal(r.Dist, &v.Dist)
	}
	return nil
}
