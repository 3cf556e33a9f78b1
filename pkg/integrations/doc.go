// Package integrations provides HTTP clients for the services phpvendor talks to.
//
// # Overview
//
//   - [github]: release metadata (latest tag and zipball URL)
//   - [packagist]: Composer package metadata for the latest-version check
//
// # Client Pattern
//
// Service clients embed [Client], which provides:
//   - HTTP requests with retry on network errors and 5xx responses
//   - Response caching through [cache.Cache] with a per-client namespace
//   - Bounded streaming downloads ([Client.Download])
//   - GitHub rate-limit detection
//
//	gh := github.NewClient(c, token, time.Hour)
//	rel, err := gh.ReleaseAt(ctx, gh.ReleaseURL("PHPOffice", "PhpSpreadsheet"), false)
//
// [github]: github.com/matzehuels/phpvendor/pkg/integrations/github
// [packagist]: github.com/matzehuels/phpvendor/pkg/integrations/packagist
// [cache.Cache]: github.com/matzehuels/phpvendor/pkg/cache.Cache
package integrations
