// Package github provides an HTTP client for the GitHub releases API.
//
// # Overview
//
// The archive installer asks GitHub for the latest release of the library
// to learn its tag and zipball URL:
//
//	client := github.NewClient(c, token, time.Hour)
//	rel, err := client.ReleaseAt(ctx, client.ReleaseURL("PHPOffice", "PhpSpreadsheet"), false)
//	if err != nil {
//	    // fall back to the pinned archive
//	}
//	fmt.Println(rel.TagName, rel.ZipballURL)
//
// # Authentication
//
// A GitHub personal access token is optional. Without a token, the client is
// limited to 60 requests/hour per IP, which is why release descriptors are
// cached.
package github
