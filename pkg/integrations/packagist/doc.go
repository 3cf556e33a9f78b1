// Package packagist provides an HTTP client for the Packagist API.
//
// # Overview
//
// This package fetches package metadata from Packagist (https://packagist.org),
// the main Composer repository for PHP packages. phpvendor uses it to tell
// whether a newer release of the library exists than the installed one.
//
// # Usage
//
//	client := packagist.NewClient(c, 24*time.Hour)
//
//	info, err := client.FetchPackage(ctx, "phpoffice/phpspreadsheet", false)
//	if err != nil {
//	    return err
//	}
//
//	v, err := info.LatestMatching("^1.29")
//	fmt.Println(v.Version, v.DistURL)
//
// # Minified metadata
//
// The p2 endpoint serves Composer 2 "minified" metadata, where each version
// entry only carries fields that differ from the previous entry. The client
// expands these before selecting versions.
package packagist
