// Package archive implements the archive strategy: resolve a release,
// download its zip, extract it and copy the sources into the vendor tree.
//
// # Steps
//
//  1. Ask the release source for the latest tag and zipball URL. Any failure
//     falls back to a pinned release (1.29.0 by default).
//  2. Download into temp/. Payloads under MinBytes are treated as corrupt;
//     payloads over MaxBytes are cut off.
//  3. Extract into a scratch directory under temp/. Entries escaping it are
//     rejected.
//  4. Copy the first top-level directory into vendor/<vendor>/<package>/
//     with [CopyTree].
//  5. Write the [Shim] to vendor/autoload.php.
//
// Scratch files are removed on every outcome. Files already copied into the
// vendor tree stay; a retry overwrites them.
package archive
