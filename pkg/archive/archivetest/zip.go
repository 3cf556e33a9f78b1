// Package archivetest builds zip fixtures for tests.
package archivetest

import (
	"bytes"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
)

var modified = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Build returns an uncompressed zip holding files (name → content). Names
// ending in "/" become directory entries. When size is positive the archive
// is padded with a comment to exactly size bytes; Build fails if the
// entries alone are larger.
func Build(files map[string]string, size int) ([]byte, error) {
	data, err := build(files, "")
	if err != nil || size <= 0 {
		return data, err
	}
	pad := size - len(data)
	if pad < 0 || pad > 0xffff {
		return nil, fmt.Errorf("cannot pad %d-byte archive to %d bytes", len(data), size)
	}
	return build(files, strings.Repeat("x", pad))
}

func build(files map[string]string, comment string) ([]byte, error) {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, name := range names {
		hdr := &zip.FileHeader{Name: name, Method: zip.Store, Modified: modified}
		if strings.HasSuffix(name, "/") {
			hdr.SetMode(fs.ModeDir | 0o755)
		} else {
			hdr.SetMode(0o644)
		}
		fw, err := w.CreateHeader(hdr)
		if err != nil {
			return nil, err
		}
		if _, err := fw.Write([]byte(files[name])); err != nil {
			return nil, err
		}
	}
	if comment != "" {
		if err := w.SetComment(comment); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Release returns the two-file fixture used by the archive tests: one
// top-level folder, as GitHub zipballs have.
func Release(top string) map[string]string {
	return map[string]string{
		top + "/":                                   "",
		top + "/composer.json":                      `{"name": "phpoffice/phpspreadsheet", "version": "1.29.0"}`,
		top + "/src/PhpSpreadsheet/Spreadsheet.php": "<?php\nnamespace PhpOffice\\PhpSpreadsheet;\nclass Spreadsheet {}\n" + strings.Repeat("// padding\n", 200),
	}
}
