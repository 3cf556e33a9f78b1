package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matzehuels/phpvendor/pkg/acquire"
	"github.com/matzehuels/phpvendor/pkg/archive/archivetest"
	apperrors "github.com/matzehuels/phpvendor/pkg/errors"
	"github.com/matzehuels/phpvendor/pkg/httputil"
	"github.com/matzehuels/phpvendor/pkg/integrations"
	"github.com/matzehuels/phpvendor/pkg/integrations/github"
	"github.com/matzehuels/phpvendor/pkg/layout"
)

const top = "PHPOffice-PhpSpreadsheet-abc123"

func writeZip(t *testing.T, files map[string]string, size int) string {
	t.Helper()
	data, err := archivetest.Build(files, size)
	if err != nil {
		t.Fatalf("build zip: %v", err)
	}
	p := filepath.Join(t.TempDir(), "fixture.zip")
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestExtract(t *testing.T) {
	src := writeZip(t, archivetest.Release(top), 0)
	dst := t.TempDir()

	dirs, err := Extract(src, dst, 0)
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if len(dirs) != 1 || dirs[0] != top {
		t.Errorf("Extract() dirs = %v, want [%s]", dirs, top)
	}
	if _, err := os.Stat(filepath.Join(dst, top, "src", "PhpSpreadsheet", "Spreadsheet.php")); err != nil {
		t.Errorf("extracted file missing: %v", err)
	}
}

func TestExtract_ImplicitDirectories(t *testing.T) {
	src := writeZip(t, map[string]string{
		"b-top/file.txt": "b",
		"a-top/x/y.txt":  "a",
		"README.md":      "root file",
	}, 0)

	dirs, err := Extract(src, t.TempDir(), 0)
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if len(dirs) != 2 || dirs[0] != "a-top" || dirs[1] != "b-top" {
		t.Errorf("Extract() dirs = %v, want sorted [a-top b-top]", dirs)
	}
}

func TestExtract_RejectsTraversal(t *testing.T) {
	for _, name := range []string{"../evil.php", "top/../../evil.php", "/etc/evil"} {
		t.Run(name, func(t *testing.T) {
			src := writeZip(t, map[string]string{name: "<?php"}, 0)
			dst := filepath.Join(t.TempDir(), "out")
			_, err := Extract(src, dst, 0)
			if !apperrors.Is(err, apperrors.ErrCodeCorruptArtifact) {
				t.Errorf("Extract() error = %v, want CORRUPT_ARTIFACT", err)
			}
		})
	}
}

func TestExtract_SizeCap(t *testing.T) {
	src := writeZip(t, map[string]string{"top/big.bin": strings.Repeat("a", 4096)}, 0)
	_, err := Extract(src, t.TempDir(), 1024)
	if !errors.Is(err, httputil.ErrTooLarge) {
		t.Errorf("Extract() error = %v, want ErrTooLarge", err)
	}
}

func TestExtract_NotAZip(t *testing.T) {
	p := filepath.Join(t.TempDir(), "junk.zip")
	if err := os.WriteFile(p, bytes.Repeat([]byte{0x42}, 2000), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Extract(p, t.TempDir(), 0)
	if !apperrors.Is(err, apperrors.ErrCodeCorruptArtifact) {
		t.Errorf("Extract() error = %v, want CORRUPT_ARTIFACT", err)
	}
}

func makeTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"a.txt":             "alpha",
		"sub/b.txt":         "beta",
		"sub/deeper/c.bin":  string([]byte{0, 1, 2, 3, 255}),
		"sub/deeper/empty":  "",
		"other/nested/d.md": strings.Repeat("d", 10000),
	}
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.MkdirAll(filepath.Join(root, "emptydir"), 0o755); err != nil {
		t.Fatal(err)
	}
	return root
}

// snapshot maps every relative path below root to its content ("/" for dirs).
func snapshot(t *testing.T, root string) map[string]string {
	t.Helper()
	out := make(map[string]string)
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, p)
		if d.IsDir() {
			out[rel] = "/"
			return nil
		}
		data, err := os.ReadFile(p)
		out[rel] = string(data)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func assertSameTree(t *testing.T, src, dst string) {
	t.Helper()
	want, got := snapshot(t, src), snapshot(t, dst)
	if len(want) != len(got) {
		t.Fatalf("tree has %d entries, want %d", len(got), len(want))
	}
	for rel, content := range want {
		if got[rel] != content {
			t.Errorf("%s differs", rel)
		}
	}
}

func TestCopyTree(t *testing.T) {
	failing := CopierFunc(func(string, string, fs.FileMode) error { return errors.New("primary unavailable") })

	tests := []struct {
		name          string
		primary       Copier
		wantFallbacks bool
	}{
		{"plain only", nil, false},
		{"primary fails per file", failing, true},
		{"clone", CloneCopier{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := makeTree(t)
			dst := filepath.Join(t.TempDir(), "vendor", "pkg")

			stats, err := CopyTree(src, dst, tt.primary)
			if err != nil {
				t.Fatalf("CopyTree() error: %v", err)
			}
			assertSameTree(t, src, dst)

			if stats.Files != 5 {
				t.Errorf("Files = %d, want 5", stats.Files)
			}
			if tt.wantFallbacks && stats.Fallbacks != stats.Files {
				t.Errorf("Fallbacks = %d, want %d", stats.Fallbacks, stats.Files)
			}
			if tt.primary == nil && stats.Fallbacks != 0 {
				t.Errorf("Fallbacks = %d without primary, want 0", stats.Fallbacks)
			}
		})
	}
}

func TestCopyTree_Overwrites(t *testing.T) {
	src := makeTree(t)
	dst := t.TempDir()
	if err := os.WriteFile(filepath.Join(dst, "a.txt"), []byte("stale content that is longer"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := CopyTree(src, dst, nil); err != nil {
		t.Fatalf("CopyTree() error: %v", err)
	}
	data, _ := os.ReadFile(filepath.Join(dst, "a.txt"))
	if string(data) != "alpha" {
		t.Errorf("a.txt = %q, want alpha", data)
	}
}

func TestCopyTree_MissingSource(t *testing.T) {
	_, err := CopyTree(filepath.Join(t.TempDir(), "nope"), t.TempDir(), nil)
	if !apperrors.Is(err, apperrors.ErrCodeFilesystem) {
		t.Errorf("CopyTree() error = %v, want FILESYSTEM_ERROR", err)
	}
}

func TestShim(t *testing.T) {
	got, ok := DefaultShim.Resolve(`PhpOffice\PhpSpreadsheet\Reader\Xlsx`)
	if !ok || got != "phpoffice/phpspreadsheet/src/PhpSpreadsheet/Reader/Xlsx.php" {
		t.Errorf("Resolve() = %q, %v", got, ok)
	}
	if _, ok := DefaultShim.Resolve(`Other\Thing`); ok {
		t.Error("Resolve() should reject foreign classes")
	}

	data, err := DefaultShim.Render()
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	src := string(data)
	for _, want := range []string{
		"<?php",
		`$prefix = 'PhpOffice\\PhpSpreadsheet\\';`,
		"/phpoffice/phpspreadsheet/src/PhpSpreadsheet/",
		"/phpoffice/phpspreadsheet/vendor/autoload.php",
		"spl_autoload_register",
	} {
		if !strings.Contains(src, want) {
			t.Errorf("shim missing %q:\n%s", want, src)
		}
	}
}

func TestShimFor(t *testing.T) {
	tests := []struct {
		pkg, symbol string
		want        Shim
	}{
		{"phpoffice/phpspreadsheet", `PhpOffice\PhpSpreadsheet\Spreadsheet`, DefaultShim},
		{"Acme/Sheets", `Acme\Sheets\Workbook`, Shim{Prefix: `Acme\Sheets\`, PackageDir: "acme/sheets", SourceDir: "src/Sheets"}},
		{"acme/tools", `Acme\Workbook`, Shim{Prefix: `Acme\`, PackageDir: "acme/tools", SourceDir: "src/Acme"}},
	}
	for _, tt := range tests {
		if got := ShimFor(tt.pkg, tt.symbol); got != tt.want {
			t.Errorf("ShimFor(%q, %q) = %+v, want %+v", tt.pkg, tt.symbol, got, tt.want)
		}
	}
}

func TestShim_WithManifest(t *testing.T) {
	base := ShimFor("acme/sheets", `Acme\Sheets\Workbook`)

	tests := []struct {
		name     string
		manifest string
		want     string
	}{
		{"string path", `{"autoload": {"psr-4": {"Acme\\Sheets\\": "lib/"}}}`, "lib"},
		{"path list", `{"autoload": {"psr-4": {"Acme\\Sheets\\": ["", "src/"]}}}`, "src"},
		{"escaping path", `{"autoload": {"psr-4": {"Acme\\Sheets\\": "../../etc"}}}`, "etc"},
		{"other prefix", `{"autoload": {"psr-4": {"Acme\\Other\\": "lib/"}}}`, "src/Sheets"},
		{"not json", `{`, "src/Sheets"},
		{"no manifest", "", "src/Sheets"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.manifest != "" {
				if err := os.WriteFile(filepath.Join(dir, "composer.json"), []byte(tt.manifest), 0o644); err != nil {
					t.Fatal(err)
				}
			}
			got := base.WithManifest(dir)
			if got.SourceDir != tt.want {
				t.Errorf("SourceDir = %q, want %q", got.SourceDir, tt.want)
			}
			if got.Prefix != base.Prefix || got.PackageDir != base.PackageDir {
				t.Errorf("WithManifest changed more than SourceDir: %+v", got)
			}
		})
	}
}

// --- installer ---------------------------------------------------------------

type fixture struct {
	server       *httptest.Server
	metaStatus   int
	releaseURL   string
	payload      []byte
	archiveHits  int
	fallbackHits int
}

func newFixture(t *testing.T, payload []byte) *fixture {
	t.Helper()
	f := &fixture{metaStatus: http.StatusOK, payload: payload}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/PHPOffice/PhpSpreadsheet/releases/latest":
			if f.metaStatus != http.StatusOK {
				w.WriteHeader(f.metaStatus)
				return
			}
			json.NewEncoder(w).Encode(map[string]string{
				"tag_name":    "1.29.2",
				"zipball_url": f.server.URL + "/zipball/1.29.2",
			})
		case "/zipball/1.29.2":
			f.archiveHits++
			w.Write(f.payload)
		case "/fallback.zip":
			f.fallbackHits++
			w.Write(f.payload)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fixture) installer(journal acquire.Journal) *Installer {
	gh := github.NewClient(nil, "", time.Hour).WithBaseURL(f.server.URL)
	gh.SetRetryPolicy(httputil.Policy{Attempts: 1})
	dl := integrations.NewClient(nil, "", 0, map[string]string{"Accept": "application/zip"})
	dl.SetRetryPolicy(httputil.Policy{Attempts: 1})

	return NewInstaller(gh, dl, Options{
		FallbackURL:     f.server.URL + "/fallback.zip",
		FallbackVersion: "1.29.0",
		Journal:         journal,
	})
}

type memJournal struct{ lines []string }

func (j *memJournal) Log(_ context.Context, msg string) { j.lines = append(j.lines, msg) }

func request(root string) acquire.Request {
	return acquire.Request{TargetDir: root, Package: "phpoffice/phpspreadsheet", Constraint: "^1.29"}
}

func releaseZip(t *testing.T) []byte {
	t.Helper()
	data, err := archivetest.Build(archivetest.Release(top), 5000)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestInstaller_UsesLatestRelease(t *testing.T) {
	f := newFixture(t, releaseZip(t))
	root := t.TempDir()

	res := f.installer(nil).Install(context.Background(), request(root))
	if !res.Success {
		t.Fatalf("Install() failed: %s", res.FailureDetail)
	}
	if res.ResolvedVersion != "1.29.2" {
		t.Errorf("ResolvedVersion = %q, want 1.29.2", res.ResolvedVersion)
	}
	if f.archiveHits != 1 || f.fallbackHits != 0 {
		t.Errorf("hits: archive=%d fallback=%d", f.archiveHits, f.fallbackHits)
	}

	l := layout.New(root)
	if _, err := os.Stat(filepath.Join(l.PackageDir("phpoffice/phpspreadsheet"), "src", "PhpSpreadsheet", "Spreadsheet.php")); err != nil {
		t.Errorf("library file missing: %v", err)
	}
	if _, err := os.Stat(l.EntryPoint()); err != nil {
		t.Errorf("shim missing: %v", err)
	}
	assertTempClean(t, l)
}

func TestInstaller_MetadataFailureUsesFallback(t *testing.T) {
	f := newFixture(t, releaseZip(t))
	f.metaStatus = http.StatusInternalServerError
	journal := &memJournal{}

	res := f.installer(journal).Install(context.Background(), request(t.TempDir()))
	if !res.Success {
		t.Fatalf("Install() failed: %s", res.FailureDetail)
	}
	if res.ResolvedVersion != "1.29.0" {
		t.Errorf("ResolvedVersion = %q, want fallback 1.29.0", res.ResolvedVersion)
	}
	if f.fallbackHits != 1 {
		t.Errorf("fallback hits = %d, want 1", f.fallbackHits)
	}
	if len(journal.lines) == 0 || !strings.HasSuffix(journal.lines[0], "/fallback.zip") {
		t.Errorf("journal = %v", journal.lines)
	}
}

func TestInstaller_SmallPayload(t *testing.T) {
	f := newFixture(t, bytes.Repeat([]byte("x"), 999))
	root := t.TempDir()

	res := f.installer(nil).Install(context.Background(), request(root))
	if res.Success {
		t.Fatal("Install() succeeded on a 999-byte payload")
	}
	if res.Code() != apperrors.ErrCodeCorruptArtifact {
		t.Errorf("Code() = %q, want CORRUPT_ARTIFACT", res.Code())
	}

	l := layout.New(root)
	if _, err := os.Stat(l.VendorDir()); !os.IsNotExist(err) {
		t.Errorf("vendor dir touched: %v", err)
	}
	assertTempClean(t, l)
}

func TestInstaller_EmptyPayload(t *testing.T) {
	f := newFixture(t, nil)
	res := f.installer(nil).Install(context.Background(), request(t.TempDir()))
	if res.Success || res.FailureDetail != "Downloaded file is empty" {
		t.Errorf("Install() = %+v", res)
	}
}

func TestInstaller_NoDirectories(t *testing.T) {
	data, err := archivetest.Build(map[string]string{"README.md": strings.Repeat("r", 2000)}, 0)
	if err != nil {
		t.Fatal(err)
	}
	f := newFixture(t, data)

	res := f.installer(nil).Install(context.Background(), request(t.TempDir()))
	if res.Success || res.FailureDetail != "No directories found after extraction" {
		t.Errorf("Install() = %+v", res)
	}
}

func TestInstaller_DownloadNotFound(t *testing.T) {
	f := newFixture(t, releaseZip(t))
	inst := f.installer(nil)

	req := request(t.TempDir())
	req.DownloadURL = f.server.URL + "/missing.zip"
	res := inst.Install(context.Background(), req)

	if res.Success {
		t.Fatal("Install() succeeded on 404")
	}
	if res.Code() != apperrors.ErrCodeNetwork {
		t.Errorf("Code() = %q, want NETWORK_ERROR", res.Code())
	}
	if !strings.HasPrefix(res.FailureDetail, "Download failed") {
		t.Errorf("FailureDetail = %q", res.FailureDetail)
	}
}

func TestInstaller_ResolveWithoutSource(t *testing.T) {
	inst := NewInstaller(nil, nil, Options{})
	got := inst.Resolve(context.Background(), request("/tmp"))
	want := "https://github.com/PHPOffice/PhpSpreadsheet/archive/refs/tags/1.29.0.zip"
	if got.URL != want || got.Version != "1.29.0" || got.FromMetadata {
		t.Errorf("Resolve() = %+v", got)
	}
}

func assertTempClean(t *testing.T, l layout.Layout) {
	t.Helper()
	entries, err := os.ReadDir(l.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name() != ".htaccess" {
			t.Errorf("temp dir still holds %s", e.Name())
		}
	}
}

func TestInstaller_CustomPackage(t *testing.T) {
	class := "<?php\nnamespace Acme\\Sheets;\nclass Workbook {}\n" + strings.Repeat("// padding\n", 200)
	payload, err := archivetest.Build(map[string]string{
		"sheets-2.0.0/":                 "",
		"sheets-2.0.0/composer.json":    `{"name": "acme/sheets", "autoload": {"psr-4": {"Acme\\Sheets\\": "lib/"}}}`,
		"sheets-2.0.0/lib/Workbook.php": class,
	}, 5000)
	if err != nil {
		t.Fatal(err)
	}
	f := newFixture(t, payload)
	f.metaStatus = http.StatusNotFound

	gh := github.NewClient(nil, "", time.Hour).WithBaseURL(f.server.URL)
	gh.SetRetryPolicy(httputil.Policy{Attempts: 1})
	dl := integrations.NewClient(nil, "", 0, nil)
	dl.SetRetryPolicy(httputil.Policy{Attempts: 1})
	inst := NewInstaller(gh, dl, Options{
		FallbackURL: f.server.URL + "/fallback.zip",
		Shim:        ShimFor("acme/sheets", `Acme\Sheets\Workbook`),
	})

	root := t.TempDir()
	req := request(root)
	req.Package = "acme/sheets"
	res := inst.Install(context.Background(), req)
	if !res.Success {
		t.Fatalf("Install() failed: %s", res.FailureDetail)
	}

	l := layout.New(root)
	if _, err := os.Stat(filepath.Join(l.PackageDir("acme/sheets"), "lib", "Workbook.php")); err != nil {
		t.Fatalf("library file missing: %v", err)
	}
	data, err := os.ReadFile(l.EntryPoint())
	if err != nil {
		t.Fatal(err)
	}
	src := string(data)
	for _, want := range []string{`$prefix = 'Acme\\Sheets\\';`, "/acme/sheets/lib/"} {
		if !strings.Contains(src, want) {
			t.Errorf("shim missing %q:\n%s", want, src)
		}
	}
	if strings.Contains(src, "phpoffice") {
		t.Errorf("shim still points at the default package:\n%s", src)
	}
}

func TestVersionFromURL(t *testing.T) {
	tests := []struct{ url, want string }{
		{"https://github.com/PHPOffice/PhpSpreadsheet/archive/refs/tags/1.29.0.zip", "1.29.0"},
		{"https://api.github.com/repos/PHPOffice/PhpSpreadsheet/zipball/v2.1.0", "2.1.0"},
		{"https://mirror.example/phpspreadsheet/1.29.1.tar.gz?token=x", "1.29.1"},
		{"https://mirror.example/phpspreadsheet/latest.zip", ""},
		{"https://mirror.example/phpspreadsheet/1.29.zip", ""},
		{"://bad", ""},
	}
	for _, tt := range tests {
		if got := versionFromURL(tt.url); got != tt.want {
			t.Errorf("versionFromURL(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestInstaller_DownloadURLVersion(t *testing.T) {
	withVersion := releaseZip(t)
	withoutVersion, err := archivetest.Build(map[string]string{
		top + "/":                                   "",
		top + "/composer.json":                      `{"name": "phpoffice/phpspreadsheet"}`,
		top + "/src/PhpSpreadsheet/Spreadsheet.php": "<?php\nclass Spreadsheet {}\n",
	}, 5000)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		payload []byte
		want    string
	}{
		{"from manifest", withVersion, "1.29.0"},
		{"unknown", withoutVersion, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.payload)
			req := request(t.TempDir())
			req.DownloadURL = f.server.URL + "/fallback.zip"

			res := f.installer(nil).Install(context.Background(), req)
			if !res.Success {
				t.Fatalf("Install() failed: %s", res.FailureDetail)
			}
			if res.ResolvedVersion != tt.want {
				t.Errorf("ResolvedVersion = %q, want %q", res.ResolvedVersion, tt.want)
			}
			if res.ResolvedVersion == req.Constraint {
				t.Error("the constraint is not a version")
			}
		})
	}
}
