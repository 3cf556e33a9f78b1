package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/phpvendor/pkg/acquire"
	"github.com/matzehuels/phpvendor/pkg/layout"
	"github.com/matzehuels/phpvendor/pkg/pipeline"
	"github.com/matzehuels/phpvendor/pkg/status"
)

// captureStdout redirects command output into w until restore is called.
func captureStdout(w io.Writer) (restore func()) {
	prev := stdout
	stdout = w
	return func() { stdout = prev }
}

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	var out bytes.Buffer
	restore := captureStdout(&out)
	defer restore()

	c := New(io.Discard, LogInfo)
	root := c.RootCommand()
	root.SetArgs(args)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := New(io.Discard, LogInfo).RootCommand()

	want := []string{"install", "status", "load", "serve", "logs", "cache", "config", "uninstall", "completion"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}

	for _, flag := range []string{"config", "root", "no-cache"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("persistent flag --%s missing", flag)
		}
	}
}

func TestConfigShow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "phpvendor.toml")
	body := "installation_method = \"archive\"\n\n[package]\nconstraint = \"^1.28\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "config", "show", "--config", path, "--root", dir)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	for _, want := range []string{`installation_method = "archive"`, `constraint = "^1.28"`, dir} {
		if !strings.Contains(out, want) {
			t.Errorf("toml output missing %q:\n%s", want, out)
		}
	}

	out, err = execute(t, "config", "show", "--config", path, "--format", "yaml")
	if err != nil {
		t.Fatalf("config show --format yaml: %v", err)
	}
	if !strings.Contains(out, "installation_method: archive") {
		t.Errorf("yaml output missing method:\n%s", out)
	}

	if _, err := execute(t, "config", "show", "--config", path, "--format", "ini"); err == nil {
		t.Error("unknown format should fail")
	}
}

func TestStatus_NotInstalled(t *testing.T) {
	root := t.TempDir()

	out, err := execute(t, "status", "--root", root, "--no-cache", "--json")
	if err != nil {
		t.Fatalf("status: %v", err)
	}

	var st status.State
	if err := json.Unmarshal([]byte(out), &st); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if st.Loaded {
		t.Error("nothing is installed, state should not be loaded")
	}
	if len(st.CheckedPaths) == 0 || st.CheckedPaths[0] != layout.New(root).EntryPoint() {
		t.Errorf("checked paths = %v, want the root entry point first", st.CheckedPaths)
	}
	if st.Phase != status.PhaseFailed {
		t.Errorf("phase = %q, want %q", st.Phase, status.PhaseFailed)
	}
}

func TestStatus_AdminNotice(t *testing.T) {
	out, err := execute(t, "status", "--root", t.TempDir(), "--no-cache")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "PhpSpreadsheet is not installed") {
		t.Errorf("missing install notice:\n%s", out)
	}
	if !strings.Contains(out, "phpvendor install") {
		t.Errorf("missing install hint:\n%s", out)
	}
}

func TestLoad_NotInstalled(t *testing.T) {
	_, err := execute(t, "load", "--root", t.TempDir(), "--no-cache")
	if !errors.Is(err, errNotLoaded) {
		t.Fatalf("load err = %v, want %v", err, errNotLoaded)
	}
}

func TestUninstall(t *testing.T) {
	root := t.TempDir()
	l := layout.New(root)
	if err := l.Prepare(); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "uninstall", "--root", root, "--no-cache", "--keep-library")
	if err != nil {
		t.Fatalf("uninstall: %v", err)
	}
	if _, err := os.Stat(l.VendorDir()); err != nil {
		t.Errorf("vendor/ should survive --keep-library: %v", err)
	}
	entries, err := os.ReadDir(l.TempDir())
	if err != nil || len(entries) != 1 || entries[0].Name() != filepath.Base(l.LockFile()) {
		t.Errorf("temp/ should hold only the lock file, got %v (err %v)", entries, err)
	}
	if !strings.Contains(out, l.LogsDir()) {
		t.Errorf("removed paths not listed:\n%s", out)
	}

	out, err = execute(t, "uninstall", "--root", root, "--no-cache")
	if err != nil {
		t.Fatalf("uninstall: %v", err)
	}
	if _, err := os.Stat(l.VendorDir()); !os.IsNotExist(err) {
		t.Errorf("vendor/ should be removed, stat err = %v", err)
	}
	if !strings.Contains(out, "Removed") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestLogs(t *testing.T) {
	root := t.TempDir()

	out, err := execute(t, "logs", "--root", root, "--no-cache")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if !strings.Contains(out, "empty") {
		t.Errorf("expected empty-log notice:\n%s", out)
	}

	sink := status.NewFileSink(layout.New(root).LogFile(), nil)
	sink.Log(context.Background(), "Downloading PhpSpreadsheet from: https://example.test/a.zip")
	sink.Log(context.Background(), "PhpSpreadsheet library not found")

	out, err = execute(t, "logs", "--root", root, "--no-cache", "-n", "1")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if strings.Contains(out, "Downloading") || !strings.Contains(out, "library not found") {
		t.Errorf("limit 1 should print only the newest entry:\n%s", out)
	}
}

func TestCachePath(t *testing.T) {
	out, err := execute(t, "cache", "path")
	if err != nil {
		t.Fatalf("cache path: %v", err)
	}
	if !strings.HasSuffix(strings.TrimSpace(out), "phpvendor") {
		t.Errorf("cache path = %q, want a phpvendor directory", out)
	}

	if _, err := execute(t, "cache", "path", "--no-cache"); err == nil {
		t.Error("cache path with caching disabled should fail")
	}
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	restore := captureStdout(&buf)
	defer restore()

	printReport(&pipeline.InstallReport{
		Attempts: []acquire.Result{
			{Method: acquire.MethodPackageManager, FailureDetail: "Composer installation failed. Output: boom\nmore"},
			{Method: acquire.MethodArchive, Success: true, ResolvedVersion: "1.29.0"},
		},
		Loaded:  true,
		Method:  acquire.MethodArchive,
		Version: "1.29.0",
		Message: pipeline.MsgInstalledLoaded,
	})

	out := buf.String()
	for _, want := range []string{"Composer", "Output: boom", "Release archive", pipeline.MsgInstalledLoaded, "1.29.0"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "more") {
		t.Errorf("failure detail should be cut to its first line:\n%s", out)
	}
}

func TestCompletion(t *testing.T) {
	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		out, err := execute(t, "completion", shell)
		if err != nil {
			t.Fatalf("completion %s: %v", shell, err)
		}
		if !strings.Contains(out, "phpvendor") {
			t.Errorf("completion %s does not mention phpvendor", shell)
		}
	}
	if _, err := execute(t, "completion", "tcsh"); err == nil {
		t.Error("unsupported shell should fail")
	}
}
