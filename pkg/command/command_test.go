package command

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExecRunner_Success(t *testing.T) {
	requireShell(t)
	res, err := NewExecRunner().Run(context.Background(), "", "sh", "-c", "echo hello")
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !res.Success() || strings.TrimSpace(res.Stdout) != "hello" {
		t.Errorf("Run() = %+v", res)
	}
}

func TestExecRunner_ExitCode(t *testing.T) {
	requireShell(t)
	res, err := NewExecRunner().Run(context.Background(), "", "sh", "-c", "echo boom >&2; exit 3")
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if res.ExitCode != 3 || res.Success() {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
	if res.Output() != "boom" {
		t.Errorf("Output() = %q, want boom", res.Output())
	}
}

func TestExecRunner_Dir(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	before, _ := os.Getwd()

	res, err := NewExecRunner().Run(context.Background(), dir, "sh", "-c", "pwd")
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	got, _ := filepath.EvalSymlinks(strings.TrimSpace(res.Stdout))
	want, _ := filepath.EvalSymlinks(dir)
	if got != want {
		t.Errorf("child cwd = %q, want %q", got, want)
	}
	if after, _ := os.Getwd(); after != before {
		t.Errorf("process cwd changed from %q to %q", before, after)
	}
}

func TestExecRunner_NotFound(t *testing.T) {
	_, err := NewExecRunner().Run(context.Background(), "", "definitely-not-a-real-binary-phpvendor")
	if err == nil {
		t.Fatal("Run() error = nil, want not found")
	}
	if !IsNotFound(err) {
		t.Errorf("IsNotFound(%v) = false", err)
	}
}

func TestExecRunner_Timeout(t *testing.T) {
	requireShell(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewExecRunner().Run(ctx, "", "sh", "-c", "sleep 5")
	if err == nil {
		t.Fatal("Run() error = nil, want deadline exceeded")
	}
}

func TestCall_String(t *testing.T) {
	c := Call{Command: "composer", Args: []string{"install", "--no-dev"}}
	if c.String() != "composer install --no-dev" {
		t.Errorf("String() = %q", c.String())
	}
}
