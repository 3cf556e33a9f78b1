package observability

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	i := NoopInstallHooks{}
	i.OnProbe(ctx, "composer", false)
	i.OnAttemptStart(ctx, "archive")
	i.OnAttemptComplete(ctx, "archive", time.Second, nil)
	i.OnLoaded(ctx, "/srv/plugin/vendor/autoload.php")

	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "github")
	c.OnCacheMiss(ctx, "packagist")
	c.OnCacheSet(ctx, "github", 1024)

	h := NoopHTTPHooks{}
	h.OnRequest(ctx, "GET", "api.github.com", "/repos/PHPOffice/PhpSpreadsheet/releases/latest")
	h.OnResponse(ctx, "GET", "api.github.com", "/repos/PHPOffice/PhpSpreadsheet/releases/latest", 200, time.Second)
	h.OnError(ctx, "GET", "api.github.com", "/", nil)
}

func TestGlobalHooksRegistry(t *testing.T) {
	Reset()

	if _, ok := Install().(NoopInstallHooks); !ok {
		t.Error("Install() should return NoopInstallHooks by default")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Cache() should return NoopCacheHooks by default")
	}
	if _, ok := HTTP().(NoopHTTPHooks); !ok {
		t.Error("HTTP() should return NoopHTTPHooks by default")
	}

	customInstall := &testInstallHooks{}
	SetInstallHooks(customInstall)
	if Install() != customInstall {
		t.Error("SetInstallHooks should set custom hooks")
	}

	customCache := &testCacheHooks{}
	SetCacheHooks(customCache)
	if Cache() != customCache {
		t.Error("SetCacheHooks should set custom hooks")
	}

	customHTTP := &testHTTPHooks{}
	SetHTTPHooks(customHTTP)
	if HTTP() != customHTTP {
		t.Error("SetHTTPHooks should set custom hooks")
	}

	Reset()
	if _, ok := Install().(NoopInstallHooks); !ok {
		t.Error("Reset() should restore NoopInstallHooks")
	}
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()
	defer Reset()

	custom := &testInstallHooks{}
	SetInstallHooks(custom)
	SetInstallHooks(nil)

	if Install() != custom {
		t.Error("SetInstallHooks(nil) should be ignored")
	}
}

func TestInstallFuncs(t *testing.T) {
	ctx := context.Background()

	var (
		probes   []string
		started  string
		complete error
		loaded   string
	)
	f := InstallFuncs{
		Probe:           func(_ context.Context, exe string, _ bool) { probes = append(probes, exe) },
		AttemptStart:    func(_ context.Context, m string) { started = m },
		AttemptComplete: func(_ context.Context, _ string, _ time.Duration, err error) { complete = err },
		Loaded:          func(_ context.Context, p string) { loaded = p },
	}

	f.OnProbe(ctx, "composer", true)
	f.OnAttemptStart(ctx, "package_manager")
	f.OnAttemptComplete(ctx, "package_manager", time.Millisecond, errors.New("exit 1"))
	f.OnLoaded(ctx, "vendor/autoload.php")

	if len(probes) != 1 || probes[0] != "composer" {
		t.Errorf("probes = %v", probes)
	}
	if started != "package_manager" {
		t.Errorf("started = %q", started)
	}
	if complete == nil {
		t.Error("AttemptComplete should receive the error")
	}
	if loaded != "vendor/autoload.php" {
		t.Errorf("loaded = %q", loaded)
	}

	// Zero value skips every call.
	InstallFuncs{}.OnLoaded(ctx, "x")
}

type testInstallHooks struct{ NoopInstallHooks }
type testCacheHooks struct{ NoopCacheHooks }
type testHTTPHooks struct{ NoopHTTPHooks }
