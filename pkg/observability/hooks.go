// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers register hooks at startup
// to receive events about installs, cache operations, and API calls.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// The install hooks double as the notification path for other consumers:
// [InstallHooks.OnLoaded] fires exactly once per process, when the library is
// first confirmed loadable.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetInstallHooks(observability.InstallFuncs{
//	        Loaded: func(ctx context.Context, entryPoint string) { ... },
//	    })
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Install().OnAttemptStart(ctx, "archive")
//	// ... run installer ...
//	observability.Install().OnAttemptComplete(ctx, "archive", duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Install Hooks
// =============================================================================

// InstallHooks receives events from the acquisition pipeline.
type InstallHooks interface {
	// OnProbe records one package-manager probe.
	OnProbe(ctx context.Context, executable string, found bool)

	// Installer attempt events. method is "package_manager" or "archive".
	OnAttemptStart(ctx context.Context, method string)
	OnAttemptComplete(ctx context.Context, method string, duration time.Duration, err error)

	// OnLoaded fires when the library is confirmed loadable from entryPoint.
	OnLoaded(ctx context.Context, entryPoint string)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from HTTP client operations.
type HTTPHooks interface {
	// OnRequest records an outgoing HTTP request.
	OnRequest(ctx context.Context, method, host, path string)

	// OnResponse records an HTTP response.
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)

	// OnError records an HTTP error (network failure, timeout).
	OnError(ctx context.Context, method, host, path string, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopInstallHooks is a no-op implementation of InstallHooks.
type NoopInstallHooks struct{}

func (NoopInstallHooks) OnProbe(context.Context, string, bool)                           {}
func (NoopInstallHooks) OnAttemptStart(context.Context, string)                          {}
func (NoopInstallHooks) OnAttemptComplete(context.Context, string, time.Duration, error) {}
func (NoopInstallHooks) OnLoaded(context.Context, string)                                {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}

// =============================================================================
// Function Adapters
// =============================================================================

// InstallFuncs adapts plain functions to InstallHooks. Nil fields are skipped.
type InstallFuncs struct {
	Probe           func(ctx context.Context, executable string, found bool)
	AttemptStart    func(ctx context.Context, method string)
	AttemptComplete func(ctx context.Context, method string, duration time.Duration, err error)
	Loaded          func(ctx context.Context, entryPoint string)
}

func (f InstallFuncs) OnProbe(ctx context.Context, executable string, found bool) {
	if f.Probe != nil {
		f.Probe(ctx, executable, found)
	}
}

func (f InstallFuncs) OnAttemptStart(ctx context.Context, method string) {
	if f.AttemptStart != nil {
		f.AttemptStart(ctx, method)
	}
}

func (f InstallFuncs) OnAttemptComplete(ctx context.Context, method string, d time.Duration, err error) {
	if f.AttemptComplete != nil {
		f.AttemptComplete(ctx, method, d, err)
	}
}

func (f InstallFuncs) OnLoaded(ctx context.Context, entryPoint string) {
	if f.Loaded != nil {
		f.Loaded(ctx, entryPoint)
	}
}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	installHooks InstallHooks = NoopInstallHooks{}
	cacheHooks   CacheHooks   = NoopCacheHooks{}
	httpHooks    HTTPHooks    = NoopHTTPHooks{}
	hooksMu      sync.RWMutex
)

// SetInstallHooks registers custom install hooks.
// This should be called once at application startup before any install runs.
func SetInstallHooks(h InstallHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		installHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetHTTPHooks registers custom HTTP hooks.
func SetHTTPHooks(h HTTPHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		httpHooks = h
	}
}

// Install returns the registered install hooks.
func Install() InstallHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return installHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return httpHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	installHooks = NoopInstallHooks{}
	cacheHooks = NoopCacheHooks{}
	httpHooks = NoopHTTPHooks{}
}
