package config

import (
	"path/filepath"
	"slices"
	"strings"

	apperrors "github.com/matzehuels/phpvendor/pkg/errors"
)

var (
	cacheBackends = []string{BackendNone, BackendFile, BackendRedis}
	logBackends   = []string{BackendFile, BackendMongo}
	lockBackends  = []string{BackendFile, BackendRedis}
	nonceBackends = []string{BackendMemory, BackendFile, BackendRedis}
	methods       = []string{MethodComposer, MethodArchive}
)

// Validate checks c for consistency and makes Root and HostRoot absolute.
func (c *Config) Validate() error {
	if c.Root == "" {
		return apperrors.New(apperrors.ErrCodeInvalidConfig, "root cannot be empty")
	}
	root, err := filepath.Abs(c.Root)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeInvalidConfig, err, "resolve root")
	}
	c.Root = root

	if c.HostRoot != "" {
		host, err := filepath.Abs(c.HostRoot)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrCodeInvalidConfig, err, "resolve host_root")
		}
		c.HostRoot = host
	}

	if err := apperrors.ValidateComposerPackage(c.Package.Name); err != nil {
		return err
	}
	if c.Package.Constraint == "" || c.Package.Symbol == "" {
		return apperrors.New(apperrors.ErrCodeInvalidConfig, "package constraint and symbol are required")
	}
	if sym := c.Package.Symbol; strings.HasPrefix(sym, `\`) || strings.HasSuffix(sym, `\`) || !strings.Contains(sym, `\`) {
		return apperrors.New(apperrors.ErrCodeInvalidConfig, "package.symbol %q must be a namespaced class name", sym)
	}
	if err := apperrors.ValidateURL(c.Package.FallbackURL); err != nil {
		return apperrors.Wrap(apperrors.ErrCodeInvalidConfig, err, "package.fallback_url")
	}
	if c.Archive.DownloadURL != "" {
		if err := apperrors.ValidateURL(c.Archive.DownloadURL); err != nil {
			return apperrors.Wrap(apperrors.ErrCodeInvalidConfig, err, "archive.download_url")
		}
	}
	if c.Archive.MetadataURL != "" {
		if err := apperrors.ValidateURL(c.Archive.MetadataURL); err != nil {
			return apperrors.Wrap(apperrors.ErrCodeInvalidConfig, err, "archive.metadata_url")
		}
	}

	if c.Archive.MinBytes < 0 || c.Archive.MaxBytes <= c.Archive.MinBytes {
		return apperrors.New(apperrors.ErrCodeInvalidConfig,
			"archive size bounds invalid: min %d, max %d", c.Archive.MinBytes, c.Archive.MaxBytes)
	}

	t := c.Timeouts
	if t.Probe <= 0 || t.Install <= 0 || t.Metadata <= 0 || t.Download <= 0 {
		return apperrors.New(apperrors.ErrCodeInvalidConfig, "timeouts must be positive")
	}

	checks := []struct {
		field, value string
		allowed      []string
	}{
		{"installation_method", c.Method, methods},
		{"cache.backend", c.Cache.Backend, cacheBackends},
		{"log.backend", c.Log.Backend, logBackends},
		{"lock.backend", c.Lock.Backend, lockBackends},
		{"server.nonce_store", c.Server.NonceStore, nonceBackends},
	}
	for _, chk := range checks {
		if !slices.Contains(chk.allowed, chk.value) {
			return apperrors.New(apperrors.ErrCodeInvalidConfig,
				"%s: unknown value %q (want one of %v)", chk.field, chk.value, chk.allowed)
		}
	}

	if c.Log.Backend == BackendMongo && c.Log.MongoURI == "" {
		return apperrors.New(apperrors.ErrCodeInvalidConfig, "log.mongo_uri is required for the mongo backend")
	}
	return nil
}

// UsesRedis reports whether any component is configured to talk to Redis.
func (c *Config) UsesRedis() bool {
	return c.Cache.Backend == BackendRedis || c.Lock.Backend == BackendRedis || c.Server.NonceStore == BackendRedis
}
