// Package config holds phpvendor's settings.
//
// Settings come from four layers, later layers winning:
//
//  1. [Default] values
//  2. A config file: phpvendor.toml (BurntSushi/toml) or phpvendor.yaml (yaml.v3)
//  3. PHPVENDOR_* environment variables ([Config.ApplyEnv])
//  4. Command-line flags, applied by the CLI
//
// Durations are written as Go duration strings in both formats:
//
//	[timeouts]
//	probe = "10s"
//	install = "5m"
package config

import "time"

// Default values. The fallback release is used whenever the release-metadata
// lookup fails for any reason.
const (
	DefaultPackage         = "phpoffice/phpspreadsheet"
	DefaultConstraint      = "^1.29"
	DefaultSymbol          = `PhpOffice\PhpSpreadsheet\Spreadsheet`
	DefaultOwner           = "PHPOffice"
	DefaultRepo            = "PhpSpreadsheet"
	DefaultFallbackVersion = "1.29.0"
	DefaultFallbackURL     = "https://github.com/PHPOffice/PhpSpreadsheet/archive/refs/tags/1.29.0.zip"

	DefaultMinArchiveBytes = 1000
	DefaultMaxArchiveBytes = 100 << 20

	DefaultProbeTimeout    = 10 * time.Second
	DefaultInstallTimeout  = 5 * time.Minute
	DefaultMetadataTimeout = 15 * time.Second
	DefaultDownloadTimeout = 5 * time.Minute

	DefaultCacheTTL = time.Hour
	DefaultLockTTL  = 10 * time.Minute
	DefaultNonceTTL = 10 * time.Minute

	DefaultServerAddr = "127.0.0.1:8765"
)

// DefaultComposerCandidates are probed in order by the strategy selector.
// Relative .phar entries are resolved against the working directory and run
// through php.
var DefaultComposerCandidates = []string{
	"composer",
	"composer.phar",
	"/usr/local/bin/composer",
	"/usr/bin/composer",
}

// Backend names shared by the cache, nonce and lock sections.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
)

// Installation methods accepted by Config.Method.
const (
	MethodComposer = "composer"
	MethodArchive  = "archive"
)

// Config is the complete phpvendor configuration.
type Config struct {
	// Root is the plugin install root. vendor/, temp/ and logs/ live below it.
	Root string `toml:"root" yaml:"root"`

	// HostRoot is the host application's root. Its vendor/autoload.php is the
	// second load candidate. Empty disables it.
	HostRoot string `toml:"host_root" yaml:"host_root"`

	AutoLoad    bool   `toml:"auto_load" yaml:"auto_load"`
	AutoInstall bool   `toml:"auto_install" yaml:"auto_install"`
	Method      string `toml:"installation_method" yaml:"installation_method"`

	Package  PackageConfig  `toml:"package" yaml:"package"`
	Composer ComposerConfig `toml:"composer" yaml:"composer"`
	Timeouts TimeoutConfig  `toml:"timeouts" yaml:"timeouts"`
	Archive  ArchiveConfig  `toml:"archive" yaml:"archive"`
	GitHub   GitHubConfig   `toml:"github" yaml:"github"`
	Cache    CacheConfig    `toml:"cache" yaml:"cache"`
	Log      LogConfig      `toml:"log" yaml:"log"`
	Lock     LockConfig     `toml:"lock" yaml:"lock"`
	Server   ServerConfig   `toml:"server" yaml:"server"`
	Redis    RedisConfig    `toml:"redis" yaml:"redis"`
}

// PackageConfig names the library being acquired.
type PackageConfig struct {
	Name            string `toml:"name" yaml:"name"`
	Constraint      string `toml:"constraint" yaml:"constraint"`
	Symbol          string `toml:"symbol" yaml:"symbol"`
	Owner           string `toml:"owner" yaml:"owner"`
	Repo            string `toml:"repo" yaml:"repo"`
	FallbackVersion string `toml:"fallback_version" yaml:"fallback_version"`
	FallbackURL     string `toml:"fallback_url" yaml:"fallback_url"`
}

// ComposerConfig controls the package-manager strategy.
type ComposerConfig struct {
	Candidates []string `toml:"candidates" yaml:"candidates"`
	PHP        string   `toml:"php" yaml:"php"`
}

// TimeoutConfig bounds every blocking step.
type TimeoutConfig struct {
	Probe    time.Duration `toml:"probe" yaml:"probe"`
	Install  time.Duration `toml:"install" yaml:"install"`
	Metadata time.Duration `toml:"metadata" yaml:"metadata"`
	Download time.Duration `toml:"download" yaml:"download"`
}

// ArchiveConfig controls the archive strategy.
type ArchiveConfig struct {
	MinBytes int64 `toml:"min_bytes" yaml:"min_bytes"`
	MaxBytes int64 `toml:"max_bytes" yaml:"max_bytes"`

	// DownloadURL, when set, skips the release-metadata lookup.
	DownloadURL string `toml:"download_url" yaml:"download_url"`

	// MetadataURL replaces the GitHub latest-release endpoint, e.g. with a
	// mirror serving the same JSON.
	MetadataURL string `toml:"metadata_url" yaml:"metadata_url"`
}

// GitHubConfig configures the release-metadata client.
type GitHubConfig struct {
	Token   string `toml:"token" yaml:"token"`
	BaseURL string `toml:"base_url" yaml:"base_url"`
}

// CacheConfig selects the HTTP metadata cache.
type CacheConfig struct {
	Backend string        `toml:"backend" yaml:"backend"`
	Dir     string        `toml:"dir" yaml:"dir"`
	TTL     time.Duration `toml:"ttl" yaml:"ttl"`
}

// LogConfig selects where diagnostic entries are appended.
type LogConfig struct {
	Backend         string `toml:"backend" yaml:"backend"`
	MongoURI        string `toml:"mongo_uri" yaml:"mongo_uri"`
	MongoDatabase   string `toml:"mongo_database" yaml:"mongo_database"`
	MongoCollection string `toml:"mongo_collection" yaml:"mongo_collection"`
}

// LockConfig selects the install lock. The in-process and file locks are
// always taken; Backend "redis" adds a lease shared across hosts.
type LockConfig struct {
	Backend string        `toml:"backend" yaml:"backend"`
	TTL     time.Duration `toml:"ttl" yaml:"ttl"`
}

// ServerConfig configures the HTTP trigger surface.
type ServerConfig struct {
	Addr       string        `toml:"addr" yaml:"addr"`
	AdminToken string        `toml:"admin_token" yaml:"admin_token"`
	NonceStore string        `toml:"nonce_store" yaml:"nonce_store"`
	NonceTTL   time.Duration `toml:"nonce_ttl" yaml:"nonce_ttl"`
}

// RedisConfig is shared by every Redis-backed component.
type RedisConfig struct {
	Addr     string `toml:"addr" yaml:"addr"`
	Password string `toml:"password" yaml:"password"`
	DB       int    `toml:"db" yaml:"db"`
}

// Default returns a Config populated with default values.
func Default() *Config {
	return &Config{
		Root:     ".",
		AutoLoad: true,
		Method:   MethodComposer,
		Package: PackageConfig{
			Name:            DefaultPackage,
			Constraint:      DefaultConstraint,
			Symbol:          DefaultSymbol,
			Owner:           DefaultOwner,
			Repo:            DefaultRepo,
			FallbackVersion: DefaultFallbackVersion,
			FallbackURL:     DefaultFallbackURL,
		},
		Composer: ComposerConfig{
			Candidates: append([]string(nil), DefaultComposerCandidates...),
			PHP:        "php",
		},
		Timeouts: TimeoutConfig{
			Probe:    DefaultProbeTimeout,
			Install:  DefaultInstallTimeout,
			Metadata: DefaultMetadataTimeout,
			Download: DefaultDownloadTimeout,
		},
		Archive: ArchiveConfig{
			MinBytes: DefaultMinArchiveBytes,
			MaxBytes: DefaultMaxArchiveBytes,
		},
		Cache:  CacheConfig{Backend: BackendFile, TTL: DefaultCacheTTL},
		Log:    LogConfig{Backend: BackendFile, MongoDatabase: "phpvendor", MongoCollection: "install_log"},
		Lock:   LockConfig{Backend: BackendFile, TTL: DefaultLockTTL},
		Server: ServerConfig{Addr: DefaultServerAddr, NonceStore: BackendMemory, NonceTTL: DefaultNonceTTL},
		Redis:  RedisConfig{Addr: "localhost:6379"},
	}
}
