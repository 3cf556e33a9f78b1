package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	apperrors "github.com/matzehuels/phpvendor/pkg/errors"
)

// FileNames are searched in order by [Find].
var FileNames = []string{"phpvendor.toml", "phpvendor.yaml", "phpvendor.yml"}

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PHPVENDOR_"

// Find returns the first config file from [FileNames] present in dir.
func Find(dir string) (string, bool) {
	for _, name := range FileNames {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, true
		}
	}
	return "", false
}

// Load builds a Config from defaults, the file at path (searched in the
// working directory when empty) and the process environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path, _ = Find(".")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrCodeInvalidConfig, err, "read config %s", path)
		}
		if err := cfg.Decode(data, filepath.Ext(path)); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrCodeInvalidConfig, err, "parse config %s", path)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode merges data into c. ext selects the format: ".toml", ".yaml" or ".yml".
// Keys missing from data keep their current values.
func (c *Config) Decode(data []byte, ext string) error {
	switch strings.ToLower(ext) {
	case ".toml":
		_, err := toml.NewDecoder(bytes.NewReader(data)).Decode(c)
		return err
	case ".yaml", ".yml":
		if len(bytes.TrimSpace(data)) == 0 {
			return nil
		}
		return yaml.Unmarshal(data, c)
	default:
		return fmt.Errorf("unsupported config format %q", ext)
	}
}

// ApplyEnv overrides fields from PHPVENDOR_* variables. lookup is usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"ROOT":                &c.Root,
		"HOST_ROOT":           &c.HostRoot,
		"INSTALLATION_METHOD": &c.Method,
		"PHP":                 &c.Composer.PHP,
		"GITHUB_TOKEN":        &c.GitHub.Token,
		"ARCHIVE_URL":         &c.Archive.DownloadURL,
		"METADATA_URL":        &c.Archive.MetadataURL,
		"CACHE_BACKEND":       &c.Cache.Backend,
		"CACHE_DIR":           &c.Cache.Dir,
		"LOG_BACKEND":         &c.Log.Backend,
		"MONGO_URI":           &c.Log.MongoURI,
		"LOCK_BACKEND":        &c.Lock.Backend,
		"SERVER_ADDR":         &c.Server.Addr,
		"ADMIN_TOKEN":         &c.Server.AdminToken,
		"NONCE_STORE":         &c.Server.NonceStore,
		"REDIS_ADDR":          &c.Redis.Addr,
		"REDIS_PASSWORD":      &c.Redis.Password,
	}
	for name, dst := range str {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}

	flags := map[string]*bool{
		"AUTO_LOAD":    &c.AutoLoad,
		"AUTO_INSTALL": &c.AutoInstall,
	}
	for name, dst := range flags {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrCodeInvalidConfig, err, "%s%s", EnvPrefix, name)
		}
		*dst = b
	}

	if v, ok := lookup(EnvPrefix + "REDIS_DB"); ok {
		db, err := strconv.Atoi(v)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrCodeInvalidConfig, err, "%sREDIS_DB", EnvPrefix)
		}
		c.Redis.DB = db
	}
	return nil
}

// Encode renders c as TOML, for `config show`.
func (c *Config) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeYAML renders c as YAML.
func (c *Config) EncodeYAML() ([]byte, error) {
	return yaml.Marshal(c)
}
