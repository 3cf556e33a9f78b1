package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"github.com/matzehuels/phpvendor/pkg/archive"
	"github.com/matzehuels/phpvendor/pkg/cache"
	"github.com/matzehuels/phpvendor/pkg/command"
	"github.com/matzehuels/phpvendor/pkg/config"
	"github.com/matzehuels/phpvendor/pkg/integrations"
	"github.com/matzehuels/phpvendor/pkg/integrations/github"
	"github.com/matzehuels/phpvendor/pkg/integrations/packagist"
	"github.com/matzehuels/phpvendor/pkg/layout"
	"github.com/matzehuels/phpvendor/pkg/lock"
	"github.com/matzehuels/phpvendor/pkg/status"
)

// Services is everything Open wires from a Config. Close releases all of it.
type Services struct {
	Runner *Runner
	Cache  cache.Cache

	// Redis is the shared client for the lock lease and the nonce store;
	// nil unless some backend is "redis".
	Redis *redis.Client

	closers []func() error
}

// Close releases every backend in reverse order of creation.
func (s *Services) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Open builds a Runner and its backends from cfg. On error everything
// created so far is closed.
func Open(ctx context.Context, cfg *config.Config, logger *log.Logger) (_ *Services, err error) {
	if logger == nil {
		logger = log.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Services{}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	if s.Cache, err = openCache(ctx, cfg); err != nil {
		return nil, err
	}
	s.closers = append(s.closers, s.Cache.Close)

	if cfg.UsesRedis() {
		s.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		s.closers = append(s.closers, s.Redis.Close)
	}

	sink, err := openSink(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	gh := github.NewClient(s.Cache, cfg.GitHub.Token, cfg.Cache.TTL)
	if cfg.GitHub.BaseURL != "" {
		gh = gh.WithBaseURL(cfg.GitHub.BaseURL)
	}

	// Archives are not cached; the body is streamed to disk.
	dl := integrations.NewClient(nil, "archive:", 0, map[string]string{"Accept": "application/zip"})
	dl.SetHTTPClient(integrations.NewHTTPClient(cfg.Timeouts.Download))

	locker := lock.Multi{lock.NewFile(layout.New(cfg.Root).LockFile())}
	if cfg.Lock.Backend == config.BackendRedis {
		locker = append(locker, lock.NewRedis(s.Redis, "phpvendor:lock:"+cfg.Root, cfg.Lock.TTL))
	}

	s.Runner, err = NewRunner(Options{
		Config:     cfg,
		Commands:   command.NewExecRunner(),
		Releases:   gh,
		Downloader: dl,
		Versions:   packagist.NewClient(s.Cache, cfg.Cache.TTL),
		Sink:       sink,
		Locker:     locker,
		Copier:     archive.CloneCopier{},
		Logger:     logger,
	})
	if err != nil {
		_ = sink.Close()
		return nil, err
	}
	s.closers = append(s.closers, s.Runner.Close)
	return s, nil
}

func openCache(ctx context.Context, cfg *config.Config) (cache.Cache, error) {
	switch cfg.Cache.Backend {
	case config.BackendNone:
		return cache.NewNullCache(), nil
	case config.BackendRedis:
		return cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	default:
		dir := cfg.Cache.Dir
		if dir == "" {
			d, err := cache.DefaultDir()
			if err != nil {
				return nil, fmt.Errorf("cache dir: %w", err)
			}
			dir = d
		}
		return cache.NewFileCache(dir)
	}
}

func openSink(ctx context.Context, cfg *config.Config, logger *log.Logger) (status.Sink, error) {
	file := status.NewFileSink(layout.New(cfg.Root).LogFile(), logger)
	if cfg.Log.Backend != config.BackendMongo {
		return file, nil
	}

	host, _ := os.Hostname()
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	m, err := status.NewMongoSink(ctx, status.MongoConfig{
		URI:        cfg.Log.MongoURI,
		Database:   cfg.Log.MongoDatabase,
		Collection: cfg.Log.MongoCollection,
		Host:       host,
	}, logger)
	if err != nil {
		return nil, err
	}
	// Shared entries are read back first; the local file is kept as well.
	return status.Tee{m, file}, nil
}
