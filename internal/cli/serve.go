package cli

import (
	"context"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/phpvendor/pkg/config"
	apperrors "github.com/matzehuels/phpvendor/pkg/errors"
	"github.com/matzehuels/phpvendor/pkg/layout"
	"github.com/matzehuels/phpvendor/pkg/pipeline"
	"github.com/matzehuels/phpvendor/pkg/server"
	"github.com/matzehuels/phpvendor/pkg/session"
)

// nonceCleanupInterval is how often expired nonces are swept.
const nonceCleanupInterval = time.Minute

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the install and status endpoints over HTTP",
		Long: `Start the HTTP trigger surface:

  GET  /api/nonce?action=install|check-status
  POST /api/install
  POST /api/check-status

Every request needs "Authorization: Bearer <admin_token>"; the POST routes
also need a single-use nonce from /api/nonce. The server runs the start-up
sequence before listening and shuts down gracefully on SIGINT/SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, addr string) error {
	logger := loggerFromContext(ctx)

	svc, err := c.open(ctx, func(cfg *config.Config) {
		if addr != "" {
			cfg.Server.Addr = addr
		}
	})
	if err != nil {
		return err
	}
	defer svc.Close()

	r := svc.Runner
	cfg := r.Config()
	if err := r.Prepare(ctx); err != nil {
		return err
	}
	if loaded, err := r.Bootstrap(ctx); err != nil {
		logger.Warn("start-up install failed", "err", err)
	} else if !loaded {
		logger.Warn("PhpSpreadsheet is not loaded; POST /api/install to install it")
	}

	nonces, err := openNonceStore(cfg, svc)
	if err != nil {
		return err
	}
	if cfg.Server.NonceStore != config.BackendRedis {
		defer nonces.Close()
	}
	go sweepNonces(ctx, nonces, logger)

	srv, err := server.New(r, server.Options{
		AdminToken: cfg.Server.AdminToken,
		Nonces:     nonces,
		NonceTTL:   cfg.Server.NonceTTL,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	logger.Info("listening", "addr", cfg.Server.Addr, "root", cfg.Root)
	return srv.ListenAndServe(ctx, cfg.Server.Addr)
}

// openNonceStore picks the nonce backend. The redis store shares the
// services' client, which Services.Close releases.
func openNonceStore(cfg *config.Config, svc *pipeline.Services) (session.Store, error) {
	switch cfg.Server.NonceStore {
	case config.BackendRedis:
		if svc.Redis == nil {
			return nil, apperrors.New(apperrors.ErrCodeInvalidConfig, "nonce_store redis needs a redis connection")
		}
		return session.NewRedisStore(svc.Redis, "phpvendor:nonce:"), nil
	case config.BackendFile:
		return session.NewFileStore(filepath.Join(layout.New(cfg.Root).TempDir(), "nonces"))
	default:
		return session.NewMemoryStore(), nil
	}
}

func sweepNonces(ctx context.Context, s session.Store, logger *log.Logger) {
	t := time.NewTicker(nonceCleanupInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := s.Cleanup(ctx); err != nil {
				logger.Debug("nonce cleanup failed", "err", err)
			}
		}
	}
}
