package composer

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/phpvendor/pkg/acquire"
	"github.com/matzehuels/phpvendor/pkg/command"
	"github.com/matzehuels/phpvendor/pkg/observability"
)

// Strategy is the selector's decision.
type Strategy struct {
	Method acquire.Method

	// Executable is the first candidate whose probe succeeded. Empty for
	// the archive method.
	Executable string
}

// Selector probes for a Composer executable.
type Selector struct {
	runner     command.Runner
	candidates []string
	php        string
	timeout    time.Duration
	logger     *log.Logger
}

// SelectorOptions configures a Selector.
type SelectorOptions struct {
	// Candidates are probed in order. WorkDir/composer.phar is appended.
	Candidates []string

	// WorkDir is the directory whose composer.phar is probed last.
	WorkDir string

	// PHP runs .phar candidates. Defaults to "php".
	PHP string

	// Timeout bounds each probe. Defaults to 10 seconds.
	Timeout time.Duration

	Logger *log.Logger
}

// NewSelector creates a Selector.
func NewSelector(r command.Runner, opts SelectorOptions) *Selector {
	cands := append([]string(nil), opts.Candidates...)
	if opts.WorkDir != "" {
		cands = append(cands, filepath.Join(opts.WorkDir, "composer.phar"))
	}
	if opts.PHP == "" {
		opts.PHP = "php"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Selector{
		runner:     r,
		candidates: cands,
		php:        opts.PHP,
		timeout:    opts.Timeout,
		logger:     opts.Logger,
	}
}

// Candidates returns the probe order.
func (s *Selector) Candidates() []string {
	return append([]string(nil), s.candidates...)
}

// Select returns package_manager with the first candidate whose
// `--version` exits 0, or archive when every probe fails.
func (s *Selector) Select(ctx context.Context) Strategy {
	if exe, ok := s.Discover(ctx); ok {
		return Strategy{Method: acquire.MethodPackageManager, Executable: exe}
	}
	return Strategy{Method: acquire.MethodArchive}
}

// Discover probes the candidates in order and returns the first that works.
func (s *Selector) Discover(ctx context.Context) (string, bool) {
	for _, cand := range s.candidates {
		if ctx.Err() != nil {
			return "", false
		}
		ok := s.probe(ctx, cand)
		observability.Install().OnProbe(ctx, cand, ok)
		if ok {
			s.logger.Debug("composer found", "executable", cand)
			return cand, true
		}
	}
	s.logger.Debug("composer not found", "probed", len(s.candidates))
	return "", false
}

func (s *Selector) probe(ctx context.Context, cand string) bool {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	name, args := invocation(s.php, cand, "--version")
	res, err := s.runner.Run(ctx, "", name, args...)
	if err != nil {
		s.logger.Debug("probe failed", "executable", cand, "err", err)
		return false
	}
	return res.Success()
}

// invocation returns the command line running exe with args. A .phar is run
// through php.
func invocation(php, exe string, args ...string) (string, []string) {
	if strings.HasSuffix(exe, ".phar") {
		return php, append([]string{exe}, args...)
	}
	return exe, args
}
