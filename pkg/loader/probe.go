package loader

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/matzehuels/phpvendor/pkg/command"
	apperrors "github.com/matzehuels/phpvendor/pkg/errors"
)

// ErrSymbolNotFound means the entry point loaded but does not define the
// symbol.
var ErrSymbolNotFound = errors.New("symbol not defined")

// Prober checks whether requiring entryPoint makes symbol available and
// returns the file that defines it.
type Prober interface {
	Probe(ctx context.Context, entryPoint, symbol string) (definingFile string, err error)
}

// symbolMissingExit is the exit code of probeScript when the class is absent.
const symbolMissingExit = 3

const probeScript = `require_once $argv[1];
if (!class_exists($argv[2])) { exit(3); }
echo (new ReflectionClass($argv[2]))->getFileName();`

// PHPProber probes with the PHP interpreter.
type PHPProber struct {
	Runner  command.Runner
	PHP     string
	Timeout time.Duration
}

// NewPHPProber creates a PHPProber. An empty php means "php" on PATH.
func NewPHPProber(r command.Runner, php string, timeout time.Duration) *PHPProber {
	if php == "" {
		php = "php"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PHPProber{Runner: r, PHP: php, Timeout: timeout}
}

// Probe implements Prober.
func (p *PHPProber) Probe(ctx context.Context, entryPoint, symbol string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	res, err := p.Runner.Run(ctx, "", p.PHP, "-r", probeScript, "--", entryPoint, symbol)
	switch {
	case command.IsNotFound(err):
		return "", apperrors.Wrap(apperrors.ErrCodeEnvAbsent, err, "php interpreter not found")
	case errors.Is(err, context.DeadlineExceeded):
		return "", apperrors.Wrap(apperrors.ErrCodeTimeout, err, "probe %s", entryPoint)
	case err != nil:
		return "", apperrors.Wrap(apperrors.ErrCodeSubprocess, err, "probe %s", entryPoint)
	case res.ExitCode == symbolMissingExit:
		return "", apperrors.Wrap(apperrors.ErrCodeNotFound, ErrSymbolNotFound, "%s not defined by %s", symbol, entryPoint)
	case !res.Success():
		return "", apperrors.New(apperrors.ErrCodeSubprocess, "probe %s exited %d: %s", entryPoint, res.ExitCode, res.Output())
	}

	file := strings.TrimSpace(res.Stdout)
	if file == "" {
		// Classes defined in eval'd code have no file.
		return "", apperrors.New(apperrors.ErrCodeNotFound, "%s has no defining file", symbol)
	}
	return file, nil
}

// ChainProber tries Primary and, when it reports a missing environment,
// Fallback.
type ChainProber struct {
	Primary  Prober
	Fallback Prober
}

// Probe implements Prober.
func (c ChainProber) Probe(ctx context.Context, entryPoint, symbol string) (string, error) {
	file, err := c.Primary.Probe(ctx, entryPoint, symbol)
	if err != nil && c.Fallback != nil && apperrors.Is(err, apperrors.ErrCodeEnvAbsent) {
		return c.Fallback.Probe(ctx, entryPoint, symbol)
	}
	return file, err
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, entryPoint, symbol string) (string, error)

func (f ProberFunc) Probe(ctx context.Context, entryPoint, symbol string) (string, error) {
	return f(ctx, entryPoint, symbol)
}

var (
	_ Prober = (*PHPProber)(nil)
	_ Prober = ChainProber{}
	_ Prober = ProberFunc(nil)
)
