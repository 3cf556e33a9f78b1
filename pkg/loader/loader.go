package loader

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/phpvendor/pkg/acquire"
	"github.com/matzehuels/phpvendor/pkg/archive"
	"github.com/matzehuels/phpvendor/pkg/locator"
	"github.com/matzehuels/phpvendor/pkg/observability"
)

// DefaultSymbol is the class whose presence proves the library is usable.
const DefaultSymbol = `PhpOffice\PhpSpreadsheet\Spreadsheet`

// Result describes the last load.
type Result struct {
	Loaded       bool
	EntryPoint   string
	DefiningFile string

	// Checked lists every candidate examined by the most recent probing
	// Load, in order.
	Checked []string

	// Err is the last probe error when nothing loaded.
	Err error
}

// Options configures a Loader.
type Options struct {
	// Candidates are entry points in priority order.
	Candidates []string

	// Symbol defaults to DefaultSymbol.
	Symbol string

	Prober  Prober
	Journal acquire.Journal
	Logger  *log.Logger
}

// Loader finds the first candidate entry point that provides the symbol.
// It is safe for concurrent use.
type Loader struct {
	mu     sync.Mutex
	opts   Options
	result Result
	probes int
}

// New creates a Loader.
func New(opts Options) *Loader {
	if opts.Symbol == "" {
		opts.Symbol = DefaultSymbol
	}
	if opts.Prober == nil {
		opts.Prober = NewStaticProber(archive.Shim{})
	}
	if opts.Journal == nil {
		opts.Journal = acquire.NopJournal{}
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	opts.Candidates = append([]string(nil), opts.Candidates...)
	return &Loader{opts: opts}
}

// Load makes sure the library is available. Once a load succeeds, further
// calls return true without touching the filesystem. Failures are not
// remembered.
func (l *Loader) Load(ctx context.Context) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.result.Loaded {
		return true
	}

	res := Result{}
	for _, cand := range l.opts.Candidates {
		if ctx.Err() != nil {
			res.Err = ctx.Err()
			break
		}
		res.Checked = append(res.Checked, cand)
		if !locator.Exists(cand) {
			continue
		}

		l.probes++
		file, err := l.opts.Prober.Probe(ctx, cand, l.opts.Symbol)
		if err != nil {
			l.opts.Logger.Debug("probe failed", "entry_point", cand, "err", err)
			res.Err = err
			continue
		}

		res.Loaded = true
		res.EntryPoint = cand
		res.DefiningFile = file
		res.Err = nil
		break
	}
	l.result = res

	if !res.Loaded {
		l.opts.Journal.Log(ctx, "PhpSpreadsheet library not found")
		l.opts.Logger.Debug("library not found", "checked", len(res.Checked))
		return false
	}

	l.opts.Journal.Log(ctx, "PhpSpreadsheet loaded from: "+res.EntryPoint)
	l.opts.Logger.Info("library loaded", "entry_point", res.EntryPoint, "file", res.DefiningFile)
	observability.Install().OnLoaded(ctx, res.EntryPoint)
	return true
}

// Loaded reports whether a load has succeeded.
func (l *Loader) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.result.Loaded
}

// Result returns a copy of the last load outcome.
func (l *Loader) Result() Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	r := l.result
	r.Checked = append([]string(nil), r.Checked...)
	return r
}

// Candidates returns the entry points examined, in order.
func (l *Loader) Candidates() []string {
	return append([]string(nil), l.opts.Candidates...)
}

// Reset forgets a successful load so the next Load probes again. Called
// after an install replaced the files.
func (l *Loader) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.result = Result{}
}

// Probes returns how many probes have run.
func (l *Loader) Probes() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.probes
}
