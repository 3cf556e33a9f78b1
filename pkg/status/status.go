// Package status records install diagnostics and reports installation state.
//
// A [Sink] is the append-only diagnostic log. [FileSink] writes the
// traditional logs/phpspreadsheet.log; [MongoSink] shares entries across
// hosts; [Tee] writes to several sinks at once.
//
// [State] is the in-memory view of the library: whether it is loaded, from
// where, which installer put it there and which version it is.
package status

import (
	"context"
	"time"

	"github.com/matzehuels/phpvendor/pkg/acquire"
)

// TimeFormat is the timestamp layout of log lines.
const TimeFormat = "2006-01-02 15:04:05"

// Entry is one diagnostic log line.
type Entry struct {
	Time    time.Time `json:"time" bson:"time"`
	Message string    `json:"message" bson:"message"`
}

// Sink is an append-only diagnostic log. Log never fails the caller; write
// errors are reported through the sink's own logger.
type Sink interface {
	Log(ctx context.Context, msg string)

	// Entries returns up to limit of the most recent entries, oldest first.
	// A non-positive limit returns everything.
	Entries(ctx context.Context, limit int) ([]Entry, error)

	Close() error
}

// Phase is the lifecycle position of the library in this process.
type Phase string

const (
	PhaseUninitialized Phase = "uninitialized"
	PhaseCandidate     Phase = "candidate"
	PhaseInstalling    Phase = "installing"
	PhaseLoaded        Phase = "loaded"
	PhaseFailed        Phase = "failed"
)

// State is the installation state reported to callers. It is a value; the
// pipeline owns the live copy.
type State struct {
	CheckedPaths []string       `json:"checked_paths"`
	Loaded       bool           `json:"loaded"`
	Version      string         `json:"version,omitempty"`
	MethodUsed   acquire.Method `json:"method_used"`
	LoadedFrom   string         `json:"loaded_from,omitempty"`
	DefiningFile string         `json:"defining_file,omitempty"`
	Phase        Phase          `json:"phase"`
}

// NewState returns the state at process start.
func NewState() State {
	return State{MethodUsed: acquire.MethodNone, Phase: PhaseUninitialized}
}

// Tee fans entries out to every sink. Entries are read from the first.
type Tee []Sink

func (t Tee) Log(ctx context.Context, msg string) {
	for _, s := range t {
		s.Log(ctx, msg)
	}
}

func (t Tee) Entries(ctx context.Context, limit int) ([]Entry, error) {
	if len(t) == 0 {
		return nil, nil
	}
	return t[0].Entries(ctx, limit)
}

func (t Tee) Close() error {
	var first error
	for _, s := range t {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

var _ acquire.Journal = (Sink)(nil)
