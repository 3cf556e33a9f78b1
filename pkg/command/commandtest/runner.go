// Package commandtest provides a scripted command.Runner for tests.
package commandtest

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/matzehuels/phpvendor/pkg/command"
)

// Runner is a thread-safe test double for command.Runner.
//
// Commands without a registered result fail the way a missing executable
// does, so an empty Runner models a host with nothing installed.
type Runner struct {
	mu      sync.RWMutex
	results map[string]command.Result
	errors  map[string]error
	effects map[string]func(dir string) error
	calls   []command.Call
}

// NewRunner creates a new Runner.
func NewRunner() *Runner {
	return &Runner{
		results: make(map[string]command.Result),
		errors:  make(map[string]error),
		effects: make(map[string]func(string) error),
	}
}

// AddResult registers an expected command and its result.
func (m *Runner) AddResult(cmd string, args []string, result command.Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[buildKey(cmd, args)] = result
}

// AddError registers an expected command that should return an error.
func (m *Runner) AddError(cmd string, args []string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[buildKey(cmd, args)] = err
}

// OnRun registers a side effect executed before the command's result is
// returned, e.g. creating vendor/autoload.php in dir.
func (m *Runner) OnRun(cmd string, args []string, fn func(dir string) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.effects[buildKey(cmd, args)] = fn
}

// Run executes a scripted command.
func (m *Runner) Run(_ context.Context, dir, cmd string, args ...string) (command.Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, command.Call{Dir: dir, Command: cmd, Args: args})
	m.mu.Unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()

	key := buildKey(cmd, args)
	if err, ok := m.errors[key]; ok {
		return command.Result{}, err
	}
	result, ok := m.results[key]
	if !ok {
		return command.Result{}, &exec.Error{Name: cmd, Err: exec.ErrNotFound}
	}
	if fn, ok := m.effects[key]; ok {
		if err := fn(dir); err != nil {
			return command.Result{}, fmt.Errorf("side effect for %s: %w", key, err)
		}
	}
	return result, nil
}

// Calls returns all recorded command invocations.
func (m *Runner) Calls() []command.Call {
	m.mu.RLock()
	defer m.mu.RUnlock()
	calls := make([]command.Call, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// CallCount returns how many times cmd ran, with any arguments.
func (m *Runner) CallCount(cmd string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, c := range m.calls {
		if c.Command == cmd {
			n++
		}
	}
	return n
}

func buildKey(cmd string, args []string) string {
	return cmd + ":" + strings.Join(args, ":")
}

var _ command.Runner = (*Runner)(nil)
