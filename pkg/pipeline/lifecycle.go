package pipeline

import (
	"sync"

	"github.com/felixgeelhaar/statekit"

	"github.com/matzehuels/phpvendor/pkg/status"
)

// Lifecycle events.
const (
	EventLocated       = "LOCATED"        // an entry point exists
	EventVerified      = "VERIFIED"       // the probe confirmed the symbol
	EventRejected      = "REJECTED"       // the probe failed for every candidate
	EventMissing       = "MISSING"        // no entry point exists
	EventInstall       = "INSTALL"        // an install run started
	EventInstalled     = "INSTALLED"      // an installer succeeded
	EventInstallFailed = "INSTALL_FAILED" // every installer failed
)

// State names, matching status.Phase.
const (
	stateUninitialized = "uninitialized"
	stateCandidate     = "candidate"
	stateInstalling    = "installing"
	stateLoaded        = "loaded"
	stateFailed        = "failed"
)

type lifecycleContext struct {
	Transitions int
}

// Lifecycle tracks the library through
//
//	uninitialized → candidate → loaded
//	uninitialized|failed → installing → candidate|failed
//	candidate → failed
//
// loaded is terminal until Reset. failed permits re-entry through another
// load or install.
type Lifecycle struct {
	mu     sync.Mutex
	interp *statekit.Interpreter[lifecycleContext]
}

// NewLifecycle builds and starts the state machine in uninitialized.
func NewLifecycle() (*Lifecycle, error) {
	l := &Lifecycle{}
	if err := l.start(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Lifecycle) start() error {
	machine, err := statekit.NewMachine[lifecycleContext]("phpspreadsheet-lifecycle").
		WithInitial(stateUninitialized).
		WithContext(lifecycleContext{}).
		WithAction("count", func(c *lifecycleContext, _ statekit.Event) {
			c.Transitions++
		}).
		State(stateUninitialized).
		On(EventLocated).Target(stateCandidate).
		On(EventMissing).Target(stateFailed).
		On(EventInstall).Target(stateInstalling).Done().
		State(stateCandidate).
		OnEntry("count").
		On(EventVerified).Target(stateLoaded).
		On(EventRejected).Target(stateFailed).Done().
		State(stateInstalling).
		OnEntry("count").
		On(EventInstalled).Target(stateCandidate).
		On(EventInstallFailed).Target(stateFailed).Done().
		State(stateFailed).
		OnEntry("count").
		On(EventLocated).Target(stateCandidate).
		On(EventInstall).Target(stateInstalling).Done().
		State(stateLoaded).
		OnEntry("count").Done().
		Build()
	if err != nil {
		return err
	}

	if l.interp != nil {
		l.interp.Stop()
	}
	l.interp = statekit.NewInterpreter(machine)
	l.interp.Start()
	return nil
}

// Fire sends event and returns the resulting phase. Events without a
// transition from the current phase are ignored.
func (l *Lifecycle) Fire(event string) status.Phase {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.interp.Send(statekit.Event{Type: statekit.EventType(event)})
	return status.Phase(l.interp.State().Value)
}

// Phase returns the current phase.
func (l *Lifecycle) Phase() status.Phase {
	l.mu.Lock()
	defer l.mu.Unlock()
	return status.Phase(l.interp.State().Value)
}

// Reset returns the machine to uninitialized.
func (l *Lifecycle) Reset() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.start()
}

// Stop halts the interpreter.
func (l *Lifecycle) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.interp.Stop()
}
