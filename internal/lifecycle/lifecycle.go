// Package lifecycle coordinates graceful shutdown of long-lived components
// and the engine processes they start.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/tts"
	"github.com/dgnsrekt/readaloud/tts/synth"
)

// Component is something that needs cleanup on shutdown.
type Component interface {
	// Name returns the component name for logging
	Name() string

	// Shutdown performs graceful shutdown
	Shutdown(ctx context.Context) error

	// ForceStop performs immediate termination if graceful shutdown fails
	ForceStop() error
}

// Manager shuts registered components down in reverse order of
// registration, on a signal or when asked to.
type Manager struct {
	mu               sync.Mutex
	components       []Component
	shutdownCh       chan struct{}
	done             chan struct{}
	wg               sync.WaitGroup
	isShutdown       bool
	err              error
	forceKillTimeout time.Duration
	log              *log.Logger
}

// NewManager creates a lifecycle manager.
func NewManager(logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default().WithPrefix("lifecycle")
	}
	return &Manager{
		shutdownCh:       make(chan struct{}),
		done:             make(chan struct{}),
		forceKillTimeout: 5 * time.Second,
		log:              logger,
	}
}

// SetForceKillTimeout sets how long components get to shut down gracefully
// before they are force stopped.
func (m *Manager) SetForceKillTimeout(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forceKillTimeout = d
}

// Register adds a component to lifecycle management.
func (m *Manager) Register(component Component) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isShutdown {
		m.log.Warn("Cannot register component during shutdown", "component", component.Name())
		return
	}

	m.components = append(m.components, component)
	m.log.Debug("Registered lifecycle component", "name", component.Name())
}

// Start begins watching for SIGINT and SIGTERM.
func (m *Manager) Start() {
	m.wg.Add(1)
	go m.monitorSignals()
}

func (m *Manager) monitorSignals() {
	defer m.wg.Done()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		m.log.Info("Received shutdown signal", "signal", sig)
		go m.Shutdown() //nolint:errcheck
	case <-m.shutdownCh:
		m.log.Debug("Shutdown initiated programmatically")
	}
}

// Shutdown shuts every component down, newest first. A component whose
// graceful shutdown fails is force stopped. Calling Shutdown again returns
// the first call's result once it is complete.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	if m.isShutdown {
		m.mu.Unlock()
		<-m.done
		return m.err
	}
	m.isShutdown = true
	components := append([]Component(nil), m.components...)
	timeout := m.forceKillTimeout
	m.mu.Unlock()

	m.log.Debug("Starting graceful shutdown", "components", len(components))
	close(m.shutdownCh)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	for i := len(components) - 1; i >= 0; i-- {
		component := components[i]
		m.log.Debug("Shutting down component", "name", component.Name())

		if err := component.Shutdown(ctx); err != nil {
			m.log.Warn("Component graceful shutdown failed", "name", component.Name(), "error", err)

			if forceErr := component.ForceStop(); forceErr != nil {
				m.log.Error("Component force stop failed", "name", component.Name(), "error", forceErr)
				errs = append(errs, fmt.Errorf("%s: %w", component.Name(), forceErr))
			}
		}
	}

	waitDone := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(waitDone)
	}()

	select {
	case <-waitDone:
		m.log.Debug("Graceful shutdown complete")
	case <-time.After(2 * time.Second):
		m.log.Warn("Timeout waiting for goroutines to finish")
	}

	m.err = errors.Join(errs...)
	close(m.done)
	return m.err
}

// Done is closed once shutdown is complete.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Wait blocks until shutdown is complete.
func (m *Manager) Wait() {
	<-m.done
}

// Engine wraps a synthesizer so that its orphans are swept on shutdown.
type Engine struct {
	synth tts.Synthesizer
	name  string
}

// NewEngine creates a lifecycle wrapper for a synthesizer.
func NewEngine(s tts.Synthesizer, name string) *Engine {
	return &Engine{synth: s, name: name}
}

// Name returns the engine name.
func (e *Engine) Name() string {
	return "Speech Engine: " + e.name
}

// Shutdown kills any call still running and sweeps leftover processes and
// temp files.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.synth.Kill()
	if err := e.synth.Cleanup(ctx); err != nil && !errors.Is(err, tts.ErrBusy) {
		return err
	}
	return nil
}

// ForceStop kills any call still running.
func (e *Engine) ForceStop() error {
	e.synth.Kill()
	return nil
}

// ProcessRegistry tracks engine processes so that they can be terminated on
// shutdown. It implements synth.Registry.
type ProcessRegistry struct {
	mu        sync.RWMutex
	processes map[string]*os.Process
	grace     time.Duration
	log       *log.Logger
}

// NewProcessRegistry creates an empty process registry.
func NewProcessRegistry(logger *log.Logger) *ProcessRegistry {
	if logger == nil {
		logger = log.Default().WithPrefix("processes")
	}
	return &ProcessRegistry{
		processes: make(map[string]*os.Process),
		grace:     500 * time.Millisecond,
		log:       logger,
	}
}

var _ synth.Registry = (*ProcessRegistry)(nil)

// Register adds a process to track.
func (p *ProcessRegistry) Register(name string, proc *os.Process) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processes[name] = proc
	p.log.Debug("Registered subprocess", "name", name, "pid", proc.Pid)
}

// Unregister removes a process from tracking.
func (p *ProcessRegistry) Unregister(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.processes, name)
}

// Len returns the number of tracked processes.
func (p *ProcessRegistry) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.processes)
}

// Name returns the component name.
func (p *ProcessRegistry) Name() string {
	return "Subprocess Manager"
}

// Shutdown asks every tracked process to terminate, then waits for them to
// be unregistered. Processes still tracked after the grace period are
// reported as an error so that the manager force stops them.
func (p *ProcessRegistry) Shutdown(ctx context.Context) error {
	p.mu.RLock()
	for name, proc := range p.processes {
		p.log.Debug("Terminating subprocess", "name", name, "pid", proc.Pid)
		if err := synth.TerminateProcess(proc); err != nil {
			p.log.Warn("Failed to terminate subprocess", "name", name, "error", err)
		}
	}
	p.mu.RUnlock()

	grace := time.NewTimer(p.grace)
	defer grace.Stop()
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()

	for p.Len() > 0 {
		select {
		case <-tick.C:
		case <-grace.C:
			return fmt.Errorf("%d processes still running", p.Len())
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// ForceStop kills every tracked process and its children.
func (p *ProcessRegistry) ForceStop() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var errs []error
	for name, proc := range p.processes {
		p.log.Debug("Force killing subprocess", "name", name, "pid", proc.Pid)
		if err := synth.KillProcess(proc); err != nil {
			p.log.Error("Failed to kill process", "name", name, "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("failed to kill %d processes: %w", len(errs), errors.Join(errs...))
	}
	return nil
}
