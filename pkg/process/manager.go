// Package process handles the lifecycle of a resident build process
package process

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/lambGirl/umi-tools/pkg/logger"
)

// Manager runs shutdown handlers when the process is interrupted or its
// context ends
type Manager struct {
	logger           logger.Logger
	shutdownHandlers []func()
	signals          []os.Signal
	wg               sync.WaitGroup
	mu               sync.Mutex
	running          bool
	cancel           context.CancelFunc
	shutdownOnce     sync.Once
}

// NewManager creates a new process manager
func NewManager(log logger.Logger) *Manager {
	return &Manager{
		logger:           log,
		shutdownHandlers: make([]func(), 0),
		signals:          []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGHUP},
	}
}

// RegisterShutdownHandler adds a shutdown handler. Handlers run in reverse
// registration order.
func (m *Manager) RegisterShutdownHandler(handler func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.shutdownHandlers = append(m.shutdownHandlers, handler)
}

// Start returns a context that is cancelled on SIGINT, SIGTERM or SIGHUP, or
// when ctx ends. Shutdown handlers run once the returned context is done.
func (m *Manager) Start(ctx context.Context) context.Context {
	runCtx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		cancel()
		return runCtx
	}
	m.running = true
	m.cancel = cancel
	m.mu.Unlock()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, m.signals...)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer signal.Stop(sigChan)

		select {
		case <-runCtx.Done():
		case sig := <-sigChan:
			m.logger.Info("Received signal", logger.WithField("signal", sig))
		}
		cancel()
		m.handleShutdown()
	}()

	return runCtx
}

// Stop cancels the context returned by Start, waits for the shutdown
// handlers and runs them if Start was never called
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
	m.handleShutdown()
}

// IsRunning checks if the process manager is running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Manager) handleShutdown() {
	m.shutdownOnce.Do(func() {
		m.logger.Debug("Shutting down")

		m.mu.Lock()
		handlers := make([]func(), len(m.shutdownHandlers))
		copy(handlers, m.shutdownHandlers)
		m.running = false
		m.mu.Unlock()

		for i := len(handlers) - 1; i >= 0; i-- {
			handlers[i]()
		}
	})
}
