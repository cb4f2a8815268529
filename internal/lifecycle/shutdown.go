// Package lifecycle coordinates srpgate process lifetime: signal-driven
// shutdown with ordered cleanup hooks, and the periodic store sweeper.
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
)

// Hook releases one resource during shutdown.
type Hook struct {
	Name string
	Fn   func(ctx context.Context) error
}

// ShutdownManager turns SIGTERM/SIGINT or an explicit Shutdown call into a
// cancelled context, and runs cleanup hooks in reverse registration order.
type ShutdownManager struct {
	shutdownChan chan struct{}
	signalChan   chan os.Signal

	mu       sync.Mutex
	shutdown bool
	stopped  bool
	reason   string
	hooks    []Hook
}

// NewShutdownManager creates a new shutdown manager.
func NewShutdownManager() *ShutdownManager {
	return &ShutdownManager{
		shutdownChan: make(chan struct{}, 1),
		signalChan:   make(chan os.Signal, 1),
	}
}

// Start begins listening for shutdown signals. The returned context is
// cancelled when shutdown is initiated or ctx ends.
func (sm *ShutdownManager) Start(ctx context.Context) context.Context {
	signal.Notify(sm.signalChan, syscall.SIGTERM, syscall.SIGINT)

	shutdownCtx, cancel := context.WithCancel(ctx)

	go func() {
		defer cancel()
		select {
		case sig, ok := <-sm.signalChan:
			if ok {
				sm.markShutdown(fmt.Sprintf("received signal: %v", sig))
			}
		case <-sm.shutdownChan:
		case <-ctx.Done():
		}
	}()

	return shutdownCtx
}

func (sm *ShutdownManager) markShutdown(reason string) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.shutdown {
		return false
	}
	sm.shutdown = true
	sm.reason = reason
	return true
}

// Shutdown initiates a graceful shutdown with the given reason. Only the
// first reason is kept.
func (sm *ShutdownManager) Shutdown(reason string) {
	if !sm.markShutdown(reason) {
		return
	}
	select {
	case sm.shutdownChan <- struct{}{}:
	default:
	}
}

// IsShutdown returns whether shutdown has been initiated.
func (sm *ShutdownManager) IsShutdown() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.shutdown
}

// Reason returns the reason for shutdown.
func (sm *ShutdownManager) Reason() string {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.reason
}

// OnShutdown registers a cleanup hook.
func (sm *ShutdownManager) OnShutdown(name string, fn func(ctx context.Context) error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.hooks = append(sm.hooks, Hook{Name: name, Fn: fn})
}

// RunHooks runs every registered hook, last registered first, and joins
// their errors. Each hook runs at most once.
func (sm *ShutdownManager) RunHooks(ctx context.Context) error {
	sm.mu.Lock()
	hooks := sm.hooks
	sm.hooks = nil
	sm.mu.Unlock()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		if err := hooks[i].Fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", hooks[i].Name, err))
		}
	}
	return errors.Join(errs...)
}

// Stop stops listening for signals.
func (sm *ShutdownManager) Stop() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.stopped {
		return
	}

	sm.stopped = true
	signal.Stop(sm.signalChan)
	close(sm.signalChan)
}

// GracefulShutdown runs shutdownFunc and gives up after timeout.
func GracefulShutdown(ctx context.Context, shutdownFunc func(context.Context) error, timeout time.Duration) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- shutdownFunc(shutdownCtx)
	}()

	select {
	case err := <-done:
		return err
	case <-shutdownCtx.Done():
		return fmt.Errorf("shutdown timed out after %v", timeout)
	}
}
