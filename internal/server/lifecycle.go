// Package server coordinates the worldserver's long-running components:
// the database pool, the snapshot saver, the tick loop, and the session
// broker. Components start in registration order and stop in reverse, so
// the tick loop always quiets before the stores it writes to go away.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Service is one long-running component. Start blocks until the component
// is stopped or fails; Stop asks it to wind down.
type Service interface {
	Start() error
	Stop()
}

// FuncService adapts a start/stop function pair into the Service interface,
// for components that are just a goroutine and a shutdown hook.
type FuncService struct {
	StartFn func() error
	StopFn  func()
}

// Start calls the wrapped start function.
func (f *FuncService) Start() error { return f.StartFn() }

// Stop calls the wrapped stop function.
func (f *FuncService) Stop() { f.StopFn() }

// Lifecycle runs a set of registered services as one unit: all are started
// together, and the first failure, termination signal, or context
// cancellation winds everything down in reverse registration order.
type Lifecycle struct {
	log     *zap.Logger
	entries []lifecycleEntry
	mu      sync.Mutex
}

type lifecycleEntry struct {
	name string
	svc  Service
}

// NewLifecycle constructs a Lifecycle.
//
// Precondition: log must not be nil.
func NewLifecycle(log *zap.Logger) *Lifecycle {
	if log == nil {
		panic("server.NewLifecycle: log must not be nil")
	}
	return &Lifecycle{log: log}
}

// Add registers a named service. Registration order is start order; stop
// order is its reverse.
func (l *Lifecycle) Add(name string, svc Service) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, lifecycleEntry{name: name, svc: svc})
}

// Run starts every registered service and blocks until a service fails,
// SIGINT or SIGTERM arrives, or ctx is cancelled.
//
// Postcondition: every service has been stopped when Run returns.
func (l *Lifecycle) Run(ctx context.Context) error {
	began := time.Now()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	failures := make(chan error, len(l.entries))
	for _, entry := range l.entries {
		entry := entry
		go func() {
			l.log.Info("starting service", zap.String("service", entry.name))
			up := time.Now()
			if err := entry.svc.Start(); err != nil {
				l.log.Error("service failed",
					zap.String("service", entry.name),
					zap.Error(err),
					zap.Duration("uptime", time.Since(up)))
				failures <- fmt.Errorf("server.Lifecycle.Run: service %s: %w", entry.name, err)
				cancel()
			}
		}()
	}

	l.log.Info("worldserver up",
		zap.Int("services", len(l.entries)),
		zap.Duration("startup", time.Since(began)))

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-signals:
		l.log.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-failures:
		l.log.Error("service error, shutting down", zap.Error(err))
	case <-ctx.Done():
		l.log.Info("context cancelled, shutting down")
	}

	l.stopAll()

	l.log.Info("shutdown complete", zap.Duration("uptime", time.Since(began)))
	return nil
}

// stopAll stops services newest-first, so dependents quiet down before the
// services they lean on.
func (l *Lifecycle) stopAll() {
	began := time.Now()
	for i := len(l.entries) - 1; i >= 0; i-- {
		entry := l.entries[i]
		stopStart := time.Now()
		l.log.Info("stopping service", zap.String("service", entry.name))
		entry.svc.Stop()
		l.log.Info("service stopped",
			zap.String("service", entry.name),
			zap.Duration("elapsed", time.Since(stopStart)))
	}
	l.log.Info("all services stopped", zap.Duration("elapsed", time.Since(began)))
}
