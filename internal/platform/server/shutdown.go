// Package server provides shared process lifecycle helpers for the
// platform's HTTP and RPC entrypoints.
package server

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// GracefulShutdown coordinates an orderly shutdown of an HTTP server and
// any background components (queue workers, schedulers, RPC pools)
// registered as callbacks.
type GracefulShutdown struct {
	mu           sync.Mutex
	server       *http.Server
	timeout      time.Duration
	shutdownChan chan struct{}
	callbacks    []func()
}

// NewGracefulShutdown creates a shutdown manager bound to server. A
// timeout <= 0 defaults to 30s.
func NewGracefulShutdown(server *http.Server, timeout time.Duration) *GracefulShutdown {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GracefulShutdown{
		server:       server,
		timeout:      timeout,
		shutdownChan: make(chan struct{}),
	}
}

// OnShutdown registers a callback run (in registration order) before the
// HTTP server itself is shut down. Panics in a callback are recovered so
// one failing component never blocks the rest.
func (g *GracefulShutdown) OnShutdown(callback func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.callbacks = append(g.callbacks, callback)
}

// ListenForSignals starts a goroutine that triggers Shutdown on
// SIGINT/SIGTERM/SIGQUIT.
func (g *GracefulShutdown) ListenForSignals() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		sig := <-sigChan
		log.Printf("received signal %v, initiating graceful shutdown", sig)
		g.Shutdown()
	}()
}

// Shutdown runs all registered callbacks, then stops the HTTP server
// within the configured timeout.
func (g *GracefulShutdown) Shutdown() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, callback := range g.callbacks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("panic in shutdown callback: %v", r)
				}
			}()
			callback()
		}()
	}

	if g.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
		defer cancel()

		if err := g.server.Shutdown(ctx); err != nil {
			log.Printf("error during server shutdown: %v", err)
		}
	}

	close(g.shutdownChan)
}

// Wait blocks until Shutdown has completed.
func (g *GracefulShutdown) Wait() {
	<-g.shutdownChan
}
