// pkg/kv_cli/signals.go
//
// Signal handling for long-running commands.

package kv_cli

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// SignalHandler cancels its context on the first SIGINT or SIGTERM and
// exits on the second.
type SignalHandler struct {
	ctx     context.Context
	cancel  context.CancelFunc
	log     *otelzap.Logger
	sigChan chan os.Signal
	done    chan struct{}
	once    sync.Once
	exit    func(int)
}

// NewSignalHandler starts listening for signals.
func NewSignalHandler(ctx context.Context, log *otelzap.Logger) *SignalHandler {
	ctx, cancel := context.WithCancel(ctx)
	h := &SignalHandler{
		ctx:     ctx,
		cancel:  cancel,
		log:     log,
		sigChan: make(chan os.Signal, 2),
		done:    make(chan struct{}),
		exit:    os.Exit,
	}
	signal.Notify(h.sigChan, os.Interrupt, syscall.SIGTERM)
	go h.handleSignals()
	return h
}

// Context is cancelled when the first signal arrives.
func (h *SignalHandler) Context() context.Context {
	return h.ctx
}

func (h *SignalHandler) handleSignals() {
	select {
	case sig := <-h.sigChan:
		h.log.Ctx(h.ctx).Info("Received signal, shutting down", zap.String("signal", sig.String()))
		h.cancel()
	case <-h.done:
		return
	}

	select {
	case sig := <-h.sigChan:
		h.log.Ctx(h.ctx).Error("Received second signal, forcing exit", zap.String("signal", sig.String()))
		h.exit(1)
	case <-h.done:
	}
}

// Stop releases the signal subscription and cancels the context.
func (h *SignalHandler) Stop() {
	h.once.Do(func() {
		signal.Stop(h.sigChan)
		close(h.done)
		h.cancel()
	})
}
