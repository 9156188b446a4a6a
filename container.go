package foretell

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/foretell-app/foretell/config"
	"github.com/foretell-app/foretell/log"
)

// RuntimeFn is one step of a container run
type RuntimeFn func(c *Container) error

type Container struct {
	Config    config.ConfigProvider
	Context   context.Context
	CancelCtx context.CancelFunc
	logger    *log.Logger
}

// NewContainer creates a container with the given config provider and a new cancellable context
func NewContainer(cfg config.ConfigProvider) *Container {
	ctx, cancelFn := context.WithCancel(context.Background())
	return &Container{
		Config:    cfg,
		Context:   ctx,
		CancelCtx: cancelFn,
		logger:    log.New("foretell"),
	}
}

// GetContext returns the container context
func (c *Container) GetContext() context.Context {
	return c.Context
}

// Run executes fns in order, stopping at the first error. SIGINT or SIGTERM cancels the container context,
// so a pending ceremony or ledger submission is aborted. Destructors run before Run returns
func (c *Container) Run(fns ...RuntimeFn) error {
	monitor := make(chan os.Signal, 1)
	signal.Notify(monitor, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		select {
		case <-monitor:
			c.logger.Info("interrupted, cancelling")
			c.CancelCtx()
		case <-done:
		}
	}()

	var err error
	for _, fn := range fns {
		if err = fn(c); err != nil {
			break
		}
	}
	close(done)
	signal.Stop(monitor)

	if !errors.Is(c.Context.Err(), context.Canceled) {
		c.CancelCtx()
	}
	if shutdownErr := Shutdown(err); err == nil {
		err = shutdownErr
	}
	return err
}

// Terminate runs the destructors and exits with a status derived from err
func (c *Container) Terminate(err error) {
	c.CancelCtx()
	if shutdownErr := Shutdown(err); err == nil {
		err = shutdownErr
	}
	if err != nil {
		os.Exit(1)
	}
	os.Exit(0)
}
