package callstack

import (
	"errors"
	"sync"
)

// CallableFn is a single cleanup step
type CallableFn func() error

// CallStack runs cleanup steps in reverse registration order, once
type CallStack struct {
	handlers []CallableFn
	mu       sync.Mutex
}

func NewCallStack() *CallStack {
	return &CallStack{
		handlers: make([]CallableFn, 0),
	}
}

func (c *CallStack) Add(fn CallableFn) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, fn)
}

// Len returns the number of pending steps
func (c *CallStack) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handlers)
}

// Run pops and runs every step, last added first. Errors are collected unless abortOnError is set,
// in which case the first error stops the run and the remaining steps stay registered
func (c *CallStack) Run(abortOnError bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	for len(c.handlers) > 0 {
		last := len(c.handlers) - 1
		fn := c.handlers[last]
		c.handlers = c.handlers[:last]
		if err := fn(); err != nil {
			if abortOnError {
				return err
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
