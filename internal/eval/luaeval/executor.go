package luaeval

import (
	"context"
	"errors"
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// ErrClosed is returned when submitting work to a closed evaluator.
var ErrClosed = errors.New("lua evaluator is closed")

// task is one interpreter operation marshalled to the owner goroutine.
type task struct {
	ctx    context.Context
	fn     func(L *lua.LState) error
	result chan error
}

// executor owns the LState and serializes every operation on a single
// goroutine. Submitters block until their operation completes or their
// context is cancelled; a cancelled submitter's operation still runs.
type executor struct {
	L     *lua.LState
	queue chan *task
	done  chan struct{}

	closeOnce sync.Once
}

func newExecutor(L *lua.LState, queueSize int) *executor {
	if queueSize <= 0 {
		queueSize = 64
	}
	e := &executor{
		L:     L,
		queue: make(chan *task, queueSize),
		done:  make(chan struct{}),
	}
	go e.run()
	return e
}

// run processes tasks until the executor is closed. Owns the LState.
func (e *executor) run() {
	defer e.L.Close()
	for {
		select {
		case <-e.done:
			e.drain()
			return
		case t := <-e.queue:
			err := e.call(t)
			t.result <- err
			close(t.result)
		}
	}
}

// call runs one task with panic recovery. The task's context is bound to
// the state so long-running chunks abort on cancellation.
func (e *executor) call(t *task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	if t.ctx != nil {
		e.L.SetContext(t.ctx)
		defer e.L.RemoveContext()
	}
	return t.fn(e.L)
}

// drain fails queued tasks after close.
func (e *executor) drain() {
	for {
		select {
		case t := <-e.queue:
			t.result <- ErrClosed
			close(t.result)
		default:
			return
		}
	}
}

// submit queues fn and blocks for its result.
func (e *executor) submit(ctx context.Context, fn func(L *lua.LState) error) error {
	t := &task{ctx: ctx, fn: fn, result: make(chan error, 1)}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return ErrClosed
	case e.queue <- t:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-t.result:
		return err
	}
}

func (e *executor) close() {
	e.closeOnce.Do(func() { close(e.done) })
}
