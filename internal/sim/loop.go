package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrLoopStopped is returned for work submitted after the loop ended
var ErrLoopStopped = errors.New("event loop stopped")

// Task is a unit of work run on the loop goroutine
type Task func(ctx context.Context) error

type job struct {
	ctx    context.Context
	task   Task
	result chan error
}

// Loop runs tasks one at a time on a single goroutine, so every script
// handler sees the world in event order. Other goroutines hand work to it
// with Do or Submit.
type Loop struct {
	log   *slog.Logger
	jobs  chan job
	done  chan struct{}
	start sync.Once
	stop  sync.Once
}

func NewLoop(buffer int, log *slog.Logger) *Loop {
	if buffer < 1 {
		buffer = 128
	}
	if log == nil {
		log = slog.Default()
	}
	return &Loop{
		log:  log,
		jobs: make(chan job, buffer),
		done: make(chan struct{}),
	}
}

// Run processes tasks until ctx ends. It returns ctx's error.
func (l *Loop) Run(ctx context.Context) error {
	started := false
	l.start.Do(func() { started = true })
	if !started {
		return fmt.Errorf("event loop already running")
	}
	defer l.stop.Do(func() { close(l.done) })

	l.log.Info("Event loop started")
	for {
		select {
		case <-ctx.Done():
			l.log.Info("Event loop stopping")
			return ctx.Err()
		case j := <-l.jobs:
			err := l.run(j)
			if j.result != nil {
				j.result <- err
			}
		}
	}
}

func (l *Loop) run(j job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("Event loop task panicked", "panic", r)
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	if err := j.ctx.Err(); err != nil {
		return err
	}
	return j.task(j.ctx)
}

// Do runs task on the loop and waits for its result
func (l *Loop) Do(ctx context.Context, task Task) error {
	result := make(chan error, 1)
	if err := l.enqueue(ctx, job{ctx: ctx, task: task, result: result}); err != nil {
		return err
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrLoopStopped
	}
}

// Submit queues task without waiting. Errors from the task are logged.
func (l *Loop) Submit(ctx context.Context, task Task) error {
	wrapped := func(ctx context.Context) error {
		if err := task(ctx); err != nil {
			l.log.Error("Event loop task failed", "error", err)
		}
		return nil
	}
	return l.enqueue(ctx, job{ctx: context.WithoutCancel(ctx), task: wrapped})
}

func (l *Loop) enqueue(ctx context.Context, j job) error {
	select {
	case <-l.done:
		return ErrLoopStopped
	default:
	}
	select {
	case l.jobs <- j:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrLoopStopped
	}
}

// Done is closed once Run returns
func (l *Loop) Done() <-chan struct{} {
	return l.done
}
