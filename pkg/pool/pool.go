package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrPoolTerminated = errors.New("pool is terminated")
	ErrTimeout        = errors.New("timeout")
)

// Pool runs submitted tasks on a fixed number of workers backed by a
// bounded buffer.
type Pool struct {
	ctx    context.Context
	cancel context.CancelFunc

	workers int
	running atomic.Int64

	tasks chan Task
	wait  sync.WaitGroup
}

func NewPool(size int, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	pool := &Pool{
		ctx:     ctx,
		cancel:  cancel,
		workers: workers,
		tasks:   make(chan Task, size),
	}

	pool.wait.Add(workers)

	for i := 0; i < workers; i++ {
		go pool.consume()
	}

	return pool
}

func (p *Pool) SubmitFn(timeout time.Duration, fn func()) error {
	if fn == nil {
		return errors.New("fn is nil")
	}

	return p.Submit(timeout, &task{fn: fn})
}

func (p *Pool) Submit(timeout time.Duration, task Task) error {
	if task == nil {
		return errors.New("task is nil")
	}

	if p.ctx.Err() != nil {
		return ErrPoolTerminated
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case p.tasks <- task:
		return nil
	case <-timer.C:
		return ErrTimeout
	case <-p.ctx.Done():
		return ErrPoolTerminated
	}
}

func (p *Pool) consume() {
	defer p.wait.Done()
	for {
		select {
		case <-p.ctx.Done():
			p.drain()
			return
		case t := <-p.tasks:
			p.execute(t)
		}
	}
}

// drain executes tasks that were accepted before shutdown.
func (p *Pool) drain() {
	for {
		select {
		case t := <-p.tasks:
			p.execute(t)
		default:
			return
		}
	}
}

func (p *Pool) execute(t Task) {
	p.running.Add(1)
	defer p.running.Add(-1)
	t.Execute()
}

func (p *Pool) Stats() map[string]interface{} {
	return map[string]interface{}{
		"pool.workers": p.workers,
		"pool.pending": int64(len(p.tasks)),
		"pool.running": p.running.Load(),
	}
}

// Shutdown stops accepting tasks and waits for accepted ones to finish.
func (p *Pool) Shutdown() {
	if err := p.ctx.Err(); err != nil {
		return
	}

	p.cancel()
	p.wait.Wait()
}
