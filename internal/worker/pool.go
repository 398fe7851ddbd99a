package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
)

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

// PanicResult is returned in place of a job's result when the job panicked
type PanicResult struct {
	Value any
	Stack []byte
}

// GetError reports the panic as an error
func (r *PanicResult) GetError() error {
	return fmt.Errorf("job panicked: %v", r.Value)
}

type queued struct {
	seq int
	job Job
}

type finished struct {
	seq    int
	result Result
}

// Pool runs jobs on a fixed number of workers.
// Results are collected internally, so Submit never waits on a reader, and Wait returns them in submission order.
type Pool struct {
	workers    int
	jobQueue   chan queued
	results    chan finished
	collected  []finished
	out        []Result
	done       chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	next       int
	ctx        context.Context
	cancelFunc context.CancelFunc
	closeOnce  sync.Once
	startOnce  sync.Once
	waitOnce   sync.Once
}

// NewPool creates a new worker pool with the specified number of workers
func NewPool(workers int) *Pool {
	return NewPoolWithContext(context.Background(), workers)
}

// NewPoolWithContext creates a pool whose jobs observe ctx
func NewPoolWithContext(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Pool{
		workers:    workers,
		jobQueue:   make(chan queued, workers*2),
		results:    make(chan finished, workers*2),
		done:       make(chan struct{}),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start starts the workers and the result collector
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		go p.collect()
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.worker()
		}
	})
}

func (p *Pool) collect() {
	defer close(p.done)
	for r := range p.results {
		p.collected = append(p.collected, r)
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case q, ok := <-p.jobQueue:
			if !ok {
				return
			}
			p.results <- finished{seq: q.seq, result: p.run(q.job)}
		}
	}
}

// run executes one job, converting a panic into a PanicResult so siblings keep running
func (p *Pool) run(job Job) (res Result) {
	defer func() {
		if v := recover(); v != nil {
			res = &PanicResult{Value: v, Stack: debug.Stack()}
		}
	}()
	return job.Execute(p.ctx)
}

// Submit queues a job. It returns false if the pool was shut down.
func (p *Pool) Submit(job Job) bool {
	p.mu.Lock()
	seq := p.next
	p.next++
	p.mu.Unlock()

	if p.ctx.Err() != nil {
		return false
	}
	select {
	case <-p.ctx.Done():
		return false
	case p.jobQueue <- queued{seq: seq, job: job}:
		return true
	}
}

// Wait closes the queue, waits for all queued jobs and returns their results in submission order
func (p *Pool) Wait() []Result {
	p.waitOnce.Do(func() {
		p.Start()
		p.closeOnce.Do(func() { close(p.jobQueue) })
		p.wg.Wait()
		close(p.results)
		<-p.done
		p.cancelFunc()

		sort.Slice(p.collected, func(i, j int) bool { return p.collected[i].seq < p.collected[j].seq })
		p.out = make([]Result, len(p.collected))
		for i, f := range p.collected {
			p.out[i] = f.result
		}
	})
	return p.out
}

// Shutdown stops the workers without waiting for queued jobs.
// Results of jobs that already finished can still be read with Wait.
func (p *Pool) Shutdown() {
	p.cancelFunc()
}
