// Package worker provides a bounded-concurrency pool used for both
// foreground tile builds (via the coordinator) and background
// prefetch/warming submissions (spec.md §5).
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/weathertiles/core/internal/tile"
)

// Submitter renders (or fetches from cache) a single tile fingerprint. The
// coordinator does not implement it itself: its GetOrBuild method also
// returns the result and tier, so the engine wraps it in a small adapter
// that keeps only the error.
type Submitter interface {
	Submit(ctx context.Context, fp tile.Fingerprint) error
}

// SubmitterFunc adapts a plain function to Submitter.
type SubmitterFunc func(ctx context.Context, fp tile.Fingerprint) error

func (f SubmitterFunc) Submit(ctx context.Context, fp tile.Fingerprint) error {
	return f(ctx, fp)
}

// Task is one unit of work: a fingerprint to submit.
type Task struct {
	Fingerprint tile.Fingerprint
}

// Result is the outcome of one Task.
type Result struct {
	Task    Task
	Err     error
	Elapsed time.Duration
}

// ProgressFunc is called after each task completes.
type ProgressFunc func(completed, total, failed int)

// Config configures the worker pool.
type Config struct {
	Workers    int
	Submitter  Submitter
	OnProgress ProgressFunc
}

// Pool runs a bounded number of workers pulling tasks off a shared channel.
type Pool struct {
	workers    int
	submitter  Submitter
	onProgress ProgressFunc
}

// New creates a new worker pool.
func New(cfg Config) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Pool{
		workers:    workers,
		submitter:  cfg.Submitter,
		onProgress: cfg.OnProgress,
	}
}

// Run submits all tasks and returns their results once every task has
// either completed or the context has been cancelled.
func (p *Pool) Run(ctx context.Context, tasks []Task) []Result {
	if len(tasks) == 0 {
		return nil
	}

	taskCh := make(chan Task, len(tasks))
	resultCh := make(chan Result, len(tasks))

	var (
		completed int
		failed    int
		mu        sync.Mutex
	)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx, taskCh, resultCh)
		}()
	}

	go func() {
		defer close(taskCh)
		for _, task := range tasks {
			select {
			case taskCh <- task:
			case <-ctx.Done():
				return
			}
		}
	}()

	results := make([]Result, 0, len(tasks))
	done := make(chan struct{})

	go func() {
		for result := range resultCh {
			results = append(results, result)

			mu.Lock()
			completed++
			if result.Err != nil {
				failed++
			}
			c, f := completed, failed
			mu.Unlock()

			if p.onProgress != nil {
				p.onProgress(c, len(tasks), f)
			}
		}
		close(done)
	}()

	wg.Wait()
	close(resultCh)
	<-done

	return results
}

func (p *Pool) worker(ctx context.Context, tasks <-chan Task, results chan<- Result) {
	for task := range tasks {
		select {
		case <-ctx.Done():
			results <- Result{Task: task, Err: ctx.Err()}
			continue
		default:
		}

		start := time.Now()
		err := p.submitter.Submit(ctx, task.Fingerprint)
		results <- Result{Task: task, Err: err, Elapsed: time.Since(start)}
	}
}
