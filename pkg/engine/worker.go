package engine

import (
	"context"
	"errors"
	"sync"
)

// ErrWorkerClosed is returned by Process after Close.
var ErrWorkerClosed = errors.New("worker closed")

// Worker hosts query execution on a dedicated background goroutine,
// with foreground callers submitting whole queries as units of work and
// blocking synchronously on completion. It exists for embedding
// surfaces (UI callbacks) that cannot suspend themselves; the loop
// logic is the Engine's, not duplicated here.
type Worker struct {
	engine  *Engine
	jobs    chan workerJob
	done    chan struct{}
	stopped chan struct{}
	close   sync.Once
}

type workerJob struct {
	ctx    context.Context
	query  string
	result chan workerResult
}

type workerResult struct {
	answer string
	err    error
}

// NewWorker starts the background goroutine and returns the adapter.
func NewWorker(e *Engine) *Worker {
	w := &Worker{
		engine:  e,
		jobs:    make(chan workerJob),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *Worker) run() {
	defer close(w.stopped)
	for {
		select {
		case job := <-w.jobs:
			answer, err := w.engine.ProcessQuery(job.ctx, job.query)
			job.result <- workerResult{answer: answer, err: err}
		case <-w.done:
			return
		}
	}
}

// Process submits a query and blocks until the background goroutine has
// run the full turn. Submissions are handled one at a time, in the
// order the worker receives them.
func (w *Worker) Process(ctx context.Context, query string) (string, error) {
	job := workerJob{ctx: ctx, query: query, result: make(chan workerResult, 1)}

	select {
	case w.jobs <- job:
	case <-w.done:
		return "", ErrWorkerClosed
	}

	res := <-job.result
	return res.answer, res.err
}

// Close stops the background goroutine and waits until it has exited.
// In-flight work completes; subsequent Process calls fail with
// ErrWorkerClosed. Idempotent.
func (w *Worker) Close() {
	w.close.Do(func() {
		close(w.done)
	})
	<-w.stopped
}
