package workers

import (
	"context"
	"errors"
	"log"
	"runtime"
	"sync"

	"github.com/pixelharbor/imageconvbackend/media"
)

// ErrPoolStopped is returned when work is submitted after Stop.
var ErrPoolStopped = errors.New("transform pool stopped")

// ErrQueueFull is returned when the job queue is saturated and the
// caller's context expires before a slot opens.
var ErrQueueFull = errors.New("transform queue full")

type transformJob struct {
	ctx    context.Context
	run    func() (*media.TransformResult, error)
	result chan transformOutcome
}

type transformOutcome struct {
	res *media.TransformResult
	err error
}

// TransformPool runs CPU-bound pixel transforms on a fixed set of
// worker goroutines so a burst of conversions cannot starve the
// request-handling goroutines.
type TransformPool struct {
	jobQueue chan transformJob
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewTransformPool starts numWorkers workers (0 means NumCPU) reading
// from a queue of queueSize.
func NewTransformPool(numWorkers, queueSize int) *TransformPool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if queueSize <= 0 {
		queueSize = 100
	}

	pool := &TransformPool{
		jobQueue: make(chan transformJob, queueSize),
		stopChan: make(chan struct{}),
	}
	pool.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go pool.worker(i)
	}
	log.Printf("Started %d transform worker(s) with queue size %d", numWorkers, queueSize)
	return pool
}

func (p *TransformPool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case job, ok := <-p.jobQueue:
			if !ok {
				log.Printf("Transform worker %d stopping: job queue closed", id)
				return
			}
			// skip work for callers that already gave up
			if err := job.ctx.Err(); err != nil {
				job.result <- transformOutcome{err: err}
				continue
			}
			res, err := job.run()
			job.result <- transformOutcome{res: res, err: err}
		case <-p.stopChan:
			log.Printf("Transform worker %d stopping: stop signal received", id)
			return
		}
	}
}

// Do submits run to the pool and blocks until it finishes or ctx is
// cancelled. A cancelled wait leaves the job to complete and be
// discarded; the result channel is buffered so the worker never blocks.
func (p *TransformPool) Do(ctx context.Context, run func() (*media.TransformResult, error)) (*media.TransformResult, error) {
	select {
	case <-p.stopChan:
		return nil, ErrPoolStopped
	default:
	}

	job := transformJob{
		ctx:    ctx,
		run:    run,
		result: make(chan transformOutcome, 1),
	}

	select {
	case p.jobQueue <- job:
	case <-p.stopChan:
		return nil, ErrPoolStopped
	case <-ctx.Done():
		return nil, ErrQueueFull
	}

	select {
	case outcome := <-job.result:
		return outcome.res, outcome.err
	case <-p.stopChan:
		// workers are gone; a queued job will never produce a result
		return nil, ErrPoolStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop signals the workers and waits for them to drain.
func (p *TransformPool) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopChan)
	})
	p.wg.Wait()
}
