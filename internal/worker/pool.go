package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/martinsuchenak/invd/internal/log"
)

// ErrPoolStopped is returned when submitting to a stopped pool
var ErrPoolStopped = errors.New("worker pool stopped")

// WorkerPool runs jobs on a fixed number of goroutines
type WorkerPool struct {
	maxWorkers int
	jobs       chan Job
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	stopOnce   sync.Once
}

// Job represents a unit of work
type Job struct {
	ID      string
	Handler func(context.Context) error
	Result  chan error
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(maxWorkers int) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		maxWorkers: maxWorkers,
		jobs:       make(chan Job, 100),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start starts the worker pool
func (p *WorkerPool) Start() {
	for i := 0; i < p.maxWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	log.Info("Worker pool started", "workers", p.maxWorkers)
}

// Stop cancels running jobs and waits for the workers to exit. Queued jobs
// are dropped.
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() {
		p.cancel()
		p.wg.Wait()
		log.Info("Worker pool stopped")
	})
}

// Submit queues a job. It blocks while the queue is full.
func (p *WorkerPool) Submit(job Job) error {
	if p.ctx.Err() != nil {
		return ErrPoolStopped
	}
	select {
	case p.jobs <- job:
		return nil
	case <-p.ctx.Done():
		return ErrPoolStopped
	}
}

// Pending returns the number of queued jobs
func (p *WorkerPool) Pending() int {
	return len(p.jobs)
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job := <-p.jobs:
			log.Debug("Worker executing job", "worker_id", id, "job_id", job.ID)

			err := job.Handler(p.ctx)
			if err != nil {
				log.Warn("Job failed", "worker_id", id, "job_id", job.ID, "error", err)
			}
			if job.Result != nil {
				job.Result <- err
			}
		}
	}
}
