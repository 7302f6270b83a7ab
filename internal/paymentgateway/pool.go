package paymentgateway

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	paymentgatewaytypes "github.com/frahmantamala/smm-storefront/internal/core/datamodel/paymentgateway"
)

var ErrPoolClosed = errors.New("status poll pool is shut down")

// PollJob asks a worker to re-check the gateway status of one order.
type PollJob struct {
	OrderID       string
	Provider      paymentgatewaytypes.ProviderID
	TransactionID string
}

type Worker struct {
	ID         int
	WorkerPool chan chan PollJob
	JobChannel chan PollJob
	Logger     *slog.Logger
}

func NewWorker(id int, workerPool chan chan PollJob, logger *slog.Logger) *Worker {
	return &Worker{
		ID:         id,
		WorkerPool: workerPool,
		JobChannel: make(chan PollJob),
		Logger:     logger,
	}
}

func (w *Worker) Start(ctx context.Context, wg *sync.WaitGroup, processFunc func(context.Context, PollJob)) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		for {
			w.WorkerPool <- w.JobChannel

			select {
			case job := <-w.JobChannel:
				w.Logger.Debug("worker processing job", "worker_id", w.ID, "order_id", job.OrderID)
				processFunc(ctx, job)
			case <-ctx.Done():
				w.Logger.Debug("worker shutting down", "worker_id", w.ID)
				return
			}
		}
	}()
}

type PoolConfig struct {
	MaxWorkers   int
	JobQueueSize int
}

// Pool is a bounded set of workers fed from a single job queue. Nothing is
// started implicitly: callers create a pool for an explicit sweep and shut it
// down when done.
type Pool struct {
	logger  *slog.Logger
	process func(context.Context, PollJob)

	jobQueue   chan PollJob
	workerPool chan chan PollJob
	maxWorkers int
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	inFlight   sync.WaitGroup
	once       sync.Once
}

func NewPool(config PoolConfig, process func(context.Context, PollJob), logger *slog.Logger) *Pool {
	ctx, cancel := context.WithCancel(context.Background())

	maxWorkers := config.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 4
	}

	jobQueueSize := config.JobQueueSize
	if jobQueueSize <= 0 {
		jobQueueSize = 100
	}

	pool := &Pool{
		logger:     logger,
		maxWorkers: maxWorkers,
		jobQueue:   make(chan PollJob, jobQueueSize),
		workerPool: make(chan chan PollJob, maxWorkers),
		ctx:        ctx,
		cancel:     cancel,
	}
	pool.process = func(ctx context.Context, job PollJob) {
		defer pool.inFlight.Done()
		process(ctx, job)
	}

	pool.start()

	return pool
}

func (p *Pool) start() {
	p.once.Do(func() {
		for i := 0; i < p.maxWorkers; i++ {
			worker := NewWorker(i, p.workerPool, p.logger)
			worker.Start(p.ctx, &p.wg, p.process)
		}

		p.wg.Add(1)
		go p.dispatch()

		p.logger.Info("status poll worker pool started",
			"max_workers", p.maxWorkers,
			"queue_size", cap(p.jobQueue))
	})
}

func (p *Pool) dispatch() {
	defer p.wg.Done()

	for {
		select {
		case job := <-p.jobQueue:
			select {
			case jobChannel := <-p.workerPool:
				select {
				case jobChannel <- job:
				case <-p.ctx.Done():
					p.inFlight.Done()
					return
				}
			case <-p.ctx.Done():
				p.inFlight.Done()
				return
			}
		case <-p.ctx.Done():
			p.logger.Info("dispatcher shutting down")
			return
		}
	}
}

// Submit blocks until the job is queued, ctx is done or the pool is shut down.
func (p *Pool) Submit(ctx context.Context, job PollJob) error {
	if p.ctx.Err() != nil {
		return ErrPoolClosed
	}
	p.inFlight.Add(1)
	select {
	case p.jobQueue <- job:
		return nil
	case <-ctx.Done():
		p.inFlight.Done()
		return ctx.Err()
	case <-p.ctx.Done():
		p.inFlight.Done()
		return ErrPoolClosed
	}
}

// Wait blocks until every submitted job has been processed.
func (p *Pool) Wait() {
	p.inFlight.Wait()
}

func (p *Pool) Shutdown() {
	p.logger.Info("shutting down status poll worker pool")
	p.cancel()
	p.wg.Wait()
	p.logger.Info("status poll worker pool shutdown complete")
}
