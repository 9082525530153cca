package pipeline

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/pagelift/pagelift/internal/seo"
)

// Worker consumes queued scans and runs them through the engine.
type Worker struct {
	queue    Queue
	engine   *Engine
	store    seo.ScanStore
	registry *Registry
	logger   *zap.Logger
}

// NewWorker constructs a Worker.
func NewWorker(queue Queue, engine *Engine, store seo.ScanStore, registry *Registry, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:    queue,
		engine:   engine,
		store:    store,
		registry: registry,
		logger:   logger,
	}
}

// Run blocks, consuming queue items until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.processJob(ctx, job)
	}
}

func (w *Worker) processJob(ctx context.Context, job ScanJob) {
	scan, err := w.store.GetScan(ctx, job.ScanID)
	if err != nil {
		w.logger.Error("load queued scan failed",
			zap.String("scan_id", job.ScanID), zap.Error(err))
		return
	}
	if scan.Status != seo.ScanStatusQueued {
		w.logger.Debug("skipping scan not in queued state",
			zap.String("scan_id", job.ScanID),
			zap.String("status", string(scan.Status)))
		return
	}

	scanCtx := ctx
	release := func() {}
	if w.registry != nil {
		scanCtx, release = w.registry.begin(ctx, scan.ID)
	}
	defer release()

	if _, err := w.engine.RunScan(scanCtx, scan); err != nil && !errors.Is(err, context.Canceled) {
		w.logger.Warn("scan failed", zap.String("scan_id", scan.ID), zap.Error(err))
	}
}

// Dispatcher fans out queue work to a pool of workers.
type Dispatcher struct {
	queue   Queue
	workers []*Worker
}

// NewDispatcher creates a Dispatcher over the shared queue.
func NewDispatcher(queue Queue, workers []*Worker) *Dispatcher {
	return &Dispatcher{queue: queue, workers: workers}
}

// Run starts all workers and blocks until the context finishes.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	<-ctx.Done()
	wg.Wait()
}

// Enqueue proxies to the underlying queue.
func (d *Dispatcher) Enqueue(ctx context.Context, job ScanJob) error {
	return d.queue.Enqueue(ctx, job)
}
