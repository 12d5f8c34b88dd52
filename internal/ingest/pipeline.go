package ingest

import (
	"context"
	"sync"
	"time"

	"example.com/sensing-api/internal/auditlog"
	"example.com/sensing-api/internal/domain"
)

// Store persists one batch atomically and reports the number of rows written.
type Store interface {
	IngestBatch(ctx context.Context, b domain.Batch) (int64, error)
}

// Pipeline runs accepted batches as deferred units of work. Submission is
// decoupled from the request path by a bounded queue; a fixed set of workers
// consumes it, each unit holding one storage connection for the lifetime of
// one transaction. A failed unit is logged and dropped, never retried, so
// completion is observable only through the outcome sink.
type Pipeline struct {
	queue   chan domain.Batch
	store   Store
	sink    *auditlog.Sink
	workers int
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewPipeline(store Store, sink *auditlog.Sink, queueMaxSize, workers int, timeout time.Duration) *Pipeline {
	return &Pipeline{
		queue:   make(chan domain.Batch, queueMaxSize),
		store:   store,
		sink:    sink,
		workers: workers,
		timeout: timeout,
	}
}

func (p *Pipeline) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for b := range p.queue {
				p.process(b)
			}
		}()
	}
}

// Enqueue schedules a batch and returns immediately. False means the queue is
// full and the batch was not accepted.
func (p *Pipeline) Enqueue(b domain.Batch) bool {
	select {
	case p.queue <- b:
		return true
	default:
		return false
	}
}

// Stop closes the queue and waits for queued and in-flight units to finish.
// Must run before the connection pool is closed.
func (p *Pipeline) Stop() {
	close(p.queue)
	p.wg.Wait()
}

func (p *Pipeline) process(b domain.Batch) {
	ctx := context.Background()
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	records, err := p.store.IngestBatch(ctx, b)
	if err != nil {
		p.sink.Failure(b.Metadata.DeviceID, err)
		return
	}
	p.sink.Success(b.Metadata.DeviceID, records)
}
