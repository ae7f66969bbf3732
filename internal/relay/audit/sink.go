package audit

import (
	"context"
	"sync"
	"time"

	"github.com/seawatch-io/seawatch/internal/pkg/metrics"
	"github.com/seawatch-io/seawatch/internal/relay/core"
	"github.com/seawatch-io/seawatch/internal/relay/core/model"
	"github.com/seawatch-io/seawatch/pkg/log"
)

const (
	DefaultQueueSize = 4096
	DefaultWorkers   = 2

	writeTimeout = 10 * time.Second
	closeTimeout = 15 * time.Second
)

// AsyncSink queues records and writes them on worker goroutines. Logging
// calls never block: a record that does not fit in the queue is dropped.
type AsyncSink struct {
	queue   chan Record
	writer  Writer
	workers int
	logger  log.Logger
}

var _ core.AuditSink = (*AsyncSink)(nil)

// NewAsyncSink returns a sink writing to every writer. Start must run for
// records to leave the queue.
func NewAsyncSink(queueSize, workers int, writers ...Writer) *AsyncSink {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if len(writers) == 0 {
		writers = []Writer{NewLogWriter()}
	}

	multi := make(MultiWriter, 0, len(writers))
	for _, w := range writers {
		multi = append(multi, instrument(w))
	}

	return &AsyncSink{
		queue:   make(chan Record, queueSize),
		writer:  multi,
		workers: workers,
		logger:  log.WithName("audit"),
	}
}

// LogTelemetry queues a telemetry record.
func (a *AsyncSink) LogTelemetry(s *model.TelemetrySample) {
	r, err := telemetryRecord(s)
	if err != nil {
		a.logger.Error(err, "Failed to encode telemetry record", "vehicle", s.VehicleID)
		return
	}
	a.enqueue(r)
}

// LogCommand queues a command record.
func (a *AsyncSink) LogCommand(c *model.Command) {
	r, err := commandRecord(c)
	if err != nil {
		a.logger.Error(err, "Failed to encode command record", "command", c.ID)
		return
	}
	a.enqueue(r)
}

func (a *AsyncSink) enqueue(r Record) {
	select {
	case a.queue <- r:
	default:
		metrics.AuditDropped.Inc()
		a.logger.Warn("Audit queue full, dropping record", "kind", r.Kind, "vehicle", r.VehicleID)
	}
}

// Start runs the workers until ctx is done, then drains what is queued
// and closes the writers.
func (a *AsyncSink) Start(ctx context.Context) error {
	a.logger.Info("Audit sink started", "workers", a.workers, "queue", cap(a.queue))

	var wg sync.WaitGroup
	for i := 0; i < a.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.work(ctx)
		}()
	}
	wg.Wait()

	drained := a.drain()
	closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := a.writer.Close(closeCtx); err != nil {
		a.logger.Error(err, "Failed to close audit writers")
	}
	a.logger.Info("Audit sink stopped", "drained", drained)
	return nil
}

func (a *AsyncSink) work(ctx context.Context) {
	for {
		select {
		case r := <-a.queue:
			a.write(r)
		case <-ctx.Done():
			return
		}
	}
}

func (a *AsyncSink) drain() int {
	n := 0
	for {
		select {
		case r := <-a.queue:
			a.write(r)
			n++
		default:
			return n
		}
	}
}

// write is best-effort; failures are logged and counted by the backend wrapper.
func (a *AsyncSink) write(r Record) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	_ = a.writer.Write(ctx, r)
}

// Len returns the number of queued records.
func (a *AsyncSink) Len() int {
	return len(a.queue)
}
