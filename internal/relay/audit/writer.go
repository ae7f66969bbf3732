package audit

import (
	"context"
	"errors"

	"github.com/seawatch-io/seawatch/internal/pkg/metrics"
	"github.com/seawatch-io/seawatch/pkg/log"
)

// Writer is an audit backend.
type Writer interface {
	// Name identifies the backend in logs and metrics.
	Name() string
	Write(ctx context.Context, r Record) error
	// Close flushes buffered records and releases the backend.
	Close(ctx context.Context) error
}

// MultiWriter fans every record out to all of its writers.
type MultiWriter []Writer

var _ Writer = MultiWriter(nil)

func (m MultiWriter) Name() string { return "multi" }

// Write hands r to every writer; one failing backend does not stop the others.
func (m MultiWriter) Write(ctx context.Context, r Record) error {
	var errs []error
	for _, w := range m {
		if err := w.Write(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiWriter) Close(ctx context.Context) error {
	var errs []error
	for _, w := range m {
		if err := w.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// instrumented logs and counts the failures of one backend.
type instrumented struct {
	Writer
	logger log.Logger
}

func instrument(w Writer) Writer {
	return &instrumented{Writer: w, logger: log.WithName("audit").WithValues("backend", w.Name())}
}

func (i *instrumented) Write(ctx context.Context, r Record) error {
	err := i.Writer.Write(ctx, r)
	if err != nil {
		metrics.AuditFailures.WithLabelValues(i.Name()).Inc()
		i.logger.Error(err, "Audit write failed", "kind", r.Kind, "vehicle", r.VehicleID)
	}
	return err
}

// LogWriter writes each record as a structured log line.
type LogWriter struct {
	logger log.Logger
}

// NewLogWriter returns a LogWriter.
func NewLogWriter() *LogWriter {
	return &LogWriter{logger: log.WithName("audit")}
}

func (w *LogWriter) Name() string { return "log" }

func (w *LogWriter) Write(_ context.Context, r Record) error {
	w.logger.Info("Audit record",
		"kind", r.Kind,
		"vehicle", r.VehicleID,
		"principal", r.Principal,
		"payload", string(r.Payload),
		"recordedAt", r.RecordedAt,
	)
	return nil
}

func (w *LogWriter) Close(context.Context) error { return nil }
