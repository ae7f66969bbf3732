package audit

import (
	"context"
	"time"
)

// AuditStore appends rows to the audit_log table.
type AuditStore interface {
	AppendAudit(ctx context.Context, kind, vehicleID, principal string, payload []byte, at time.Time) error
}

// SQLWriter stores records in the relational store.
type SQLWriter struct {
	store AuditStore
}

// NewSQLWriter returns a writer backed by store.
func NewSQLWriter(store AuditStore) *SQLWriter {
	return &SQLWriter{store: store}
}

func (w *SQLWriter) Name() string { return "sql" }

func (w *SQLWriter) Write(ctx context.Context, r Record) error {
	return w.store.AppendAudit(ctx, string(r.Kind), r.VehicleID, r.Principal, r.Payload, r.RecordedAt)
}

// Close is a no-op; the store is owned by the caller.
func (w *SQLWriter) Close(context.Context) error { return nil }
