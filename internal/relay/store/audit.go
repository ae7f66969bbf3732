package store

import (
	"context"
	"fmt"
	"time"
)

// AuditEntry is one row of audit_log.
type AuditEntry struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"`
	VehicleID string    `json:"vehicleId"`
	Principal string    `json:"principal,omitempty"`
	Payload   string    `json:"payload"`
	CreatedAt time.Time `json:"createdAt"`
}

// AppendAudit inserts one audit row.
func (db *DB) AppendAudit(ctx context.Context, kind, vehicleID, principal string, payload []byte, at time.Time) error {
	if at.IsZero() {
		at = time.Now()
	}
	_, err := db.ExecContext(ctx, db.Q(`INSERT INTO audit_log (kind, vehicle_id, principal, payload, created_at) VALUES (?, ?, ?, ?, ?)`),
		kind, vehicleID, principal, string(payload), at.UTC())
	if err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

// ListAudit returns the latest entries for vehicleID, newest first.
func (db *DB) ListAudit(ctx context.Context, vehicleID string, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.QueryContext(ctx, db.Q(`SELECT id, kind, vehicle_id, principal, payload, created_at FROM audit_log
		WHERE vehicle_id = ? ORDER BY id DESC LIMIT ?`), vehicleID, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var (
			e       AuditEntry
			created any
		)
		if err := rows.Scan(&e.ID, &e.Kind, &e.VehicleID, &e.Principal, &e.Payload, &created); err != nil {
			return nil, err
		}
		e.CreatedAt = parseTime(created)
		out = append(out, e)
	}
	return out, rows.Err()
}
