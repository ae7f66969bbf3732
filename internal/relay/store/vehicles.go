package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/seawatch-io/seawatch/internal/relay/core"
	"github.com/seawatch-io/seawatch/internal/relay/core/model"
)

// UpsertVehicle creates or replaces a vehicle record.
func (db *DB) UpsertVehicle(ctx context.Context, v *model.Vehicle) error {
	_, err := db.ExecContext(ctx, db.Q(`INSERT INTO vehicles (vehicle_id, name, gateway_addr) VALUES (?, ?, ?)
		ON CONFLICT (vehicle_id) DO UPDATE SET name = excluded.name, gateway_addr = excluded.gateway_addr`),
		v.ID, v.Name, v.GatewayAddress)
	if err != nil {
		return fmt.Errorf("upsert vehicle %s: %w", v.ID, err)
	}
	return nil
}

// GetVehicle returns core.ErrUnknownVehicle when id is not registered.
func (db *DB) GetVehicle(ctx context.Context, id string) (*model.Vehicle, error) {
	v := &model.Vehicle{}
	err := db.QueryRowContext(ctx, db.Q(`SELECT vehicle_id, name, gateway_addr FROM vehicles WHERE vehicle_id = ?`), id).
		Scan(&v.ID, &v.Name, &v.GatewayAddress)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("vehicle %s: %w", id, core.ErrUnknownVehicle)
	}
	if err != nil {
		return nil, fmt.Errorf("get vehicle %s: %w", id, err)
	}
	return v, nil
}

// ListVehicles returns every vehicle ordered by id.
func (db *DB) ListVehicles(ctx context.Context) ([]*model.Vehicle, error) {
	rows, err := db.QueryContext(ctx, `SELECT vehicle_id, name, gateway_addr FROM vehicles ORDER BY vehicle_id`)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	defer rows.Close()

	var out []*model.Vehicle
	for rows.Next() {
		v := &model.Vehicle{}
		if err := rows.Scan(&v.ID, &v.Name, &v.GatewayAddress); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// DeleteVehicle removes a vehicle; deleting a missing vehicle is not an error.
func (db *DB) DeleteVehicle(ctx context.Context, id string) error {
	_, err := db.ExecContext(ctx, db.Q(`DELETE FROM vehicles WHERE vehicle_id = ?`), id)
	return err
}
