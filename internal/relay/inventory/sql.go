package inventory

import (
	"context"

	"github.com/seawatch-io/seawatch/internal/relay/core/model"
)

// VehicleStore is the part of the SQL store the inventory reads.
type VehicleStore interface {
	GetVehicle(ctx context.Context, id string) (*model.Vehicle, error)
	ListVehicles(ctx context.Context) ([]*model.Vehicle, error)
}

// SQL serves vehicles from the vehicles table.
type SQL struct {
	store VehicleStore
}

var _ Inventory = (*SQL)(nil)

// NewSQL returns an inventory backed by store.
func NewSQL(store VehicleStore) *SQL {
	return &SQL{store: store}
}

func (s *SQL) LookupVehicle(ctx context.Context, id string) (*model.Vehicle, error) {
	return s.store.GetVehicle(ctx, id)
}

func (s *SQL) LookupGatewayAddress(ctx context.Context, id string) (string, error) {
	return gatewayOf(ctx, s, id)
}

func (s *SQL) ListVehicles(ctx context.Context) ([]*model.Vehicle, error) {
	return s.store.ListVehicles(ctx)
}
