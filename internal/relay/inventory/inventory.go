// Package inventory implements core.Inventory over the SQL store, Boat
// custom resources in Kubernetes and static configuration, with an
// optional Redis read-through cache in front of any of them.
package inventory

import (
	"context"

	"github.com/seawatch-io/seawatch/internal/relay/core"
	"github.com/seawatch-io/seawatch/internal/relay/core/model"
)

// Lister is implemented by inventories that can enumerate their vehicles.
type Lister interface {
	ListVehicles(ctx context.Context) ([]*model.Vehicle, error)
}

// Inventory is a core.Inventory that can also list its vehicles.
type Inventory interface {
	core.Inventory
	Lister
}

// gatewayOf resolves a gateway through LookupVehicle.
func gatewayOf(ctx context.Context, inv core.Inventory, id string) (string, error) {
	v, err := inv.LookupVehicle(ctx, id)
	if err != nil {
		return "", err
	}
	return v.GatewayAddress, nil
}
