package inventory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/seawatch-io/seawatch/internal/relay/core"
	"github.com/seawatch-io/seawatch/internal/relay/core/model"
	"github.com/seawatch-io/seawatch/pkg/log"
)

// Static serves a fixed vehicle -> gateway table. The table can be
// replaced at runtime when the configuration file changes.
type Static struct {
	mu     sync.RWMutex
	routes map[string]string
}

var _ Inventory = (*Static)(nil)

// NewStatic returns an inventory over routes (vehicle id -> gateway address;
// an empty address means the default gateway).
func NewStatic(routes map[string]string) *Static {
	s := &Static{}
	s.Update(routes)
	return s
}

// Update replaces the route table.
func (s *Static) Update(routes map[string]string) {
	next := make(map[string]string, len(routes))
	for id, gw := range routes {
		if !model.ValidVehicleID(id) {
			log.Warn("Ignoring invalid vehicle id in routes", "vehicle", id)
			continue
		}
		next[id] = gw
	}

	s.mu.Lock()
	s.routes = next
	s.mu.Unlock()
	log.Info("Static inventory loaded", "vehicles", len(next))
}

func (s *Static) LookupVehicle(_ context.Context, id string) (*model.Vehicle, error) {
	s.mu.RLock()
	gw, ok := s.routes[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("vehicle %s: %w", id, core.ErrUnknownVehicle)
	}
	return &model.Vehicle{ID: id, GatewayAddress: gw}, nil
}

func (s *Static) LookupGatewayAddress(ctx context.Context, id string) (string, error) {
	return gatewayOf(ctx, s, id)
}

func (s *Static) ListVehicles(context.Context) ([]*model.Vehicle, error) {
	s.mu.RLock()
	out := make([]*model.Vehicle, 0, len(s.routes))
	for id, gw := range s.routes {
		out = append(out, &model.Vehicle{ID: id, GatewayAddress: gw})
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
