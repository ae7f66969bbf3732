// Package registry tracks which viewer sessions receive the telemetry of
// which vehicle.
package registry

import (
	"fmt"
	"sync"

	"github.com/seawatch-io/seawatch/internal/pkg/metrics"
	"github.com/seawatch-io/seawatch/internal/relay/core"
	"github.com/seawatch-io/seawatch/pkg/log"
)

// All is the subscription target that receives every vehicle's telemetry.
const All = "all"

// Subscriber is a session that can receive telemetry. Implementations must
// be comparable; identity is the interface value itself.
type Subscriber interface {
	ID() string
	// Deliver enqueues msg without blocking and reports whether it was accepted.
	Deliver(msg []byte) bool
}

// Registry holds a set of subscribers per vehicle and a set of subscribers
// for All. Each structure has its own lock; no lock is held while callers
// deliver to the snapshot returned by ResolveReceivers.
type Registry struct {
	vmu       sync.RWMutex
	byVehicle map[string]map[Subscriber]struct{}
	vehicleOf map[Subscriber]string

	amu sync.RWMutex
	all map[Subscriber]struct{}

	logger log.Logger
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		byVehicle: make(map[string]map[Subscriber]struct{}),
		vehicleOf: make(map[Subscriber]string),
		all:       make(map[Subscriber]struct{}),
		logger:    log.WithName("registry"),
	}
}

// Subscribe adds s to the set for vehicleID, or to the all-set when
// vehicleID is All. A session holds at most one specific membership; a
// second one replaces the first and is logged as an inconsistency.
func (r *Registry) Subscribe(s Subscriber, vehicleID string) error {
	if s == nil || vehicleID == "" {
		return fmt.Errorf("%w: subscribe needs a session and a target", core.ErrMalformedInput)
	}

	if vehicleID == All {
		r.amu.Lock()
		r.all[s] = struct{}{}
		n := len(r.all)
		r.amu.Unlock()

		metrics.RegistrySubscribers.WithLabelValues("all").Set(float64(n))
		r.logger.Debug("Session subscribed", "session", s.ID(), "target", All)
		return nil
	}

	r.vmu.Lock()
	if prev, ok := r.vehicleOf[s]; ok && prev != vehicleID {
		r.logger.Warn("Session already subscribed to another vehicle, moving it",
			"session", s.ID(), "from", prev, "to", vehicleID, "error", core.ErrRegistryInconsistency.Error())
		r.removeVehicleLocked(s, prev)
	}
	set, ok := r.byVehicle[vehicleID]
	if !ok {
		set = make(map[Subscriber]struct{})
		r.byVehicle[vehicleID] = set
	}
	set[s] = struct{}{}
	r.vehicleOf[s] = vehicleID
	n := len(r.vehicleOf)
	r.vmu.Unlock()

	metrics.RegistrySubscribers.WithLabelValues("vehicle").Set(float64(n))
	r.logger.Debug("Session subscribed", "session", s.ID(), "target", vehicleID)
	return nil
}

// Unsubscribe removes s from every set it belongs to. It is idempotent.
func (r *Registry) Unsubscribe(s Subscriber) {
	if s == nil {
		return
	}

	r.vmu.Lock()
	if vehicleID, ok := r.vehicleOf[s]; ok {
		r.removeVehicleLocked(s, vehicleID)
	}
	nv := len(r.vehicleOf)
	r.vmu.Unlock()

	r.amu.Lock()
	delete(r.all, s)
	na := len(r.all)
	r.amu.Unlock()

	metrics.RegistrySubscribers.WithLabelValues("vehicle").Set(float64(nv))
	metrics.RegistrySubscribers.WithLabelValues("all").Set(float64(na))
}

func (r *Registry) removeVehicleLocked(s Subscriber, vehicleID string) {
	delete(r.vehicleOf, s)
	set, ok := r.byVehicle[vehicleID]
	if !ok {
		r.logger.Warn("Reverse index points at a missing vehicle set",
			"session", s.ID(), "vehicle", vehicleID, "error", core.ErrRegistryInconsistency.Error())
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(r.byVehicle, vehicleID)
	}
}

// ResolveReceivers returns the union of the subscribers of vehicleID and
// the all-set, each session at most once. The slice is a snapshot owned by
// the caller.
func (r *Registry) ResolveReceivers(vehicleID string) []Subscriber {
	r.vmu.RLock()
	specific := r.byVehicle[vehicleID]
	out := make([]Subscriber, 0, len(specific))
	for s := range specific {
		out = append(out, s)
	}
	r.vmu.RUnlock()

	seen := make(map[Subscriber]struct{}, len(out))
	for _, s := range out {
		seen[s] = struct{}{}
	}

	r.amu.RLock()
	for s := range r.all {
		if _, dup := seen[s]; !dup {
			out = append(out, s)
		}
	}
	r.amu.RUnlock()

	return out
}

// Count returns the number of sessions subscribed to vehicleID itself.
func (r *Registry) Count(vehicleID string) int {
	r.vmu.RLock()
	defer r.vmu.RUnlock()
	return len(r.byVehicle[vehicleID])
}

// AllCount returns the number of sessions subscribed to All.
func (r *Registry) AllCount() int {
	r.amu.RLock()
	defer r.amu.RUnlock()
	return len(r.all)
}

// Len returns the total number of memberships.
func (r *Registry) Len() int {
	r.vmu.RLock()
	n := len(r.vehicleOf)
	r.vmu.RUnlock()
	return n + r.AllCount()
}
