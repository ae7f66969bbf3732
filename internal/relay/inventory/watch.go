package inventory

import (
	"context"
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/client-go/rest"
	toolscache "k8s.io/client-go/tools/cache"
	crcache "sigs.k8s.io/controller-runtime/pkg/cache"

	"github.com/seawatch-io/seawatch/pkg/log"
)

// Invalidator drops cached inventory entries.
type Invalidator interface {
	Invalidate(ctx context.Context, id string) error
}

// BoatWatcher evicts a vehicle from the inventory cache whenever its Boat
// resource is created, changed or deleted, so lookups do not wait for the
// cache TTL to see fleet edits.
type BoatWatcher struct {
	cache  crcache.Cache
	target Invalidator
	logger log.Logger
}

// NewBoatWatcher creates an informer cache over Boats in namespace.
func NewBoatWatcher(cfg *rest.Config, namespace string, target Invalidator) (*BoatWatcher, error) {
	c, err := crcache.New(cfg, crcache.Options{
		DefaultNamespaces: map[string]crcache.Config{namespace: {}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create boat informer cache: %w", err)
	}
	return &BoatWatcher{cache: c, target: target, logger: log.WithName("boat-watcher")}, nil
}

// Start registers the event handlers and runs the informers until ctx is done.
func (w *BoatWatcher) Start(ctx context.Context) error {
	boat := &unstructured.Unstructured{}
	boat.SetGroupVersionKind(BoatGVK)

	informer, err := w.cache.GetInformer(ctx, boat)
	if err != nil {
		return fmt.Errorf("failed to get boat informer: %w", err)
	}
	if _, err := informer.AddEventHandler(toolscache.ResourceEventHandlerFuncs{
		AddFunc: w.evict,
		UpdateFunc: func(oldObj, newObj any) {
			// A changed spec.vehicleId leaves the old id stale too.
			w.evict(oldObj)
			w.evict(newObj)
		},
		DeleteFunc: w.evict,
	}); err != nil {
		return fmt.Errorf("failed to watch boats: %w", err)
	}

	w.logger.Info("Watching boats for inventory changes")
	return w.cache.Start(ctx)
}

func (w *BoatWatcher) evict(obj any) {
	if tomb, ok := obj.(toolscache.DeletedFinalStateUnknown); ok {
		obj = tomb.Obj
	}
	u, ok := obj.(*unstructured.Unstructured)
	if !ok {
		return
	}

	id := toVehicle(u).ID
	if err := w.target.Invalidate(context.Background(), id); err != nil {
		w.logger.Warn("Failed to evict cached vehicle", "vehicle", id, "error", err.Error())
		return
	}
	w.logger.Debug("Evicted cached vehicle", "vehicle", id, "boat", u.GetName())
}
