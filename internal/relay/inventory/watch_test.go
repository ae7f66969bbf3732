package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	toolscache "k8s.io/client-go/tools/cache"

	"github.com/seawatch-io/seawatch/pkg/log"
)

type recordingInvalidator struct {
	ids []string
	err error
}

func (r *recordingInvalidator) Invalidate(_ context.Context, id string) error {
	r.ids = append(r.ids, id)
	return r.err
}

func TestBoatWatcherEvicts(t *testing.T) {
	target := &recordingInvalidator{}
	w := &BoatWatcher{target: target, logger: log.NewNopLogger()}

	w.evict(boat("fleet", "B001", "10.0.0.1:80"))

	renamed := boat("fleet", "B002", "10.0.0.2:80")
	w.evict(toolscache.DeletedFinalStateUnknown{Key: "fleet/b002", Obj: renamed})

	unnamed := boat("fleet", "B003", "")
	delete(unnamed.Object["spec"].(map[string]any), "vehicleId")
	w.evict(unnamed)

	w.evict("not a boat")

	assert.Equal(t, []string{"B001", "B002", "b003"}, target.ids)
}

func TestBoatWatcherToleratesFailures(t *testing.T) {
	target := &recordingInvalidator{err: errors.New("redis down")}
	w := &BoatWatcher{target: target, logger: log.NewNopLogger()}

	assert.NotPanics(t, func() { w.evict(boat("fleet", "B001", "")) })
	assert.Equal(t, []string{"B001"}, target.ids)
}
