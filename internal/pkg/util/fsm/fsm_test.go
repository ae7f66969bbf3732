package fsm

import (
	"context"
	"errors"
	"testing"

	"github.com/looplab/fsm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallbacks(t *testing.T) {
	var entered []string
	record := func(ctx context.Context, e *fsm.Event) error {
		entered = append(entered, e.Dst)
		return nil
	}

	m := fsm.NewFSM("idle",
		fsm.Events{
			{Name: "start", Src: []string{"idle"}, Dst: "running"},
			{Name: "stop", Src: []string{"running"}, Dst: "stopped"},
		},
		Callbacks(map[string]func(ctx context.Context, event *fsm.Event) error{
			"running": record,
			"stopped": record,
		}),
	)

	require.NoError(t, m.Event(context.Background(), "start"))
	require.NoError(t, m.Event(context.Background(), "stop"))
	assert.Equal(t, []string{"running", "stopped"}, entered)
}

func TestWrapEventStoresError(t *testing.T) {
	boom := errors.New("boom")
	cb := WrapEvent(func(ctx context.Context, e *fsm.Event) error { return boom })

	e := &fsm.Event{}
	cb(context.Background(), e)
	assert.ErrorIs(t, e.Err, boom)
}
