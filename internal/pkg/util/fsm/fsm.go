package fsm

import (
	"context"

	"github.com/looplab/fsm"
)

// WrapEvent adapts a callback that returns an error into an fsm.Callback.
// A non-nil error is stored on the event so Event() reports it.
func WrapEvent(fn func(ctx context.Context, event *fsm.Event) error) fsm.Callback {
	return func(ctx context.Context, event *fsm.Event) {
		if err := fn(ctx, event); err != nil {
			event.Err = err
		}
	}
}

// Callbacks builds an fsm.Callbacks map from enter_ hooks keyed by state.
func Callbacks(enter map[string]func(ctx context.Context, event *fsm.Event) error) fsm.Callbacks {
	cbs := make(fsm.Callbacks, len(enter))
	for state, fn := range enter {
		cbs["enter_"+state] = WrapEvent(fn)
	}
	return cbs
}
