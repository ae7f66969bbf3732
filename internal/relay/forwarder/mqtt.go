package forwarder

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/seawatch-io/seawatch/internal/pkg/mqtt/paths"
	"github.com/seawatch-io/seawatch/internal/relay/core"
	"github.com/seawatch-io/seawatch/internal/relay/core/model"
	pkgmqtt "github.com/seawatch-io/seawatch/pkg/mqtt"
	"github.com/seawatch-io/seawatch/pkg/mqtt/topic"
)

// MQTT publishes commands to {root}/command/{vehicleID}. The gateway address
// is not used: gateways subscribe to the vehicles they serve.
type MQTT struct {
	client  pkgmqtt.Client
	builder *topic.Builder
	qos     int
}

var _ core.Forwarder = (*MQTT)(nil)

// NewMQTT returns a forwarder publishing through an already started client.
func NewMQTT(client pkgmqtt.Client, root string) *MQTT {
	return &MQTT{client: client, builder: topic.NewBuilder(root), qos: 1}
}

func (f *MQTT) Forward(ctx context.Context, _ string, cmd *model.Command) error {
	if !f.client.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}

	payload, err := json.Marshal(cmd.Gateway())
	if err != nil {
		return err
	}

	t := f.builder.Build(paths.Command, cmd.VehicleID)
	if err := f.client.Publish(ctx, t, f.qos, false, payload); err != nil {
		return fmt.Errorf("publish %s: %w", t, err)
	}
	return nil
}
