// Package mqtt is a small MQTT v5 client used for gateway telemetry, command
// delivery and presence.
package mqtt

import (
	"context"
)

// MessageHandler receives messages matching a subscription.
type MessageHandler func(ctx context.Context, topic string, payload []byte)

// Client is the broker connection shared by the relay's MQTT components.
type Client interface {
	// Start connects in the background and keeps reconnecting until ctx is
	// done. Use AwaitConnection to wait for the first connection.
	Start(ctx context.Context) error

	Disconnect(ctx context.Context)

	Publish(ctx context.Context, topic string, qos int, retain bool, payload []byte) error

	// Subscribe registers handler for filter, which may be a $share filter.
	// Subscriptions survive reconnects.
	Subscribe(ctx context.Context, filter string, qos int, handler MessageHandler) error

	Unsubscribe(ctx context.Context, filter string) error

	AwaitConnection(ctx context.Context) error

	IsConnected() bool
}
