package core

import (
	"context"

	"github.com/seawatch-io/seawatch/internal/relay/core/model"
)

// Inventory answers identity questions about vehicles.
type Inventory interface {
	// LookupVehicle returns ErrUnknownVehicle for an unregistered id.
	LookupVehicle(ctx context.Context, id string) (*model.Vehicle, error)

	// LookupGatewayAddress returns the host:port of the gateway serving id.
	LookupGatewayAddress(ctx context.Context, id string) (string, error)
}

// Forwarder delivers a command to the gateway of its vehicle.
type Forwarder interface {
	Forward(ctx context.Context, gateway string, cmd *model.Command) error
}

// AuditSink records telemetry and commands. Both calls return immediately.
type AuditSink interface {
	LogTelemetry(sample *model.TelemetrySample)
	LogCommand(cmd *model.Command)
}

// User is an account allowed to obtain a credential.
type User struct {
	Username     string
	PasswordHash []byte
}

// UserStore looks up accounts; it returns ErrUnauthorized for unknown users.
type UserStore interface {
	GetUser(ctx context.Context, username string) (*User, error)
}
