// Package audit records telemetry samples and commands off the hot path.
// Records are queued by an AsyncSink and written by one or more backends.
package audit

import (
	"encoding/json"
	"time"

	"github.com/seawatch-io/seawatch/internal/relay/core/model"
)

// Kind is the type of event a Record describes.
type Kind string

const (
	KindTelemetry Kind = "telemetry"
	KindCommand   Kind = "command"
)

// Record is one logged event.
type Record struct {
	Kind       Kind            `json:"kind"`
	VehicleID  string          `json:"vehicleId"`
	Principal  string          `json:"principal,omitempty"`
	Payload    json.RawMessage `json:"payload"`
	RecordedAt time.Time       `json:"recordedAt"`
}

func telemetryRecord(s *model.TelemetrySample) (Record, error) {
	payload, err := json.Marshal(s)
	if err != nil {
		return Record{}, err
	}
	return Record{
		Kind:       KindTelemetry,
		VehicleID:  s.VehicleID,
		Payload:    payload,
		RecordedAt: s.ReceivedAt,
	}, nil
}

func commandRecord(c *model.Command) (Record, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return Record{}, err
	}
	return Record{
		Kind:       KindCommand,
		VehicleID:  c.VehicleID,
		Principal:  c.Principal,
		Payload:    payload,
		RecordedAt: c.IssuedAt,
	}, nil
}
