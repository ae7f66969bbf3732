package paths

// Topic segments used on the seawatch broker namespace.
// Every topic has the shape {root}/{segment}/{vehicleID}.

// Upstream: gateway -> relay
const (
	// Telemetry carries telemetry samples in text or JSON form.
	// Pattern: {root}/telemetry/{vehicleID}
	Telemetry = "telemetry"

	// Status is the gateway presence topic (retained, with a last will).
	// Pattern: {root}/status/{clientID}
	Status = "status"
)

// Downstream: relay -> gateway
const (
	// Command carries control commands for one vehicle.
	// Payload: { "boatId": "...", "mode": 1, "speed": 1500, ... }
	// Pattern: {root}/command/{vehicleID}
	Command = "command"
)
