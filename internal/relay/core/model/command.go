package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultSpeed is the neutral PWM speed used when a command omits speed.
const DefaultSpeed = 1500

const commandFields = 8

// Command is a control directive issued by a viewer for one vehicle.
type Command struct {
	ID        string    `json:"id"`
	VehicleID string    `json:"vehicleId"`
	Principal string    `json:"principal,omitempty"`
	Mode      int       `json:"mode"`
	Speed     int       `json:"speed"`
	TargetLat float64   `json:"targetLat"`
	TargetLon float64   `json:"targetLon"`
	Kp        float64   `json:"kp"`
	Ki        float64   `json:"ki"`
	Kd        float64   `json:"kd"`
	IssuedAt  time.Time `json:"issuedAt"`
}

type commandWire struct {
	VehicleID string   `json:"vehicleId"`
	BoatID    string   `json:"boatId"`
	Mode      *int     `json:"mode"`
	Speed     *int     `json:"speed"`
	TargetLat *float64 `json:"targetLat"`
	TargetLon *float64 `json:"targetLon"`
	Kp        float64  `json:"kp"`
	Ki        float64  `json:"ki"`
	Kd        float64  `json:"kd"`
}

// GatewayCommand is the body accepted by a gateway control server.
type GatewayCommand struct {
	BoatID    string  `json:"boatId"`
	Mode      int     `json:"mode"`
	Speed     int     `json:"speed"`
	TargetLat float64 `json:"targetLat"`
	TargetLon float64 `json:"targetLon"`
	Kp        float64 `json:"kp"`
	Ki        float64 `json:"ki"`
	Kd        float64 `json:"kd"`
}

// ParseCommand decodes a viewer command, either JSON or the text record
//
//	vehicleId,mode,speed,targetLat,targetLon,kp,ki,kd
//
// When bound is non-empty the command must name that vehicle; an empty
// bound lets the command select its target. Every error wraps ErrMalformed.
func ParseCommand(payload []byte, bound string) (*Command, error) {
	data := bytes.TrimSpace(payload)
	if len(data) == 0 {
		return nil, malformed("empty command")
	}

	var (
		c   *Command
		err error
	)
	if data[0] == '{' {
		c, err = parseCommandJSON(data)
	} else {
		c, err = parseCommandText(data)
	}
	if err != nil {
		return nil, err
	}

	if !ValidVehicleID(c.VehicleID) {
		return nil, malformed("invalid vehicle id %q", c.VehicleID)
	}
	if bound != "" && c.VehicleID != bound {
		return nil, malformed("command for %q on a connection bound to %q", c.VehicleID, bound)
	}

	c.ID = uuid.NewString()
	c.IssuedAt = time.Now().UTC()
	return c, nil
}

func parseCommandText(data []byte) (*Command, error) {
	fields := strings.Split(string(data), ",")
	if len(fields) != commandFields {
		return nil, malformed("command record has %d fields, want %d", len(fields), commandFields)
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	mode, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, malformed("command mode: %v", err)
	}
	speed, err := strconv.Atoi(fields[2])
	if err != nil {
		return nil, malformed("command speed: %v", err)
	}

	nums := make([]float64, 5)
	for i, f := range fields[3:] {
		v, err := parseNumber(f)
		if err != nil {
			return nil, malformed("command field %d: %v", i+4, err)
		}
		nums[i] = v
	}

	return &Command{
		VehicleID: fields[0],
		Mode:      mode,
		Speed:     speed,
		TargetLat: nums[0],
		TargetLon: nums[1],
		Kp:        nums[2],
		Ki:        nums[3],
		Kd:        nums[4],
	}, nil
}

func parseCommandJSON(data []byte) (*Command, error) {
	var w commandWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, malformed("command json: %v", err)
	}
	if w.TargetLat == nil || w.TargetLon == nil {
		return nil, malformed("command json: targetLat and targetLon are required")
	}

	c := &Command{
		VehicleID: strings.TrimSpace(w.VehicleID),
		Speed:     DefaultSpeed,
		TargetLat: *w.TargetLat,
		TargetLon: *w.TargetLon,
		Kp:        w.Kp,
		Ki:        w.Ki,
		Kd:        w.Kd,
	}
	if c.VehicleID == "" {
		c.VehicleID = strings.TrimSpace(w.BoatID)
	}
	if w.Mode != nil {
		c.Mode = *w.Mode
	}
	if w.Speed != nil {
		c.Speed = *w.Speed
	}
	return c, nil
}

// Gateway converts the command into the gateway control server body.
func (c *Command) Gateway() GatewayCommand {
	return GatewayCommand{
		BoatID:    c.VehicleID,
		Mode:      c.Mode,
		Speed:     c.Speed,
		TargetLat: c.TargetLat,
		TargetLon: c.TargetLon,
		Kp:        c.Kp,
		Ki:        c.Ki,
		Kd:        c.Kd,
	}
}
