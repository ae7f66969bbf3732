package model

import (
	"bytes"
	"encoding/json"
	"math"
	"mime"
	"strconv"
	"strings"
	"time"
)

// Format is the wire shape a record arrived in.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

func (f Format) String() string {
	if f == FormatJSON {
		return "json"
	}
	return "text"
}

const minTelemetryFields = 7

// TelemetrySample is one position/status report of a vehicle.
type TelemetrySample struct {
	VehicleID  string    `json:"vehicleId"`
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	Head       float64   `json:"head"`
	TargetHead float64   `json:"targetHead"`
	LeftSpeed  float64   `json:"leftSpeed"`
	RightSpeed float64   `json:"rightSpeed"`
	PID        *float64  `json:"pid,omitempty"`
	ReceivedAt time.Time `json:"receivedAt"`

	// Format and raw record as received; outbound copies keep the same shape.
	Format Format `json:"-"`
	raw    []byte
}

// telemetryWire is the inbound JSON shape. Pointers detect missing fields.
type telemetryWire struct {
	VehicleID  string   `json:"vehicleId"`
	BoatID     string   `json:"boatId"`
	Lat        *float64 `json:"lat"`
	Lon        *float64 `json:"lon"`
	Head       *float64 `json:"head"`
	TargetHead *float64 `json:"targetHead"`
	LeftSpeed  *float64 `json:"leftSpeed"`
	RightSpeed *float64 `json:"rightSpeed"`
	PID        *float64 `json:"pid"`
}

// ParseTelemetry decodes a telemetry record. JSON is chosen when the content
// type says so or the payload starts with '{'; anything else is parsed as
// the delimited text record
//
//	vehicleId,lat,lon,head,targetHead,leftSpeed,rightSpeed[,pid]
//
// Every error wraps ErrMalformed.
func ParseTelemetry(raw []byte, contentType string) (*TelemetrySample, error) {
	data := bytes.TrimSpace(raw)
	if len(data) == 0 {
		return nil, malformed("empty telemetry record")
	}

	var (
		s   *TelemetrySample
		err error
	)
	if isJSON(data, contentType) {
		s, err = parseTelemetryJSON(data)
	} else {
		s, err = parseTelemetryText(data)
	}
	if err != nil {
		return nil, err
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	s.ReceivedAt = time.Now().UTC()
	return s, nil
}

func isJSON(data []byte, contentType string) bool {
	if contentType != "" {
		if mt, _, err := mime.ParseMediaType(contentType); err == nil && mt == "application/json" {
			return true
		}
	}
	return len(data) > 0 && data[0] == '{'
}

func parseTelemetryText(data []byte) (*TelemetrySample, error) {
	fields := strings.Split(string(data), ",")
	if len(fields) < minTelemetryFields {
		return nil, malformed("telemetry record has %d fields, want at least %d", len(fields), minTelemetryFields)
	}

	nums := make([]float64, len(fields)-1)
	for i, f := range fields[1:] {
		v, err := parseNumber(f)
		if err != nil {
			return nil, malformed("telemetry field %d: %v", i+2, err)
		}
		nums[i] = v
	}

	s := &TelemetrySample{
		VehicleID:  strings.TrimSpace(fields[0]),
		Lat:        nums[0],
		Lon:        nums[1],
		Head:       nums[2],
		TargetHead: nums[3],
		LeftSpeed:  nums[4],
		RightSpeed: nums[5],
		Format:     FormatText,
		raw:        append([]byte(nil), data...),
	}
	if len(nums) > 6 {
		pid := nums[6]
		s.PID = &pid
	}
	return s, nil
}

func parseTelemetryJSON(data []byte) (*TelemetrySample, error) {
	var w telemetryWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, malformed("telemetry json: %v", err)
	}

	id := w.VehicleID
	if id == "" {
		id = w.BoatID
	}

	required := []struct {
		name string
		v    *float64
	}{
		{"lat", w.Lat}, {"lon", w.Lon}, {"head", w.Head},
		{"targetHead", w.TargetHead}, {"leftSpeed", w.LeftSpeed}, {"rightSpeed", w.RightSpeed},
	}
	for _, r := range required {
		if r.v == nil {
			return nil, malformed("telemetry json: missing %q", r.name)
		}
	}

	return &TelemetrySample{
		VehicleID:  strings.TrimSpace(id),
		Lat:        *w.Lat,
		Lon:        *w.Lon,
		Head:       *w.Head,
		TargetHead: *w.TargetHead,
		LeftSpeed:  *w.LeftSpeed,
		RightSpeed: *w.RightSpeed,
		PID:        w.PID,
		Format:     FormatJSON,
	}, nil
}

func (s *TelemetrySample) validate() error {
	if !ValidVehicleID(s.VehicleID) {
		return malformed("invalid vehicle id %q", s.VehicleID)
	}
	if s.Lat < -90 || s.Lat > 90 {
		return malformed("latitude %v out of range", s.Lat)
	}
	if s.Lon < -180 || s.Lon > 180 {
		return malformed("longitude %v out of range", s.Lon)
	}
	return nil
}

// Encode returns the record sent to viewers: the text record for text
// input, a JSON object carrying vehicleId and receivedAt for JSON input.
func (s *TelemetrySample) Encode() []byte {
	if s.Format == FormatText && len(s.raw) > 0 {
		return s.raw
	}
	b, err := json.Marshal(s)
	if err != nil {
		// Unreachable: every field is a finite number, a string or a time.
		return nil
	}
	return b
}

// parseNumber accepts finite decimal numbers only.
func parseNumber(f string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, strconv.ErrSyntax
	}
	return v, nil
}
