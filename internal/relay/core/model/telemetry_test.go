package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTelemetryText(t *testing.T) {
	s, err := ParseTelemetry([]byte("B001,10.762622,106.660172,90,95,1500,1502,0.50\n"), "text/plain")
	require.NoError(t, err)

	assert.Equal(t, "B001", s.VehicleID)
	assert.InDelta(t, 10.762622, s.Lat, 1e-9)
	assert.InDelta(t, 106.660172, s.Lon, 1e-9)
	assert.Equal(t, 90.0, s.Head)
	assert.Equal(t, 95.0, s.TargetHead)
	assert.Equal(t, 1500.0, s.LeftSpeed)
	assert.Equal(t, 1502.0, s.RightSpeed)
	require.NotNil(t, s.PID)
	assert.Equal(t, 0.5, *s.PID)
	assert.Equal(t, FormatText, s.Format)
	assert.False(t, s.ReceivedAt.IsZero())

	// Viewers receive the record exactly as ingested, minus surrounding whitespace.
	assert.Equal(t, "B001,10.762622,106.660172,90,95,1500,1502,0.50", string(s.Encode()))
}

func TestParseTelemetryTextWithoutPID(t *testing.T) {
	s, err := ParseTelemetry([]byte("00001,1,2,3,4,5,6"), "")
	require.NoError(t, err)
	assert.Nil(t, s.PID)
	assert.Equal(t, "00001", s.VehicleID)
}

func TestParseTelemetryJSON(t *testing.T) {
	in := `{"boatId":"B002","lat":1.5,"lon":2.5,"head":10,"targetHead":20,"leftSpeed":1490,"rightSpeed":1510}`

	s, err := ParseTelemetry([]byte(in), "application/json; charset=utf-8")
	require.NoError(t, err)
	assert.Equal(t, "B002", s.VehicleID)
	assert.Equal(t, FormatJSON, s.Format)
	assert.Nil(t, s.PID)

	var out map[string]any
	require.NoError(t, json.Unmarshal(s.Encode(), &out))
	assert.Equal(t, "B002", out["vehicleId"])
	assert.Equal(t, 1.5, out["lat"])
	assert.Contains(t, out, "receivedAt")
	assert.NotContains(t, out, "pid")
}

func TestParseTelemetryJSONSniffed(t *testing.T) {
	s, err := ParseTelemetry([]byte(`{"vehicleId":"B001","lat":0,"lon":0,"head":0,"targetHead":0,"leftSpeed":0,"rightSpeed":0,"pid":1.25}`), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, s.Format)
	require.NotNil(t, s.PID)
	assert.Equal(t, 1.25, *s.PID)
}

func TestParseTelemetryMalformed(t *testing.T) {
	tests := map[string]string{
		"empty":            "   ",
		"too few fields":   "B001,1,2,3",
		"non numeric":      "B001,abc,2,3,4,5,6,7",
		"nan":              "B001,NaN,2,3,4,5,6",
		"empty vehicle":    ",1,2,3,4,5,6",
		"lat out of range": "B001,91,2,3,4,5,6",
		"lon out of range": "B001,1,181,3,4,5,6",
		"bad json":         `{"vehicleId":`,
		"json missing lat": `{"vehicleId":"B001","lon":1,"head":0,"targetHead":0,"leftSpeed":0,"rightSpeed":0}`,
		"json no vehicle":  `{"lat":1,"lon":1,"head":0,"targetHead":0,"leftSpeed":0,"rightSpeed":0}`,
		"vehicle with sep": `{"vehicleId":"B/1","lat":1,"lon":1,"head":0,"targetHead":0,"leftSpeed":0,"rightSpeed":0}`,
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseTelemetry([]byte(in), "")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed), "got %v", err)
		})
	}
}

func TestValidVehicleID(t *testing.T) {
	assert.True(t, ValidVehicleID("B001"))
	assert.True(t, ValidVehicleID("00001"))
	assert.False(t, ValidVehicleID(""))
	assert.False(t, ValidVehicleID("B 001"))
	assert.False(t, ValidVehicleID("B001,x"))
	assert.False(t, ValidVehicleID("seawatch/+"))
	assert.False(t, ValidVehicleID(string(make([]byte, MaxVehicleIDLength+1))))
}
