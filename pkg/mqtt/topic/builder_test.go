package topic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuilder(t *testing.T) {
	b := NewBuilder("seawatch/v1/")

	assert.Equal(t, "seawatch/v1", b.Root())
	assert.Equal(t, "seawatch/v1/telemetry/B001", b.Build("telemetry", "B001"))
	assert.Equal(t, "seawatch/v1/command/+", b.BuildWildcard("command"))

	shared := b.Shared("relay")
	assert.Equal(t, "$share/relay/seawatch/v1/telemetry/+", shared.BuildWildcard("telemetry"))
	assert.Same(t, b, b.Shared(""))
	// Shared must not mutate the receiver.
	assert.Equal(t, "seawatch/v1/telemetry/B001", b.Build("telemetry", "B001"))
}

func TestBuilderParse(t *testing.T) {
	b := NewBuilder("seawatch/v1")

	tests := []struct {
		topic  string
		wantID string
		wantOK bool
	}{
		{"seawatch/v1/telemetry/B001", "B001", true},
		{"seawatch/v1/telemetry/", "", false},
		{"seawatch/v1/telemetry/B001/extra", "", false},
		{"seawatch/v1/command/B001", "", false},
		{"other/telemetry/B001", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			id, ok := b.Parse("telemetry", tt.topic)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}
